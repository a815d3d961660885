package babyjub

import (
	"io"
	"math/big"

	"go.dedis.ch/shuffleprover/deck"
)

// KeyPair is an ElGamal key pair on the curve.
type KeyPair struct {
	Private *big.Int
	Public  deck.JointKey
}

// NewKeyPair generates a fresh key pair.
func NewKeyPair(rng io.Reader) (*KeyPair, error) {
	x, err := RandomScalar(rng)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: x, Public: deck.JointKey{Point: MulBase(x)}}, nil
}

// Mask performs the ElGamal encryption of the point m under the public key
// with the ephemeral scalar r.
func Mask(public deck.JointKey, m deck.Point, r *big.Int) deck.Card {
	return deck.Card{
		E1: MulBase(r),                   // ephemeral DH public key
		E2: Add(m, Mul(public.Point, r)), // message blinded with secret
	}
}

// MaskRandom masks m with fresh randomness.
func MaskRandom(rng io.Reader, public deck.JointKey, m deck.Point) (deck.Card, error) {
	r, err := RandomScalar(rng)
	if err != nil {
		return deck.Card{}, err
	}
	return Mask(public, m, r), nil
}

// Remask re-randomizes a card without changing the point it hides.
func Remask(public deck.JointKey, c deck.Card, r *big.Int) deck.Card {
	return deck.Card{
		E1: Add(c.E1, MulBase(r)),
		E2: Add(c.E2, Mul(public.Point, r)),
	}
}

// Unmask performs the ElGamal decryption of the card.
func Unmask(private *big.Int, c deck.Card) deck.Point {
	s := Mul(c.E1, private) // regenerate shared secret
	return Sub(c.E2, s)     // use to un-blind the message
}
