// Package deck holds the data model shared by the wire codec, the proof
// system and the worker: field elements, affine points, masked cards and
// decks.
package deck

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	// StandardSize is the number of cards of a full deck.
	StandardSize = 52
	// PublicCards is the default number of leading cards that are openly
	// known and therefore left out of the hash commitment.
	PublicCards = 17
	// ElementSize is the size in bytes of a serialized Element.
	ElementSize = fr.Bytes
	// TokensPerCard is the number of field elements of a masked card.
	TokensPerCard = 4
)

// Element is an integer modulo the scalar field of BN254, which is the base
// field of the twisted Edwards curve the cards live on.
type Element = fr.Element

// ElementFromBig reduces x modulo the field prime.
func ElementFromBig(x *big.Int) Element {
	var e Element
	e.SetBigInt(x)
	return e
}

// ElementFromBytes interprets b as a big-endian integer and reduces it
// modulo the field prime.
func ElementFromBytes(b []byte) Element {
	var e Element
	e.SetBytes(b)
	return e
}

// ElementToBig returns the canonical integer value of e.
func ElementToBig(e Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// Point is an affine point given by its coordinates. Nothing in this
// package checks that it lies on the curve.
type Point struct {
	X, Y Element
}

// Equal reports whether both coordinates match.
func (p Point) Equal(q Point) bool {
	return p.X.Equal(&q.X) && p.Y.Equal(&q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%s, %s)", p.X.String(), p.Y.String())
}

// JointKey is the combined public key of all the parties of a game.
type JointKey struct {
	Point
}

// Card is an ElGamal ciphertext over one playing card: E1 is the ephemeral
// key and E2 the blinded message.
type Card struct {
	E1, E2 Point
}

// Equal reports whether both points of the cards match.
func (c Card) Equal(d Card) bool {
	return c.E1.Equal(d.E1) && c.E2.Equal(d.E2)
}

// Flatten returns the coordinates of the card in their natural order
// e1.x, e1.y, e2.x, e2.y.
func (c Card) Flatten() []Element {
	return []Element{c.E1.X, c.E1.Y, c.E2.X, c.E2.Y}
}

// Deck is an ordered sequence of masked cards.
type Deck []Card

// Equal reports whether both decks hold the same cards in the same order.
func (d Deck) Equal(o Deck) bool {
	if len(d) != len(o) {
		return false
	}
	for i := range d {
		if !d[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Public returns the first n cards of the deck, or the whole deck if it is
// shorter.
func (d Deck) Public(n int) Deck {
	if n > len(d) {
		n = len(d)
	}
	return d[:n]
}

// Private returns the cards following the public prefix of length n.
func (d Deck) Private(n int) Deck {
	if n > len(d) {
		n = len(d)
	}
	return d[n:]
}

// Flatten concatenates the flattened cards of the deck.
func (d Deck) Flatten() []Element {
	out := make([]Element, 0, len(d)*TokensPerCard)
	for _, c := range d {
		out = append(out, c.Flatten()...)
	}
	return out
}

// Clone returns a copy of the deck that does not share its backing array.
func (d Deck) Clone() Deck {
	return append(Deck(nil), d...)
}
