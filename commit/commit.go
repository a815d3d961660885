// Package commit computes the hash commitment that binds the private part
// of a deck.
package commit

import (
	"context"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"go.dedis.ch/shuffleprover/deck"
	"golang.org/x/xerrors"
)

// Hash is a variable-length hash over field elements. Implementations
// that leave the process must give up when ctx is done.
type Hash interface {
	Eval(ctx context.Context, elements []deck.Element) (deck.Element, error)
}

// HashFunc adapts a function to the Hash interface.
type HashFunc func(context.Context, []deck.Element) (deck.Element, error)

// Eval implements Hash.
func (f HashFunc) Eval(ctx context.Context, elements []deck.Element) (deck.Element, error) {
	return f(ctx, elements)
}

// Deck returns the commitment over the cards following the public prefix
// of length nPublic. The public cards never enter the hash.
func Deck(ctx context.Context, h Hash, d deck.Deck, nPublic int) (deck.Element, error) {
	if nPublic < 0 {
		return deck.Element{}, xerrors.Errorf("negative public prefix %d", nPublic)
	}
	return h.Eval(ctx, d.Private(nPublic).Flatten())
}

// MiMC is the MiMC sponge of gnark-crypto over the BN254 scalar field.
type MiMC struct{}

// Eval implements Hash. The hash is computed in memory and ignores ctx.
func (MiMC) Eval(_ context.Context, elements []deck.Element) (deck.Element, error) {
	h := mimc.NewMiMC()
	for i := range elements {
		b := elements[i].Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return deck.Element{}, xerrors.Errorf("hashing element %d: %w", i, err)
		}
	}
	return deck.ElementFromBytes(h.Sum(nil)), nil
}
