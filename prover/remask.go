package prover

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"math/big"

	"go.dedis.ch/shuffleprover/babyjub"
	"go.dedis.ch/shuffleprover/deck"
	"golang.org/x/xerrors"
)

// Remask shuffles and re-masks a deck on the Baby Jubjub curve but produces
// an empty proof. It is meant for running the worker against the task
// generator; verifiers will reject its output.
type Remask struct {
	// MaxDeckSize is the largest deck Setup accepts, 0 for no limit.
	MaxDeckSize int
}

// NewRemask returns a development proof system.
func NewRemask() *Remask {
	return &Remask{}
}

// Setup implements ProofSystem.
func (r *Remask) Setup(ctx context.Context, n int) (*Params, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, xerrors.Errorf("cannot shuffle a deck of %d cards", n)
	}
	if r.MaxDeckSize > 0 && n > r.MaxDeckSize {
		return nil, xerrors.Errorf("deck of %d cards exceeds the maximum of %d", n, r.MaxDeckSize)
	}
	return &Params{DeckSize: n}, nil
}

// RefreshKey implements ProofSystem. The parameters remember the key and
// every card slot gets the joint key as its share.
func (r *Remask) RefreshKey(ctx context.Context, p *Params, key deck.JointKey) ([]deck.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !babyjub.InSubgroup(key.Point) {
		return nil, xerrors.New("joint key is not a subgroup point")
	}
	p.Blob = encodePoint(key.Point)
	shares := make([]deck.Point, p.DeckSize)
	for i := range shares {
		shares[i] = key.Point
	}
	return shares, nil
}

// Prove implements ProofSystem.
func (r *Remask) Prove(ctx context.Context, rng io.Reader, key deck.JointKey, d deck.Deck, p *Params) ([]byte, deck.Deck, error) {
	if len(d) != p.DeckSize {
		return nil, nil, xerrors.Errorf("parameters are for %d cards, deck has %d", p.DeckSize, len(d))
	}
	if !bytes.Equal(p.Blob, encodePoint(key.Point)) {
		return nil, nil, xerrors.New("parameters were not refreshed for this key")
	}

	perm, err := permutation(rng, len(d))
	if err != nil {
		return nil, nil, err
	}
	out := make(deck.Deck, len(d))
	for i, j := range perm {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		s, err := babyjub.RandomScalar(rng)
		if err != nil {
			return nil, nil, err
		}
		out[i] = babyjub.Remask(key, d[j], s)
	}
	return []byte{}, out, nil
}

// permutation draws a uniform permutation of [0, n) with Fisher-Yates.
func permutation(rng io.Reader, n int) ([]int, error) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j, err := rand.Int(rng, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, xerrors.Errorf("reading randomness: %w", err)
		}
		k := int(j.Int64())
		perm[i], perm[k] = perm[k], perm[i]
	}
	return perm, nil
}
