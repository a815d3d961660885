// Package prover defines the contract of the shuffle proof system and
// provides two implementations: Exec, which drives an external prover
// binary, and Remask, a proof-less shuffle for local development.
package prover

import (
	"context"
	"io"

	"go.dedis.ch/shuffleprover/deck"
)

// Params are the proving parameters for a given deck size. Blob is opaque
// to everything but the backend that created it.
type Params struct {
	DeckSize int
	Blob     []byte
}

// ProofSystem creates the parameters, refreshes them for a joint key and
// produces a shuffled deck together with its proof. Every call returns
// early with ctx.Err() once ctx is done.
type ProofSystem interface {
	// Setup materializes the parameters for decks of n cards.
	Setup(ctx context.Context, n int) (*Params, error)
	// RefreshKey binds the parameters to the joint key and returns the
	// refreshed key shares, one per card.
	RefreshKey(ctx context.Context, p *Params, key deck.JointKey) ([]deck.Point, error)
	// Prove shuffles and re-masks the deck. The randomness is read from
	// rng only.
	Prove(ctx context.Context, rng io.Reader, key deck.JointKey, d deck.Deck, p *Params) (proof []byte, shuffled deck.Deck, err error)
}

// Verifier is implemented by proof systems that can check a proof
// locally.
type Verifier interface {
	Verify(ctx context.Context, p *Params, key deck.JointKey, in, out deck.Deck, proof []byte) error
}
