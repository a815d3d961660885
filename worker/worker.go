// Package worker runs one shuffle-proving task from fetch to submission.
package worker

import (
	"context"
	"io"
	"time"

	"github.com/pborman/uuid"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/shuffleprover"
	"go.dedis.ch/shuffleprover/commit"
	"go.dedis.ch/shuffleprover/deck"
	"go.dedis.ch/shuffleprover/prover"
	"go.dedis.ch/shuffleprover/wire"
	"golang.org/x/xerrors"
)

// Fetcher retrieves the encoded task.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]byte, error)
}

// Submitter posts the encoded response.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, body []byte) error
}

// Orchestrator composes the transport, the codec, the proof system and
// the hash commitment to run a single task. An Orchestrator is used once.
type Orchestrator struct {
	Fetcher   Fetcher
	Submitter Submitter
	Codec     *wire.Codec
	Prover    prover.ProofSystem
	Hash      commit.Hash
	// Rand feeds the proof generation.
	Rand io.Reader

	// PublicCards is the length of the deck prefix left out of the
	// commitment.
	PublicCards int
	// MaxDeckSize rejects larger decks before proving, 0 for no limit.
	MaxDeckSize int
	// VerifyBeforeSubmit checks the proof locally before submitting it.
	// The proof system must then implement prover.Verifier.
	VerifyBeforeSubmit bool
	// OnTransition, if set, is called on every state change.
	OnTransition func(from, to State)

	id    string
	state State
	since time.Time
}

// New returns an orchestrator using the default public prefix.
func New(f Fetcher, s Submitter, codec *wire.Codec, ps prover.ProofSystem,
	h commit.Hash, rng io.Reader) *Orchestrator {
	return &Orchestrator{
		Fetcher:     f,
		Submitter:   s,
		Codec:       codec,
		Prover:      ps,
		Hash:        h,
		Rand:        rng,
		PublicCards: deck.PublicCards,
		id:          uuid.New(),
	}
}

// State returns the current state of the pipeline.
func (o *Orchestrator) State() State {
	return o.state
}

// ID identifies the run in the logs.
func (o *Orchestrator) ID() string {
	if o.id == "" {
		o.id = uuid.New()
	}
	return o.id
}

// Run fetches the task at endpoint, proves the shuffle and submits the
// result to the same endpoint. Nothing is submitted if any step fails.
// Cancelling ctx aborts the run, the proof system included.
func (o *Orchestrator) Run(ctx context.Context, endpoint string) (err error) {
	if o.state != Idle {
		return xerrors.Errorf("orchestrator %s already ran, state is %s", o.ID(), o.state)
	}
	o.since = time.Now()
	defer func() {
		if err != nil {
			log.Lvlf1("%s: task failed while %s: %v", o.ID(), o.state, err)
			o.enter(Failed)
		}
	}()

	var verifier prover.Verifier
	if o.VerifyBeforeSubmit {
		var ok bool
		verifier, ok = o.Prover.(prover.Verifier)
		if !ok {
			return shuffleprover.Errorf(shuffleprover.ErrProving,
				"local verification requested but %T cannot verify", o.Prover)
		}
	}

	o.enter(Fetching)
	raw, err := o.Fetcher.Fetch(ctx, endpoint)
	if err != nil {
		return err
	}

	o.enter(Decoding)
	task, err := o.Codec.DecodeTask(raw)
	if err != nil {
		return err
	}
	n := len(task.Deck)
	if err := o.checkDeckSize(n); err != nil {
		return err
	}
	log.Lvlf2("%s: decoded a deck of %d cards", o.ID(), n)

	o.enter(Proving)
	params, err := o.Prover.Setup(ctx, n)
	if err != nil {
		return shuffleprover.NewError(shuffleprover.ErrProving, err, "setup")
	}
	if err := ctx.Err(); err != nil {
		return shuffleprover.NewError(shuffleprover.ErrProving, err, "after setup")
	}
	shares, err := o.Prover.RefreshKey(ctx, params, task.Key)
	if err != nil {
		return shuffleprover.NewError(shuffleprover.ErrProving, err, "refreshing key")
	}
	if len(shares) != n {
		return shuffleprover.Errorf(shuffleprover.ErrProving,
			"got %d key shares for %d cards", len(shares), n)
	}
	if err := ctx.Err(); err != nil {
		return shuffleprover.NewError(shuffleprover.ErrProving, err, "after refreshing key")
	}
	proof, shuffled, err := o.Prover.Prove(ctx, o.Rand, task.Key, task.Deck, params)
	if err != nil {
		return shuffleprover.NewError(shuffleprover.ErrProving, err, "proving")
	}
	if len(shuffled) != n {
		return shuffleprover.Errorf(shuffleprover.ErrProving,
			"shuffled deck has %d cards instead of %d", len(shuffled), n)
	}
	if verifier != nil {
		if err := verifier.Verify(ctx, params, task.Key, task.Deck, shuffled, proof); err != nil {
			return shuffleprover.NewError(shuffleprover.ErrProving, err, "local verification")
		}
	}

	o.enter(Hashing)
	digest, err := commit.Deck(ctx, o.Hash, shuffled, o.PublicCards)
	if err != nil {
		return shuffleprover.NewError(shuffleprover.ErrProving, err, "hash commitment")
	}

	o.enter(Encoding)
	body, err := o.Codec.EncodeResponse(&wire.Response{
		Deck:      shuffled,
		Digest:    digest,
		KeyShares: shares,
		Proof:     proof,
	})
	if err != nil {
		return err
	}

	o.enter(Submitting)
	if err := o.Submitter.Submit(ctx, endpoint, body); err != nil {
		return err
	}

	o.enter(Done)
	return nil
}

func (o *Orchestrator) checkDeckSize(n int) error {
	switch {
	case n == 0:
		return shuffleprover.Errorf(shuffleprover.ErrDeckLength, "empty deck")
	case n < o.PublicCards:
		return shuffleprover.Errorf(shuffleprover.ErrDeckLength,
			"deck of %d cards is shorter than the %d public cards", n, o.PublicCards)
	case o.MaxDeckSize > 0 && n > o.MaxDeckSize:
		return shuffleprover.Errorf(shuffleprover.ErrDeckLength,
			"deck of %d cards exceeds the maximum of %d", n, o.MaxDeckSize)
	}
	return nil
}

// enter moves to the next state. Any other transition than the next one or
// Failed is a programming error.
func (o *Orchestrator) enter(next State) {
	from := o.state
	if from.Terminal() || (next != Failed && next != from+1) {
		panic("invalid transition from " + from.String() + " to " + next.String())
	}
	now := time.Now()
	log.Lvlf2("%s: %s -> %s after %s", o.ID(), from, next, now.Sub(o.since))
	o.state = next
	o.since = now
	if o.OnTransition != nil {
		o.OnTransition(from, next)
	}
}
