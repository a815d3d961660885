// Package generator produces self-consistent shuffle tasks for local runs
// of the worker, without a scheduler.
package generator

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/shuffleprover/babyjub"
	"go.dedis.ch/shuffleprover/commit"
	"go.dedis.ch/shuffleprover/deck"
	"go.dedis.ch/shuffleprover/wire"
	"golang.org/x/xerrors"
)

// Options sets the shape of the generated task. A nil Hash is MiMC.
type Options struct {
	Cards int
	// PublicCards is the prefix left out of the commitment, 0 for none.
	PublicCards int
	Hash        commit.Hash
}

// DefaultOptions describes the standard deck.
func DefaultOptions() Options {
	return Options{Cards: deck.StandardSize, PublicCards: deck.PublicCards}
}

func (o Options) withDefaults() Options {
	if o.Hash == nil {
		o.Hash = commit.MiMC{}
	}
	return o
}

// Result holds a generated task together with the secrets needed to check
// what a worker returns.
type Result struct {
	KeyPair *babyjub.KeyPair
	// Plain holds the unmasked points, in deck order.
	Plain []deck.Point
	Task  *wire.Task
	// Blob is the framed task as served to the worker.
	Blob       []byte
	InputHex   string
	PublicsHex string
}

// Generate masks opts.Cards random points under a fresh joint key and
// encodes the resulting task.
func Generate(ctx context.Context, rng io.Reader, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if opts.Cards < 1 || opts.PublicCards < 0 || opts.PublicCards > opts.Cards {
		return nil, xerrors.Errorf("cannot make %d public cards out of %d",
			opts.PublicCards, opts.Cards)
	}

	kp, err := babyjub.NewKeyPair(rng)
	if err != nil {
		return nil, xerrors.Errorf("joint key: %w", err)
	}
	res := &Result{
		KeyPair: kp,
		Plain:   make([]deck.Point, opts.Cards),
		Task:    &wire.Task{Key: kp.Public, Deck: make(deck.Deck, opts.Cards)},
	}
	for i := range res.Task.Deck {
		res.Plain[i], err = babyjub.RandomPoint(rng)
		if err != nil {
			return nil, err
		}
		res.Task.Deck[i], err = babyjub.MaskRandom(rng, kp.Public, res.Plain[i])
		if err != nil {
			return nil, err
		}
	}
	res.Task.Digest, err = commit.Deck(ctx, opts.Hash, res.Task.Deck, opts.PublicCards)
	if err != nil {
		return nil, xerrors.Errorf("commitment: %w", err)
	}

	res.Blob, err = wire.NewCodec(babyjub.Codec{}).EncodeTask(res.Task)
	if err != nil {
		return nil, err
	}
	res.InputHex, res.PublicsHex, err = wire.HexSegments(res.Blob)
	if err != nil {
		return nil, err
	}
	log.Lvlf2("generated a task of %d cards, %d bytes", opts.Cards, len(res.Blob))
	return res, nil
}

// File names written by WriteFiles, %d being the number of cards.
const (
	InputsFile  = "test_inputs_%d"
	MinerFile   = "test_miner_%d"
	PublicsFile = "test_publics"
)

// WriteFiles stores the framed task, the hex rendering of both segments
// and the publics segment alone in dir.
func WriteFiles(dir string, res *Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	n := len(res.Task.Deck)
	files := []struct {
		name    string
		content []byte
	}{
		{fmt.Sprintf(InputsFile, n), res.Blob},
		{fmt.Sprintf(MinerFile, n), []byte(res.InputHex + "\n" + res.PublicsHex)},
		{PublicsFile, []byte(res.PublicsHex)},
	}
	for _, f := range files {
		fn := filepath.Join(dir, f.name)
		if err := ioutil.WriteFile(fn, f.content, 0644); err != nil {
			return xerrors.Errorf("writing %s: %w", fn, err)
		}
		log.Lvl2("wrote", fn)
	}
	return nil
}
