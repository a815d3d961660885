package prover

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"go.dedis.ch/shuffleprover/babyjub"
	"go.dedis.ch/shuffleprover/deck"
	"go.dedis.ch/shuffleprover/wire"
	"golang.org/x/xerrors"
)

// SeedSize is the number of random bytes handed to the external prover for
// every proof.
const SeedSize = 32

// KillWait is how long a killed prover's children may keep its output
// open before the operation returns anyway.
const KillWait = time.Second

// Exec runs an external prover binary once per operation. The operation
// name is appended to Args.
type Exec struct {
	Command string
	Args    []string
	// Env is added to the environment of the current process.
	Env []string
	// Timeout bounds every operation, 0 for no limit.
	Timeout time.Duration
	// Points encodes the joint key handed to the prover.
	Points wire.PointCodec
}

// NewExec returns a proof system calling command with the given leading
// arguments.
func NewExec(command string, args ...string) *Exec {
	return &Exec{Command: command, Args: args, Points: babyjub.Codec{}}
}

// Setup implements ProofSystem.
func (e *Exec) Setup(ctx context.Context, n int) (*Params, error) {
	reply := &SetupReply{}
	if err := e.call(ctx, OpSetup, &SetupRequest{DeckSize: n}, reply); err != nil {
		return nil, err
	}
	if len(reply.Params) == 0 {
		return nil, xerrors.Errorf("prover %s returned no parameters", OpSetup)
	}
	return &Params{DeckSize: n, Blob: reply.Params}, nil
}

// RefreshKey implements ProofSystem.
func (e *Exec) RefreshKey(ctx context.Context, p *Params, key deck.JointKey) ([]deck.Point, error) {
	k, err := e.Points.EncodePoint(key.Point)
	if err != nil {
		return nil, xerrors.Errorf("encoding joint key: %w", err)
	}
	reply := &RefreshReply{}
	if err := e.call(ctx, OpRefresh, &RefreshRequest{Params: p.Blob, Key: k}, reply); err != nil {
		return nil, err
	}
	if len(reply.Params) == 0 || len(reply.KeyShares) == 0 {
		return nil, xerrors.Errorf("prover %s returned no parameters or no key shares", OpRefresh)
	}
	shares, err := decodePoints(reply.KeyShares)
	if err != nil {
		return nil, xerrors.Errorf("refresh reply: %w", err)
	}
	p.Blob = reply.Params
	return shares, nil
}

// Prove implements ProofSystem. A seed of SeedSize bytes is read from rng
// and handed to the prover.
func (e *Exec) Prove(ctx context.Context, rng io.Reader, key deck.JointKey, d deck.Deck, p *Params) ([]byte, deck.Deck, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rng, seed); err != nil {
		return nil, nil, xerrors.Errorf("reading seed: %w", err)
	}
	k, err := e.Points.EncodePoint(key.Point)
	if err != nil {
		return nil, nil, xerrors.Errorf("encoding joint key: %w", err)
	}
	reply := &ProveReply{}
	req := &ProveRequest{Seed: seed, Key: k, Deck: encodeDeck(d), Params: p.Blob}
	if err := e.call(ctx, OpProve, req, reply); err != nil {
		return nil, nil, err
	}
	if len(d) > 0 && len(reply.Deck) == 0 {
		return nil, nil, xerrors.Errorf("prover %s returned no deck", OpProve)
	}
	out, err := decodeDeck(reply.Deck)
	if err != nil {
		return nil, nil, xerrors.Errorf("prove reply: %w", err)
	}
	if reply.Proof == nil {
		reply.Proof = []byte{}
	}
	return reply.Proof, out, nil
}

// Verify implements Verifier.
func (e *Exec) Verify(ctx context.Context, p *Params, key deck.JointKey, in, out deck.Deck, proof []byte) error {
	k, err := e.Points.EncodePoint(key.Point)
	if err != nil {
		return xerrors.Errorf("encoding joint key: %w", err)
	}
	reply := &VerifyReply{}
	req := &VerifyRequest{
		Params:  p.Blob,
		Key:     k,
		Deck:    encodeDeck(in),
		NewDeck: encodeDeck(out),
		Proof:   proof,
	}
	if err := e.call(ctx, OpVerify, req, reply); err != nil {
		return err
	}
	if !reply.Valid {
		return xerrors.Errorf("proof rejected: %s", reply.Reason)
	}
	return nil
}

// Eval implements commit.Hash by delegating to the prover, which knows the
// hash the on-chain verifier uses.
func (e *Exec) Eval(ctx context.Context, elements []deck.Element) (deck.Element, error) {
	reply := &HashReply{}
	if err := e.call(ctx, OpHash, &HashRequest{Elements: encodeElements(elements)}, reply); err != nil {
		return deck.Element{}, err
	}
	if len(reply.Digest) != deck.ElementSize {
		return deck.Element{}, xerrors.Errorf("hash reply of %d bytes", len(reply.Digest))
	}
	return deck.ElementFromBytes(reply.Digest), nil
}

// call runs one operation. The process is killed when ctx is done or the
// timeout expires.
func (e *Exec) call(ctx context.Context, op string, req, reply interface{}) error {
	in, err := protobuf.Encode(req)
	if err != nil {
		return xerrors.Errorf("encoding %s request: %w", op, err)
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.Args...), op)
	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Stdin = bytes.NewReader(in)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = KillWait

	log.Lvlf3("running prover %s %v", e.Command, args)
	start := time.Now()
	err = cmd.Run()
	logLines(op, &stderr)
	if err != nil {
		if ctx.Err() != nil {
			return xerrors.Errorf("prover %s: %w", op, ctx.Err())
		}
		return xerrors.Errorf("prover %s: %v", op, err)
	}
	log.Lvlf3("prover %s finished in %s", op, time.Since(start))

	if err := protobuf.Decode(stdout.Bytes(), reply); err != nil {
		return xerrors.Errorf("decoding %s reply: %w", op, err)
	}
	return nil
}

func logLines(op string, r io.Reader) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		log.Lvlf3("prover %s: %s", op, s.Text())
	}
}
