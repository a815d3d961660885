package worker

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/shuffleprover"
	"go.dedis.ch/shuffleprover/babyjub"
	"go.dedis.ch/shuffleprover/commit"
	"go.dedis.ch/shuffleprover/deck"
	"go.dedis.ch/shuffleprover/prover"
	"go.dedis.ch/shuffleprover/transport"
	"go.dedis.ch/shuffleprover/wire"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

// identityProver returns the deck unchanged with an empty proof.
type identityProver struct {
	setupErr error
	short    bool
	rejects  bool
	proved   int
	// block makes Setup wait for the context to be done.
	block bool
}

func (p *identityProver) Setup(ctx context.Context, n int) (*prover.Params, error) {
	if p.setupErr != nil {
		return nil, p.setupErr
	}
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &prover.Params{DeckSize: n}, nil
}

func (p *identityProver) RefreshKey(ctx context.Context, params *prover.Params, key deck.JointKey) ([]deck.Point, error) {
	shares := make([]deck.Point, params.DeckSize)
	for i := range shares {
		shares[i] = key.Point
	}
	return shares, nil
}

func (p *identityProver) Prove(ctx context.Context, rng io.Reader, key deck.JointKey, d deck.Deck, params *prover.Params) ([]byte, deck.Deck, error) {
	p.proved++
	if p.short {
		return []byte{}, d[1:], nil
	}
	return []byte{}, d.Clone(), nil
}

type verifyingProver struct {
	identityProver
}

func (p *verifyingProver) Verify(ctx context.Context, params *prover.Params, key deck.JointKey, in, out deck.Deck, proof []byte) error {
	if p.rejects {
		return xerrors.New("bad proof")
	}
	return nil
}

// scheduler serves one task and records what is posted back.
type scheduler struct {
	task      []byte
	getStatus int
	submitted [][]byte
}

func (s *scheduler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.getStatus != 0 {
			w.WriteHeader(s.getStatus)
			return
		}
		w.Write(s.task)
	case http.MethodPost:
		b, _ := ioutil.ReadAll(r.Body)
		s.submitted = append(s.submitted, b)
	}
}

func makeTask(t *testing.T, n int) (*wire.Task, []byte) {
	rng := blake2xb.New([]byte("worker"))
	kp, err := babyjub.NewKeyPair(rng)
	require.NoError(t, err)
	d := make(deck.Deck, n)
	for i := range d {
		m, err := babyjub.RandomPoint(rng)
		require.NoError(t, err)
		d[i], err = babyjub.MaskRandom(rng, kp.Public, m)
		require.NoError(t, err)
	}
	task := &wire.Task{Key: kp.Public, Deck: d}
	b, err := wire.NewCodec(babyjub.Codec{}).EncodeTask(task)
	require.NoError(t, err)
	return task, b
}

func newTestOrchestrator(ps prover.ProofSystem) *Orchestrator {
	cl := transport.NewClient("", 0)
	return New(cl, cl, wire.NewCodec(babyjub.Codec{}), ps, commit.MiMC{},
		blake2xb.New([]byte("rng")))
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	task, b := makeTask(t, deck.StandardSize)
	s := &scheduler{task: b}
	srv := httptest.NewServer(s)
	defer srv.Close()

	o := newTestOrchestrator(&identityProver{})
	var transitions []State
	o.OnTransition = func(from, to State) {
		transitions = append(transitions, to)
	}
	require.NoError(t, o.Run(context.Background(), srv.URL))
	require.Equal(t, Done, o.State())
	require.Equal(t, []State{Fetching, Decoding, Proving, Hashing, Encoding, Submitting, Done}, transitions)

	require.Len(t, s.submitted, 1)
	resp, err := wire.NewCodec(babyjub.Codec{}).DecodeResponse(s.submitted[0])
	require.NoError(t, err)
	require.True(t, task.Deck.Equal(resp.Deck))
	require.Empty(t, resp.Proof)
	require.Len(t, resp.KeyShares, deck.StandardSize)

	want, err := commit.MiMC{}.Eval(context.Background(), task.Deck[deck.PublicCards:].Flatten())
	require.NoError(t, err)
	require.True(t, want.Equal(&resp.Digest))

	err = o.Run(context.Background(), srv.URL)
	require.Error(t, err)
	require.Len(t, s.submitted, 1)
}

func TestOrchestrator_Remask(t *testing.T) {
	task, b := makeTask(t, deck.StandardSize)
	s := &scheduler{task: b}
	srv := httptest.NewServer(s)
	defer srv.Close()

	require.NoError(t, newTestOrchestrator(prover.NewRemask()).Run(context.Background(), srv.URL))
	require.Len(t, s.submitted, 1)
	resp, err := wire.NewCodec(babyjub.Codec{}).DecodeResponse(s.submitted[0])
	require.NoError(t, err)
	require.Len(t, resp.Deck, deck.StandardSize)
	require.False(t, task.Deck.Equal(resp.Deck))
	want, err := commit.Deck(context.Background(), commit.MiMC{}, resp.Deck, deck.PublicCards)
	require.NoError(t, err)
	require.True(t, want.Equal(&resp.Digest))
}

func TestOrchestrator_Failures(t *testing.T) {
	_, good := makeTask(t, deck.StandardSize)
	_, short := makeTask(t, deck.PublicCards-1)

	tests := []struct {
		name   string
		task   []byte
		status int
		ps     prover.ProofSystem
		verify bool
		kind   error
		state  State
	}{
		{"network", good, http.StatusServiceUnavailable, &identityProver{}, false, shuffleprover.ErrNetwork, Fetching},
		{"frame", []byte{0, 0, 1, 0, 1}, 0, &identityProver{}, false, shuffleprover.ErrFrame, Decoding},
		{"short deck", short, 0, &identityProver{}, false, shuffleprover.ErrDeckLength, Decoding},
		{"setup", good, 0, &identityProver{setupErr: xerrors.New("too big")}, false, shuffleprover.ErrProving, Proving},
		{"lost card", good, 0, &identityProver{short: true}, false, shuffleprover.ErrProving, Proving},
		{"no verifier", good, 0, &identityProver{}, true, shuffleprover.ErrProving, Idle},
		{"rejected", good, 0, &verifyingProver{identityProver{rejects: true}}, true, shuffleprover.ErrProving, Proving},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := &scheduler{task: test.task, getStatus: test.status}
			srv := httptest.NewServer(s)
			defer srv.Close()

			o := newTestOrchestrator(test.ps)
			o.VerifyBeforeSubmit = test.verify
			var last State
			o.OnTransition = func(from, to State) {
				if to == Failed {
					last = from
				}
			}
			err := o.Run(context.Background(), srv.URL)
			require.True(t, xerrors.Is(err, test.kind), "got %v", err)
			require.Equal(t, Failed, o.State())
			require.Equal(t, test.state, last)
			require.Empty(t, s.submitted)
		})
	}
}

func TestOrchestrator_Verify(t *testing.T) {
	_, b := makeTask(t, deck.StandardSize)
	s := &scheduler{task: b}
	srv := httptest.NewServer(s)
	defer srv.Close()

	ps := &verifyingProver{}
	o := newTestOrchestrator(ps)
	o.VerifyBeforeSubmit = true
	require.NoError(t, o.Run(context.Background(), srv.URL))
	require.Equal(t, 1, ps.proved)
	require.Len(t, s.submitted, 1)
}

func TestOrchestrator_MaxDeckSize(t *testing.T) {
	_, b := makeTask(t, deck.StandardSize)
	srv := httptest.NewServer(&scheduler{task: b})
	defer srv.Close()

	ps := &identityProver{}
	o := newTestOrchestrator(ps)
	o.MaxDeckSize = deck.StandardSize - 1
	err := o.Run(context.Background(), srv.URL)
	require.True(t, xerrors.Is(err, shuffleprover.ErrDeckLength))
	require.Zero(t, ps.proved)
}

func TestOrchestrator_CancelWhileProving(t *testing.T) {
	_, b := makeTask(t, deck.StandardSize)
	s := &scheduler{task: b}
	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o := newTestOrchestrator(&identityProver{block: true})
	o.OnTransition = func(from, to State) {
		if to == Proving {
			go func() {
				time.Sleep(50 * time.Millisecond)
				cancel()
			}()
		}
	}
	err := o.Run(ctx, srv.URL)
	require.True(t, xerrors.Is(err, shuffleprover.ErrProving), "got %v", err)
	require.True(t, xerrors.Is(err, context.Canceled), "got %v", err)
	require.Equal(t, Failed, o.State())
	require.Empty(t, s.submitted)
}

// A proof system that does not watch the context is still stopped before
// the next step.
func TestOrchestrator_CancelBetweenSteps(t *testing.T) {
	_, b := makeTask(t, deck.StandardSize)
	s := &scheduler{task: b}
	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ps := &identityProver{}
	o := newTestOrchestrator(ps)
	o.OnTransition = func(from, to State) {
		if to == Proving {
			cancel()
		}
	}
	err := o.Run(ctx, srv.URL)
	require.True(t, xerrors.Is(err, context.Canceled), "got %v", err)
	require.Zero(t, ps.proved)
	require.Empty(t, s.submitted)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "submitting", Submitting.String())
	require.Equal(t, "unknown", State(42).String())
	require.True(t, Failed.Terminal())
	require.False(t, Hashing.Terminal())
}
