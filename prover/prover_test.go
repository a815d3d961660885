package prover

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	"go.dedis.ch/shuffleprover/babyjub"
	"go.dedis.ch/shuffleprover/commit"
	"go.dedis.ch/shuffleprover/deck"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") == "1" {
		os.Exit(helperProver())
	}
	log.MainTest(m)
}

func testTask(t *testing.T, n int) (*babyjub.KeyPair, deck.Deck) {
	rng := blake2xb.New([]byte("prover"))
	kp, err := babyjub.NewKeyPair(rng)
	require.NoError(t, err)
	d := make(deck.Deck, n)
	for i := range d {
		m, err := babyjub.RandomPoint(rng)
		require.NoError(t, err)
		d[i], err = babyjub.MaskRandom(rng, kp.Public, m)
		require.NoError(t, err)
	}
	return kp, d
}

func TestRemask_Prove(t *testing.T) {
	ctx := context.Background()
	kp, d := testTask(t, deck.StandardSize)
	ps := NewRemask()

	p, err := ps.Setup(ctx, len(d))
	require.NoError(t, err)
	shares, err := ps.RefreshKey(ctx, p, kp.Public)
	require.NoError(t, err)
	require.Len(t, shares, len(d))

	proof, out, err := ps.Prove(ctx, blake2xb.New([]byte("shuffle")), kp.Public, d, p)
	require.NoError(t, err)
	require.Empty(t, proof)
	require.Len(t, out, len(d))
	require.False(t, d.Equal(out))

	// The shuffled deck hides the same points.
	hidden := map[string]int{}
	for _, c := range d {
		hidden[babyjub.Unmask(kp.Private, c).String()]++
	}
	for _, c := range out {
		m := babyjub.Unmask(kp.Private, c).String()
		require.NotZero(t, hidden[m])
		hidden[m]--
	}
}

func TestRemask_Errors(t *testing.T) {
	ctx := context.Background()
	kp, d := testTask(t, 4)
	ps := &Remask{MaxDeckSize: 3}
	_, err := ps.Setup(ctx, 4)
	require.Error(t, err)
	_, err = ps.Setup(ctx, 0)
	require.Error(t, err)

	ps.MaxDeckSize = 0
	p, err := ps.Setup(ctx, 3)
	require.NoError(t, err)
	_, err = ps.RefreshKey(ctx, p, kp.Public)
	require.NoError(t, err)
	_, _, err = ps.Prove(ctx, blake2xb.New(nil), kp.Public, d, p)
	require.Error(t, err)

	p, err = ps.Setup(ctx, 4)
	require.NoError(t, err)
	_, _, err = ps.Prove(ctx, blake2xb.New(nil), kp.Public, d, p)
	require.Error(t, err, "parameters were never refreshed")
}

func TestEncoding_Deck(t *testing.T) {
	_, d := testTask(t, 5)
	b := encodeDeck(d)
	require.Len(t, b, 5*cardSize)
	got, err := decodeDeck(b)
	require.NoError(t, err)
	require.True(t, d.Equal(got))

	_, err = decodeDeck(b[1:])
	require.Error(t, err)
	_, err = decodePoints(b[:pointSize+1])
	require.Error(t, err)
}

func helperExec(env ...string) *Exec {
	e := NewExec(os.Args[0], "-test.run=TestMain", "--")
	e.Env = append([]string{"GO_WANT_HELPER_PROCESS=1"}, env...)
	e.Timeout = time.Minute
	return e
}

func TestExec_Prove(t *testing.T) {
	ctx := context.Background()
	kp, d := testTask(t, 6)
	e := helperExec()

	p, err := e.Setup(ctx, len(d))
	require.NoError(t, err)
	require.Equal(t, []byte("params-6"), p.Blob)

	shares, err := e.RefreshKey(ctx, p, kp.Public)
	require.NoError(t, err)
	require.Equal(t, []byte("params-6+key"), p.Blob)
	require.Len(t, shares, len(d))
	require.True(t, shares[0].Equal(kp.Public.Point))

	seed := make([]byte, SeedSize)
	_, err = blake2xb.New([]byte("seed")).Read(seed)
	require.NoError(t, err)
	proof, out, err := e.Prove(ctx, blake2xb.New([]byte("seed")), kp.Public, d, p)
	require.NoError(t, err)
	require.Equal(t, seed, proof)
	require.True(t, d.Equal(out))

	require.NoError(t, e.Verify(ctx, p, kp.Public, d, out, proof))
	require.Error(t, e.Verify(ctx, p, kp.Public, d, out[:5], proof))
}

func TestExec_Hash(t *testing.T) {
	ctx := context.Background()
	_, d := testTask(t, 3)
	elements := d.Flatten()
	want, err := commit.MiMC{}.Eval(ctx, elements)
	require.NoError(t, err)
	got, err := helperExec().Eval(ctx, elements)
	require.NoError(t, err)
	require.True(t, want.Equal(&got))
}

func TestExec_Failure(t *testing.T) {
	ctx := context.Background()
	_, err := helperExec("HELPER_FAIL=1").Setup(ctx, 52)
	require.Error(t, err)

	e := helperExec()
	e.Command = "/nonexistent/prover"
	_, err = e.Setup(ctx, 52)
	require.Error(t, err)
}

func TestExec_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := helperExec("HELPER_SLEEP=30s")
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := e.Setup(ctx, 52)
	require.True(t, xerrors.Is(err, context.Canceled), "got %v", err)
	require.True(t, time.Since(start) < 10*time.Second)

	_, err = e.Setup(ctx, 52)
	require.True(t, xerrors.Is(err, context.Canceled))

	e.Timeout = 100 * time.Millisecond
	_, err = e.Setup(context.Background(), 52)
	require.True(t, xerrors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestExec_EmptyReply(t *testing.T) {
	ctx := context.Background()
	kp, d := testTask(t, 4)
	e := helperExec("HELPER_SILENT=1")

	_, err := e.Setup(ctx, len(d))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no parameters")

	p := &Params{DeckSize: len(d), Blob: []byte("params-4")}
	_, err = e.RefreshKey(ctx, p, kp.Public)
	require.Error(t, err)
	require.Equal(t, []byte("params-4"), p.Blob)

	_, _, err = e.Prove(ctx, blake2xb.New(nil), kp.Public, d, p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no deck")
}

// helperProver plays the external prover when the test binary is started
// by Exec.
func helperProver() int {
	op := os.Args[len(os.Args)-1]
	if os.Getenv("HELPER_FAIL") != "" {
		fmt.Fprintln(os.Stderr, "prover failed on purpose")
		return 3
	}
	if d := os.Getenv("HELPER_SLEEP"); d != "" {
		wait, err := time.ParseDuration(d)
		if err != nil {
			return 1
		}
		time.Sleep(wait)
	}
	if os.Getenv("HELPER_SILENT") != "" {
		return 0
	}
	in, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		return 1
	}

	var reply interface{}
	switch op {
	case OpSetup:
		req := &SetupRequest{}
		if protobuf.Decode(in, req) != nil {
			return 1
		}
		reply = &SetupReply{Params: []byte("params-" + strconv.Itoa(req.DeckSize))}
	case OpRefresh:
		req := &RefreshRequest{}
		if protobuf.Decode(in, req) != nil {
			return 1
		}
		key, err := babyjub.Codec{}.DecodePoint(req.Key)
		if err != nil {
			return 1
		}
		n, err := strconv.Atoi(string(bytes.TrimPrefix(req.Params, []byte("params-"))))
		if err != nil {
			return 1
		}
		shares := make([]deck.Point, n)
		for i := range shares {
			shares[i] = key
		}
		reply = &RefreshReply{Params: append(req.Params, "+key"...), KeyShares: encodePoints(shares)}
	case OpProve:
		req := &ProveRequest{}
		if protobuf.Decode(in, req) != nil {
			return 1
		}
		reply = &ProveReply{Proof: req.Seed, Deck: req.Deck}
	case OpVerify:
		req := &VerifyRequest{}
		if protobuf.Decode(in, req) != nil {
			return 1
		}
		reply = &VerifyReply{Valid: bytes.Equal(req.Deck, req.NewDeck), Reason: "decks differ"}
	case OpHash:
		req := &HashRequest{}
		if protobuf.Decode(in, req) != nil {
			return 1
		}
		es, err := decodeElements(req.Elements)
		if err != nil {
			return 1
		}
		digest, err := commit.MiMC{}.Eval(context.Background(), es)
		if err != nil {
			return 1
		}
		b := digest.Bytes()
		reply = &HashReply{Digest: b[:]}
	default:
		return 2
	}

	out, err := protobuf.Encode(reply)
	if err != nil {
		return 1
	}
	os.Stdout.Write(out)
	return 0
}
