package generator

import (
	"context"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/shuffleprover/babyjub"
	"go.dedis.ch/shuffleprover/commit"
	"go.dedis.ch/shuffleprover/deck"
	"go.dedis.ch/shuffleprover/wire"
	"golang.org/x/xerrors"
)

// Submission is one response posted to a Scheduler.
type Submission struct {
	Received time.Time
	Response *wire.Response
	// Err is nil if the response is consistent with the task.
	Err error
}

// Scheduler is a stand-in for the remote scheduler. It serves a single
// generated task on GET and checks every response POSTed back.
type Scheduler struct {
	task        *Result
	publicCards int
	hash        commit.Hash
	codec       *wire.Codec

	sync.Mutex
	results []Submission
	posted  chan struct{}
}

// NewScheduler serves res. opts must be the ones res was generated with.
func NewScheduler(res *Result, opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		task:        res,
		publicCards: opts.PublicCards,
		hash:        opts.Hash,
		codec:       wire.NewCodec(babyjub.Codec{}),
		posted:      make(chan struct{}, 1),
	}
}

func (s *Scheduler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		log.Lvl2("serving task to", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(s.task.Blob)
	case http.MethodPost:
		body, err := ioutil.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sub := s.check(r.Context(), body)
		s.Lock()
		s.results = append(s.results, sub)
		s.Unlock()
		select {
		case s.posted <- struct{}{}:
		default:
		}
		if sub.Err != nil {
			log.Lvl1("rejected response from", r.RemoteAddr, ":", sub.Err)
			http.Error(w, sub.Err.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Lvl1("accepted response from", r.RemoteAddr)
	default:
		http.Error(w, "only GET and POST", http.StatusMethodNotAllowed)
	}
}

// check decodes a response and compares it with the served task: same
// number of cards, a digest matching the private cards, one key share per
// card, and the same plain cards once unmasked.
func (s *Scheduler) check(ctx context.Context, body []byte) Submission {
	sub := Submission{Received: time.Now()}
	resp, err := s.codec.DecodeResponse(body)
	if err != nil {
		sub.Err = err
		return sub
	}
	sub.Response = resp

	n := len(s.task.Task.Deck)
	switch {
	case len(resp.Deck) != n:
		sub.Err = xerrors.Errorf("got %d cards instead of %d", len(resp.Deck), n)
	case len(resp.KeyShares) != n:
		sub.Err = xerrors.Errorf("got %d key shares for %d cards", len(resp.KeyShares), n)
	default:
		sub.Err = s.checkDigest(ctx, resp)
		if sub.Err == nil {
			sub.Err = s.checkPlain(resp.Deck)
		}
	}
	return sub
}

func (s *Scheduler) checkDigest(ctx context.Context, resp *wire.Response) error {
	want, err := commit.Deck(ctx, s.hash, resp.Deck, s.publicCards)
	if err != nil {
		return err
	}
	if !want.Equal(&resp.Digest) {
		return xerrors.New("digest does not match the private cards")
	}
	return nil
}

func (s *Scheduler) checkPlain(d deck.Deck) error {
	left := make(map[deck.Point]int)
	for _, p := range s.task.Plain {
		left[p]++
	}
	for i, c := range d {
		p := babyjub.Unmask(s.task.KeyPair.Private, c)
		if left[p] == 0 {
			return xerrors.Errorf("card %d does not decrypt to a card of the task", i)
		}
		left[p]--
	}
	return nil
}

// Results returns the submissions received so far.
func (s *Scheduler) Results() []Submission {
	s.Lock()
	defer s.Unlock()
	return append([]Submission(nil), s.results...)
}

// Posted is signalled after a response has been received.
func (s *Scheduler) Posted() <-chan struct{} {
	return s.posted
}
