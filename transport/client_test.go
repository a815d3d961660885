package transport

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/shuffleprover"
	"golang.org/x/xerrors"
)

func TestMain(m *testing.M) {
	log.MainTest(m)
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("task"))
	}))
	defer srv.Close()

	b, err := NewClient("", 0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []byte("task"), b)
}

func TestClient_FetchErrors(t *testing.T) {
	status := http.StatusOK
	body := []byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write(body)
	}))
	defer srv.Close()
	c := NewClient("", 0)

	_, err := c.Fetch(context.Background(), srv.URL)
	require.True(t, xerrors.Is(err, shuffleprover.ErrPayload))

	status = http.StatusNotFound
	body = []byte("no such task")
	_, err = c.Fetch(context.Background(), srv.URL)
	require.True(t, xerrors.Is(err, shuffleprover.ErrNetwork))

	status = http.StatusOK
	c.MaxBodySize = 4
	_, err = c.Fetch(context.Background(), srv.URL)
	require.True(t, xerrors.Is(err, shuffleprover.ErrPayload))

	_, err = c.Fetch(context.Background(), "http://127.0.0.1:0/")
	require.True(t, xerrors.Is(err, shuffleprover.ErrNetwork))
}

func TestClient_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(done)

	_, err := NewClient("", 50*time.Millisecond).Fetch(context.Background(), srv.URL)
	require.True(t, xerrors.Is(err, shuffleprover.ErrNetwork))
}

func TestClient_Submit(t *testing.T) {
	var got []byte
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var err error
		got, err = ioutil.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(status)
	}))
	defer srv.Close()
	c := NewClient("secret", time.Minute)

	require.NoError(t, c.Submit(context.Background(), srv.URL, []byte("result")))
	require.Equal(t, []byte("result"), got)

	status = http.StatusInternalServerError
	err := c.Submit(context.Background(), srv.URL, []byte("result"))
	require.True(t, xerrors.Is(err, shuffleprover.ErrNetwork))
}
