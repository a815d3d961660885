// Package transport fetches proving tasks from the scheduler and posts the
// results back, each with exactly one HTTP request and no retry.
package transport

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/shuffleprover"
	"golang.org/x/oauth2"
)

// DefaultMaxBodySize is the largest task accepted by default.
const DefaultMaxBodySize = 64 << 20

// Client talks to the task endpoint.
type Client struct {
	HTTP *http.Client
	// Timeout bounds each request on top of the context, 0 for none.
	Timeout time.Duration
	// MaxBodySize is the largest task body accepted, 0 for no limit.
	MaxBodySize int64
}

// NewClient returns a client with the default limits. If token is not
// empty, every request carries it as a bearer token.
func NewClient(token string, timeout time.Duration) *Client {
	c := &Client{
		HTTP:        http.DefaultClient,
		Timeout:     timeout,
		MaxBodySize: DefaultMaxBodySize,
	}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		c.HTTP = oauth2.NewClient(context.Background(), src)
	}
	return c
}

// Fetch retrieves a task with one GET request.
func (c *Client) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrNetwork, err, "creating request")
	}
	resp, err := c.HTTP.Do(req.WithContext(ctx))
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrNetwork, err, "fetching task")
	}
	defer resp.Body.Close()
	if !success(resp) {
		return nil, shuffleprover.Errorf(shuffleprover.ErrNetwork,
			"fetching task: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if c.MaxBodySize > 0 {
		body = io.LimitReader(resp.Body, c.MaxBodySize+1)
	}
	b, err := ioutil.ReadAll(body)
	if err != nil {
		return nil, shuffleprover.NewError(shuffleprover.ErrNetwork, err, "reading task")
	}
	if c.MaxBodySize > 0 && int64(len(b)) > c.MaxBodySize {
		return nil, shuffleprover.Errorf(shuffleprover.ErrPayload,
			"task is larger than %d bytes", c.MaxBodySize)
	}
	if len(b) == 0 {
		return nil, shuffleprover.Errorf(shuffleprover.ErrPayload, "empty task from %s", endpoint)
	}
	log.Lvlf2("fetched %d bytes from %s", len(b), endpoint)
	return b, nil
}

// Submit posts the encoded result with one POST request.
func (c *Client) Submit(ctx context.Context, endpoint string, body []byte) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return shuffleprover.NewError(shuffleprover.ErrNetwork, err, "creating request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := c.HTTP.Do(req.WithContext(ctx))
	if err != nil {
		return shuffleprover.NewError(shuffleprover.ErrNetwork, err, "submitting result")
	}
	defer resp.Body.Close()
	io.Copy(ioutil.Discard, resp.Body)
	if !success(resp) {
		return shuffleprover.Errorf(shuffleprover.ErrNetwork, "submitting result: %s", resp.Status)
	}
	log.Lvlf2("submitted %d bytes to %s", len(body), endpoint)
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

func success(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
