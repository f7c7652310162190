package sales

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client talks to the sales API quote and sign endpoints for one
// environment. Construct one per application session and inject it; there is
// no package-level instance.
type Client struct {
	baseURL       string
	environmentID string
	httpClient    *retryablehttp.Client
	timeout       time.Duration
}

func NewClient(baseURL, environmentID string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("missing sales api base url")
	}
	if environmentID == "" {
		return nil, errors.New("missing environment id")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = 3

	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		environmentID: environmentID,
		httpClient:    retryClient,
		timeout:       timeout,
	}, nil
}

// doTimeoutRequest gives up when the timer fires, without aborting the
// underlying request. A late response is discarded rather than surfaced.
func (c *Client) doTimeoutRequest(timer *time.Timer, req *retryablehttp.Request) (*http.Response, error) {
	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := c.httpClient.Do(req)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-timer.C:
		return nil, errors.New("timeout reading data from server")
	}
}
