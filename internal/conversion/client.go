package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// RatesAPI fetches USD-per-unit rates for a batch of token symbols.
type RatesAPI interface {
	FetchRates(ctx context.Context, symbols []string, fiat string) (map[string]float64, error)
}

type ratesClient struct {
	baseURL    string
	httpClient *retryablehttp.Client
	timeout    time.Duration
}

func NewRatesClient(baseURL string, timeout time.Duration) (RatesAPI, error) {
	if baseURL == "" {
		return nil, errors.New("missing conversion api base url")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = 3

	return &ratesClient{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: retryClient, timeout: timeout}, nil
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func (c *ratesClient) FetchRates(ctx context.Context, symbols []string, fiat string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("fiat", fiat)

	req, err := retryablehttp.NewRequest("GET", fmt.Sprintf("%s/v1/rates?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Add("Accept", "application/json")

	resp, err := c.doTimeoutRequest(time.NewTimer(c.timeout), req)
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("Conversion: rates request failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates api returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var body ratesResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}

	return body.Rates, nil
}

// doTimeoutRequest gives up once the timer fires. The in-flight request is
// not aborted; a late response is simply discarded.
func (c *ratesClient) doTimeoutRequest(timer *time.Timer, req *retryablehttp.Request) (*http.Response, error) {
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
