package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/logger"
)

// DefaultURL is where the word-vector service listens by default.
const DefaultURL = "http://127.0.0.1:5000/w2v"

type request struct {
	New []string `json:"s_new"`
	Old []string `json:"s_old"`
}

type response struct {
	SentSim *float64 `json:"sent_sim"`
}

// Client queries a word-vector service over HTTP.
type Client struct {
	url             string
	client          *http.Client
	limiter         *rate.Limiter
	maxTries        uint
	initialInterval time.Duration
	log             *zap.SugaredLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit caps requests per second. Zero or less disables pacing.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithMaxTries sets how often a request is attempted before giving up.
func WithMaxTries(n uint) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithInitialInterval sets the first retry delay.
func WithInitialInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.initialInterval = d }
}

// NewClient returns a client for the service at url.
func NewClient(url string, opts ...ClientOption) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:             url,
		client:          &http.Client{Timeout: 30 * time.Second},
		limiter:         rate.NewLimiter(rate.Inf, 1),
		maxTries:        3,
		initialInterval: 200 * time.Millisecond,
		log:             logger.Named("similarity"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Similarity implements Oracle. Empty lists have no signal and are not sent.
// Transport failures and 5xx answers are retried; the final failure wraps
// core.ErrOracleUnavailable.
func (c *Client) Similarity(ctx context.Context, newWords, oldWords []string) (float64, bool, error) {
	if len(newWords) == 0 || len(oldWords) == 0 {
		return 0, false, nil
	}
	body, err := json.Marshal(request{New: newWords, Old: oldWords})
	if err != nil {
		return 0, false, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	attempt := 0
	res, err := backoff.Retry(ctx, func() (response, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, backoff.Permanent(err)
		}
		res, err := c.post(ctx, body)
		if err != nil {
			c.log.Debugw("Similarity request failed", "attempt", attempt, "error", err)
		}
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return 0, false, core.ErrOracleUnavailable.WithCause(err)
	}
	if res.SentSim == nil {
		return 0, false, nil
	}
	return *res.SentSim, true, nil
}

func (c *Client) post(ctx context.Context, body []byte) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return response{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	if resp.StatusCode >= 500 {
		return response{}, fmt.Errorf("similarity service: HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return response{}, backoff.Permanent(fmt.Errorf("similarity service: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return response{}, backoff.Permanent(fmt.Errorf("decode similarity response: %w", err))
	}
	return out, nil
}
