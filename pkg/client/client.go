// Package client is the Go client for a datahub server.
//
// Logical outcomes (READY, TIMEOUT, CANCELLED) come back as hub.Result values.
// Anything that stops the request from reaching a working hub (refused
// connection, dropped connection, 5xx, hub shutting down, a 2xx body the hub
// would never send) is an error wrapping ErrConnection, so callers never
// confuse a lost connection with a timeout. Retrying is the caller's decision.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/datahub/internal/timespec"
	"github.com/dyluth/datahub/pkg/hub"
	"github.com/dyluth/datahub/pkg/wire"
)

const (
	// DefaultGrace is added to a read's timeout for the HTTP round trip.
	DefaultGrace = 5 * time.Second

	// DefaultRequestTimeout bounds requests that do not wait.
	DefaultRequestTimeout = 10 * time.Second
)

// ErrConnection marks transport-level failures.
var ErrConnection = errors.New("hub unreachable")

// APIError is a non-2xx response the client does not map to a sentinel.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hub returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps server statuses to the matching sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusRequestEntityTooLarge:
		return hub.ErrValueTooLarge
	case e.StatusCode == http.StatusBadRequest && strings.Contains(e.Message, hub.ErrInvalidKey.Error()):
		return hub.ErrInvalidKey
	case e.StatusCode >= 500:
		return ErrConnection
	}
	return nil
}

// Client talks to one datahub server. It is safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	clientID string
	grace    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout should be
// zero; the client bounds each request itself.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientID names the caller in the X-Client-ID header.
func WithClientID(id string) Option {
	return func(c *Client) {
		c.clientID = id
	}
}

// WithGrace changes the margin added to read timeouts.
func WithGrace(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid hub URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid hub URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid hub URL %q: missing host", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		grace:   DefaultGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Write stores value under key.
func (c *Client) Write(ctx context.Context, key string, value []byte) (hub.WriteAck, error) {
	if err := checkKey(key); err != nil {
		return hub.WriteAck{}, err
	}

	v, enc := wire.EncodeValue(value)
	body, err := json.Marshal(wire.WriteRequest{Value: v, Encoding: enc})
	if err != nil {
		return hub.WriteAck{}, fmt.Errorf("failed to marshal write request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	var resp wire.WriteResponse
	if err := c.do(ctx, http.MethodPut, c.varPath(key), nil, body, &resp); err != nil {
		return hub.WriteAck{}, err
	}

	ack, err := resp.Ack()
	if err != nil {
		return hub.WriteAck{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return ack, nil
}

// ReadOrWait returns key's value, waiting up to timeout for the first write.
// A timeout <= 0 does not wait. If ctx ends first the result is
// StatusCancelled with a nil error.
//
// The server clamps timeout to its max_wait, so a long timeout can end in
// StatusTimeout early; the applied wait is reported in the X-Wait-Timeout
// response header.
func (c *Client) ReadOrWait(ctx context.Context, key string, timeout time.Duration) (hub.Result, error) {
	if timeout < 0 {
		timeout = 0
	}
	res, err := c.read(ctx, key, timeout, nil)
	if err == nil && res.Status == hub.StatusPending {
		// timeout=0 is answered by a peek on the server
		res.Status = hub.StatusTimeout
	}
	return res, err
}

// WaitNewer returns key's value once its version exceeds after.
func (c *Client) WaitNewer(ctx context.Context, key string, after uint64, timeout time.Duration) (hub.Result, error) {
	if timeout < 0 {
		timeout = 0
	}
	return c.read(ctx, key, timeout, &after)
}

// Peek reports key's state without waiting: READY or PENDING.
func (c *Client) Peek(ctx context.Context, key string) (hub.Result, error) {
	return c.read(ctx, key, 0, nil)
}

func (c *Client) read(ctx context.Context, key string, timeout time.Duration, after *uint64) (hub.Result, error) {
	if err := checkKey(key); err != nil {
		return hub.Result{}, err
	}

	q := url.Values{}
	q.Set("timeout", timespec.FormatSeconds(timeout))
	if after != nil {
		q.Set("after", strconv.FormatUint(*after, 10))
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+c.grace)
	defer cancel()

	var resp wire.ReadResponse
	if err := c.do(reqCtx, http.MethodGet, c.varPath(key), q, nil, &resp); err != nil {
		if ctx.Err() != nil {
			return hub.Result{Key: key, Status: hub.StatusCancelled}, nil
		}
		return hub.Result{}, err
	}

	res, err := resp.Result()
	if err != nil {
		return hub.Result{}, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return res, nil
}

// Keys lists every key the hub has seen.
func (c *Client) Keys(ctx context.Context) ([]hub.KeyInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	var resp wire.KeysResponse
	if err := c.do(ctx, http.MethodGet, "/v1/vars", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// Stats returns the hub's counters.
func (c *Client) Stats(ctx context.Context) (hub.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	var st hub.Stats
	err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, &st)
	return st, err
}

// Ping checks /healthz.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	var health wire.HealthResponse
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, &health)
}

// Send writes the string form of value under key.
func (c *Client) Send(ctx context.Context, key string, value any) error {
	_, err := c.Write(ctx, key, []byte(fmt.Sprint(value)))
	return err
}

// Receive waits up to timeout for key and returns its value as a string.
// ok is false when nothing arrived in time (or ctx ended); err is only set
// for rejected requests and transport failures.
func (c *Client) Receive(ctx context.Context, key string, timeout time.Duration) (value string, ok bool, err error) {
	res, err := c.ReadOrWait(ctx, key, timeout)
	if err != nil {
		return "", false, err
	}
	if !res.Ready() {
		return "", false, nil
	}
	return string(res.Value), true, nil
}

// checkKey applies the hub's key rules except the length limit, which is
// server configuration.
func checkKey(key string) error {
	return hub.ValidateKey(key, math.MaxInt)
}

func (c *Client) varPath(key string) string {
	return "/v1/vars/" + url.PathEscape(key)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	target := c.baseURL.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.clientID != "" {
		req.Header.Set(wire.HeaderClientID, c.clientID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrConnection, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp wire.ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
