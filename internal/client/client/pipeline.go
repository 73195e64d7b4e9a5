package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/logging"
	"github.com/dmitrijs2005/docdash/internal/metrics"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultReadRetries     = 3
	DefaultMutationRetries = 2
	defaultRetryBase       = 200 * time.Millisecond

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 1 << 20

	requestIDHeader = "X-Request-ID"
)

// TokenStore is the part of the credential store the pipeline needs.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	// SetTokens stores tokens only while the refresh token is still
	// expectedRefresh and returns models.ErrCredentialsChanged otherwise.
	SetTokens(ctx context.Context, expectedRefresh string, tokens models.Tokens) error
	Clear(ctx context.Context) error
}

// SessionExpiredFunc is called after a failed refresh has cleared the
// credential store.
type SessionExpiredFunc func(ctx context.Context, err error)

// Options configure an HTTPClient. A zero Timeout or RetryBase selects the
// default; retry counts are used as given.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	ReadRetries     int
	MutationRetries int
	// RetryBase is the first backoff delay; later delays double.
	RetryBase  time.Duration
	HTTPClient *http.Client
	Logger     logging.Logger
	Metrics    *metrics.Client
}

// HTTPClient talks to the document management API. Every call attaches the
// stored access token, recovers from an expired token through a single
// shared refresh, retries transient failures and reports failures as
// *APIError. It is safe for concurrent use.
type HTTPClient struct {
	baseURL         string
	http            *http.Client
	timeout         time.Duration
	readRetries     int
	mutationRetries int
	retryBase       time.Duration

	store   TokenStore
	refresh *refreshCoordinator
	log     logging.Logger
	metrics *metrics.Client

	hookMu    sync.RWMutex
	onExpired SessionExpiredFunc
}

// NewHTTPClient builds a client bound to store.
func NewHTTPClient(store TokenStore, opts Options) (*HTTPClient, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	c := &HTTPClient{
		baseURL:         base,
		http:            opts.HTTPClient,
		timeout:         opts.Timeout,
		readRetries:     opts.ReadRetries,
		mutationRetries: opts.MutationRetries,
		retryBase:       opts.RetryBase,
		store:           store,
		log:             opts.Logger,
		metrics:         opts.Metrics,
	}
	if c.http == nil {
		c.http = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.readRetries < 0 {
		c.readRetries = 0
	}
	if c.mutationRetries < 0 {
		c.mutationRetries = 0
	}
	if c.retryBase <= 0 {
		c.retryBase = defaultRetryBase
	}
	if c.log == nil {
		c.log = logging.Nop()
	}
	c.log = c.log.With("component", "api_client")
	c.refresh = newRefreshCoordinator(store, c.exchangeRefreshToken, c.sessionExpired, c.log, c.metrics)
	return c, nil
}

// OnSessionExpired registers the hook run when a refresh fails.
func (c *HTTPClient) OnSessionExpired(fn SessionExpiredFunc) {
	c.hookMu.Lock()
	c.onExpired = fn
	c.hookMu.Unlock()
}

func (c *HTTPClient) sessionExpired(ctx context.Context, err error) {
	c.hookMu.RLock()
	fn := c.onExpired
	c.hookMu.RUnlock()
	if fn != nil {
		fn(ctx, err)
	}
}

// call describes one logical API call. body is a factory so the request can
// be sent again after a refresh or a transient failure.
type call struct {
	method string
	path   string
	query  url.Values
	body   func() (io.Reader, string, error)
	// public calls carry no token and never trigger a refresh.
	public bool
	// out receives the unwrapped "data" member of the response envelope.
	out any
	// handle consumes a successful response instead of decoding it.
	handle func(*http.Response) error
	// retries overrides the method-based retry count when non-nil.
	retries *int
}

func jsonBody(v any) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

// do runs c with the retry policy: reads are retried more than mutations,
// and only failures without a response or with a 5xx status are retried.
func (c *HTTPClient) do(ctx context.Context, cl call) error {
	retries := c.mutationRetries
	if cl.method == http.MethodGet {
		retries = c.readRetries
	}
	if cl.retries != nil {
		retries = *cl.retries
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.doAuthenticated(ctx, cl)
		if apiErr, ok := AsAPIError(err); ok && apiErr.Retryable() && !errors.Is(err, ErrSessionExpired) {
			if attempt <= retries {
				c.log.Warn(ctx, "retrying request", "method", cl.method, "path", cl.path, "attempt", attempt, "error", err)
			}
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error(ctx, "request failed", "method", cl.method, "path", cl.path, "attempts", attempt, "error", err)
	}
	return err
}

// doAuthenticated sends cl once and, if the server rejects the access
// token, waits for a fresh one and replays the call exactly once.
func (c *HTTPClient) doAuthenticated(ctx context.Context, cl call) error {
	var token string
	if !cl.public {
		token = c.store.AccessToken()
	}

	err := c.send(ctx, cl, token)
	if cl.public || !isUnauthorized(err) {
		return err
	}

	fresh, rerr := c.refresh.Token(ctx, token)
	if rerr != nil {
		return rerr
	}
	return c.send(ctx, cl, fresh)
}

func isUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == KindResponse && apiErr.StatusCode == http.StatusUnauthorized
}

// send performs a single HTTP exchange under the per-call timeout.
func (c *HTTPClient) send(ctx context.Context, cl call, token string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		body        io.Reader
		contentType string
	)
	if cl.body != nil {
		var err error
		if body, contentType, err = cl.body(); err != nil {
			return newRequestError(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.url(cl.path, cl.query), body)
	if err != nil {
		return newRequestError(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(cl.method, 0)
		if errors.Is(ctx.Err(), context.Canceled) {
			// the caller gave up; surface the cancellation as-is
			return ctx.Err()
		}
		return newNoResponseError(err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(cl.method, resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newResponseError(resp.StatusCode, raw)
	}

	if cl.handle != nil {
		return cl.handle(resp)
	}
	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newNoResponseError(err)
	}
	if err := decodeEnvelope(raw, cl.out); err != nil {
		return &APIError{Message: "invalid response from server", StatusCode: resp.StatusCode, Kind: KindResponse, Err: err}
	}
	return nil
}

func (c *HTTPClient) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// decodeEnvelope unwraps {"data": T} into out. A body without a data member
// is decoded as T directly.
func decodeEnvelope(raw []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(raw, out)
}
