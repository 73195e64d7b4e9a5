package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/logging"
	"github.com/dmitrijs2005/docdash/internal/metrics"
)

type refreshState int

const (
	stateIdle refreshState = iota
	stateRefreshing
)

// pendingRequest is a request parked until the running refresh settles.
type pendingRequest struct {
	resume func(token string)
	fail   func(err error)
}

type exchangeFunc func(ctx context.Context, refreshToken string) (models.Tokens, error)

// refreshCoordinator guarantees at most one refresh exchange at a time.
// The first request to see a 401 runs the exchange; the ones arriving while
// it runs are queued and released in arrival order once it settles.
// mu guards state and queue only and is never held across the exchange.
type refreshCoordinator struct {
	store     TokenStore
	exchange  exchangeFunc
	onExpired SessionExpiredFunc
	log       logging.Logger
	metrics   *metrics.Client

	mu    sync.Mutex
	state refreshState
	queue []pendingRequest
}

func newRefreshCoordinator(store TokenStore, exchange exchangeFunc, onExpired SessionExpiredFunc, log logging.Logger, m *metrics.Client) *refreshCoordinator {
	return &refreshCoordinator{
		store:     store,
		exchange:  exchange,
		onExpired: onExpired,
		log:       log,
		metrics:   m,
	}
}

type tokenResult struct {
	token string
	err   error
}

// Token returns an access token to replay a request that was rejected while
// carrying used. If another refresh already replaced used, the current
// token is returned without a new exchange. Without a stored refresh token
// the session is already over and the expiry hook is not run again.
func (r *refreshCoordinator) Token(ctx context.Context, used string) (string, error) {
	r.mu.Lock()
	if r.state == stateIdle {
		if current := r.store.AccessToken(); current != "" && current != used {
			r.mu.Unlock()
			return current, nil
		}
		refreshToken := r.store.RefreshToken()
		if refreshToken == "" {
			r.mu.Unlock()
			return "", fmt.Errorf("%w: %w", ErrSessionExpired, ErrNoRefreshToken)
		}
		r.state = stateRefreshing
		r.mu.Unlock()
		return r.run(ctx, refreshToken)
	}

	ch := make(chan tokenResult, 1)
	r.queue = append(r.queue, pendingRequest{
		resume: func(token string) { ch <- tokenResult{token: token} },
		fail:   func(err error) { ch <- tokenResult{err: err} },
	})
	r.metrics.SetRefreshWaiters(len(r.queue))
	r.mu.Unlock()

	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		// the slot stays queued; its buffered result is simply dropped
		return "", ctx.Err()
	}
}

// run performs the exchange as the leader and settles the queue.
func (r *refreshCoordinator) run(ctx context.Context, refreshToken string) (string, error) {
	// Waiters depend on this exchange, so it must not die with the
	// leader's own context.
	exCtx := context.WithoutCancel(ctx)

	tokens, err := r.doExchange(exCtx, refreshToken)
	if errors.Is(err, models.ErrCredentialsChanged) {
		return "", r.discard(exCtx, err)
	}
	if err != nil {
		return "", r.fail(exCtx, err)
	}

	r.mu.Lock()
	queue := r.takeQueue()
	r.mu.Unlock()

	r.metrics.ObserveRefresh(metrics.RefreshSuccess)
	args := []any{"waiters", len(queue)}
	if exp, ok := tokens.AccessExpiry(); ok {
		args = append(args, "expires_at", exp)
	}
	r.log.Info(ctx, "access token refreshed", args...)
	for _, p := range queue {
		p.resume(tokens.AccessToken)
	}
	return tokens.AccessToken, nil
}

func (r *refreshCoordinator) doExchange(ctx context.Context, refreshToken string) (models.Tokens, error) {
	tokens, err := r.exchange(ctx, refreshToken)
	if err != nil {
		return models.Tokens{}, err
	}
	if !tokens.Complete() {
		return models.Tokens{}, fmt.Errorf("refresh response without tokens")
	}
	// stored before going idle so later 401s take the stale-token shortcut
	if err := r.store.SetTokens(ctx, refreshToken, tokens); err != nil {
		return models.Tokens{}, err
	}
	return tokens, nil
}

func (r *refreshCoordinator) fail(ctx context.Context, cause error) error {
	err := fmt.Errorf("%w: %w", ErrSessionExpired, cause)

	if cerr := r.store.Clear(ctx); cerr != nil {
		r.log.Error(ctx, "failed to clear credentials after refresh failure", "error", cerr)
	}

	r.mu.Lock()
	queue := r.takeQueue()
	r.mu.Unlock()

	r.metrics.ObserveRefresh(metrics.RefreshFailure)
	r.log.Warn(ctx, "token refresh failed", "waiters", len(queue), "error", cause)
	for _, p := range queue {
		p.fail(err)
	}
	if r.onExpired != nil {
		r.onExpired(ctx, err)
	}
	return err
}

// discard settles the queue after a logout or a new login replaced the
// credentials during the exchange. The new pair is dropped; the store and
// the expiry hook belong to whoever changed the credentials.
func (r *refreshCoordinator) discard(ctx context.Context, cause error) error {
	err := fmt.Errorf("%w: %w", ErrSessionExpired, cause)

	r.mu.Lock()
	queue := r.takeQueue()
	r.mu.Unlock()

	r.metrics.ObserveRefresh(metrics.RefreshDiscarded)
	r.log.Info(ctx, "refreshed tokens discarded, credentials changed", "waiters", len(queue))
	for _, p := range queue {
		p.fail(err)
	}
	return err
}

// takeQueue empties the queue and returns to idle. r.mu must be held.
func (r *refreshCoordinator) takeQueue() []pendingRequest {
	queue := r.queue
	r.queue = nil
	r.state = stateIdle
	r.metrics.SetRefreshWaiters(0)
	return queue
}

// exchangeRefreshToken calls the refresh endpoint. It is public: it carries
// no access token and a 401 from it never triggers another refresh.
func (c *HTTPClient) exchangeRefreshToken(ctx context.Context, refreshToken string) (models.Tokens, error) {
	var tokens models.Tokens
	noRetry := 0
	err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/api/v1/auth/refresh",
		body:    jsonBody(map[string]string{"refreshToken": refreshToken}),
		public:  true,
		out:     &tokens,
		retries: &noRetry,
	})
	return tokens, err
}
