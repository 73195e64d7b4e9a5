package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/logging"
)

const (
	DefaultPollInterval    = 30 * time.Second
	DefaultStalenessWindow = 5 * time.Minute
)

// NeedsCategorizationPoll reports whether some document was created less
// than window before now and still has no categories.
func NeedsCategorizationPoll(docs []models.Document, now time.Time, window time.Duration) bool {
	for _, d := range docs {
		if now.Sub(d.CreatedAt) < window && !d.HasCategories() {
			return true
		}
	}
	return false
}

// FetchFunc loads the current document list.
type FetchFunc func(ctx context.Context) (models.DocumentList, error)

// CategorizationPoller refetches the document list while freshly uploaded
// documents are waiting for background categorization. After each fetch
// the next one is scheduled only if NeedsCategorizationPoll holds.
type CategorizationPoller struct {
	fetch    FetchFunc
	deliver  func(models.DocumentList, error)
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	log      logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCategorizationPoller(fetch FetchFunc, deliver func(models.DocumentList, error), interval, window time.Duration, log logging.Logger) *CategorizationPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	if log == nil {
		log = logging.Nop()
	}
	return &CategorizationPoller{
		fetch:    fetch,
		deliver:  deliver,
		interval: interval,
		window:   window,
		now:      time.Now,
		log:      log.With("component", "poller"),
	}
}

// Start fetches immediately and keeps polling in the background until the
// predicate turns false, ctx ends or Stop is called. Starting a running
// poller restarts it.
func (p *CategorizationPoller) Start(ctx context.Context) {
	p.start(ctx, false)
}

// Schedule is Start with the first fetch one interval away, for callers
// that have just fetched the list themselves.
func (p *CategorizationPoller) Schedule(ctx context.Context) {
	p.start(ctx, true)
}

func (p *CategorizationPoller) start(ctx context.Context, wait bool) {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		if wait && !p.sleep(ctx) {
			return
		}
		p.loop(ctx)
	}()
}

// Stop cancels the poller and waits for it to exit.
func (p *CategorizationPoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether a poll is scheduled or in flight.
func (p *CategorizationPoller) Running() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (p *CategorizationPoller) loop(ctx context.Context) {
	for {
		list, err := p.fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		p.deliver(list, err)
		if err != nil {
			p.log.Warn(ctx, "document poll failed", "error", err)
			return
		}
		if !NeedsCategorizationPoll(list.Documents, p.now(), p.window) {
			p.log.Debug(ctx, "all recent documents categorized, polling stopped")
			return
		}

		if !p.sleep(ctx) {
			return
		}
	}
}

// sleep waits one interval and reports false if ctx ended first.
func (p *CategorizationPoller) sleep(ctx context.Context) bool {
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
