package cli

import (
	"io"
	"sync"

	"github.com/dmitrijs2005/docdash/internal/client/services"
)

// Router is the Navigator of the terminal UI. It records the current
// screen, which the prompt shows, and runs a hook on every change.
type Router struct {
	mu       sync.Mutex
	current  services.Route
	onChange func(services.Route)
}

func NewRouter() *Router {
	return &Router{current: services.RouteLogin}
}

func (r *Router) Navigate(route services.Route) {
	r.mu.Lock()
	changed := r.current != route
	r.current = route
	fn := r.onChange
	r.mu.Unlock()

	if changed && fn != nil {
		fn(route)
	}
}

func (r *Router) Current() services.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// OnChange replaces the change hook.
func (r *Router) OnChange(fn func(services.Route)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// SyncWriter serializes writes from the REPL and background goroutines.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
