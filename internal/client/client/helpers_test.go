package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docdash/internal/client/models"
)

// fakeStore is an in-memory TokenStore recording its writes.
type fakeStore struct {
	mu         sync.Mutex
	tokens     models.Tokens
	setCalls   int
	clearCalls int
}

func newFakeStore(access, refresh string) *fakeStore {
	return &fakeStore{tokens: models.Tokens{AccessToken: access, RefreshToken: refresh}}
}

func (s *fakeStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.AccessToken
}

func (s *fakeStore) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.RefreshToken
}

func (s *fakeStore) SetTokens(_ context.Context, expectedRefresh string, t models.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens.RefreshToken != expectedRefresh {
		return models.ErrCredentialsChanged
	}
	s.tokens = t
	s.setCalls++
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = models.Tokens{}
	s.clearCalls++
	return nil
}

func (s *fakeStore) snapshot() (models.Tokens, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, s.setCalls, s.clearCalls
}

func newTestClient(t *testing.T, store TokenStore, h http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(store, Options{
		BaseURL:         srv.URL,
		Timeout:         2 * time.Second,
		ReadRetries:     DefaultReadRetries,
		MutationRetries: DefaultMutationRetries,
		RetryBase:       time.Millisecond,
		HTTPClient:      srv.Client(),
	})
	require.NoError(t, err)
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func envelope(v any) map[string]any {
	return map[string]any{"data": v}
}
