// Package storage persists the client's session between runs: the token
// pair, the cached user and the theme preference.
//
// All values are loaded into memory when the store is opened. Reads are
// served from memory and never fail; writes go to the local database first
// and are published to memory only once they are durable.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/docdash/internal/dbx"
	"github.com/dmitrijs2005/docdash/internal/logging"
)

// Persisted keys.
const (
	KeyAccessToken  = "auth_access_token"
	KeyRefreshToken = "auth_refresh_token"
	KeyUser         = "auth_user"
	KeyTheme        = "app_theme"
)

// Store is the credential store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	repo metadata.Repository
	log  logging.Logger

	// writeMu serialises writers so a conditional write checks and stores
	// without a Clear in between. mu guards the in-memory mirror only.
	writeMu sync.Mutex
	mu      sync.RWMutex
	tokens  models.Tokens
	user    *models.User
	theme   models.Theme
}

// Open loads the persisted session from db. A cached user that cannot be
// decoded is discarded with a warning rather than failing the open.
func Open(ctx context.Context, db *sql.DB, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}
	s := &Store{
		db:    db,
		repo:  metadata.NewSQLiteRepository(db),
		log:   log.With("component", "credential_store"),
		theme: models.ThemeSystem,
	}

	values, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	s.tokens = models.Tokens{
		AccessToken:  string(values[KeyAccessToken]),
		RefreshToken: string(values[KeyRefreshToken]),
	}
	if raw, ok := values[KeyUser]; ok && len(raw) > 0 {
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			s.log.Warn(ctx, "discarding unreadable cached user", "error", err)
		} else {
			s.user = &u
		}
	}
	if t := models.Theme(values[KeyTheme]); t.Valid() {
		s.theme = t
	}
	return s, nil
}

func (s *Store) Tokens() models.Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *Store) AccessToken() string {
	return s.Tokens().AccessToken
}

func (s *Store) RefreshToken() string {
	return s.Tokens().RefreshToken
}

// User returns a copy of the cached user.
func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// IsAuthenticated reports whether both tokens are present. Token validity
// is not checked.
func (s *Store) IsAuthenticated() bool {
	return s.Tokens().Complete()
}

// SetSession stores tokens and user together. Either both become visible
// or, on error, neither does.
func (s *Store) SetSession(ctx context.Context, tokens models.Tokens, user models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Set(ctx, KeyAccessToken, []byte(tokens.AccessToken)); err != nil {
			return err
		}
		if err := repo.Set(ctx, KeyRefreshToken, []byte(tokens.RefreshToken)); err != nil {
			return err
		}
		return repo.Set(ctx, KeyUser, raw)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.tokens = tokens
	s.user = &user
	s.mu.Unlock()
	return nil
}

// SetTokens replaces the token pair, keeping the cached user, but only while
// the stored refresh token is still expectedRefresh. Otherwise the pair was
// cleared or replaced in the meantime and models.ErrCredentialsChanged is
// returned with nothing written.
func (s *Store) SetTokens(ctx context.Context, expectedRefresh string, tokens models.Tokens) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.RefreshToken() != expectedRefresh {
		return models.ErrCredentialsChanged
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repo.WithTx(tx)
		// another process may share the database file
		persisted, _, err := repo.Get(ctx, KeyRefreshToken)
		if err != nil {
			return err
		}
		if string(persisted) != expectedRefresh {
			return models.ErrCredentialsChanged
		}
		if err := repo.Set(ctx, KeyAccessToken, []byte(tokens.AccessToken)); err != nil {
			return err
		}
		return repo.Set(ctx, KeyRefreshToken, []byte(tokens.RefreshToken))
	})
	if errors.Is(err, models.ErrCredentialsChanged) {
		return err
	}
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

// SetUserIfAuthenticated replaces the cached user while a complete token
// pair is stored. Without one it returns models.ErrNotAuthenticated and
// writes nothing, so a profile fetched before a logout cannot outlive it.
func (s *Store) SetUserIfAuthenticated(ctx context.Context, user models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.IsAuthenticated() {
		return models.ErrNotAuthenticated
	}
	if err := s.repo.Set(ctx, KeyUser, raw); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return nil
}

// Clear forgets tokens and user. The theme is kept. Memory is cleared even
// if the database write fails, so the process stops using the credentials
// immediately; the error is still returned.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.tokens = models.Tokens{}
	s.user = nil
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *Store) Theme() models.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

func (s *Store) SetTheme(ctx context.Context, theme models.Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("unknown theme %q", theme)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.repo.Set(ctx, KeyTheme, []byte(theme)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}

	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	return nil
}

// AccessTokenExpiry reads the exp claim of the stored access token.
func (s *Store) AccessTokenExpiry() (time.Time, bool) {
	return s.Tokens().AccessExpiry()
}
