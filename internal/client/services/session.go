// Package services contains the application services of the docdash client.
// They sit between the API client and the terminal UI: they persist session
// state, assemble documents with their categories and keep derived data
// fresh.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/logging"
)

// Route is a screen of the terminal UI.
type Route string

const (
	RouteLogin       Route = "login"
	RouteRegister    Route = "register"
	RouteVerifyEmail Route = "verify-email"
	RouteDashboard   Route = "dashboard"
)

// Navigator moves the UI to another screen.
type Navigator interface {
	Navigate(route Route)
}

// Notifier shows short user-facing messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// SessionStore is the part of the credential store the session needs.
type SessionStore interface {
	RefreshToken() string
	User() (models.User, bool)
	IsAuthenticated() bool
	SetSession(ctx context.Context, tokens models.Tokens, user models.User) error
	SetUserIfAuthenticated(ctx context.Context, user models.User) error
	Clear(ctx context.Context) error
}

// SessionState is the observable session value.
type SessionState struct {
	User                 *models.User
	Authenticated        bool
	VerificationRequired bool
}

func stateFor(u *models.User) SessionState {
	if u == nil {
		return SessionState{}
	}
	cp := *u
	return SessionState{User: &cp, Authenticated: true, VerificationRequired: !cp.EmailVerified}
}

// SessionService drives login, registration, verification and logout and
// keeps the cached user in line with the server profile.
type SessionService struct {
	api    client.AuthAPI
	store  SessionStore
	nav    Navigator
	notify Notifier
	log    logging.Logger

	// writeMu pairs each credential store write with the state it emits,
	// so a logout cannot land between them.
	writeMu sync.Mutex

	mu     sync.Mutex
	state  SessionState
	subs   map[int]func(SessionState)
	nextID int
	resets []func()
}

// NewSessionService builds the service with the state restored from the
// store's in-memory mirror. Call Restore to reconcile it with the server.
func NewSessionService(api client.AuthAPI, store SessionStore, nav Navigator, notify Notifier, log logging.Logger) *SessionService {
	if log == nil {
		log = logging.Nop()
	}
	s := &SessionService{
		api:    api,
		store:  store,
		nav:    nav,
		notify: notify,
		log:    log.With("component", "session"),
		subs:   make(map[int]func(SessionState)),
	}
	if u, ok := store.User(); ok && store.IsAuthenticated() {
		s.state = stateFor(&u)
	}
	return s
}

// OnReset registers fn to run whenever local session state is dropped, so
// caches holding account data can be flushed.
func (s *SessionService) OnReset(fn func()) {
	s.mu.Lock()
	s.resets = append(s.resets, fn)
	s.mu.Unlock()
}

// Snapshot returns the current state.
func (s *SessionService) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stateFor(s.state.User)
}

// Subscribe registers fn for every state update. The returned function
// removes the subscription.
func (s *SessionService) Subscribe(fn func(SessionState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *SessionService) setUser(u *models.User) {
	st := stateFor(u)

	s.mu.Lock()
	s.state = st
	subs := make([]func(SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(stateFor(st.User))
	}
}

// dropLocal clears credentials and derived caches and emits the
// unauthenticated state. It never fails; a store error is only logged
// because the store clears its in-memory mirror first.
func (s *SessionService) dropLocal(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.log.Error(ctx, "failed to clear credentials", "error", err)
	}
	s.mu.Lock()
	resets := append([]func(){}, s.resets...)
	s.mu.Unlock()
	for _, fn := range resets {
		fn()
	}
	s.setUser(nil)
}

func (s *SessionService) startSession(ctx context.Context, resp models.AuthResponse) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.SetSession(ctx, resp.Tokens(), resp.User); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	u := resp.User
	s.setUser(&u)
	return nil
}

// Login authenticates and persists the session. An unverified user is sent
// to the verification screen, everyone else to the dashboard.
func (s *SessionService) Login(ctx context.Context, creds models.Credentials) error {
	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		s.notify.Error(errorMessage(err))
		return err
	}
	if err := s.startSession(ctx, resp); err != nil {
		s.notify.Error(errorMessage(err))
		return err
	}

	s.notify.Success("Welcome back!")
	if !resp.User.EmailVerified {
		s.nav.Navigate(RouteVerifyEmail)
	} else {
		s.nav.Navigate(RouteDashboard)
	}
	return nil
}

// Register creates the account, persists the session and always continues
// with email verification.
func (s *SessionService) Register(ctx context.Context, creds models.Credentials) error {
	resp, err := s.api.Register(ctx, creds)
	if err != nil {
		s.notify.Error(validationMessage(err, "email"))
		return err
	}
	if err := s.startSession(ctx, resp); err != nil {
		s.notify.Error(errorMessage(err))
		return err
	}

	s.notify.Success("Account created! Please verify your email.")
	s.nav.Navigate(RouteVerifyEmail)
	return nil
}

// VerifyEmail submits the verification code, marks the cached user verified
// and refreshes the profile before moving to the dashboard.
func (s *SessionService) VerifyEmail(ctx context.Context, req models.EmailVerification) error {
	resp, err := s.api.VerifyEmail(ctx, req)
	if err != nil {
		s.notify.Error(errorMessage(err))
		return err
	}

	switch {
	case resp != nil:
		if err := s.startSession(ctx, *resp); err != nil {
			s.log.Error(ctx, "failed to persist verified session", "error", err)
		}
	default:
		s.markVerified(ctx)
	}

	s.notify.Success("Email verified successfully!")
	if err := s.Reconcile(ctx); err != nil {
		// Reconcile already routed to login.
		s.log.Warn(ctx, "profile refresh after verification failed", "error", err)
		return nil
	}
	s.nav.Navigate(RouteDashboard)
	return nil
}

func (s *SessionService) markVerified(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	u, ok := s.store.User()
	if !ok {
		return
	}
	u.EmailVerified = true
	if err := s.store.SetUserIfAuthenticated(ctx, u); err != nil {
		if errors.Is(err, models.ErrNotAuthenticated) {
			return
		}
		s.log.Error(ctx, "failed to persist verified user", "error", err)
	}
	s.setUser(&u)
}

// ResendVerification asks the server for a new verification code.
func (s *SessionService) ResendVerification(ctx context.Context, email string) error {
	if err := s.api.ResendVerification(ctx, email); err != nil {
		s.notify.Error(errorMessage(err))
		return err
	}
	s.notify.Success("Verification code sent!")
	return nil
}

// Logout revokes the refresh token on the server. The local session is
// cleared and the UI sent to login whatever the server says; a remote
// failure is notified and returned.
func (s *SessionService) Logout(ctx context.Context) error {
	var remote error
	if rt := s.store.RefreshToken(); rt == "" {
		remote = client.ErrNoRefreshToken
	} else {
		remote = s.api.Logout(ctx, rt)
	}
	return s.finishLogout(ctx, remote, "Logged out successfully")
}

// LogoutAll revokes every session of the account. Local behaviour matches
// Logout.
func (s *SessionService) LogoutAll(ctx context.Context) error {
	return s.finishLogout(ctx, s.api.LogoutAll(ctx), "Logged out from all devices")
}

func (s *SessionService) finishLogout(ctx context.Context, remote error, okMsg string) error {
	s.dropLocal(context.WithoutCancel(ctx))
	if remote != nil {
		s.log.Warn(ctx, "remote logout failed", "error", remote)
		s.notify.Error("Logged out (with errors)")
		s.nav.Navigate(RouteLogin)
		return fmt.Errorf("remote logout: %w", remote)
	}
	s.notify.Success(okMsg)
	s.nav.Navigate(RouteLogin)
	return nil
}

// Reconcile fetches the profile while authenticated and updates the cached
// user when it is missing or a field of interest changed. A failed fetch
// drops the session and routes to login. Caller cancellation leaves the
// session untouched. A logout that lands while the profile is in flight
// wins: nothing is cached or emitted and models.ErrNotAuthenticated is
// returned.
func (s *SessionService) Reconcile(ctx context.Context) error {
	if !s.store.IsAuthenticated() {
		return nil
	}

	profile, err := s.api.Profile(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, client.ErrSessionExpired) {
			// HandleSessionExpired has already run.
			return err
		}
		s.log.Error(ctx, "failed to fetch profile, clearing session", "error", err)
		s.dropLocal(ctx)
		s.nav.Navigate(RouteLogin)
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.store.IsAuthenticated() {
		s.log.Debug(ctx, "session ended during profile fetch")
		return models.ErrNotAuthenticated
	}

	cached, ok := s.store.User()
	if ok && !profileChanged(cached, profile) {
		s.mu.Lock()
		missing := s.state.User == nil
		s.mu.Unlock()
		if missing {
			s.setUser(&cached)
		}
		return nil
	}

	s.log.Debug(ctx, "updating cached user from profile", "user_id", profile.ID)
	if err := s.store.SetUserIfAuthenticated(ctx, profile); err != nil {
		if errors.Is(err, models.ErrNotAuthenticated) {
			s.log.Debug(ctx, "session ended during profile fetch")
			return err
		}
		s.log.Error(ctx, "failed to cache profile", "error", err)
	}
	s.setUser(&profile)
	return nil
}

func profileChanged(cached, fresh models.User) bool {
	return cached.EmailVerified != fresh.EmailVerified ||
		cached.StorageUsedBytes != fresh.StorageUsedBytes ||
		cached.StorageQuotaBytes != fresh.StorageQuotaBytes
}

// Restore reconciles persisted state on startup and routes the UI. A cached
// user without a complete token pair is discarded; tokens without a cached
// user are completed from the profile.
func (s *SessionService) Restore(ctx context.Context) error {
	_, hasUser := s.store.User()
	if !s.store.IsAuthenticated() {
		if hasUser || s.store.RefreshToken() != "" {
			s.log.Info(ctx, "discarding incomplete persisted session")
			s.dropLocal(ctx)
		}
		s.nav.Navigate(RouteLogin)
		return nil
	}

	if err := s.Reconcile(ctx); err != nil {
		if errors.Is(err, models.ErrNotAuthenticated) {
			s.nav.Navigate(RouteLogin)
			return nil
		}
		return err
	}

	st := s.Snapshot()
	switch {
	case !st.Authenticated:
		s.nav.Navigate(RouteLogin)
	case st.VerificationRequired:
		s.nav.Navigate(RouteVerifyEmail)
	default:
		s.nav.Navigate(RouteDashboard)
	}
	return nil
}

// StartReconciler re-runs Reconcile every interval until ctx is done.
func (s *SessionService) StartReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				s.log.Debug(ctx, "periodic profile check failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// HandleSessionExpired is installed as the API client's session-expired
// hook. The credential store is already empty when it runs.
func (s *SessionService) HandleSessionExpired(ctx context.Context, err error) {
	s.log.Warn(ctx, "session expired", "error", err)
	s.dropLocal(ctx)
	s.notify.Error("Your session has expired, please log in again")
	s.nav.Navigate(RouteLogin)
}

func errorMessage(err error) string {
	if apiErr, ok := client.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// validationMessage prefers the first validation message of field.
func validationMessage(err error, field string) string {
	if apiErr, ok := client.AsAPIError(err); ok {
		if msgs := apiErr.Validation[field]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return errorMessage(err)
}
