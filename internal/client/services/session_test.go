package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docdash/internal/client/client"
	"github.com/dmitrijs2005/docdash/internal/client/models"
	"github.com/dmitrijs2005/docdash/internal/client/storage"
	"github.com/dmitrijs2005/docdash/internal/logging"
)

var (
	verifiedUser   = models.User{ID: "u1", Email: "a@example.com", EmailVerified: true, StorageQuotaBytes: 100, StorageUsedBytes: 10}
	unverifiedUser = models.User{ID: "u2", Email: "b@example.com"}
)

func authResponse(u models.User) models.AuthResponse {
	return models.AuthResponse{User: u, AccessToken: "access-" + u.ID, RefreshToken: "refresh-" + u.ID}
}

type sessionFixture struct {
	svc    *SessionService
	api    *fakeAuthAPI
	store  *storage.Store
	nav    *fakeNav
	notify *fakeNotifier
}

func newSession(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		api:    &fakeAuthAPI{},
		store:  setupStore(t),
		nav:    &fakeNav{},
		notify: &fakeNotifier{},
	}
	f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, logging.Nop())
	return f
}

func (f *sessionFixture) seed(t *testing.T, u models.User) {
	t.Helper()
	r := authResponse(u)
	require.NoError(t, f.store.SetSession(context.Background(), r.Tokens(), r.User))
}

func TestLogin_VerifiedUserGoesToDashboard(t *testing.T) {
	f := newSession(t)
	f.api.LoginRet = authResponse(verifiedUser)

	var updates []SessionState
	unsub := f.svc.Subscribe(func(s SessionState) { updates = append(updates, s) })
	defer unsub()

	err := f.svc.Login(context.Background(), models.Credentials{Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, "a@example.com", f.api.LastCreds.Email)
	assert.Equal(t, RouteDashboard, f.nav.last())
	assert.Equal(t, []string{"Welcome back!"}, f.notify.successes)

	// tokens and user are persisted together
	assert.True(t, f.store.IsAuthenticated())
	assert.Equal(t, "access-u1", f.store.AccessToken())
	u, ok := f.store.User()
	require.True(t, ok)
	assert.Equal(t, verifiedUser, u)

	require.Len(t, updates, 1)
	assert.True(t, updates[0].Authenticated)
	assert.False(t, updates[0].VerificationRequired)
}

func TestLogin_UnverifiedUserGoesToVerify(t *testing.T) {
	f := newSession(t)
	f.api.LoginRet = authResponse(unverifiedUser)

	require.NoError(t, f.svc.Login(context.Background(), models.Credentials{}))

	assert.Equal(t, RouteVerifyEmail, f.nav.last())
	st := f.svc.Snapshot()
	assert.True(t, st.Authenticated)
	assert.True(t, st.VerificationRequired)
}

func TestLogin_FailureLeavesStateUntouched(t *testing.T) {
	f := newSession(t)
	f.api.LoginErr = &client.APIError{Message: "Invalid credentials", StatusCode: 401, Kind: client.KindResponse}

	err := f.svc.Login(context.Background(), models.Credentials{})
	require.ErrorIs(t, err, client.ErrUnauthorized)

	assert.False(t, f.store.IsAuthenticated())
	assert.False(t, f.svc.Snapshot().Authenticated)
	assert.Empty(t, f.nav.routes)
	assert.Equal(t, []string{"Invalid credentials"}, f.notify.errors)
}

func TestRegister_AlwaysGoesToVerify(t *testing.T) {
	f := newSession(t)
	f.api.RegisterRet = authResponse(verifiedUser)

	require.NoError(t, f.svc.Register(context.Background(), models.Credentials{Email: "a@example.com"}))

	assert.Equal(t, RouteVerifyEmail, f.nav.last())
	assert.True(t, f.store.IsAuthenticated())
	assert.Equal(t, []string{"Account created! Please verify your email."}, f.notify.successes)
}

func TestRegister_ShowsEmailValidationMessage(t *testing.T) {
	f := newSession(t)
	f.api.RegisterErr = &client.APIError{
		Message:    "Validation failed",
		StatusCode: 422,
		Kind:       client.KindResponse,
		Validation: map[string][]string{"email": {"Email already in use"}},
	}

	err := f.svc.Register(context.Background(), models.Credentials{})
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, []string{"Email already in use"}, f.notify.errors)
}

func TestVerifyEmail_MarksCachedUserAndRefetches(t *testing.T) {
	f := newSession(t)
	f.seed(t, unverifiedUser)
	f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)

	fresh := unverifiedUser
	fresh.EmailVerified = true
	fresh.StorageUsedBytes = 42
	f.api.ProfileRet = fresh

	err := f.svc.VerifyEmail(context.Background(), models.EmailVerification{Email: unverifiedUser.Email, Code: "123456"})
	require.NoError(t, err)

	assert.Equal(t, "123456", f.api.LastVerification.Code)
	assert.Equal(t, 1, f.api.profileCalls())
	assert.Equal(t, RouteDashboard, f.nav.last())

	u, ok := f.store.User()
	require.True(t, ok)
	assert.True(t, u.EmailVerified)
	assert.Equal(t, int64(42), u.StorageUsedBytes)
	assert.False(t, f.svc.Snapshot().VerificationRequired)
}

func TestVerifyEmail_UsesIssuedSession(t *testing.T) {
	f := newSession(t)
	f.seed(t, unverifiedUser)

	issued := authResponse(verifiedUser)
	issued.AccessToken = "fresh-access"
	f.api.VerifyRet = &issued
	f.api.ProfileRet = verifiedUser

	require.NoError(t, f.svc.VerifyEmail(context.Background(), models.EmailVerification{}))
	assert.Equal(t, "fresh-access", f.store.AccessToken())
	assert.Equal(t, RouteDashboard, f.nav.last())
}

func TestVerifyEmail_FailureKeepsUnverified(t *testing.T) {
	f := newSession(t)
	f.seed(t, unverifiedUser)
	f.api.VerifyErr = &client.APIError{Message: "Invalid code", StatusCode: 400, Kind: client.KindResponse}

	require.Error(t, f.svc.VerifyEmail(context.Background(), models.EmailVerification{}))

	u, _ := f.store.User()
	assert.False(t, u.EmailVerified)
	assert.Equal(t, 0, f.api.profileCalls())
	assert.Equal(t, []string{"Invalid code"}, f.notify.errors)
}

func TestLogout_ClearsLocallyOnRemoteFailure(t *testing.T) {
	f := newSession(t)
	f.seed(t, verifiedUser)
	require.NoError(t, f.store.SetTheme(context.Background(), models.ThemeDark))
	f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)

	var resets int
	f.svc.OnReset(func() { resets++ })

	f.api.LogoutErr = errors.New("boom")
	err := f.svc.Logout(context.Background())
	require.Error(t, err)

	assert.Equal(t, "refresh-u1", f.api.LastRefreshToken)
	assert.False(t, f.store.IsAuthenticated())
	assert.Equal(t, models.ThemeDark, f.store.Theme())
	assert.False(t, f.svc.Snapshot().Authenticated)
	assert.Equal(t, RouteLogin, f.nav.last())
	assert.Equal(t, []string{"Logged out (with errors)"}, f.notify.errors)
	assert.Equal(t, 1, resets)
}

func TestLogout_WithoutRefreshTokenSkipsServer(t *testing.T) {
	f := newSession(t)

	err := f.svc.Logout(context.Background())
	require.ErrorIs(t, err, client.ErrNoRefreshToken)
	assert.Equal(t, 0, f.api.LogoutCalls)
	assert.Equal(t, RouteLogin, f.nav.last())
}

func TestLogoutAll_Success(t *testing.T) {
	f := newSession(t)
	f.seed(t, verifiedUser)

	require.NoError(t, f.svc.LogoutAll(context.Background()))
	assert.False(t, f.store.IsAuthenticated())
	assert.Equal(t, []string{"Logged out from all devices"}, f.notify.successes)
	assert.Equal(t, RouteLogin, f.nav.last())
}

func TestReconcile(t *testing.T) {
	t.Run("unauthenticated does nothing", func(t *testing.T) {
		f := newSession(t)
		require.NoError(t, f.svc.Reconcile(context.Background()))
		assert.Equal(t, 0, f.api.profileCalls())
	})

	t.Run("unchanged profile keeps cached user", func(t *testing.T) {
		f := newSession(t)
		f.seed(t, verifiedUser)
		f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)

		changed := verifiedUser
		changed.Email = "renamed@example.com"
		f.api.ProfileRet = changed

		var updates int
		f.svc.Subscribe(func(SessionState) { updates++ })

		require.NoError(t, f.svc.Reconcile(context.Background()))
		u, _ := f.store.User()
		assert.Equal(t, verifiedUser.Email, u.Email, "only fields of interest trigger an update")
		assert.Zero(t, updates)
	})

	t.Run("storage change updates cached user", func(t *testing.T) {
		f := newSession(t)
		f.seed(t, verifiedUser)

		changed := verifiedUser
		changed.StorageUsedBytes = 99
		f.api.ProfileRet = changed

		require.NoError(t, f.svc.Reconcile(context.Background()))
		u, _ := f.store.User()
		assert.Equal(t, int64(99), u.StorageUsedBytes)
		assert.Equal(t, int64(99), f.svc.Snapshot().User.StorageUsedBytes)
	})

	t.Run("fetch failure drops the session", func(t *testing.T) {
		f := newSession(t)
		f.seed(t, verifiedUser)
		f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)
		f.api.ProfileErr = &client.APIError{Message: "nope", StatusCode: 404, Kind: client.KindResponse}

		var last SessionState
		f.svc.Subscribe(func(s SessionState) { last = s })

		require.Error(t, f.svc.Reconcile(context.Background()))
		assert.False(t, f.store.IsAuthenticated())
		assert.False(t, last.Authenticated)
		assert.Equal(t, RouteLogin, f.nav.last())
	})

	t.Run("logout during fetch wins", func(t *testing.T) {
		f := newSession(t)
		f.seed(t, verifiedUser)
		f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)

		changed := verifiedUser
		changed.StorageUsedBytes = 99
		f.api.ProfileRet = changed
		f.api.ProfileHook = func() {
			require.NoError(t, f.svc.Logout(context.Background()))
		}

		var last SessionState
		f.svc.Subscribe(func(s SessionState) { last = s })

		err := f.svc.Reconcile(context.Background())
		require.ErrorIs(t, err, models.ErrNotAuthenticated)

		assert.False(t, f.store.IsAuthenticated())
		_, cached := f.store.User()
		assert.False(t, cached, "no user without credentials")
		assert.False(t, f.svc.Snapshot().Authenticated)
		assert.False(t, last.Authenticated)
		assert.Equal(t, RouteLogin, f.nav.last())
	})

	t.Run("store cleared during fetch", func(t *testing.T) {
		f := newSession(t)
		f.seed(t, verifiedUser)
		f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)

		// unchanged profile takes the cached-user branch
		f.api.ProfileRet = verifiedUser
		f.api.ProfileHook = func() {
			require.NoError(t, f.store.Clear(context.Background()))
		}
		var updates int
		f.svc.Subscribe(func(SessionState) { updates++ })

		require.ErrorIs(t, f.svc.Reconcile(context.Background()), models.ErrNotAuthenticated)
		_, cached := f.store.User()
		assert.False(t, cached)
		assert.Zero(t, updates)
	})

	t.Run("cancelled caller keeps the session", func(t *testing.T) {
		f := newSession(t)
		f.seed(t, verifiedUser)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		f.api.ProfileErr = context.Canceled

		require.ErrorIs(t, f.svc.Reconcile(ctx), context.Canceled)
		assert.True(t, f.store.IsAuthenticated())
		assert.Empty(t, f.nav.routes)
	})
}

func TestRestore(t *testing.T) {
	t.Run("nothing persisted", func(t *testing.T) {
		f := newSession(t)
		require.NoError(t, f.svc.Restore(context.Background()))
		assert.Equal(t, RouteLogin, f.nav.last())
		assert.Equal(t, 0, f.api.profileCalls())
	})

	t.Run("user without tokens is discarded", func(t *testing.T) {
		f := newSession(t)
		require.NoError(t, f.store.SetSession(context.Background(), models.Tokens{}, verifiedUser))

		require.NoError(t, f.svc.Restore(context.Background()))
		_, ok := f.store.User()
		assert.False(t, ok)
		assert.Equal(t, RouteLogin, f.nav.last())
	})

	t.Run("tokens without user fetch the profile", func(t *testing.T) {
		f := newSession(t)
		require.NoError(t, f.store.SetTokens(context.Background(), "", models.Tokens{AccessToken: "a", RefreshToken: "r"}))
		f.api.ProfileRet = unverifiedUser

		require.NoError(t, f.svc.Restore(context.Background()))
		u, ok := f.store.User()
		require.True(t, ok)
		assert.Equal(t, unverifiedUser.ID, u.ID)
		assert.Equal(t, RouteVerifyEmail, f.nav.last())
	})

	t.Run("complete session goes to dashboard", func(t *testing.T) {
		f := newSession(t)
		f.seed(t, verifiedUser)
		f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)
		f.api.ProfileRet = verifiedUser

		require.NoError(t, f.svc.Restore(context.Background()))
		assert.Equal(t, RouteDashboard, f.nav.last())
		assert.True(t, f.svc.Snapshot().Authenticated)
	})
}

func TestRestore_LogoutDuringProfileFetch(t *testing.T) {
	f := newSession(t)
	require.NoError(t, f.store.SetTokens(context.Background(), "", models.Tokens{AccessToken: "a", RefreshToken: "r"}))
	f.api.ProfileRet = verifiedUser
	f.api.ProfileHook = func() {
		f.svc.HandleSessionExpired(context.Background(), client.ErrSessionExpired)
	}

	require.NoError(t, f.svc.Restore(context.Background()))
	_, cached := f.store.User()
	assert.False(t, cached)
	assert.False(t, f.svc.Snapshot().Authenticated)
	assert.Equal(t, RouteLogin, f.nav.last())
}

func TestVerifyEmail_AfterSessionEndedKeepsItEnded(t *testing.T) {
	f := newSession(t)
	f.seed(t, unverifiedUser)
	f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)
	f.api.ProfileRet = unverifiedUser
	f.api.ProfileHook = func() {
		f.svc.HandleSessionExpired(context.Background(), client.ErrSessionExpired)
	}

	require.NoError(t, f.svc.VerifyEmail(context.Background(), models.EmailVerification{Email: unverifiedUser.Email, Code: "123456"}))
	assert.False(t, f.svc.Snapshot().Authenticated)
	_, cached := f.store.User()
	assert.False(t, cached)
	assert.Equal(t, RouteLogin, f.nav.last())
}

func TestHandleSessionExpired(t *testing.T) {
	f := newSession(t)
	f.seed(t, verifiedUser)
	f.svc = NewSessionService(f.api, f.store, f.nav, f.notify, nil)

	f.svc.HandleSessionExpired(context.Background(), client.ErrSessionExpired)

	assert.False(t, f.svc.Snapshot().Authenticated)
	assert.False(t, f.store.IsAuthenticated())
	assert.Equal(t, RouteLogin, f.nav.last())
	assert.Len(t, f.notify.errors, 1)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := newSession(t)
	f.api.LoginRet = authResponse(verifiedUser)

	var calls int
	unsub := f.svc.Subscribe(func(SessionState) { calls++ })
	unsub()
	unsub()

	require.NoError(t, f.svc.Login(context.Background(), models.Credentials{}))
	assert.Zero(t, calls)
}

func TestSnapshot_IsACopy(t *testing.T) {
	f := newSession(t)
	f.api.LoginRet = authResponse(verifiedUser)
	require.NoError(t, f.svc.Login(context.Background(), models.Credentials{}))

	st := f.svc.Snapshot()
	st.User.Email = "mutated"
	assert.Equal(t, verifiedUser.Email, f.svc.Snapshot().User.Email)
}

func TestStartReconciler_StopsOnCancel(t *testing.T) {
	f := newSession(t)
	f.seed(t, verifiedUser)
	f.api.ProfileRet = verifiedUser

	ctx, cancel := context.WithCancel(context.Background())
	var stopped atomic.Bool
	go func() {
		f.svc.StartReconciler(ctx, 5*time.Millisecond)
		stopped.Store(true)
	}()

	require.Eventually(t, func() bool { return f.api.profileCalls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.Eventually(t, stopped.Load, time.Second, 5*time.Millisecond)
}
