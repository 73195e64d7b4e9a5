// Package models defines client-side data models used by the docdash client:
// session credentials, the authenticated user, categories, documents and the
// request/response shapes of the document management API.
package models

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by credential stores for conditional writes.
var (
	// ErrCredentialsChanged means the stored refresh token is no longer the
	// one the write was based on.
	ErrCredentialsChanged = errors.New("credentials changed")
	// ErrNotAuthenticated means there is no complete token pair to attach
	// the write to.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Tokens is the bearer credential pair issued by the backend.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both tokens are present.
func (t Tokens) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// AccessExpiry decodes the exp claim of the access token. The signature is
// not verified; the value is for display and logs only.
func (t Tokens) AccessExpiry() (time.Time, bool) {
	return TokenExpiry(t.AccessToken)
}

// TokenExpiry decodes the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// User is the cached copy of the authenticated account.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	EmailVerified     bool      `json:"emailVerified"`
	StorageQuotaBytes int64     `json:"storageQuotaBytes"`
	StorageUsedBytes  int64     `json:"storageUsedBytes"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// StorageUsedPercentage returns used storage as a rounded percentage of the quota.
func (u User) StorageUsedPercentage() int {
	if u.StorageQuotaBytes <= 0 {
		return 0
	}
	return int((u.StorageUsedBytes*100 + u.StorageQuotaBytes/2) / u.StorageQuotaBytes)
}

// RemainingStorageBytes never goes below zero.
func (u User) RemainingStorageBytes() int64 {
	if rest := u.StorageQuotaBytes - u.StorageUsedBytes; rest > 0 {
		return rest
	}
	return 0
}

// CanUploadFile reports whether a file of the given size fits the remaining quota.
func (u User) CanUploadFile(size int64) bool {
	return u.RemainingStorageBytes() >= size
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Tokens extracts the credential pair from the response.
func (r AuthResponse) Tokens() Tokens {
	return Tokens{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

// Credentials is the login/registration payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailVerification is the verify-email payload.
type EmailVerification struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Theme is the persisted UI preference. It survives logout.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}
