package client

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/docdash/internal/client/models"
)

// Login and Register are public: a 401 from them means bad credentials,
// not an expired session.
func (c *HTTPClient) Login(ctx context.Context, creds models.Credentials) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/auth/login", body: jsonBody(creds), public: true, out: &out})
	return out, err
}

func (c *HTTPClient) Register(ctx context.Context, creds models.Credentials) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/auth/register", body: jsonBody(creds), public: true, out: &out})
	return out, err
}

func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/v1/auth/logout",
		body:   jsonBody(map[string]string{"refreshToken": refreshToken}),
	})
}

func (c *HTTPClient) LogoutAll(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/api/v1/auth/logout-all"})
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, req models.EmailVerification) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/api/v1/auth/verify-email", body: jsonBody(req), out: &out}); err != nil {
		return nil, err
	}
	if !out.Tokens().Complete() {
		return nil, nil
	}
	return &out, nil
}

func (c *HTTPClient) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/v1/auth/resend-verification",
		body:   jsonBody(map[string]string{"email": email}),
		public: true,
	})
}

func (c *HTTPClient) Profile(ctx context.Context) (models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/v1/auth/profile", out: &out})
	return out.User, err
}
