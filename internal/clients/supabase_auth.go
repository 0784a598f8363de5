package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// SupabaseUser is the subset of a GoTrue user the portal reads.
type SupabaseUser struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	EmailConfirmedAt string                 `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
}

// SupabaseSession is a GoTrue token response.
type SupabaseSession struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         SupabaseUser `json:"user"`
}

// SupabaseAuth calls the GoTrue REST API of a Supabase project.
type SupabaseAuth struct {
	rest    restClient
	anonKey string
}

func NewSupabaseAuth(projectURL, anonKey string, httpClient *http.Client, logger *zap.Logger) *SupabaseAuth {
	c := &SupabaseAuth{
		rest:    newRestClient("supabase-auth", projectURL+"/auth/v1", httpClient, logger),
		anonKey: anonKey,
	}
	c.rest.authorize = func(r *http.Request) {
		r.Header.Set("apikey", anonKey)
		if r.Header.Get("Authorization") == "" {
			r.Header.Set("Authorization", "Bearer "+anonKey)
		}
	}
	return c
}

// SignUp registers a user. With email confirmation on, GoTrue answers with
// the bare user; otherwise with a session wrapping it.
func (c *SupabaseAuth) SignUp(ctx context.Context, email, password, redirectTo string) (*SupabaseUser, error) {
	var raw json.RawMessage
	path := "/signup?redirect_to=" + url.QueryEscape(redirectTo)
	if err := c.rest.doJSON(ctx, http.MethodPost, path, map[string]string{
		"email":    email,
		"password": password,
	}, &raw); err != nil {
		return nil, err
	}

	var session SupabaseSession
	if err := json.Unmarshal(raw, &session); err == nil && session.User.ID != "" {
		return &session.User, nil
	}
	var user SupabaseUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *SupabaseAuth) SignInWithPassword(ctx context.Context, email, password string) (*SupabaseSession, error) {
	return c.token(ctx, "password", map[string]string{"email": email, "password": password})
}

func (c *SupabaseAuth) RefreshSession(ctx context.Context, refreshToken string) (*SupabaseSession, error) {
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

// ExchangeCode completes a PKCE flow started by the frontend.
func (c *SupabaseAuth) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*SupabaseSession, error) {
	return c.token(ctx, "pkce", map[string]string{"auth_code": authCode, "code_verifier": codeVerifier})
}

func (c *SupabaseAuth) token(ctx context.Context, grant string, body map[string]string) (*SupabaseSession, error) {
	var session SupabaseSession
	if err := c.rest.doJSON(ctx, http.MethodPost, "/token?grant_type="+grant, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// VerifyOTP redeems an email link token hash (signup, recovery, magiclink,
// email_change).
func (c *SupabaseAuth) VerifyOTP(ctx context.Context, otpType, tokenHash string) (*SupabaseSession, error) {
	var session SupabaseSession
	if err := c.rest.doJSON(ctx, http.MethodPost, "/verify", map[string]string{
		"type":       otpType,
		"token_hash": tokenHash,
	}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *SupabaseAuth) Recover(ctx context.Context, email, redirectTo string) error {
	path := "/recover?redirect_to=" + url.QueryEscape(redirectTo)
	return c.rest.doJSON(ctx, http.MethodPost, path, map[string]string{"email": email}, nil)
}

func (c *SupabaseAuth) UpdatePassword(ctx context.Context, accessToken, password string) error {
	return c.rest.doJSON(ctx, http.MethodPut, "/user", map[string]string{"password": password}, nil, withBearer(accessToken))
}

func (c *SupabaseAuth) Logout(ctx context.Context, accessToken string) error {
	return c.rest.doJSON(ctx, http.MethodPost, "/logout", nil, nil, withBearer(accessToken))
}
