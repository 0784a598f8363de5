// Package auth delegates merchant sign-up and sessions to Supabase Auth and
// decides where a signed-in user lands.
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/utils"
	"portal/internal/validation"

	"go.uber.org/zap"
)

// Landing pages.
const (
	PathResetPassword   = "/reset-password"
	PathAdmin           = "/admin"
	PathOnboarding      = "/onboarding"
	PathOnboardingState = "/onboarding/status"
	PathDashboard       = "/dashboard"
	PathAuthError       = "/auth/error"

	OTPTypeRecovery = "recovery"
)

// Provider is the subset of Supabase Auth the portal uses.
type Provider interface {
	SignUp(ctx context.Context, email, password, redirectTo string) (*clients.SupabaseUser, error)
	SignInWithPassword(ctx context.Context, email, password string) (*clients.SupabaseSession, error)
	RefreshSession(ctx context.Context, refreshToken string) (*clients.SupabaseSession, error)
	ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*clients.SupabaseSession, error)
	VerifyOTP(ctx context.Context, otpType, tokenHash string) (*clients.SupabaseSession, error)
	Recover(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error
	Logout(ctx context.Context, accessToken string) error
}

type Service interface {
	SignUp(ctx context.Context, email, password string) (*clients.SupabaseUser, error)
	Login(ctx context.Context, email, password string) (*clients.SupabaseSession, string, error)
	Refresh(ctx context.Context, refreshToken string) (*clients.SupabaseSession, error)
	Logout(ctx context.Context, accessToken string) error
	ForgotPassword(ctx context.Context, email string)
	ResetPassword(ctx context.Context, accessToken, password string) error

	// Confirm and Callback never fail: they return the absolute URL to
	// redirect to, which is the error page when something went wrong.
	Confirm(ctx context.Context, p ConfirmParams) (*clients.SupabaseSession, string)
	Callback(ctx context.Context, p CallbackParams) (*clients.SupabaseSession, string)

	ResolveRedirect(ctx context.Context, in RedirectInput) (string, error)
	VerifySession(token string) (*models.SessionClaims, error)
}

type ConfirmParams struct {
	TokenHash string
	Type      string
	Next      string
	Error     string
}

type CallbackParams struct {
	Code     string
	Verifier string
	Next     string
	Error    string
}

type RedirectInput struct {
	AuthUserID string
	Email      string
	Type       string
	Next       string
}

type service struct {
	provider  Provider
	admins    repositories.AdminUserRepository
	merchants repositories.MerchantRepository
	siteURL   string
	jwtSecret string
	logger    *zap.Logger
}

func NewService(provider Provider, admins repositories.AdminUserRepository, merchants repositories.MerchantRepository, siteURL, jwtSecret string, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		provider:  provider,
		admins:    admins,
		merchants: merchants,
		siteURL:   strings.TrimRight(siteURL, "/"),
		jwtSecret: jwtSecret,
		logger:    logger.Named("auth"),
	}
}

func (s *service) SignUp(ctx context.Context, email, password string) (*clients.SupabaseUser, error) {
	if !validation.StrongPassword(password) {
		return nil, apperrors.ErrWeakPassword
	}
	user, err := s.provider.SignUp(ctx, models.NormalizeEmail(email), password, s.siteURL+"/auth/confirm")
	if err != nil {
		switch clients.StatusOf(err) {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			s.logger.Info("signup rejected", zap.Error(err))
			return nil, apperrors.ErrInvalidRequest.WithMessage("unable to sign up with these details")
		case http.StatusTooManyRequests:
			return nil, apperrors.ErrRateLimited
		}
		return nil, err
	}
	return user, nil
}

// Login returns the session and the relative path the user should land on.
func (s *service) Login(ctx context.Context, email, password string) (*clients.SupabaseSession, string, error) {
	sess, err := s.provider.SignInWithPassword(ctx, models.NormalizeEmail(email), password)
	if err != nil {
		return nil, "", credentialError(err)
	}
	target, err := s.ResolveRedirect(ctx, RedirectInput{AuthUserID: sess.User.ID, Email: sess.User.Email})
	if err != nil {
		return nil, "", err
	}
	return sess, target, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*clients.SupabaseSession, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrSessionExpired
	}
	sess, err := s.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		if st := clients.StatusOf(err); st == http.StatusBadRequest || st == http.StatusUnauthorized {
			return nil, apperrors.ErrSessionExpired
		}
		return nil, err
	}
	return sess, nil
}

// Logout revokes the session upstream. An already invalid token counts as
// logged out.
func (s *service) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	err := s.provider.Logout(ctx, accessToken)
	if st := clients.StatusOf(err); st == http.StatusUnauthorized || st == http.StatusForbidden || st == http.StatusNotFound {
		return nil
	}
	return err
}

// ForgotPassword never reports failure so callers cannot probe for accounts.
func (s *service) ForgotPassword(ctx context.Context, email string) {
	redirect := s.siteURL + "/auth/confirm?next=" + url.QueryEscape(PathResetPassword)
	if err := s.provider.Recover(ctx, models.NormalizeEmail(email), redirect); err != nil {
		s.logger.Warn("password recovery", zap.Error(err))
	}
}

func (s *service) ResetPassword(ctx context.Context, accessToken, password string) error {
	if !validation.StrongPassword(password) {
		return apperrors.ErrWeakPassword
	}
	err := s.provider.UpdatePassword(ctx, accessToken, password)
	switch clients.StatusOf(err) {
	case 0:
		return err
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.ErrSessionExpired
	case http.StatusUnprocessableEntity:
		return apperrors.ErrWeakPassword
	}
	return err
}

func (s *service) Confirm(ctx context.Context, p ConfirmParams) (*clients.SupabaseSession, string) {
	if p.Error != "" {
		return nil, s.errorURL(p.Error)
	}
	if p.TokenHash == "" || p.Type == "" {
		return nil, s.errorURL("missing_params")
	}
	sess, err := s.provider.VerifyOTP(ctx, p.Type, p.TokenHash)
	if err != nil {
		s.logger.Info("verify otp failed", zap.String("type", p.Type), zap.Error(err))
		return nil, s.errorURL("verification_failed")
	}
	return sess, s.landing(ctx, sess, p.Type, p.Next)
}

func (s *service) Callback(ctx context.Context, p CallbackParams) (*clients.SupabaseSession, string) {
	if p.Error != "" {
		return nil, s.errorURL(p.Error)
	}
	if p.Code == "" || p.Verifier == "" {
		return nil, s.errorURL("missing_params")
	}
	sess, err := s.provider.ExchangeCode(ctx, p.Code, p.Verifier)
	if err != nil {
		s.logger.Info("code exchange failed", zap.Error(err))
		return nil, s.errorURL("exchange_failed")
	}
	return sess, s.landing(ctx, sess, "", p.Next)
}

func (s *service) landing(ctx context.Context, sess *clients.SupabaseSession, otpType, next string) string {
	target, err := s.ResolveRedirect(ctx, RedirectInput{
		AuthUserID: sess.User.ID,
		Email:      sess.User.Email,
		Type:       otpType,
		Next:       next,
	})
	if err != nil {
		s.logger.Error("resolve redirect", zap.Error(err))
		return s.errorURL("server_error")
	}
	return s.siteURL + target
}

// ResolveRedirect picks the relative landing path for a signed-in user.
func (s *service) ResolveRedirect(ctx context.Context, in RedirectInput) (string, error) {
	if in.Type == OTPTypeRecovery {
		return PathResetPassword, nil
	}
	if in.Email != "" {
		admin, err := s.admins.GetByEmail(ctx, in.Email)
		switch {
		case err == nil && admin.Status == models.AdminStatusActive:
			return PathAdmin, nil
		case err != nil && !errors.Is(err, apperrors.ErrAdminNotFound):
			return "", err
		}
	}

	m, err := s.merchants.GetByAuthUserID(ctx, in.AuthUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMerchantNotFound) {
			return PathOnboarding, nil
		}
		return "", err
	}
	if !m.OnboardingCompleted || m.KYBStatus.Editable() {
		return PathOnboarding, nil
	}
	if !m.IsApproved() {
		return PathOnboardingState, nil
	}
	if in.Next != "" && validation.IsSafeRelativePath(in.Next) {
		return in.Next, nil
	}
	return PathDashboard, nil
}

func (s *service) VerifySession(token string) (*models.SessionClaims, error) {
	claims, err := utils.ParseSessionToken(token, s.jwtSecret)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

var reasonPattern = regexp.MustCompile(`[^a-z0-9_]+`)

func (s *service) errorURL(reason string) string {
	reason = strings.Trim(reasonPattern.ReplaceAllString(strings.ToLower(reason), "_"), "_")
	if reason == "" || len(reason) > 64 {
		reason = "unknown"
	}
	return s.siteURL + PathAuthError + "?reason=" + url.QueryEscape(reason)
}

func credentialError(err error) error {
	switch clients.StatusOf(err) {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return apperrors.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	}
	return err
}
