// Package adminauth signs operations staff in with emailed one-time codes
// and issues the portal's own admin JWTs.
package adminauth

import (
	"context"
	"errors"
	"time"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/utils"
	cachekeys "portal/internal/utils/cache"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeDigits     = 6
	rateLimitScope = "admin-code"
)

// CodeSender delivers a login code by email.
type CodeSender interface {
	SendLoginCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// Limiter is satisfied by *ratelimit.Limiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	CodeTTL       time.Duration
	MaxAttempts   int
	HashCost      int
}

// TokenPair is returned on successful sign-in and refresh.
type TokenPair struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresIn    int64             `json:"expires_in"`
	Admin        *models.AdminUser `json:"admin"`
}

type Service struct {
	admins  repositories.AdminUserRepository
	tx      repositories.TxManager
	limiter Limiter
	sender  CodeSender
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(admins repositories.AdminUserRepository, tx repositories.TxManager, limiter Limiter, sender CodeSender, cfg Config, logger *zap.Logger) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		admins:  admins,
		tx:      tx,
		limiter: limiter,
		sender:  sender,
		cfg:     cfg,
		logger:  logger.Named("adminauth"),
		now:     time.Now,
	}
}

var errThrottled = errors.New("login code requests throttled")

// RequestCode emails a fresh code to a known admin. Unknown, disabled and
// throttled requests get the same nil result.
func (s *Service) RequestCode(ctx context.Context, email, ip string) error {
	email = models.NormalizeEmail(email)
	if err := s.throttle(ctx, email, ip); err != nil {
		s.logger.Warn("login code request throttled", zap.String("ip", ip))
		return nil
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrAdminNotFound) {
			s.logger.Info("login code requested for unknown admin", zap.String("ip", ip))
			return nil
		}
		return err
	}
	if !admin.CanSignIn() {
		s.logger.Info("login code requested for disabled admin", zap.Uint("admin_id", admin.ID))
		return nil
	}

	code, err := utils.GenerateNumericCode(codeDigits)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.admins.InvalidateLoginCodes(ctx, admin.ID, now); err != nil {
			return err
		}
		return s.admins.CreateLoginCode(ctx, &models.AdminLoginCode{
			AdminUserID: admin.ID,
			CodeHash:    string(hash),
			ExpiresAt:   now.Add(s.cfg.CodeTTL),
			RequestedIP: ip,
		})
	})
	if err != nil {
		return err
	}

	if err := s.sender.SendLoginCode(ctx, admin.Email, code, s.cfg.CodeTTL); err != nil {
		s.logger.Error("send login code", zap.Uint("admin_id", admin.ID), zap.Error(err))
	}
	return nil
}

func (s *Service) throttle(ctx context.Context, email, ip string) error {
	if s.limiter == nil {
		return nil
	}
	keys := []string{cachekeys.RateLimitKey(cachekeys.KeyEmail, rateLimitScope, email)}
	if ip != "" {
		keys = append(keys, cachekeys.RateLimitKey(cachekeys.KeyIP, rateLimitScope, ip))
	}
	for _, key := range keys {
		allowed, err := s.limiter.Allow(ctx, key)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", zap.Error(err))
		}
		if !allowed {
			return errThrottled
		}
	}
	return nil
}

// VerifyCode checks the newest outstanding code and signs the admin in.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*TokenPair, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrAdminNotFound) {
			return nil, apperrors.ErrInvalidCode
		}
		return nil, err
	}
	if !admin.CanSignIn() {
		return nil, apperrors.ErrInvalidCode
	}

	lc, err := s.admins.LatestLoginCode(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !lc.Usable(now, s.cfg.MaxAttempts) {
		return nil, apperrors.ErrInvalidCode
	}

	// The attempt is claimed before the hash comparison.
	claimed, err := s.admins.ClaimCodeAttempt(ctx, lc.ID, s.cfg.MaxAttempts)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.logger.Warn("login code exhausted", zap.Uint("admin_id", admin.ID))
		return nil, apperrors.ErrInvalidCode
	}

	if bcrypt.CompareHashAndPassword([]byte(lc.CodeHash), []byte(code)) != nil {
		return nil, apperrors.ErrInvalidCode
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := s.admins.ConsumeLoginCode(ctx, lc.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrInvalidCode
		}
		if admin.Status == models.AdminStatusInvited {
			admin.Status = models.AdminStatusActive
		}
		admin.LastLoginAt = &now
		return s.admins.Update(ctx, admin)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin signed in", zap.Uint("admin_id", admin.ID))
	return s.issue(admin, now)
}

// Refresh trades a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := utils.ParseAdminToken(refreshToken, s.cfg.RefreshSecret, models.TokenTypeRefresh)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	admin, err := s.current(ctx, claims)
	if err != nil {
		return nil, err
	}
	return s.issue(admin, s.now())
}

// Logout revokes every token issued to the admin so far.
func (s *Service) Logout(ctx context.Context, adminID uint) error {
	return s.admins.IncrementTokenVersion(ctx, adminID)
}

// Authenticate validates an access token against the admin's current state.
// Role and permissions come from the database, not the token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.AdminClaims, error) {
	claims, err := utils.ParseAdminToken(accessToken, s.cfg.AccessSecret, models.TokenTypeAccess)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	admin, err := s.current(ctx, claims)
	if err != nil {
		return nil, err
	}
	claims.Role = admin.Role
	claims.Email = admin.Email
	claims.Permissions = models.GetDefaultPermissions(admin.Role)
	return claims, nil
}

// PurgeExpiredCodes deletes codes that expired before the cutoff.
func (s *Service) PurgeExpiredCodes(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.admins.DeleteExpiredCodes(ctx, s.now().Add(-olderThan))
}

func (s *Service) current(ctx context.Context, claims *models.AdminClaims) (*models.AdminUser, error) {
	admin, err := s.admins.GetByID(ctx, claims.AdminID)
	if err != nil {
		if errors.Is(err, apperrors.ErrAdminNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}
	if admin.Status != models.AdminStatusActive || admin.TokenVersion != claims.TokenVersion {
		return nil, apperrors.ErrSessionExpired
	}
	return admin, nil
}

func (s *Service) issue(admin *models.AdminUser, now time.Time) (*TokenPair, error) {
	access, refresh, err := utils.GenerateAdminTokens(&models.AdminClaims{
		AdminID:      admin.ID,
		Email:        admin.Email,
		Role:         admin.Role,
		Permissions:  models.GetDefaultPermissions(admin.Role),
		TokenVersion: admin.TokenVersion,
	}, s.cfg.AccessSecret, s.cfg.RefreshSecret, now)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(utils.AccessTokenTTL.Seconds()),
		Admin:        admin,
	}, nil
}
