package adminauth

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/ratelimit"
	"portal/internal/repositories"
	"portal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type captureSender struct {
	to    []string
	codes []string
	err   error
}

func (c *captureSender) SendLoginCode(ctx context.Context, to, code string, ttl time.Duration) error {
	c.to = append(c.to, to)
	c.codes = append(c.codes, code)
	return c.err
}

func (c *captureSender) last() string {
	if len(c.codes) == 0 {
		return ""
	}
	return c.codes[len(c.codes)-1]
}

type fixture struct {
	svc    *Service
	sender *captureSender
	db     *gorm.DB
	repo   repositories.AdminUserRepository
}

func setup(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	repo := repositories.NewAdminUserRepository(db)
	sender := &captureSender{}
	svc := NewService(repo, repositories.NewTxManager(db), ratelimit.New(rdb, 5, 10*time.Minute), sender, Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		CodeTTL:       10 * time.Minute,
		MaxAttempts:   5,
		HashCost:      bcrypt.MinCost,
	}, nil)
	return &fixture{svc: svc, sender: sender, db: db, repo: repo}
}

func TestRequestAndVerifyCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOps)

	require.NoError(t, f.svc.RequestCode(ctx, " OPS@portal.test", "10.0.0.1"))
	require.Len(t, f.sender.codes, 1)
	assert.Equal(t, "ops@portal.test", f.sender.to[0])
	assert.Len(t, f.sender.last(), 6)

	var stored models.AdminLoginCode
	require.NoError(t, f.db.Where("admin_user_id = ?", admin.ID).First(&stored).Error)
	assert.NotEqual(t, f.sender.last(), stored.CodeHash, "only the hash is stored")
	assert.Equal(t, "10.0.0.1", stored.RequestedIP)

	pair, err := f.svc.VerifyCode(ctx, "ops@portal.test", f.sender.last())
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	require.NotNil(t, pair.Admin.LastLoginAt)

	// single use
	_, err = f.svc.VerifyCode(ctx, "ops@portal.test", f.sender.last())
	assert.ErrorIs(t, err, apperrors.ErrInvalidCode)

	claims, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.AdminID)
	assert.True(t, claims.HasPermission(models.PermissionOrdersWrite))
	assert.False(t, claims.HasPermission(models.PermissionTeamWrite))
}

func TestRequestCodeUnknownOrDisabled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	disabled := testutil.SeedAdmin(t, f.db, "gone@portal.test", models.AdminRoleAdmin)
	require.NoError(t, f.db.Model(disabled).Update("status", models.AdminStatusDisabled).Error)

	assert.NoError(t, f.svc.RequestCode(ctx, "nobody@portal.test", "10.0.0.1"))
	assert.NoError(t, f.svc.RequestCode(ctx, "gone@portal.test", "10.0.0.1"))
	assert.Empty(t, f.sender.codes)
}

func TestRequestCodeSendFailureIsQuiet(t *testing.T) {
	f := setup(t)
	f.sender.err = errors.New("mail down")
	testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOps)

	assert.NoError(t, f.svc.RequestCode(context.Background(), "ops@portal.test", ""))
}

func TestNewCodeInvalidatesOld(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOps)

	require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", "10.0.0.1"))
	first := f.sender.last()
	require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", "10.0.0.1"))
	second := f.sender.last()

	if first != second {
		_, err := f.svc.VerifyCode(ctx, "ops@portal.test", first)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCode)
	}
	_, err := f.svc.VerifyCode(ctx, "ops@portal.test", second)
	assert.NoError(t, err)
}

func TestRequestCodeRateLimited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOps)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", "10.0.0.1"))
	}
	assert.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", "10.0.0.2"), "throttled requests look like any other")
	assert.Len(t, f.sender.codes, 5)
}

func TestVerifyCodeBurnsAfterMaxAttempts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOps)
	require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", ""))
	good := f.sender.last()
	bad := "000000"
	if good == bad {
		bad = "111111"
	}

	for i := 0; i < 5; i++ {
		_, err := f.svc.VerifyCode(ctx, "ops@portal.test", bad)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCode)
	}
	_, err := f.svc.VerifyCode(ctx, "ops@portal.test", good)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCode)
}

// staleCodes hands out the login code as it was before any attempts landed,
// the view a concurrent request gets before the other increments commit.
type staleCodes struct {
	repositories.AdminUserRepository
}

func (s staleCodes) LatestLoginCode(ctx context.Context, adminID uint) (*models.AdminLoginCode, error) {
	lc, err := s.AdminUserRepository.LatestLoginCode(ctx, adminID)
	if err != nil {
		return nil, err
	}
	lc.Attempts = 0
	return lc, nil
}

func TestVerifyCodeCapHoldsWithStaleReads(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOps)
	require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", ""))
	good := f.sender.last()
	bad := "000000"
	if good == bad {
		bad = "111111"
	}
	f.svc.admins = staleCodes{f.repo}

	for i := 0; i < 8; i++ {
		_, err := f.svc.VerifyCode(ctx, "ops@portal.test", bad)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCode)
	}
	var stored models.AdminLoginCode
	require.NoError(t, f.db.Order("id DESC").First(&stored).Error)
	assert.Equal(t, 5, stored.Attempts)

	_, err := f.svc.VerifyCode(ctx, "ops@portal.test", good)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCode, "the right code is refused once the cap is spent")
}

func TestVerifyCodeExpired(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOps)
	require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", ""))

	f.svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, err := f.svc.VerifyCode(ctx, "ops@portal.test", f.sender.last())
	assert.ErrorIs(t, err, apperrors.ErrInvalidCode)
}

func TestInvitedAdminActivatedOnFirstLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	invited := &models.AdminUser{Email: "new@portal.test", Name: "New", Role: models.AdminRoleSupport, Status: models.AdminStatusInvited}
	require.NoError(t, f.repo.Create(ctx, invited))

	require.NoError(t, f.svc.RequestCode(ctx, "new@portal.test", ""))
	_, err := f.svc.VerifyCode(ctx, "new@portal.test", f.sender.last())
	require.NoError(t, err)

	got, err := f.repo.GetByID(ctx, invited.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdminStatusActive, got.Status)
}

func TestRefreshAndLogout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOwner)
	require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", ""))
	pair, err := f.svc.VerifyCode(ctx, "ops@portal.test", f.sender.last())
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken, "access token is not a refresh token")

	next, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)

	require.NoError(t, f.svc.Logout(ctx, admin.ID))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
	_, err = f.svc.Authenticate(ctx, next.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestAuthenticateRejectsDisabledAdmin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	admin := testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleAdmin)
	require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", ""))
	pair, err := f.svc.VerifyCode(ctx, "ops@portal.test", f.sender.last())
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.AdminUser{}).Where("id = ?", admin.ID).Update("status", models.AdminStatusDisabled).Error)
	_, err = f.svc.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestPurgeExpiredCodes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedAdmin(t, f.db, "ops@portal.test", models.AdminRoleOps)
	require.NoError(t, f.svc.RequestCode(ctx, "ops@portal.test", ""))

	n, err := f.svc.PurgeExpiredCodes(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = f.svc.PurgeExpiredCodes(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
