package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminTokens(t *testing.T) {
	now := time.Now()
	access, refresh, err := GenerateAdminTokens(&models.AdminClaims{
		AdminID:      3,
		Email:        "ops@portal.test",
		Role:         models.AdminRoleOps,
		Permissions:  []string{models.PermissionOrdersRead},
		TokenVersion: 2,
	}, "access-secret", "refresh-secret", now)
	require.NoError(t, err)

	claims, err := ParseAdminToken(access, "access-secret", models.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.AdminID)
	assert.Equal(t, 2, claims.TokenVersion)
	assert.True(t, claims.HasPermission(models.PermissionOrdersRead))

	_, err = ParseAdminToken(access, "access-secret", models.TokenTypeRefresh)
	assert.Error(t, err)
	_, err = ParseAdminToken(refresh, "access-secret", models.TokenTypeRefresh)
	assert.Error(t, err)

	rc, err := ParseAdminToken(refresh, "refresh-secret", models.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Empty(t, rc.Permissions)

	_, _, err = GenerateAdminTokens(&models.AdminClaims{}, "", "x", now)
	assert.Error(t, err)
}

func signSession(t *testing.T, secret string, aud string, exp time.Time) string {
	t.Helper()
	return signSessionWith(t, jwt.SigningMethodHS256, secret, aud, exp)
}

func signSessionWith(t *testing.T, method jwt.SigningMethod, secret string, aud string, exp time.Time) string {
	t.Helper()
	claims := models.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{aud},
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: "m@shop.test",
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestParseSessionToken(t *testing.T) {
	good := signSession(t, "sb-secret", "authenticated", time.Now().Add(time.Hour))
	claims, err := ParseSessionToken(good, "sb-secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "m@shop.test", claims.Email)

	_, err = ParseSessionToken(signSession(t, "sb-secret", "anon", time.Now().Add(time.Hour)), "sb-secret")
	assert.Error(t, err)
	_, err = ParseSessionToken(signSession(t, "sb-secret", "authenticated", time.Now().Add(-time.Minute)), "sb-secret")
	assert.Error(t, err)
	_, err = ParseSessionToken(good, "other")
	assert.Error(t, err)

	// HMAC family but not HS256
	hs384 := signSessionWith(t, jwt.SigningMethodHS384, "sb-secret", "authenticated", time.Now().Add(time.Hour))
	_, err = ParseSessionToken(hs384, "sb-secret")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericCode(6)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.NoError(t, validation.Var(code, "numeric"))
	}
}

func TestOrderNumber(t *testing.T) {
	n, err := GenerateOrderNumber()
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-[0-9A-F]{8}$`, n)
}

func TestHMAC(t *testing.T) {
	body := []byte(`{"type":"invoice.paid"}`)
	sig := SignHMACSHA256("whsec", body)
	assert.True(t, VerifyHMACSHA256("whsec", body, sig))
	assert.True(t, VerifyHMACSHA256("whsec", body, "sha256="+sig))
	assert.False(t, VerifyHMACSHA256("whsec", []byte("tampered"), sig))
	assert.False(t, VerifyHMACSHA256("", body, sig))
	assert.False(t, VerifyHMACSHA256("whsec", body, "not-hex"))
}

func TestFail(t *testing.T) {
	app := fiber.New()
	app.Get("/domain", func(c *fiber.Ctx) error { return Fail(c, apperrors.ErrInsufficientStock) })
	app.Get("/wrapped", func(c *fiber.Ctx) error {
		return Fail(c, errors.Join(errors.New("ctx"), apperrors.ErrOrderNotFound))
	})
	app.Get("/validation", func(c *fiber.Ctx) error {
		return Fail(c, &validation.ValidationError{Fields: []validation.FieldError{{Field: "sku", Message: "is required"}}})
	})
	app.Get("/upstream", func(c *fiber.Ctx) error {
		return Fail(c, &clients.APIError{Service: "mercury", Status: 500, Body: "oops"})
	})
	app.Get("/boom", func(c *fiber.Ctx) error { return Fail(c, errors.New("db down")) })

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/domain", 409, "INSUFFICIENT_STOCK"},
		{"/wrapped", 404, "ORDER_NOT_FOUND"},
		{"/validation", 400, "INVALID_REQUEST"},
		{"/upstream", 502, "UPSTREAM_UNAVAILABLE"},
		{"/boom", 500, ""},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.path)

		body, _ := io.ReadAll(resp.Body)
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &out))
		if tc.code != "" {
			assert.Equal(t, tc.code, out["code"], tc.path)
		} else {
			assert.Equal(t, "internal server error", out["error"])
		}
	}
}
