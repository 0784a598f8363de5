package utils

import (
	"errors"
	"strconv"
	"time"

	"portal/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	adminIssuer      = "portal-admin"
	supabaseAudience = "authenticated"
)

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// GenerateAdminTokens signs an access and a refresh token for the admin in
// claims. Refresh tokens carry no permissions and use their own secret.
func GenerateAdminTokens(claims *models.AdminClaims, accessSecret, refreshSecret string, now time.Time) (accessToken string, refreshToken string, err error) {
	if accessSecret == "" || refreshSecret == "" {
		return "", "", errors.New("admin token secrets not configured")
	}

	subject := strconv.FormatUint(uint64(claims.AdminID), 10)
	accessClaims := models.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    adminIssuer,
			Subject:   subject,
		},
		AdminID:      claims.AdminID,
		Email:        claims.Email,
		Role:         claims.Role,
		Permissions:  claims.Permissions,
		TokenVersion: claims.TokenVersion,
		TokenType:    models.TokenTypeAccess,
	}
	accessToken, err = jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(accessSecret))
	if err != nil {
		return "", "", err
	}

	refreshClaims := models.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    adminIssuer,
			Subject:   subject,
		},
		AdminID:      claims.AdminID,
		Email:        claims.Email,
		Role:         claims.Role,
		TokenVersion: claims.TokenVersion,
		TokenType:    models.TokenTypeRefresh,
	}
	refreshToken, err = jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(refreshSecret))
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// ParseAdminToken validates an admin token of the wanted type.
func ParseAdminToken(tokenStr, secret, tokenType string) (*models.AdminClaims, error) {
	claims := &models.AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, hmacKey(secret),
		jwt.WithIssuer(adminIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.TokenType != tokenType {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ParseSessionToken validates a Supabase Auth access token.
func ParseSessionToken(tokenStr, secret string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, hmacKey(secret),
		jwt.WithAudience(supabaseAudience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func hmacKey(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedSigningMethod
		}
		return []byte(secret), nil
	}
}
