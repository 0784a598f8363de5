package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// GenerateNumericCode returns a uniformly random code of n decimal digits.
func GenerateNumericCode(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// GenerateUniqueID creates a secure random hex string of 2*length characters.
func GenerateUniqueID(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateOrderNumber returns an order number such as ORD-3FA94C1B.
func GenerateOrderNumber() (string, error) {
	id, err := GenerateUniqueID(4)
	if err != nil {
		return "", err
	}
	return "ORD-" + strings.ToUpper(id), nil
}

// SignHMACSHA256 returns the hex HMAC-SHA256 of body.
func SignHMACSHA256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 compares signature against the HMAC of body in constant
// time. An optional "sha256=" prefix is accepted.
func VerifyHMACSHA256(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(SignHMACSHA256(secret, body))
	return hmac.Equal(got, want)
}
