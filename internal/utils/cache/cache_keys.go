package cache

import (
	"fmt"
	"strings"
)

type EntityType string

const (
	EntityCatalog     EntityType = "catalog"
	EntityIdempotency EntityType = "idempotency"
	EntityRateLimit   EntityType = "ratelimit"
)

type KeyType string

const (
	KeyMerchant KeyType = "merchant"
	KeyEmail    KeyType = "email"
	KeyIP       KeyType = "ip"
)

// GenerateKey creates a standardized cache key
func GenerateKey(entity EntityType, keyType KeyType, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entity, keyType, value)
}

// CatalogKey caches the priced catalog of one merchant.
func CatalogKey(merchantID uint) string {
	return GenerateKey(EntityCatalog, KeyMerchant, merchantID)
}

// CatalogPattern matches every merchant catalog.
func CatalogPattern() string {
	return string(EntityCatalog) + ":" + string(KeyMerchant) + ":*"
}

// IdempotencyKey scopes a client Idempotency-Key to its merchant.
func IdempotencyKey(merchantID uint, key string) string {
	return GenerateKey(EntityIdempotency, KeyMerchant, fmt.Sprintf("%d:%s", merchantID, key))
}

// RateLimitKey names a sliding window bucket such as
// "ratelimit:email:admin-code:ops@portal.test".
func RateLimitKey(keyType KeyType, scope, value string) string {
	return GenerateKey(EntityRateLimit, keyType, scope+":"+strings.ToLower(value))
}
