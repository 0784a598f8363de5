package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "catalog:merchant:7", CatalogKey(7))
	assert.Equal(t, "catalog:merchant:*", CatalogPattern())
	assert.Equal(t, "idempotency:merchant:7:abc", IdempotencyKey(7, "abc"))
	assert.Equal(t, "ratelimit:email:admin-code:ops@portal.test", RateLimitKey(KeyEmail, "admin-code", "OPS@portal.test"))
}
