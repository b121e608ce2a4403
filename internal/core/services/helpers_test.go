// internal/core/services/helpers_test.go
package services_test

import (
	"time"

	redis_a "github.com/ammerola/storefront-be/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-be/test/helpers"
)

func newTestCache(r *helpers.TestRedis) *redis_a.Cache {
	return redis_a.NewCache(r.Client, time.Minute, helpers.TestLogger())
}
