// Package trust manages long-lived trusted-device tokens. A browser that
// completed a TOTP challenge may be issued a 32-byte random token; only the
// token's SHA-256 hash is stored server-side, keyed with a fixed TTL, so
// entries expire on their own and are never explicitly revoked.
package trust

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	CookieName  = "trusted_device"
	redisPrefix = "trusted:"

	// TTL is how long a device stays trusted after a completed challenge.
	TTL = 90 * 24 * time.Hour
)

// HashToken returns the hex SHA-256 of the raw token value. The raw value
// lives only in the browser cookie.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewToken generates a 32-byte random token as hex.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Store holds value-less trusted-device records keyed by token hash.
type Store interface {
	Put(ctx context.Context, hash string) error
	Exists(ctx context.Context, hash string) (bool, error)
}

// RedisStore backs Store with a Redis key per device, relying on Redis TTL
// eviction for expiry.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{Client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *RedisStore) Put(ctx context.Context, hash string) error {
	return s.Client.Set(ctx, redisPrefix+hash, "1", TTL).Err()
}

func (s *RedisStore) Exists(ctx context.Context, hash string) (bool, error) {
	n, err := s.Client.Exists(ctx, redisPrefix+hash).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
