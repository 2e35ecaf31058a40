package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cooldown throttles code issuance per email.
type Cooldown interface {
	// Acquire reports false while a code was issued to email within the window.
	Acquire(ctx context.Context, email string) (bool, error)
	// Release lifts the window after an issuance that did not complete.
	Release(ctx context.Context, email string) error
}

// TokenStore keeps hashes of outstanding refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, tokenHash string, userID uuid.UUID, ttl time.Duration) error
	// Take removes the hash and returns its owner; a second Take fails.
	Take(ctx context.Context, tokenHash string) (uuid.UUID, error)
	Delete(ctx context.Context, tokenHash string) error
}

const (
	keyPrefixCooldown = "verify:cooldown:"
	keyPrefixRefresh  = "refresh:"
)

type redisCooldown struct {
	client *redis.Client
	window time.Duration
}

// NewRedisCooldown shares the cooldown across instances with SET NX EX.
func NewRedisCooldown(client *redis.Client) Cooldown {
	return &redisCooldown{client: client, window: verificationCooldown}
}

func (c *redisCooldown) Acquire(ctx context.Context, email string) (bool, error) {
	return c.client.SetNX(ctx, keyPrefixCooldown+email, 1, c.window).Result()
}

func (c *redisCooldown) Release(ctx context.Context, email string) error {
	return c.client.Del(ctx, keyPrefixCooldown+email).Err()
}

type dbCooldown struct {
	codes  CodeRepository
	window time.Duration
	now    func() time.Time
}

// NewDBCooldown checks the newest stored code when Redis is not configured.
func NewDBCooldown(codes CodeRepository) Cooldown {
	return &dbCooldown{codes: codes, window: verificationCooldown, now: time.Now}
}

func (c *dbCooldown) Acquire(ctx context.Context, email string) (bool, error) {
	latest, err := c.codes.LatestCreatedAt(ctx, email)
	if err != nil {
		return false, err
	}
	return latest == nil || c.now().Sub(*latest) >= c.window, nil
}

// Release is a no-op: the window follows the stored codes, and an
// undelivered code is deleted by the caller.
func (c *dbCooldown) Release(context.Context, string) error {
	return nil
}

type redisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore stores refresh token hashes under refresh:<hash>.
func NewRedisTokenStore(client *redis.Client) TokenStore {
	return &redisTokenStore{client: client}
}

func (s *redisTokenStore) Save(ctx context.Context, tokenHash string, userID uuid.UUID, ttl time.Duration) error {
	return s.client.Set(ctx, keyPrefixRefresh+tokenHash, userID.String(), ttl).Err()
}

func (s *redisTokenStore) Take(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	val, err := s.client.GetDel(ctx, keyPrefixRefresh+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(val)
}

func (s *redisTokenStore) Delete(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, keyPrefixRefresh+tokenHash).Err()
}

// noTokenStore is used without Redis: tokens are issued but cannot be refreshed.
type noTokenStore struct{}

func (noTokenStore) Save(context.Context, string, uuid.UUID, time.Duration) error { return nil }
func (noTokenStore) Take(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, ErrInvalidRefreshToken
}
func (noTokenStore) Delete(context.Context, string) error { return nil }
