// Package otp keeps short-lived one-time passcodes in Redis.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyPrefix   = "otp:"
	codeDigits  = 6
	MaxAttempts = 5
)

var (
	ErrExpired         = errors.New("otp expired or unknown")
	ErrInvalidCode     = errors.New("otp code mismatch")
	ErrTooManyAttempts = errors.New("otp attempts exhausted")
)

type kv interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Store struct {
	kv  kv
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{kv: rdb, ttl: ttl}
}

// Issue creates a code for subject and returns the request id it is stored
// under together with the plain code. Only a bcrypt hash of the code is kept.
func (s *Store) Issue(ctx context.Context, subject string) (requestID string, code string, err error) {
	code, err = newCode()
	if err != nil {
		return "", "", errors.Wrap(err, "error generating OTP code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", "", errors.Wrap(err, "error hashing OTP code")
	}

	requestID = uuid.NewString()
	key := keyPrefix + requestID
	if err = s.kv.HSet(ctx, key, "subject", subject, "hash", string(hash), "attempts", 0).Err(); err != nil {
		return "", "", errors.Wrapf(err, "error storing OTP, request ID: %s", requestID)
	}
	if err = s.kv.Expire(ctx, key, s.ttl).Err(); err != nil {
		_ = s.kv.Del(ctx, key).Err()
		return "", "", errors.Wrapf(err, "error setting OTP expiry, request ID: %s", requestID)
	}
	return requestID, code, nil
}

// Verify checks code against the request and consumes it on success. A code
// can be redeemed once, and a request is dropped after MaxAttempts misses.
func (s *Store) Verify(ctx context.Context, requestID string, code string) (subject string, err error) {
	key := keyPrefix + requestID
	vals, err := s.kv.HGetAll(ctx, key).Result()
	if err != nil {
		return "", errors.Wrapf(err, "error loading OTP, request ID: %s", requestID)
	}
	if len(vals) == 0 || vals["hash"] == "" {
		return "", ErrExpired
	}

	if attempts, _ := strconv.Atoi(vals["attempts"]); attempts >= MaxAttempts {
		_ = s.kv.Del(ctx, key).Err()
		return "", ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(vals["hash"]), []byte(code)) != nil {
		n, err := s.kv.HIncrBy(ctx, key, "attempts", 1).Result()
		if err != nil {
			return "", errors.Wrapf(err, "error counting OTP attempt, request ID: %s", requestID)
		}
		if n >= MaxAttempts {
			_ = s.kv.Del(ctx, key).Err()
			return "", ErrTooManyAttempts
		}
		return "", ErrInvalidCode
	}

	// Del doubles as the claim: only one concurrent verifier sees 1.
	n, err := s.kv.Del(ctx, key).Result()
	if err != nil {
		return "", errors.Wrapf(err, "error consuming OTP, request ID: %s", requestID)
	}
	if n == 0 {
		return "", ErrExpired
	}
	return vals["subject"], nil
}

func newCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
