package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventify/internal/helpers"
	"github.com/redis/go-redis/v9"
)

// compareAndDeleteScript deletes KEYS[1] only while it still holds ARGV[1].
const compareAndDeleteScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

func compareAndDelete(ctx context.Context, rdb redis.Cmdable, key, value string) (bool, error) {
	n, err := rdb.Eval(ctx, compareAndDeleteScript, []string{key}, value).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return n == 1, nil
}

// maxOTPAttempts bounds the guesses made against one pending code.
const maxOTPAttempts = 5

// OTPStore keeps password reset codes until they expire, are consumed once, or
// run out of attempts.
type OTPStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewOTPStore(rdb redis.Cmdable, ttl time.Duration) *OTPStore {
	return &OTPStore{rdb: rdb, ttl: ttl}
}

func otpKey(email string) string {
	return "otp:reset:" + strings.ToLower(strings.TrimSpace(email))
}

func otpAttemptsKey(email string) string {
	return "otp:attempts:" + strings.ToLower(strings.TrimSpace(email))
}

func otpDigest(email, code string) string {
	return helpers.Hmac256([]byte(code), []byte(strings.ToLower(strings.TrimSpace(email))))
}

func (s *OTPStore) TTL() time.Duration {
	return s.ttl
}

// Save replaces any pending code for email.
func (s *OTPStore) Save(ctx context.Context, email, code string) error {
	if err := s.rdb.Set(ctx, otpKey(email), otpDigest(email, code), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	if err := s.rdb.Del(ctx, otpAttemptsKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to reset otp attempts: %w", err)
	}
	return nil
}

// Consume reports whether code matches the pending one and deletes it on success.
// Every call takes an attempt first; the code is dropped once maxOTPAttempts
// have been used.
func (s *OTPStore) Consume(ctx context.Context, email, code string) (bool, error) {
	attempts := otpAttemptsKey(email)
	n, err := s.rdb.Incr(ctx, attempts).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count otp attempt: %w", err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, attempts, s.ttl).Err(); err != nil {
			return false, fmt.Errorf("failed to expire otp attempts: %w", err)
		}
	}
	if n > maxOTPAttempts {
		return false, s.invalidate(ctx, email)
	}

	ok, err := compareAndDelete(ctx, s.rdb, otpKey(email), otpDigest(email, code))
	if err != nil {
		return false, fmt.Errorf("failed to verify otp: %w", err)
	}
	if ok {
		if err := s.rdb.Del(ctx, attempts).Err(); err != nil {
			return false, fmt.Errorf("failed to reset otp attempts: %w", err)
		}
		return true, nil
	}
	if n == maxOTPAttempts {
		return false, s.invalidate(ctx, email)
	}
	return false, nil
}

func (s *OTPStore) invalidate(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, otpKey(email), otpAttemptsKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate otp: %w", err)
	}
	return nil
}

// Locker is a best-effort distributed mutex used to collapse concurrent work.
type Locker struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewLocker(rdb redis.Cmdable, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl}
}

func lockKey(name string) string {
	return "lock:" + name
}

// Acquire returns a release token when the lock was taken.
func (l *Locker) Acquire(ctx context.Context, name string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, lockKey(name), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, name, token string) error {
	if _, err := compareAndDelete(ctx, l.rdb, lockKey(name), token); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}
