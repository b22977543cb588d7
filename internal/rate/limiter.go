package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/multiauth/cache"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle bool
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

// Limiter counts failed password logins per identifier (and optionally per
// client IP) and locks the pair out once the budget is spent.
type Limiter struct {
	cache  cache.Cache
	config Config
}

// New creates a rate [Limiter] on top of c.
func New(c cache.Cache, cfg Config) *Limiter {
	return &Limiter{
		cache:  c,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when the identifier or IP has used up
// its failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, loginUserKey(identifier)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// RecordFailure counts a failed login. It returns ErrRateLimited once the
// failure that exhausts the budget has been recorded.
func (l *Limiter) RecordFailure(ctx context.Context, identifier, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	count, err := l.incr(ctx, loginUserKey(identifier))
	if err != nil {
		return err
	}
	limited := count >= int64(l.config.MaxLoginAttempts)

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incr(ctx, loginIPKey(ip))
		if err != nil {
			return err
		}
		limited = limited || count >= int64(l.config.MaxLoginAttempts)
	}

	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the identifier counter after a successful login. The
// IP counter is left to expire on its own.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	if _, err := l.cache.Del(ctx, loginUserKey(identifier)); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Attempts returns the failed-login count for identifier. Missing keys
// return zero and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	v, ok, err := l.cache.Get(ctx, loginUserKey(identifier))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	v, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !ok {
		return nil
	}
	count, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incr(ctx context.Context, key string) (int64, error) {
	count, err := l.cache.Incr(ctx, key, l.config.LockoutDuration)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return 0, err
	}
	return count, nil
}

func loginUserKey(identifier string) string {
	return "login_attempts:" + identifier
}

func loginIPKey(ip string) string {
	return "login_attempts_ip:" + ip
}
