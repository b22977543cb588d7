package verification

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/multiauth/cache"
	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/internal"
)

// Purpose is the intent a code was issued for.
type Purpose string

const (
	PurposeRegister      Purpose = "REGISTER"
	PurposeLogin         Purpose = "LOGIN"
	PurposeResetPassword Purpose = "RESET_PASSWORD"
	PurposeVerifyEmail   Purpose = "VERIFY_EMAIL"
	PurposeVerifyPhone   Purpose = "VERIFY_PHONE"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeRegister, PurposeLogin, PurposeResetPassword, PurposeVerifyEmail, PurposeVerifyPhone:
		return true
	}
	return false
}

var (
	// ErrInvalidIdentifier is returned when the destination is neither an
	// email address nor a phone number.
	ErrInvalidIdentifier = identifier.ErrInvalidFormat
	// ErrInvalidPurpose is returned for an unknown purpose.
	ErrInvalidPurpose = errors.New("invalid verification purpose")
	// ErrRateLimited is returned while the resend marker is armed.
	ErrRateLimited = errors.New("verification code recently sent")
	// ErrDeliveryFailed is returned after a failed delivery has been rolled back.
	ErrDeliveryFailed = errors.New("verification code delivery failed")
)

// Message is what a Notifier delivers.
type Message struct {
	Destination string
	Channel     identifier.Kind
	Code        string
	Purpose     Purpose
}

// Result reports the outcome of a delivery. Transport errors are folded
// into Success=false with a caller-safe Message.
type Result struct {
	Success bool
	Message string
	Code    string
}

// Notifier delivers codes over SMS or email.
type Notifier interface {
	Send(ctx context.Context, msg Message) Result
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) Result

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, msg Message) Result { return f(ctx, msg) }

// Config holds code lifetime and resend tuning.
type Config struct {
	CodeTTL        time.Duration
	ResendInterval time.Duration
	CodeLength     int
}

// DefaultConfig returns 6-digit codes valid for 5 minutes with a 60 second
// resend interval.
func DefaultConfig() Config {
	return Config{
		CodeTTL:        5 * time.Minute,
		ResendInterval: 60 * time.Second,
		CodeLength:     6,
	}
}

type record struct {
	Code       string    `json:"code"`
	Identifier string    `json:"identifier"`
	Purpose    Purpose   `json:"purpose"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Engine is the verification-code state machine.
type Engine struct {
	cache    cache.Cache
	notifier Notifier
	config   Config
	now      func() time.Time
	generate func(digits int) (string, error)
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(c cache.Cache, n Notifier, cfg Config) (*Engine, error) {
	if c == nil {
		return nil, errors.New("verification requires a cache")
	}
	if n == nil {
		return nil, errors.New("verification requires a notifier")
	}
	if cfg.CodeTTL <= 0 || cfg.ResendInterval <= 0 {
		return nil, errors.New("verification TTLs must be > 0")
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 10 {
		return nil, errors.New("verification code length must be between 4 and 10")
	}
	return &Engine{
		cache:    c,
		notifier: n,
		config:   cfg,
		now:      time.Now,
		generate: internal.NewOTP,
	}, nil
}

// SendCode issues a code for (raw, purpose) and hands it to the notifier.
func (e *Engine) SendCode(ctx context.Context, raw string, purpose Purpose) error {
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}
	id, err := identifier.Channel(raw)
	if err != nil {
		return ErrInvalidIdentifier
	}

	markerKey := rateKey(id.Value, purpose)
	hits, err := e.cache.Incr(ctx, markerKey, e.config.ResendInterval)
	if err != nil {
		return fmt.Errorf("arm resend marker: %w", err)
	}
	if hits > 1 {
		return ErrRateLimited
	}

	code, err := e.generate(e.config.CodeLength)
	if err != nil {
		e.rollback(ctx, markerKey)
		return fmt.Errorf("generate code: %w", err)
	}

	now := e.now().UTC()
	data, err := json.Marshal(record{
		Code:       code,
		Identifier: id.Value,
		Purpose:    purpose,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.config.CodeTTL),
	})
	if err != nil {
		e.rollback(ctx, markerKey)
		return fmt.Errorf("encode code record: %w", err)
	}

	storeKey := codeKey(id.Value, purpose)
	if err := e.cache.Set(ctx, storeKey, string(data), e.config.CodeTTL); err != nil {
		e.rollback(ctx, markerKey)
		return fmt.Errorf("store code: %w", err)
	}

	res := e.notifier.Send(ctx, Message{
		Destination: id.Value,
		Channel:     id.Kind,
		Code:        code,
		Purpose:     purpose,
	})
	if !res.Success {
		e.rollback(ctx, storeKey, markerKey)
		if res.Message == "" {
			return ErrDeliveryFailed
		}
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, res.Message)
	}

	return nil
}

// ArmCooldown arms the resend marker for (raw, purpose) without issuing a
// code. Callers that silently skip a send use it so the skipped request is
// throttled exactly like a real one.
func (e *Engine) ArmCooldown(ctx context.Context, raw string, purpose Purpose) error {
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}
	hits, err := e.cache.Incr(ctx, rateKey(normalize(raw), purpose), e.config.ResendInterval)
	if err != nil {
		return fmt.Errorf("arm resend marker: %w", err)
	}
	if hits > 1 {
		return ErrRateLimited
	}
	return nil
}

// VerifyCode reports whether code is the live code for (raw, purpose). An
// expired record is removed. A matching code is left in place.
func (e *Engine) VerifyCode(ctx context.Context, raw, code string, purpose Purpose) (bool, error) {
	if code == "" || !purpose.Valid() {
		return false, nil
	}

	key := codeKey(normalize(raw), purpose)
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load code: %w", err)
	}
	if !ok {
		return false, nil
	}

	var rec record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		_, _ = e.cache.Del(ctx, key)
		return false, nil
	}

	if e.now().After(rec.ExpiresAt) {
		_, _ = e.cache.Del(ctx, key)
		return false, nil
	}

	return subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) == 1, nil
}

// ClearCode removes the code for (raw, purpose). Clearing a missing code is
// not an error.
func (e *Engine) ClearCode(ctx context.Context, raw string, purpose Purpose) error {
	if _, err := e.cache.Del(ctx, codeKey(normalize(raw), purpose)); err != nil {
		return fmt.Errorf("clear code: %w", err)
	}
	return nil
}

// CooldownRemaining returns how long until a new code may be sent for
// (raw, purpose).
func (e *Engine) CooldownRemaining(ctx context.Context, raw string, purpose Purpose) (time.Duration, error) {
	return e.cache.TTL(ctx, rateKey(normalize(raw), purpose))
}

func (e *Engine) rollback(ctx context.Context, keys ...string) {
	// The caller's context may already be done; rollback must still run.
	ctx = context.WithoutCancel(ctx)
	_, _ = e.cache.Del(ctx, keys...)
}

func normalize(raw string) string {
	if id, err := identifier.Classify(raw); err == nil {
		return id.Value
	}
	return raw
}

func codeKey(id string, purpose Purpose) string {
	return "verification:" + string(purpose) + ":" + id
}

func rateKey(id string, purpose Purpose) string {
	return "verification_rate:" + string(purpose) + ":" + id
}
