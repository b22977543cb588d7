package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/multiauth/cache"
	"github.com/MrEthical07/multiauth/identifier"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

func (n *recordingNotifier) Send(_ context.Context, msg Message) Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return Result{Success: false, Message: "gateway down"}
	}
	n.sent = append(n.sent, msg)
	return Result{Success: true}
}

func (n *recordingNotifier) last() Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

func newTestEngine(t *testing.T) (*miniredis.Miniredis, *Engine, *recordingNotifier) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	n := &recordingNotifier{}
	e, err := NewEngine(cache.NewRedis(client, ""), n, DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return mr, e, n
}

func TestSendAndVerifyScenario(t *testing.T) {
	ctx := context.Background()
	mr, e, n := newTestEngine(t)
	e.generate = func(int) (string, error) { return "482913", nil }

	if err := e.SendCode(ctx, "user@example.com", PurposeRegister); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}

	if ttl := mr.TTL("verification:REGISTER:user@example.com"); ttl != 300*time.Second {
		t.Fatalf("expected 300s code TTL, got %s", ttl)
	}
	if ttl := mr.TTL("verification_rate:REGISTER:user@example.com"); ttl != 60*time.Second {
		t.Fatalf("expected 60s marker TTL, got %s", ttl)
	}
	msg := n.last()
	if msg.Code != "482913" || msg.Channel != identifier.KindEmail || msg.Purpose != PurposeRegister {
		t.Fatalf("unexpected delivery: %+v", msg)
	}

	ok, err := e.VerifyCode(ctx, "user@example.com", "482913", PurposeRegister)
	if err != nil || !ok {
		t.Fatalf("expected code to verify, ok=%v err=%v", ok, err)
	}
	ok, _ = e.VerifyCode(ctx, "user@example.com", "000000", PurposeRegister)
	if ok {
		t.Fatal("expected wrong code to fail")
	}

	// verify does not consume
	ok, _ = e.VerifyCode(ctx, "user@example.com", "482913", PurposeRegister)
	if !ok {
		t.Fatal("expected code to remain valid after a successful verify")
	}
}

func TestVerifyIsScopedToPurposeAndIdentifier(t *testing.T) {
	ctx := context.Background()
	_, e, n := newTestEngine(t)

	if ok, _ := e.VerifyCode(ctx, "user@example.com", "123456", PurposeLogin); ok {
		t.Fatal("expected verify before send to fail")
	}
	if err := e.SendCode(ctx, "User@Example.com", PurposeLogin); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	code := n.last().Code

	if ok, _ := e.VerifyCode(ctx, "user@example.com", code, PurposeLogin); !ok {
		t.Fatal("expected normalized identifier to verify")
	}
	if ok, _ := e.VerifyCode(ctx, "user@example.com", code, PurposeRegister); ok {
		t.Fatal("expected code to be bound to its purpose")
	}
	if ok, _ := e.VerifyCode(ctx, "other@example.com", code, PurposeLogin); ok {
		t.Fatal("expected code to be bound to its identifier")
	}
}

func TestCodeExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	mr, e, n := newTestEngine(t)

	if err := e.SendCode(ctx, "13812345678", PurposeLogin); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	code := n.last().Code

	mr.FastForward(301 * time.Second)
	if ok, _ := e.VerifyCode(ctx, "13812345678", code, PurposeLogin); ok {
		t.Fatal("expected code to expire after 5 minutes")
	}
}

func TestExpiredRecordIsDeletedOnVerify(t *testing.T) {
	ctx := context.Background()
	mr, e, n := newTestEngine(t)

	if err := e.SendCode(ctx, "13812345678", PurposeLogin); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	code := n.last().Code

	e.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	if ok, _ := e.VerifyCode(ctx, "13812345678", code, PurposeLogin); ok {
		t.Fatal("expected stale record to fail")
	}
	if mr.Exists("verification:LOGIN:13812345678") {
		t.Fatal("expected stale record to be removed")
	}
}

func TestResendIsRateLimited(t *testing.T) {
	ctx := context.Background()
	mr, e, _ := newTestEngine(t)

	if err := e.SendCode(ctx, "user@example.com", PurposeRegister); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	if err := e.SendCode(ctx, "user@example.com", PurposeRegister); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := e.SendCode(ctx, "user@example.com", PurposeLogin); err != nil {
		t.Fatalf("other purposes must not share the marker: %v", err)
	}

	remaining, err := e.CooldownRemaining(ctx, "user@example.com", PurposeRegister)
	if err != nil || remaining <= 0 || remaining > 60*time.Second {
		t.Fatalf("unexpected cooldown %s err=%v", remaining, err)
	}

	mr.FastForward(61 * time.Second)
	if err := e.SendCode(ctx, "user@example.com", PurposeRegister); err != nil {
		t.Fatalf("expected resend after 60s to succeed: %v", err)
	}
}

func TestDeliveryFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	mr, e, n := newTestEngine(t)
	n.fail = true

	err := e.SendCode(ctx, "user@example.com", PurposeRegister)
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if mr.Exists("verification:REGISTER:user@example.com") || mr.Exists("verification_rate:REGISTER:user@example.com") {
		t.Fatal("expected code and marker to be rolled back")
	}

	n.fail = false
	if err := e.SendCode(ctx, "user@example.com", PurposeRegister); err != nil {
		t.Fatalf("expected immediate retry after rollback to succeed: %v", err)
	}
}

func TestClearCodeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, e, n := newTestEngine(t)

	if err := e.SendCode(ctx, "user@example.com", PurposeRegister); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	code := n.last().Code

	for i := 0; i < 2; i++ {
		if err := e.ClearCode(ctx, "user@example.com", PurposeRegister); err != nil {
			t.Fatalf("ClearCode #%d failed: %v", i+1, err)
		}
	}
	if ok, _ := e.VerifyCode(ctx, "user@example.com", code, PurposeRegister); ok {
		t.Fatal("expected cleared code to fail")
	}
}

func TestSendRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	_, e, _ := newTestEngine(t)

	for _, raw := range []string{"alice123", "not an address", ""} {
		if err := e.SendCode(ctx, raw, PurposeRegister); !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("SendCode(%q) expected ErrInvalidIdentifier, got %v", raw, err)
		}
	}
	if err := e.SendCode(ctx, "user@example.com", Purpose("SPAM")); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
}

func TestNewEngineValidation(t *testing.T) {
	n := NotifierFunc(func(context.Context, Message) Result { return Result{Success: true} })
	c := cache.NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")

	if _, err := NewEngine(nil, n, DefaultConfig()); err == nil {
		t.Fatal("expected nil cache to be rejected")
	}
	if _, err := NewEngine(c, nil, DefaultConfig()); err == nil {
		t.Fatal("expected nil notifier to be rejected")
	}
	cfg := DefaultConfig()
	cfg.CodeLength = 2
	if _, err := NewEngine(c, n, cfg); err == nil {
		t.Fatal("expected short codes to be rejected")
	}
}

func TestArmCooldownThrottlesWithoutSending(t *testing.T) {
	ctx := context.Background()
	mr, e, n := newTestEngine(t)

	if err := e.ArmCooldown(ctx, "ghost@example.com", PurposeLogin); err != nil {
		t.Fatalf("ArmCooldown failed: %v", err)
	}
	if len(n.sent) != 0 {
		t.Fatal("expected no delivery")
	}
	if mr.Exists("verification:LOGIN:ghost@example.com") {
		t.Fatal("expected no code to be stored")
	}
	if err := e.ArmCooldown(ctx, "ghost@example.com", PurposeLogin); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
