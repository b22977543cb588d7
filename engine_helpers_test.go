package multiauth

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/user"
	"github.com/MrEthical07/multiauth/user/memory"
	"github.com/MrEthical07/multiauth/verification"
)

const strongPassword = "Correct!Horse42"

// codeInbox records every code the engine delivers.
type codeInbox struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
}

func newCodeInbox() *codeInbox {
	return &codeInbox{codes: make(map[string]string)}
}

func (b *codeInbox) Send(_ context.Context, msg verification.Message) verification.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[string(msg.Purpose)+":"+msg.Destination] = msg.Code
	b.sent++
	return verification.Result{Success: true}
}

func (b *codeInbox) code(t *testing.T, purpose verification.Purpose, destination string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.codes[string(purpose)+":"+destination]
	require.Truef(t, ok, "no %s code delivered to %s", purpose, destination)
	return c
}

func (b *codeInbox) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}

type testEnv struct {
	engine *Engine
	redis  *miniredis.Miniredis
	users  *memory.Repository
	inbox  *codeInbox
}

func newTestEnv(t testing.TB, mutate func(*Config), opts ...func(*Builder)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := validTestConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		redis: mr,
		users: memory.New(),
		inbox: newCodeInbox(),
	}
	b := New().
		WithConfig(cfg).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithUserRepository(env.users).
		WithNotifier(env.inbox)
	for _, opt := range opts {
		opt(b)
	}

	env.engine, err = b.Build()
	require.NoError(t, err)
	t.Cleanup(env.engine.Close)
	return env
}

// registerUsername creates a password account for username and returns
// the login response.
func (env *testEnv) registerUsername(t testing.TB, username string) *AuthTokenResponse {
	t.Helper()
	resp, err := env.engine.Register(context.Background(), RegisterRequest{
		Identifier: username,
		Password:   strongPassword,
	})
	require.NoError(t, err)
	return resp
}

// registerWithCode runs the SendCode and Register round trip for an email
// address or phone number.
func (env *testEnv) registerWithCode(t *testing.T, raw string, role user.RoleType) (*AuthTokenResponse, error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.engine.SendCode(ctx, SendCodeRequest{Identifier: raw, Purpose: verification.PurposeRegister}))
	return env.engine.Register(ctx, RegisterRequest{
		Identifier: raw,
		Code:       env.inbox.code(t, verification.PurposeRegister, normalizedForTest(t, raw)),
		Role:       role,
	})
}

func normalizedForTest(t *testing.T, raw string) string {
	t.Helper()
	id, err := identifier.Classify(raw)
	require.NoError(t, err)
	return id.Value
}

// wrongCode returns a code of the same shape that differs from code.
func wrongCode(code string) string {
	last := code[len(code)-1]
	if last == '9' {
		last = '0'
	} else {
		last++
	}
	return code[:len(code)-1] + string(last)
}
