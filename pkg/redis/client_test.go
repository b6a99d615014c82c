package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/foodapp-backend/pkg/config"
)

func TestFixedWindowAllowCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCmds()
	client := &Client{cmd: fake}

	var allowed []bool
	for i := 0; i < 3; i++ {
		ok, count, err := client.FixedWindowAllow(ctx, "cart:user-1", 2, time.Minute)
		require.NoError(t, err)
		require.Equal(t, int64(i+1), count)
		allowed = append(allowed, ok)
	}
	require.Equal(t, []bool{true, true, false}, allowed)
	require.Equal(t, []time.Duration{time.Minute}, fake.expiries[client.RateLimitKey("cart:user-1")])

	_, _, err := client.FixedWindowAllow(ctx, "cart:user-1", 2, 0)
	require.Error(t, err)
}

func TestLockIsExclusiveAndOwnerScoped(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCmds()}

	ok, err := client.AcquireLock(ctx, "cron", "replica-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.AcquireLock(ctx, "cron", "replica-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, "cron", "replica-b"))
	holder, err := client.Get(ctx, client.LockKey("cron"))
	require.NoError(t, err)
	require.Equal(t, "replica-a", holder)

	require.NoError(t, client.ReleaseLock(ctx, "cron", "replica-a"))
	_, err = client.Get(ctx, client.LockKey("cron"))
	require.ErrorIs(t, err, redis.Nil)

	require.NoError(t, client.ReleaseLock(ctx, "cron", "replica-a"))

	_, err = client.AcquireLock(ctx, "cron", "a", 0)
	require.Error(t, err)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCmds()}
	k := client.IdempotencyKey("user|POST|/api/v1/orders", "abc")

	claimed, err := client.SetNX(ctx, k, "pending", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)
	claimed, err = client.SetNX(ctx, k, "pending", time.Minute)
	require.NoError(t, err)
	require.False(t, claimed)

	require.NoError(t, client.Set(ctx, k, "done", time.Hour))
	v, err := client.Get(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "done", v)

	require.NoError(t, client.Del(ctx, k))
	_, err = client.Get(ctx, k)
	require.ErrorIs(t, err, redis.Nil)
}

func TestUnconnectedClient(t *testing.T) {
	var nilClient *Client
	require.ErrorIs(t, nilClient.Ping(context.Background()), errNotInitialized)
	require.NoError(t, nilClient.Close())

	client := &Client{}
	_, _, err := client.FixedWindowAllow(context.Background(), "s", 1, time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	require.ErrorIs(t, client.ReleaseLock(context.Background(), "cron", "a"), errNotInitialized)
	require.NoError(t, client.Close())
}

func TestKeys(t *testing.T) {
	client := &Client{}
	require.Equal(t, "fa:idempotency:checkout:abc", client.IdempotencyKey("checkout", "abc"))
	require.Equal(t, "fa:rate_limit:cart:user-1", client.RateLimitKey("cart:user-1"))
	require.Equal(t, "fa:lock:cron", client.LockKey("cron"))
	require.Equal(t, "fa:idempotency:checkout", client.IdempotencyKey("checkout", " "))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", Password: "pw", DB: 3})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, "pw", opts.Password)
	require.Equal(t, 3, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{URL: "://bad"})
	require.Error(t, err)
}

// fakeCmds keeps values in memory and runs the two known scripts natively.
type fakeCmds struct {
	vals     map[string]string
	counters map[string]int64
	expiries map[string][]time.Duration
}

func newFakeCmds() *fakeCmds {
	return &fakeCmds{
		vals:     map[string]string{},
		counters: map[string]int64{},
		expiries: map[string][]time.Duration{},
	}
}

func (f *fakeCmds) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCmds) Get(_ context.Context, k string) *redis.StringCmd {
	v, ok := f.vals[k]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCmds) Set(_ context.Context, k string, value any, _ time.Duration) *redis.StatusCmd {
	f.vals[k] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCmds) SetNX(_ context.Context, k string, value any, _ time.Duration) *redis.BoolCmd {
	if _, taken := f.vals[k]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.vals[k] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCmds) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.vals, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCmds) EvalSha(_ context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	switch sha {
	case windowScript.Hash():
		f.counters[keys[0]]++
		n := f.counters[keys[0]]
		if n == 1 {
			f.expiries[keys[0]] = append(f.expiries[keys[0]], time.Duration(args[0].(int64))*time.Millisecond)
		}
		return redis.NewCmdResult(n, nil)
	case releaseScript.Hash():
		if f.vals[keys[0]] == args[0] {
			delete(f.vals, keys[0])
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unknown script %s", sha))
}

func (f *fakeCmds) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("scripts run through EvalSha in tests"))
}

func (f *fakeCmds) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeCmds) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeCmds) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeCmds) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}
