package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// failingCmdable errors on every SETNX, as an unreachable server does
type failingCmdable struct {
	redis.Cmdable
}

func (failingCmdable) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "setnx", key, value)
	cmd.SetErr(errors.New("connection refused"))
	return cmd
}

type memoryCmdable struct {
	redis.Cmdable
	keys map[string]bool
}

func (m *memoryCmdable) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "setnx", key, value)
	if m.keys[key] {
		cmd.SetVal(false)
		return cmd
	}
	m.keys[key] = true
	cmd.SetVal(true)
	return cmd
}

func (m *memoryCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	for _, k := range keys {
		delete(m.keys, k)
	}
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestAcquireOnce(t *testing.T) {
	rdb := &memoryCmdable{keys: map[string]bool{}}
	d := NewDeduper(rdb, time.Minute, nil)
	ctx := context.Background()

	assert.True(t, d.AcquireOnce(ctx, "submit", "u1:3"))
	assert.False(t, d.AcquireOnce(ctx, "submit", "u1:3"))
	assert.True(t, d.AcquireOnce(ctx, "submit", "u1:4"))

	d.Release(ctx, "submit", "u1:3")
	assert.True(t, d.AcquireOnce(ctx, "submit", "u1:3"))
}

func TestAcquireOnceAllowsWhenRedisDown(t *testing.T) {
	d := NewDeduper(failingCmdable{}, time.Minute, nil)
	assert.True(t, d.AcquireOnce(context.Background(), "submit", "u1:1"))
}
