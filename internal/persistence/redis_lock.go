package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// LeaseClient is the subset of the redis client the lock needs.
type LeaseClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLock is a lease held across replicas with SET NX PX. Each acquisition carries its own
// token so a holder whose lease expired cannot release a successor's lock. The lease is
// extended every ttl/3 until released.
type RedisLock struct {
	client LeaseClient
	name   string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLock builds a lock under key name with lease ttl.
func NewRedisLock(client LeaseClient, name string, ttl time.Duration, logger *zap.Logger) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLock{client: client, name: name, ttl: ttl, logger: logger}
}

// TryAcquire returns acquired=false without error when another holder owns the lease.
func (l *RedisLock) TryAcquire(ctx context.Context) (func(context.Context), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.name, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", l.name, err)
	}
	if !ok {
		return nil, false, nil
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(renewCtx, token)
	}()

	release := func(ctx context.Context) {
		stop()
		<-done
		if err := releaseScript.Run(ctx, l.client, []string{l.name}, token).Err(); err != nil {
			l.logger.Warn("release scan lock failed", zap.String("lock", l.name), zap.Error(err))
		}
	}
	return release, true, nil
}

func (l *RedisLock) keepAlive(ctx context.Context, token string) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		held, err := extendScript.Run(ctx, l.client, []string{l.name}, token, l.ttl.Milliseconds()).Int()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			l.logger.Warn("extend scan lock failed", zap.String("lock", l.name), zap.Error(err))
		case held == 0:
			l.logger.Error("scan lock lost before release", zap.String("lock", l.name))
			return
		}
	}
}

// RedisOnce records keys that must be acted on at most once within a TTL.
type RedisOnce struct {
	client *redis.Client
	prefix string
}

// NewRedisOnce builds a marker namespaced under prefix.
func NewRedisOnce(client *redis.Client, prefix string) *RedisOnce {
	return &RedisOnce{client: client, prefix: prefix}
}

// Mark returns true the first time key is seen within ttl.
func (o *RedisOnce) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return o.client.SetNX(ctx, o.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
