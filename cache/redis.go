// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/commission-negotiation/gate"
)

// Connect builds a client from a redis:// URL or a bare host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// releaseScript deletes the flag only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the flag's TTL only if we still own it.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisFlags is a cross-process in-flight marker. The flag carries a TTL so
// a crashed holder cannot wedge a case forever. A live holder refreshes the
// TTL every third of it until release, so the TTL bounds only how long a
// dead holder blocks the case.
type RedisFlags struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisFlags(client *redis.Client, ttl time.Duration) *RedisFlags {
	if ttl < 30*time.Millisecond {
		ttl = 30 * time.Second
	}
	return &RedisFlags{client: client, ttl: ttl, prefix: "negotiation:inflight:"}
}

func (f *RedisFlags) Acquire(ctx context.Context, caseID string) (func(), error) {
	key := f.prefix + caseID
	owner := uuid.NewString()

	ok, err := f.client.SetNX(ctx, key, owner, f.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire in-flight flag: %w", err)
	}
	if !ok {
		return nil, gate.ErrAlreadyInFlight
	}

	stop, done := f.startHeartbeat(key, owner, caseID)
	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done

			// Release must run even if the request context was cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, f.client, []string{key}, owner).Err(); err != nil {
				slog.Warn("failed to release in-flight flag", "case_id", caseID, "error", err)
			}
		})
	}, nil
}

// startHeartbeat keeps the flag alive while the holder works. It stops on
// cancel or once the flag is no longer ours.
func (f *RedisFlags) startHeartbeat(key, owner, caseID string) (context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(f.ttl / 3)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			n, err := refreshScript.Run(ctx, f.client, []string{key}, owner, f.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("failed to refresh in-flight flag", "case_id", caseID, "error", err)
				continue
			}
			if n == 0 {
				slog.Warn("in-flight flag lost before release", "case_id", caseID)
				return
			}
		}
	}()

	return cancel, done
}

// RedisResults keeps gate receipts as JSON strings with a TTL.
type RedisResults struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisResults(client *redis.Client, ttl time.Duration) *RedisResults {
	return &RedisResults{client: client, ttl: ttl, prefix: "negotiation:receipt:"}
}

func (r *RedisResults) key(caseID, token string) string {
	return r.prefix + caseID + ":" + token
}

func (r *RedisResults) Lookup(ctx context.Context, caseID, token string) (*gate.Completion, error) {
	raw, err := r.client.Get(ctx, r.key(caseID, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup receipt: %w", err)
	}
	var c gate.Completion
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &c, nil
}

// Remember writes the receipt only if none exists; the first completion wins.
func (r *RedisResults) Remember(ctx context.Context, caseID, token string, c gate.Completion) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	if err := r.client.SetNX(ctx, r.key(caseID, token), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store receipt: %w", err)
	}
	return nil
}
