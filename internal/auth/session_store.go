package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshBlacklistKeyPrefix = "auth:refresh:blacklist:"
	loginRateKeyPrefix        = "rate:login:"
	loginFailKeyPrefix        = "lock:login:fail:"
	loginLockKeyPrefix        = "lock:login:"
)

// SessionStore 保存登录限流计数与刷新令牌黑名单。
type SessionStore interface {
	// CountLoginAttempt 递增 (ip, username) 在当前小时窗口内的尝试次数。
	CountLoginAttempt(ctx context.Context, ip, username string) (int64, error)
	IsLocked(ctx context.Context, username string) (bool, error)
	// RecordLoginFailure 累计失败次数，达到 threshold 时锁定 lockTTL。
	RecordLoginFailure(ctx context.Context, username string, threshold int, lockTTL time.Duration) error
	ClearLoginFailures(ctx context.Context, username string) error
	RevokeRefresh(ctx context.Context, jti string, ttl time.Duration) error
	IsRefreshRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisSessionStore 基于 Redis 的实现，键格式与过期策略见各方法。
type RedisSessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisSessionStore(client redis.Cmdable) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

func (s *RedisSessionStore) CountLoginAttempt(ctx context.Context, ip, username string) (int64, error) {
	key := loginRateKeyPrefix + ip + ":" + normalizeUsername(username) + ":" + s.now().UTC().Format("2006010215")
	return incrWithTTL(ctx, s.client, key, time.Hour)
}

func (s *RedisSessionStore) IsLocked(ctx context.Context, username string) (bool, error) {
	ttl, err := s.client.TTL(ctx, loginLockKeyPrefix+normalizeUsername(username)).Result()
	if err != nil {
		return false, err
	}
	return ttl > 0, nil
}

func (s *RedisSessionStore) RecordLoginFailure(ctx context.Context, username string, threshold int, lockTTL time.Duration) error {
	name := normalizeUsername(username)
	count, err := incrWithTTL(ctx, s.client, loginFailKeyPrefix+name, lockTTL)
	if err != nil {
		return err
	}
	if threshold > 0 && count >= int64(threshold) {
		return s.client.Set(ctx, loginLockKeyPrefix+name, "1", lockTTL).Err()
	}
	return nil
}

func (s *RedisSessionStore) ClearLoginFailures(ctx context.Context, username string) error {
	return s.client.Del(ctx, loginFailKeyPrefix+normalizeUsername(username)).Err()
}

func (s *RedisSessionStore) RevokeRefresh(ctx context.Context, jti string, ttl time.Duration) error {
	return s.client.Set(ctx, refreshBlacklistKeyPrefix+jti, "revoked", ttl).Err()
}

func (s *RedisSessionStore) IsRefreshRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, refreshBlacklistKeyPrefix+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client redisCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// MemorySessionStore 是进程内实现，用于测试与单机调试。
type MemorySessionStore struct {
	mu       sync.Mutex
	now      func() time.Time
	counters map[string]int64
	expiry   map[string]time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		now:      time.Now,
		counters: map[string]int64{},
		expiry:   map[string]time.Time{},
	}
}

func (s *MemorySessionStore) CountLoginAttempt(_ context.Context, ip, username string) (int64, error) {
	key := loginRateKeyPrefix + ip + ":" + normalizeUsername(username) + ":" + s.now().UTC().Format("2006010215")
	return s.incr(key, time.Hour), nil
}

func (s *MemorySessionStore) IsLocked(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliveLocked(loginLockKeyPrefix + normalizeUsername(username)), nil
}

func (s *MemorySessionStore) RecordLoginFailure(_ context.Context, username string, threshold int, lockTTL time.Duration) error {
	name := normalizeUsername(username)
	count := s.incr(loginFailKeyPrefix+name, lockTTL)
	if threshold > 0 && count >= int64(threshold) {
		s.set(loginLockKeyPrefix+name, lockTTL)
	}
	return nil
}

func (s *MemorySessionStore) ClearLoginFailures(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := loginFailKeyPrefix + normalizeUsername(username)
	delete(s.counters, key)
	delete(s.expiry, key)
	return nil
}

func (s *MemorySessionStore) RevokeRefresh(_ context.Context, jti string, ttl time.Duration) error {
	s.set(refreshBlacklistKeyPrefix+jti, ttl)
	return nil
}

func (s *MemorySessionStore) IsRefreshRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliveLocked(refreshBlacklistKeyPrefix + jti), nil
}

func (s *MemorySessionStore) incr(key string, ttl time.Duration) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.aliveLocked(key) {
		s.counters[key] = 0
		s.expiry[key] = s.now().Add(ttl)
	}
	s.counters[key]++
	return s.counters[key]
}

func (s *MemorySessionStore) set(key string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] = 1
	s.expiry[key] = s.now().Add(ttl)
}

func (s *MemorySessionStore) aliveLocked(key string) bool {
	exp, ok := s.expiry[key]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.expiry, key)
		delete(s.counters, key)
		return false
	}
	return true
}
