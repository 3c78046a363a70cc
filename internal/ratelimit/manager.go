package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/clearlabel/transparency/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	defaultWindow  = time.Minute
	breakerCooloff = 30 * time.Second
	redisPingWait  = 2 * time.Second
)

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager enforces the configured per-client limit. With Redis enabled the
// counters are shared between replicas; while Redis is unreachable the
// manager counts in memory and retries Redis after a cool-off.
type Manager struct {
	cfg    config.RateLimitConfig
	now    func() time.Time
	memory Limiter
	dial   RedisClientFactory

	mu        sync.Mutex
	redis     *RedisLimiter
	coolUntil time.Time
}

// NewManager normalizes cfg and constructs a Manager. now and dial default
// to time.Now and redis.NewClient.
func NewManager(cfg config.RateLimitConfig, now func() time.Time, dial RedisClientFactory) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.RedisPrefix = strings.TrimSpace(cfg.RedisPrefix)
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = config.DefaultRateLimitRedisPrefix
	}
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	if now == nil {
		now = time.Now
	}
	if dial == nil {
		dial = redis.NewClient
	}
	return &Manager{cfg: cfg, now: now, memory: NewMemoryLimiter(), dial: dial}
}

// Allow counts one request for key. An empty key or a non-positive limit
// always passes.
func (m *Manager) Allow(ctx context.Context, key string) (Result, error) {
	if m == nil || key == "" || m.cfg.Limit <= 0 {
		return Result{Allowed: true}, nil
	}
	now := m.now()
	if m.cfg.RedisEnabled {
		if shared := m.shared(ctx, now); shared != nil {
			result, err := shared.Allow(ctx, key, m.cfg.Limit, m.cfg.Window, now)
			if err == nil {
				return result, nil
			}
			m.coolOff(err, now)
		}
	}
	return m.memory.Allow(ctx, key, m.cfg.Limit, m.cfg.Window, now)
}

// Limit returns the per-window limit.
func (m *Manager) Limit() int {
	if m == nil {
		return 0
	}
	return m.cfg.Limit
}

// Close releases the Redis client.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		return nil
	}
	err := m.redis.client.Close()
	m.redis = nil
	return err
}

// shared returns the Redis limiter, connecting on first use. It returns nil
// during a cool-off or when the connection cannot be established.
func (m *Manager) shared(ctx context.Context, now time.Time) *RedisLimiter {
	m.mu.Lock()
	if now.Before(m.coolUntil) {
		m.mu.Unlock()
		return nil
	}
	if m.redis != nil {
		limiter := m.redis
		m.mu.Unlock()
		return limiter
	}
	m.mu.Unlock()

	limiter, err := m.connect(ctx)
	if err != nil {
		m.coolOff(err, now)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis != nil {
		_ = limiter.client.Close()
		return m.redis
	}
	m.redis = limiter
	return limiter
}

func (m *Manager) connect(ctx context.Context) (*RedisLimiter, error) {
	if m.cfg.RedisAddr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client := m.dial(&redis.Options{
		Addr:     m.cfg.RedisAddr,
		Password: m.cfg.RedisPassword,
		DB:       m.cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingWait)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisLimiter(client, m.cfg.RedisPrefix), nil
}

// coolOff stops using Redis for breakerCooloff. Only the first failure of a
// cool-off period is logged.
func (m *Manager) coolOff(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.coolUntil) {
		return
	}
	m.coolUntil = now.Add(breakerCooloff)
	if m.redis != nil {
		_ = m.redis.client.Close()
		m.redis = nil
	}
	log.WithError(err).Warn("rate limit: redis unavailable, counting in memory")
}
