package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"komoditas/internal/core/scraper"
	"komoditas/internal/logger"
)

type Options struct {
	Addr     string
	Password string
	// Prefix is prepended to every cache key, e.g. "komoditas:".
	Prefix string
}

// Service is the shared cache behind the fetchers and the job mirror.
type Service struct {
	client *redisv8.Client
	prefix string
	log    *logger.Logger
}

func New(ctx context.Context, opts Options) (*Service, error) {
	c := redisv8.NewClient(&redisv8.Options{Addr: opts.Addr, Password: opts.Password})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Service{client: c, prefix: opts.Prefix, log: logger.New("Redis")}, nil
}

func (s *Service) Close() error            { return s.client.Close() }
func (s *Service) Client() *redisv8.Client { return s.client }

func (s *Service) key(k string) string { return s.prefix + k }

// Get returns scraper.ErrCacheMiss for absent keys.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redisv8.Nil) {
		return nil, scraper.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// HealthCheck pings and then round-trips a short-lived key.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.log.LogErrorf("Redis health check failed: %v", err)
		return fmt.Errorf("redis ping failed: %w", err)
	}

	probe := s.key("health:probe:" + time.Now().UTC().Format("20060102150405.000"))
	if err := s.client.Set(ctx, probe, "ok", 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write test failed: %w", err)
	}
	defer s.client.Del(ctx, probe)

	val, err := s.client.Get(ctx, probe).Result()
	if err != nil {
		return fmt.Errorf("redis read test failed: %w", err)
	}
	if val != "ok" {
		return fmt.Errorf("redis value mismatch: got %s", val)
	}
	return nil
}

func (s *Service) AsynqRedisOpt() asynq.RedisClientOpt {
	o := s.client.Options()
	return asynq.RedisClientOpt{Addr: o.Addr, Password: o.Password}
}

var _ scraper.Cache = (*Service)(nil)
