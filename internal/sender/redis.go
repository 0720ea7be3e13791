package sender

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"smartfan/internal/config"
	"smartfan/internal/logger"
	"smartfan/internal/network"
	"smartfan/internal/report"
)

// RedisSender stores the latest report under <prefix>:<host>:status and
// pushes every report onto the capped list <prefix>:<host>:history, newest
// first.
type RedisSender struct {
	client     *redis.Client
	statusKey  string
	historyKey string
	maxHistory int64
	timeout    time.Duration

	mu     sync.Mutex
	closed bool
}

// NewRedisSender creates the client and checks connectivity with PING.
func NewRedisSender(ctx context.Context, cfg config.RedisConfig, socks config.SOCKSConfig, host string) (*RedisSender, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	dial, err := network.ContextDialer(socks.Host, socks.Port)
	if err != nil {
		return nil, err
	}
	if dial != nil {
		opts.Dialer = dial
	}

	s := newRedisSender(redis.NewClient(opts), cfg, host)

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(pingCtx).Err(); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	logger.WithComponent("redis-sender").Info().
		Str("addr", cfg.Addr).
		Str("status_key", s.statusKey).
		Msg("Redis sender connected")
	return s, nil
}

func newRedisSender(client *redis.Client, cfg config.RedisConfig, host string) *RedisSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := fmt.Sprintf("%s:%s", cfg.KeyPrefix, host)
	return &RedisSender{
		client:     client,
		statusKey:  base + ":status",
		historyKey: base + ":history",
		maxHistory: cfg.HistoryLength,
		timeout:    timeout,
	}
}

// Send writes the status key and history list in one transaction.
func (s *RedisSender) Send(ctx context.Context, cycle *report.Cycle) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := encode(cycle, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.statusKey, payload, 0)
		if s.maxHistory > 0 {
			p.LPush(ctx, s.historyKey, payload)
			p.LTrim(ctx, s.historyKey, 0, s.maxHistory-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %s: %w", s.statusKey, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
