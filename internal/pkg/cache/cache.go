// Package cache mirrors the latest snapshot into redis for consumers that
// cannot reach the HTTP facade. Nothing is ever read back by the poller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/config"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// NewRedisClient returns a configured go-redis client and validates the connection with PING.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

type setter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Store writes the snapshot under key and the newest record of each sensor
// under key:sensor:<id>, all expiring after ttl.
type Store struct {
	client setter
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewStore(client setter, key string, ttl time.Duration) *Store {
	return &Store{client: client, key: key, ttl: ttl, logger: zap.L()}
}

func (s *Store) SensorKey(sensorID string) string {
	return fmt.Sprintf("%s:sensor:%s", s.key, sensorID)
}

func (s *Store) Write(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}

	seen := map[string]struct{}{}
	for _, rec := range snapshot.Records {
		if _, ok := seen[rec.SensorID]; ok {
			continue
		}
		seen[rec.SensorID] = struct{}{}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := s.client.Set(ctx, s.SensorKey(rec.SensorID), data, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis: set sensor %s: %w", rec.SensorID, err)
		}
	}
	s.logger.Debug("snapshot cached", zap.String("key", s.key), zap.Int("sensors", len(seen)))
	return nil
}
