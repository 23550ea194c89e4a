package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/sensor-ledger/internal/pkg/config"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

type setCall struct {
	key   string
	value []byte
	ttl   time.Duration
}

type mockRedis struct {
	SetFunc func(key string) error
	calls   []setCall
}

func (m *mockRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.calls = append(m.calls, setCall{key: key, value: value.([]byte), ttl: expiration})
	var err error
	if m.SetFunc != nil {
		err = m.SetFunc(key)
	}
	return redis.NewStatusResult("OK", err)
}

func snapshot() *model.Snapshot {
	rec := func(index uint64, sensorID string) model.ReconciledRecord {
		return model.ReconciledRecord{
			StoredRecord:  model.StoredRecord{Index: index, SensorID: sensorID},
			TransactionID: model.Unresolved,
		}
	}
	return &model.Snapshot{
		Records:    []model.ReconciledRecord{rec(3, "a"), rec(2, "b"), rec(1, "a")},
		CapturedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestStore_Write(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	client := &mockRedis{}
	store := NewStore(client, "sl:snapshot", time.Minute)

	require.NoError(t, store.Write(context.Background(), snapshot()))
	require.Len(t, client.calls, 3)

	assert.Equal(t, "sl:snapshot", client.calls[0].key)
	assert.Equal(t, time.Minute, client.calls[0].ttl)
	var decoded model.Snapshot
	require.NoError(t, json.Unmarshal(client.calls[0].value, &decoded))
	assert.Len(t, decoded.Records, 3)

	assert.Equal(t, "sl:snapshot:sensor:a", client.calls[1].key)
	assert.Equal(t, "sl:snapshot:sensor:b", client.calls[2].key)
	var head model.ReconciledRecord
	require.NoError(t, json.Unmarshal(client.calls[1].value, &head))
	assert.Equal(t, uint64(3), head.Index, "newest record of the sensor")
}

func TestStore_WriteError(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	down := errors.New("connection refused")
	client := &mockRedis{SetFunc: func(string) error { return down }}
	store := NewStore(client, "k", time.Minute)

	err := store.Write(context.Background(), snapshot())
	assert.ErrorIs(t, err, down)
	assert.Len(t, client.calls, 1)
}

func TestStore_WriteNil(t *testing.T) {
	client := &mockRedis{}
	assert.NoError(t, NewStore(client, "k", time.Minute).Write(context.Background(), nil))
	assert.Empty(t, client.calls)
}

func TestNewRedisClient_EmptyAddr(t *testing.T) {
	_, err := NewRedisClient(&config.RedisConfig{Addr: "  "})
	assert.Error(t, err)
}
