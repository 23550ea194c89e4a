package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/sensor-ledger/internal/pkg/config"
	"github.com/anicoll/sensor-ledger/internal/pkg/ledger"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.PollCfg.Interval = 10 * time.Millisecond
	cfg.PollCfg.TimeZone = "UTC"
	cfg.HttpCfg.Addr = freeAddr(t)
	return cfg
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func runServe(ctx context.Context, cfg *config.Config, l Ledger) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, cfg, l) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

// TestServe_ContextCancellation tests that serve exits once the context is cancelled.
func TestServe_ContextCancellation(t *testing.T) {
	t.Parallel()
	polled := make(chan struct{}, 1)
	mockLedger := &MockLedger{
		RecordCountFunc: func(ctx context.Context) (uint64, error) {
			select {
			case polled <- struct{}{}:
			default:
			}
			return 0, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runServe(ctx, testConfig(t), mockLedger)

	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("ledger was never polled")
	}
	cancel()

	assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
}

// TestServe_LedgerErrorsKeepPolling tests that a failing ledger does not stop the service.
func TestServe_LedgerErrorsKeepPolling(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	mockLedger := &MockLedger{
		RecordCountFunc: func(ctx context.Context) (uint64, error) {
			calls.Add(1)
			return 0, fmt.Errorf("%w: node unreachable", model.ErrLedgerQuery)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runServe(ctx, testConfig(t), mockLedger)

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
}

// TestServe_SnapshotOverHTTP tests the full path from ledger to the snapshot endpoint.
func TestServe_SnapshotOverHTTP(t *testing.T) {
	t.Parallel()
	mem := ledger.NewMemory()
	mem.Append("SHT20-PascaPanen-001", 1000, 1001, ledger.EncodePayload(32, 70))
	mem.Append("SHT20-PascaPanen-001", 2000, 2010, ledger.EncodePayload(40, 95))

	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := runServe(ctx, cfg, mem)
	defer func() {
		cancel()
		_ = waitErr(t, errCh)
	}()

	var body struct {
		Snapshot *model.Snapshot `json:"snapshot"`
		Error    *string         `json:"error"`
	}
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.HttpCfg.Addr + "/api/snapshot")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		return body.Snapshot != nil
	}, 5*time.Second, 20*time.Millisecond)

	assert.Nil(t, body.Error)
	require.Len(t, body.Snapshot.Records, 2)
	assert.Equal(t, uint64(1), body.Snapshot.Records[0].Index)
	assert.Equal(t, model.Unresolved, body.Snapshot.Records[0].TransactionID, "event is 10s away")
	assert.NotEqual(t, model.Unresolved, body.Snapshot.Records[1].TransactionID)
	assert.Equal(t, "1970-01-01 00:16:40", body.Snapshot.Records[1].DisplayTime)
}

// TestServe_SinkSetupFailure tests that a misconfigured sink is reported at start-up.
func TestServe_SinkSetupFailure(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.RedisCfg.Addr = "   "

	err := serve(context.Background(), cfg, &MockLedger{})
	assert.ErrorContains(t, err, "redis")
}

// TestRun_InvalidLogLevel tests that run rejects an unknown log level before starting anything.
func TestRun_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.LogLevel = "chatty"

	assert.Error(t, run(context.Background(), cfg))
}

// TestRun_InvalidContract tests that run fails fast on a malformed contract address.
func TestRun_InvalidContract(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.LedgerCfg.ContractAddress = "not-an-address"

	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
