package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	ledgerfetcher "github.com/anicoll/sensor-ledger/internal/pkg/fetcher"
	"github.com/anicoll/sensor-ledger/internal/pkg/ledger"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
	"github.com/anicoll/sensor-ledger/internal/pkg/reconcile"
)

const sensor = "SHT20-PascaPanen-001"

type fakeTimer struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (f *fakeTimer) C() <-chan time.Time { return f.c }
func (f *fakeTimer) Stop() bool          { return !f.stopped.Swap(true) }

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	created chan struct{}
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0), created: make(chan struct{}, 100)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) NewTimer(time.Duration) Timer {
	f.mu.Lock()
	t := &fakeTimer{c: make(chan time.Time, 1)}
	f.timers = append(f.timers, t)
	f.mu.Unlock()
	f.created <- struct{}{}
	return t
}

func (f *fakeClock) timerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Advance moves time forward and fires the most recent live timer.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	if len(f.timers) == 0 {
		return
	}
	t := f.timers[len(f.timers)-1]
	if t.stopped.Load() {
		return
	}
	select {
	case t.c <- f.now:
	default:
	}
}

// waitCycle blocks until the loop has finished a cycle and armed its next timer.
func (f *fakeClock) waitCycle(t *testing.T) {
	t.Helper()
	select {
	case <-f.created:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not complete")
	}
}

type mockListener struct {
	mu        sync.Mutex
	snapshots []*model.Snapshot
}

func (m *mockListener) Publish(_ context.Context, s *model.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
}

func (m *mockListener) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

type harness struct {
	ledger *ledger.Memory
	clock  *fakeClock
	ctrl   *Controller
	cycles atomic.Int32
	sink   *mockListener
}

func newHarness(t *testing.T, records int) *harness {
	t.Helper()
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	h := &harness{ledger: ledger.NewMemory(), clock: newFakeClock(), sink: &mockListener{}}
	for i := 0; i < records; i++ {
		ts := int64(1_700_000_000 + i*60)
		h.ledger.Append(sensor, ts, ts+1, ledger.EncodePayload(32, 70))
	}
	h.ledger.OnRecordCount(func() { h.cycles.Add(1) })
	h.ctrl = New(
		ledgerfetcher.New(h.ledger, 10),
		reconcile.New(h.ledger, reconcile.Options{Location: time.UTC}),
		WithClock(h.clock),
		WithListener(h.sink),
	)
	return h
}

func TestController_FirstCycleRunsImmediately(t *testing.T) {
	h := newHarness(t, 25)
	require.NoError(t, h.ctrl.Start(context.Background()))
	defer h.ctrl.Stop()
	h.clock.waitCycle(t)

	snapshot, errMsg := h.ctrl.Current()
	require.NotNil(t, snapshot)
	assert.Empty(t, errMsg)
	require.Len(t, snapshot.Records, 10)
	assert.Equal(t, uint64(24), snapshot.Records[0].Index, "newest first")
	assert.Equal(t, uint64(15), snapshot.Records[9].Index)
	assert.Equal(t, "32", snapshot.Latest.Temperature.Decimal.String())
	assert.NotEqual(t, model.Unresolved, snapshot.Records[0].TransactionID)
	assert.Equal(t, h.clock.Now(), snapshot.CapturedAt)
	assert.Equal(t, 1, h.sink.count())
}

func TestController_RepeatsOnTick(t *testing.T) {
	h := newHarness(t, 3)
	require.NoError(t, h.ctrl.Start(context.Background()))
	defer h.ctrl.Stop()

	h.clock.waitCycle(t)
	assert.Equal(t, int32(1), h.cycles.Load())

	h.ledger.Append(sensor, 1_800_000_000, 1_800_000_000, ledger.EncodePayload(40, 95))
	h.clock.Advance(DefaultInterval)
	h.clock.waitCycle(t)
	assert.Equal(t, int32(2), h.cycles.Load())

	snapshot := h.ctrl.CurrentSnapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, uint64(3), snapshot.Records[0].Index)
	assert.Equal(t, "40", snapshot.Latest.Temperature.Decimal.String())
	assert.Equal(t, 2, h.sink.count())
}

func TestController_StopPreventsFurtherCycles(t *testing.T) {
	h := newHarness(t, 3)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.clock.waitCycle(t)

	h.ctrl.Stop()
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
	}
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), h.cycles.Load())
	assert.Equal(t, 1, h.clock.timerCount())
	assert.True(t, h.clock.timers[0].stopped.Load(), "pending timer is released")
}

func TestController_ErrorKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t, 3)
	require.NoError(t, h.ctrl.Start(context.Background()))
	defer h.ctrl.Stop()
	h.clock.waitCycle(t)
	first := h.ctrl.CurrentSnapshot()
	require.NotNil(t, first)

	h.ledger.SetError(errors.New("rpc unavailable"))
	h.clock.Advance(DefaultInterval)
	h.clock.waitCycle(t)

	snapshot, errMsg := h.ctrl.Current()
	assert.Same(t, first, snapshot)
	assert.Equal(t, MsgFetchFailed, errMsg)
	assert.Equal(t, 1, h.sink.count(), "failed cycles are not published")

	h.ledger.SetError(nil)
	h.clock.Advance(DefaultInterval)
	h.clock.waitCycle(t)
	assert.Empty(t, h.ctrl.CurrentError())
	assert.NotSame(t, first, h.ctrl.CurrentSnapshot())
}

func TestController_NoData(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.ctrl.Start(context.Background()))
	defer h.ctrl.Stop()
	h.clock.waitCycle(t)

	assert.Nil(t, h.ctrl.CurrentSnapshot())
	assert.Equal(t, MsgNoData, h.ctrl.CurrentError())
	assert.Zero(t, h.sink.count())
}

func TestController_DecodeFailureMessage(t *testing.T) {
	h := newHarness(t, 2)
	h.ledger.Append(sensor, 1_800_000_000, 1_800_000_000, "!!")
	require.NoError(t, h.ctrl.Start(context.Background()))
	defer h.ctrl.Stop()
	h.clock.waitCycle(t)

	assert.Nil(t, h.ctrl.CurrentSnapshot())
	assert.Equal(t, MsgDecodeFailed, h.ctrl.CurrentError())
}

func TestController_InFlightResultDiscardedAfterStop(t *testing.T) {
	h := newHarness(t, 3)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.ledger.OnRecordCount(func() {
		close(entered)
		<-release
	})
	require.NoError(t, h.ctrl.Start(context.Background()))
	<-entered
	assert.Zero(t, h.clock.timerCount(), "next cycle is not scheduled while one is in flight")

	stopped := make(chan struct{})
	go func() {
		h.ctrl.Stop()
		close(stopped)
	}()
	assert.Eventually(t, h.ctrl.stopped.Load, time.Second, time.Millisecond)
	close(release)
	<-stopped

	assert.Nil(t, h.ctrl.CurrentSnapshot())
	assert.Zero(t, h.sink.count())
	assert.Zero(t, h.clock.timerCount())
}

func TestController_ContextCancellation(t *testing.T) {
	h := newHarness(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Run(ctx) }()
	h.clock.waitCycle(t)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestController_StartTwice(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.ctrl.Start(context.Background()))
	defer h.ctrl.Stop()
	assert.ErrorIs(t, h.ctrl.Start(context.Background()), ErrAlreadyStarted)
}

func TestController_StopBeforeStart(t *testing.T) {
	h := newHarness(t, 1)
	h.ctrl.Stop()
	require.NoError(t, h.ctrl.Run(context.Background()))
	assert.Zero(t, h.cycles.Load())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, MsgNoData, userMessage(model.ErrNoDataAvailable))
	assert.Equal(t, MsgDecodeFailed, userMessage(errors.Join(errors.New("x"), model.ErrPayloadDecode)))
	assert.Equal(t, MsgFetchFailed, userMessage(model.ErrLedgerQuery))
	assert.Equal(t, MsgFetchFailed, userMessage(errors.New("anything else")))
}
