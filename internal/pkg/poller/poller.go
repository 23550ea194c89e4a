package poller

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/contxt"
	"github.com/anicoll/sensor-ledger/internal/pkg/metrics"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

const (
	DefaultInterval     = 5 * time.Second
	DefaultCycleTimeout = 30 * time.Second

	MsgNoData       = "no data has been stored on the ledger yet"
	MsgDecodeFailed = "ledger records could not be decoded"
	MsgFetchFailed  = "failed to fetch data from the ledger"
)

var ErrAlreadyStarted = errors.New("poller already started")

type fetcher interface {
	Fetch(ctx context.Context) ([]model.StoredRecord, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, records []model.StoredRecord) ([]model.ReconciledRecord, error)
}

type listener interface {
	Publish(ctx context.Context, snapshot *model.Snapshot)
}

type state struct {
	snapshot *model.Snapshot
	errMsg   string
}

// Controller runs fetch and reconcile once immediately and then every interval,
// measured from the end of the previous cycle, so cycles never overlap.
type Controller struct {
	fetcher      fetcher
	reconciler   reconciler
	listeners    []listener
	interval     time.Duration
	cycleTimeout time.Duration
	clock        Clock
	logger       *zap.Logger

	current atomic.Pointer[state]

	mu       sync.Mutex
	started  bool
	stopped  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type Option func(*Controller)

func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithCycleTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.cycleTimeout = d
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithListener is notified after every committed snapshot.
func WithListener(l listener) Option {
	return func(c *Controller) {
		c.listeners = append(c.listeners, l)
	}
}

func New(f fetcher, r reconciler, opts ...Option) *Controller {
	c := &Controller{
		fetcher:      f,
		reconciler:   r,
		interval:     DefaultInterval,
		cycleTimeout: DefaultCycleTimeout,
		clock:        realClock{},
		logger:       zap.L(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.current.Store(&state{})
	return c
}

// Start runs the poll loop in the background.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.markStarted(); err != nil {
		return err
	}
	go func() {
		_ = c.loop(ctx)
	}()
	return nil
}

// Run is the blocking form of Start. It returns nil after Stop and ctx.Err() on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.markStarted(); err != nil {
		return err
	}
	return c.loop(ctx)
}

func (c *Controller) markStarted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	return nil
}

// Stop prevents any further cycle from being scheduled and waits for the loop to
// exit. A cycle already in flight is not interrupted; its result is discarded.
func (c *Controller) Stop() {
	c.stopped.Store(true)
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

// CurrentSnapshot is nil until the first successful cycle.
func (c *Controller) CurrentSnapshot() *model.Snapshot {
	return c.current.Load().snapshot
}

// CurrentError is the user-facing message of the last cycle, "" when it succeeded.
func (c *Controller) CurrentError() string {
	return c.current.Load().errMsg
}

// Current returns snapshot and error as one consistent pair.
func (c *Controller) Current() (*model.Snapshot, string) {
	s := c.current.Load()
	return s.snapshot, s.errMsg
}

func (c *Controller) loop(ctx context.Context) error {
	defer close(c.done)
	c.logger.Info("poller started", zap.Duration("interval", c.interval))
	for {
		if c.stopped.Load() {
			c.logger.Info("poller stopped")
			return nil
		}
		c.cycle(ctx)
		if c.stopped.Load() {
			c.logger.Info("poller stopped")
			return nil
		}

		timer := c.clock.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("poller context done")
			return ctx.Err()
		case <-c.stop:
			timer.Stop()
			c.logger.Info("poller stopped")
			return nil
		case <-timer.C():
		}
	}
}

func (c *Controller) cycle(parent context.Context) {
	ctx, cancel := contxt.Detached(parent, c.cycleTimeout)
	defer cancel()

	start := c.clock.Now()
	snapshot, err := c.collect(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.CycleTotal.WithLabelValues(status).Inc()
	metrics.CycleDuration.WithLabelValues(status).Observe(c.clock.Now().Sub(start).Seconds())

	if c.stopped.Load() || parent.Err() != nil {
		c.logger.Debug("discarding cycle result after stop", zap.Error(err))
		return
	}

	if err != nil {
		prev := c.current.Load()
		c.current.Store(&state{snapshot: prev.snapshot, errMsg: userMessage(err)})
		if errors.Is(err, model.ErrNoDataAvailable) {
			c.logger.Info("ledger has no records yet")
		} else {
			c.logger.Error("poll cycle failed", zap.Error(err))
		}
		return
	}

	c.current.Store(&state{snapshot: snapshot})
	unresolved := 0
	for _, r := range snapshot.Records {
		if !r.Resolved() {
			unresolved++
		}
	}
	metrics.UnresolvedRecords.Set(float64(unresolved))
	if head, ok := snapshot.Head(); ok {
		metrics.LatestRecordIndex.Set(float64(head.Index))
	}
	c.logger.Debug("snapshot updated", zap.Int("records", len(snapshot.Records)), zap.Int("unresolved", unresolved))

	for _, l := range c.listeners {
		l.Publish(ctx, snapshot)
	}
}

func (c *Controller) collect(ctx context.Context) (*model.Snapshot, error) {
	records, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	reconciled, err := c.reconciler.Reconcile(ctx, records)
	if err != nil {
		return nil, err
	}
	// oldest first from the ledger, newest first for display
	slices.Reverse(reconciled)
	snapshot := &model.Snapshot{
		Records:    reconciled,
		CapturedAt: c.clock.Now(),
	}
	if head, ok := snapshot.Head(); ok {
		snapshot.Latest = head.Reading
	}
	return snapshot, nil
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrNoDataAvailable):
		return MsgNoData
	case errors.Is(err, model.ErrPayloadDecode):
		return MsgDecodeFailed
	default:
		return MsgFetchFailed
	}
}
