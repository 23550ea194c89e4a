package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

const (
	// Tolerance is the exclusive bound on |event.Timestamp - record.Timestamp| in seconds.
	Tolerance int64 = 2
	// DisplayLayout formats ReconciledRecord.DisplayTime.
	DisplayLayout = "2006-01-02 15:04:05"

	retainSlack = int64(time.Hour / time.Second)
)

type eventReader interface {
	LatestBlock(ctx context.Context) (uint64, error)
	QueryEvents(ctx context.Context, fromBlock, toBlock uint64) ([]model.LedgerEvent, error)
}

type Options struct {
	// FromBlock is the first block ever scanned (contract deployment block).
	FromBlock uint64
	// ReorgDepth blocks below the cursor are re-queried every cycle.
	ReorgDepth uint64
	// FullRescan queries [FromBlock, head] every cycle and keeps no cache.
	FullRescan bool
	Location   *time.Location
}

type eventKey struct {
	tx       string
	logIndex uint
}

// Reconciler recovers the transaction behind each record by matching it to a
// DataStored event on sensor id and timestamp proximity. The record itself
// carries no transaction id, so a match is a best-effort correlation only.
//
// Between cycles it keeps the events already seen and the last scanned block,
// so each cycle only asks the ledger for new blocks.
type Reconciler struct {
	ledger eventReader
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	events  map[eventKey]model.LedgerEvent
	cursor  uint64
	scanned bool
}

func New(ledger eventReader, opts Options) *Reconciler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Reconciler{
		ledger: ledger,
		opts:   opts,
		logger: zap.L(),
		events: map[eventKey]model.LedgerEvent{},
	}
}

// Reconcile returns the records, in the same order, with their transaction ids
// resolved. A ledger failure fails the whole call and leaves the cursor untouched.
func (r *Reconciler) Reconcile(ctx context.Context, records []model.StoredRecord) ([]model.ReconciledRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.refresh(ctx, records)
	if err != nil {
		return nil, err
	}

	out := make([]model.ReconciledRecord, 0, len(records))
	unresolved := 0
	for _, rec := range records {
		txID := model.Unresolved
		if ev, ok := Match(rec, events); ok {
			txID = ev.TransactionID
		} else {
			unresolved++
		}
		out = append(out, model.ReconciledRecord{
			StoredRecord:  rec,
			TransactionID: txID,
			DisplayTime:   time.Unix(rec.Timestamp, 0).In(r.opts.Location).Format(DisplayLayout),
		})
	}
	if unresolved > 0 {
		r.logger.Debug("records without a matching event", zap.Int("unresolved", unresolved), zap.Int("records", len(records)))
	}
	return out, nil
}

// refresh brings the event cache up to the current head and returns its contents.
func (r *Reconciler) refresh(ctx context.Context, records []model.StoredRecord) ([]model.LedgerEvent, error) {
	head, err := r.ledger.LatestBlock(ctx)
	if err != nil {
		return nil, ledgerErr(err)
	}

	from := r.opts.FromBlock
	if r.scanned && !r.opts.FullRescan {
		from = r.resumeBlock(head)
	}

	var fresh []model.LedgerEvent
	if from <= head {
		fresh, err = r.ledger.QueryEvents(ctx, from, head)
		if err != nil {
			return nil, ledgerErr(err)
		}
	}

	if r.opts.FullRescan {
		// Keep the ledger's order so the result does not depend on map iteration.
		r.cursor, r.scanned = head, true
		return fresh, nil
	}

	for key, ev := range r.events {
		if ev.BlockNumber >= from {
			delete(r.events, key)
		}
	}
	for _, ev := range fresh {
		r.events[eventKey{tx: ev.TransactionID, logIndex: ev.LogIndex}] = ev
	}
	r.cursor, r.scanned = head, true
	r.prune(records)

	r.logger.Debug("event cache refreshed", zap.Uint64("from_block", from), zap.Uint64("head", head), zap.Int("new_events", len(fresh)), zap.Int("cached", len(r.events)))
	return lo.Values(r.events), nil
}

// resumeBlock is the first block to re-query: just past the cursor, minus the
// reorg margin, never before FromBlock. A head that went backwards is treated the same way.
func (r *Reconciler) resumeBlock(head uint64) uint64 {
	base := r.cursor + 1
	if head < r.cursor {
		base = head + 1
	}
	from := uint64(0)
	if base > r.opts.ReorgDepth {
		from = base - r.opts.ReorgDepth
	}
	return max(from, r.opts.FromBlock)
}

// prune drops events too old to ever match a record of this window or a later one.
func (r *Reconciler) prune(records []model.StoredRecord) {
	if len(records) == 0 {
		return
	}
	oldest := slices.MinFunc(records, func(a, b model.StoredRecord) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	}).Timestamp
	cutoff := oldest - Tolerance - retainSlack
	for key, ev := range r.events {
		if ev.Timestamp <= cutoff {
			delete(r.events, key)
		}
	}
}

// Match picks the event for rec: same sensor id, |dt| < Tolerance. Several
// candidates are ordered by smallest |dt|, then lowest block, then lowest log index.
func Match(rec model.StoredRecord, events []model.LedgerEvent) (model.LedgerEvent, bool) {
	candidates := lo.Filter(events, func(ev model.LedgerEvent, _ int) bool {
		return ev.SensorID == rec.SensorID && delta(ev.Timestamp, rec.Timestamp) < Tolerance
	})
	if len(candidates) == 0 {
		return model.LedgerEvent{}, false
	}
	best := lo.MinBy(candidates, func(a, b model.LedgerEvent) bool {
		da, db := delta(a.Timestamp, rec.Timestamp), delta(b.Timestamp, rec.Timestamp)
		if da != db {
			return da < db
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.LogIndex != b.LogIndex {
			return a.LogIndex < b.LogIndex
		}
		return a.TransactionID < b.TransactionID
	})
	return best, true
}

func delta(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

func ledgerErr(err error) error {
	if errors.Is(err, model.ErrLedgerQuery) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrLedgerQuery, err)
}
