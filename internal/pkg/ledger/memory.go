package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

// EncodePayload produces the on-chain payload format written by the sensor gateway:
// base64 of {"temperature": t, "humidity": h} with one decimal.
func EncodePayload(temperature, humidity float64) string {
	doc := fmt.Sprintf(`{"temperature": %.1f, "humidity": %.1f}`, temperature, humidity)
	return base64.StdEncoding.EncodeToString([]byte(doc))
}

// Memory is an in-process ledger. Every append is mined into its own block and
// emits a matching DataStored event. Used for simulation and tests.
type Memory struct {
	mu        sync.Mutex
	records   []model.RawRecord
	events    []model.LedgerEvent
	head      uint64
	mined     uint64
	err       error
	queries   [][2]uint64
	countHook func()
}

func NewMemory() *Memory {
	return &Memory{}
}

// Append stores a record with the given block timestamp and emits its event with
// eventTimestamp, which may differ from the record's by clock skew.
func (m *Memory) Append(sensorID string, timestamp, eventTimestamp int64, payload string) model.LedgerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head++
	m.mined++
	index := uint64(len(m.records))
	m.records = append(m.records, model.RawRecord{
		Index:     index,
		Timestamp: timestamp,
		SensorID:  sensorID,
		Payload:   payload,
	})
	ev := model.LedgerEvent{
		Timestamp:     eventTimestamp,
		SensorID:      sensorID,
		TransactionID: txHash(m.mined),
		BlockNumber:   m.head,
	}
	m.events = append(m.events, ev)
	return ev
}

// Emit adds an event without a record, mined into a new block.
func (m *Memory) Emit(ev model.LedgerEvent) model.LedgerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head++
	m.mined++
	ev.BlockNumber = m.head
	m.events = append(m.events, ev)
	return ev
}

// Rewind drops the last depth blocks and their events, so the head goes backwards.
func (m *Memory) Rewind(depth uint64) []model.LedgerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewind(depth)
}

func (m *Memory) rewind(depth uint64) []model.LedgerEvent {
	m.head -= min(depth, m.head)
	var dropped []model.LedgerEvent
	m.events = slices.DeleteFunc(m.events, func(ev model.LedgerEvent) bool {
		if ev.BlockNumber > m.head {
			dropped = append(dropped, ev)
			return true
		}
		return false
	})
	return dropped
}

// Reorg replaces the last depth blocks with blocks of the same height. Their
// events are mined again under new transaction hashes, which it returns.
func (m *Memory) Reorg(depth uint64) []model.LedgerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	tip := m.head
	var remined []model.LedgerEvent
	for _, ev := range m.rewind(depth) {
		m.mined++
		ev.TransactionID = txHash(m.mined)
		remined = append(remined, ev)
	}
	m.events = append(m.events, remined...)
	m.head = tip
	return remined
}

func txHash(n uint64) string {
	return fmt.Sprintf("0x%064x", n)
}

// SetError makes every subsequent call fail with err until cleared with nil.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// OnRecordCount registers a hook run at the start of every RecordCount call.
func (m *Memory) OnRecordCount(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countHook = f
}

// Queries returns the [from, to] block ranges requested so far.
func (m *Memory) Queries() [][2]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]uint64(nil), m.queries...)
}

func (m *Memory) failure() error {
	if m.err != nil {
		return fmt.Errorf("%w: %w", model.ErrLedgerQuery, m.err)
	}
	return nil
}

func (m *Memory) RecordCount(_ context.Context) (uint64, error) {
	m.mu.Lock()
	hook := m.countHook
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(); err != nil {
		return 0, err
	}
	return uint64(len(m.records)), nil
}

func (m *Memory) GetRecord(_ context.Context, index uint64) (model.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(); err != nil {
		return model.RawRecord{}, err
	}
	if index >= uint64(len(m.records)) {
		return model.RawRecord{}, fmt.Errorf("%w: record %d out of range", model.ErrLedgerQuery, index)
	}
	return m.records[index], nil
}

func (m *Memory) LatestBlock(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(); err != nil {
		return 0, err
	}
	return m.head, nil
}

func (m *Memory) QueryEvents(_ context.Context, fromBlock, toBlock uint64) ([]model.LedgerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, [2]uint64{fromBlock, toBlock})
	if err := m.failure(); err != nil {
		return nil, err
	}
	out := []model.LedgerEvent{}
	for _, ev := range m.events {
		if ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Simulate appends a plausible fermentation reading for sensorID every interval
// until ctx is done.
func (m *Memory) Simulate(ctx context.Context, sensorID string, interval time.Duration) {
	logger := zap.L()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		now := time.Now().Unix()
		temp := 27 + rand.Float64()*10
		hum := 55 + rand.Float64()*30
		ev := m.Append(sensorID, now, now, EncodePayload(temp, hum))
		logger.Debug("simulated reading stored", zap.String("sensor_id", sensorID), zap.String("tx", ev.TransactionID))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
