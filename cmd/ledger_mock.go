package cmd

import (
	"context"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

// MockLedger is a mock implementation of Ledger.
type MockLedger struct {
	RecordCountFunc func(ctx context.Context) (uint64, error)
	GetRecordFunc   func(ctx context.Context, index uint64) (model.RawRecord, error)
	LatestBlockFunc func(ctx context.Context) (uint64, error)
	QueryEventsFunc func(ctx context.Context, fromBlock, toBlock uint64) ([]model.LedgerEvent, error)
}

// RecordCount calls RecordCountFunc if set, otherwise reports an empty ledger.
func (m *MockLedger) RecordCount(ctx context.Context) (uint64, error) {
	if m.RecordCountFunc != nil {
		return m.RecordCountFunc(ctx)
	}
	return 0, nil
}

// GetRecord calls GetRecordFunc if set.
func (m *MockLedger) GetRecord(ctx context.Context, index uint64) (model.RawRecord, error) {
	if m.GetRecordFunc != nil {
		return m.GetRecordFunc(ctx, index)
	}
	return model.RawRecord{}, nil
}

// LatestBlock calls LatestBlockFunc if set.
func (m *MockLedger) LatestBlock(ctx context.Context) (uint64, error) {
	if m.LatestBlockFunc != nil {
		return m.LatestBlockFunc(ctx)
	}
	return 0, nil
}

// QueryEvents calls QueryEventsFunc if set.
func (m *MockLedger) QueryEvents(ctx context.Context, fromBlock, toBlock uint64) ([]model.LedgerEvent, error) {
	if m.QueryEventsFunc != nil {
		return m.QueryEventsFunc(ctx, fromBlock, toBlock)
	}
	return nil, nil
}

// Compile-time check to ensure MockLedger implements Ledger.
var _ Ledger = (*MockLedger)(nil)
