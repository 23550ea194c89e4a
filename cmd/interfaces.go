package cmd

import (
	"context"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

// Ledger is the read-only view of the SensorStorage contract that serve needs.
type Ledger interface {
	RecordCount(ctx context.Context) (uint64, error)
	GetRecord(ctx context.Context, index uint64) (model.RawRecord, error)
	LatestBlock(ctx context.Context) (uint64, error)
	QueryEvents(ctx context.Context, fromBlock, toBlock uint64) ([]model.LedgerEvent, error)
}
