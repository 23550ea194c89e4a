package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Database archives reconciled records. It is a write-only sink for the poller;
// reads only serve the archive endpoint.
type Database struct {
	pool      *pgxpool.Pool
	retention time.Duration
	logger    *zap.Logger
}

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewDatabase(pool *pgxpool.Pool, retentionDays int) *Database {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Database{
		pool:      pool,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    zap.L(),
	}
}

func (db *Database) Close() error {
	if db.pool == nil {
		return nil
	}
	db.pool.Close()
	return nil
}

func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Record is one archived row.
type Record struct {
	LedgerIndex   uint64    `json:"ledger_index"`
	SensorID      string    `json:"sensor_id"`
	RecordedAt    time.Time `json:"recorded_at"`
	Temperature   *string   `json:"temperature"`
	Humidity      *string   `json:"humidity"`
	Tier          string    `json:"tier"`
	PricePerKg    int64     `json:"price_per_kg"`
	TransactionID string    `json:"transaction_id"`
	ArchivedAt    time.Time `json:"archived_at"`
}
type Records []Record
