package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
	"github.com/anicoll/sensor-ledger/internal/pkg/quality"
)

// A record already archived only has its transaction id filled in once it
// resolves; ledger records themselves never change.
const upsertRecordSQL = `
	INSERT INTO ledger_record (ledger_index, sensor_id, recorded_at, temperature, humidity, tier, price_per_kg, transaction_id)
	VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6, $7, $8)
	ON CONFLICT (ledger_index) DO UPDATE SET transaction_id = EXCLUDED.transaction_id
	WHERE ledger_record.transaction_id = 'unresolved' AND EXCLUDED.transaction_id <> 'unresolved'
`

func (db *Database) Write(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil || len(snapshot.Records) == 0 {
		return nil
	}
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, rec := range snapshot.Records {
		result := quality.Classify(rec.Reading.Temperature, rec.Reading.Humidity)
		if _, err := tx.Exec(ctx, upsertRecordSQL,
			int64(rec.Index),
			rec.SensorID,
			time.Unix(rec.Timestamp, 0).UTC(),
			numericText(rec.Reading.Temperature),
			numericText(rec.Reading.Humidity),
			string(result.Tier),
			result.PricePerKg,
			rec.TransactionID,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	db.logger.Debug("archived snapshot", zap.Int("records", len(snapshot.Records)))
	return nil
}

func numericText(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
