package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const (
	DefaultReadLimit = 50
	MaxReadLimit     = 1000
)

// GetRecords returns archived records newest first, optionally for a single sensor.
func (db *Database) GetRecords(ctx context.Context, sensorID string, limit int) (Records, error) {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	limit = min(limit, MaxReadLimit)

	const query = `
	SELECT ledger_index, sensor_id, recorded_at, temperature::text, humidity::text, tier, price_per_kg, transaction_id, archived_at
	FROM ledger_record
	WHERE ($1 = '' OR sensor_id = $1)
	ORDER BY ledger_index DESC
	LIMIT $2;
	`

	rows, err := db.pool.Query(ctx, query, sensorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) (Records, error) {
	records := Records{}
	for rows.Next() {
		var (
			record Record
			index  int64
		)
		if err := rows.Scan(&index, &record.SensorID, &record.RecordedAt, &record.Temperature, &record.Humidity,
			&record.Tier, &record.PricePerKg, &record.TransactionID, &record.ArchivedAt); err != nil {
			return nil, err
		}
		record.LedgerIndex = uint64(index)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return records, nil
		}
		return nil, err
	}

	return records, nil
}
