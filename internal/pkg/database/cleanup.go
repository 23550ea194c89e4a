package database

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cleanup removes archived records older than the retention period.
func (db *Database) Cleanup(ctx context.Context) error {
	tag, err := db.pool.Exec(ctx, "DELETE FROM ledger_record WHERE archived_at < $1", time.Now().Add(-db.retention))
	if err != nil {
		return err
	}
	db.logger.Info("archive cleanup done", zap.Int64("deleted", tag.RowsAffected()))
	return nil
}
