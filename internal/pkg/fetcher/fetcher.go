package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

const DefaultLimit = 10

type recordReader interface {
	RecordCount(ctx context.Context) (uint64, error)
	GetRecord(ctx context.Context, index uint64) (model.RawRecord, error)
}

type Fetcher struct {
	ledger recordReader
	limit  uint64
	logger *zap.Logger
}

func New(ledger recordReader, limit int) *Fetcher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Fetcher{
		ledger: ledger,
		limit:  uint64(limit),
		logger: zap.L(),
	}
}

// Fetch returns the last min(limit, count) records, oldest first. Any payload
// that fails to decode fails the whole batch.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.StoredRecord, error) {
	count, err := f.ledger.RecordCount(ctx)
	if err != nil {
		return nil, ledgerErr(err)
	}
	if count == 0 {
		return nil, model.ErrNoDataAvailable
	}

	start := uint64(0)
	if count > f.limit {
		start = count - f.limit
	}

	records := make([]model.StoredRecord, 0, count-start)
	for i := start; i < count; i++ {
		raw, err := f.ledger.GetRecord(ctx, i)
		if err != nil {
			return nil, ledgerErr(err)
		}
		record, err := Decode(raw)
		if err != nil {
			f.logger.Warn("discarding batch, record payload is malformed", zap.Uint64("index", i), zap.String("sensor_id", raw.SensorID), zap.Error(err))
			return nil, err
		}
		records = append(records, record)
	}
	f.logger.Debug("fetched records", zap.Uint64("count", count), zap.Uint64("from", start), zap.Int("fetched", len(records)))
	return records, nil
}

// Decode turns the base64 encoded JSON payload of a record into a reading.
func Decode(raw model.RawRecord) (model.StoredRecord, error) {
	doc, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw.Payload))
	if err != nil {
		return model.StoredRecord{}, fmt.Errorf("%w: record %d: base64: %w", model.ErrPayloadDecode, raw.Index, err)
	}
	reading := model.Reading{}
	if err := json.Unmarshal(doc, &reading); err != nil {
		return model.StoredRecord{}, fmt.Errorf("%w: record %d: %w", model.ErrPayloadDecode, raw.Index, err)
	}
	return model.StoredRecord{
		Index:     raw.Index,
		Timestamp: raw.Timestamp,
		SensorID:  raw.SensorID,
		Reading:   reading,
	}, nil
}

func ledgerErr(err error) error {
	if errors.Is(err, model.ErrLedgerQuery) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrLedgerQuery, err)
}
