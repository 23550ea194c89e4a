package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unresolved is assigned to records for which no ledger event could be matched.
const Unresolved = "unresolved"

// RawRecord is a record as the contract returns it, payload still encoded.
type RawRecord struct {
	Index     uint64
	Timestamp int64
	SensorID  string
	Payload   string
}

// StoredRecord is one decoded entry of the ledger's record list.
type StoredRecord struct {
	Index     uint64  `json:"index"`
	Timestamp int64   `json:"timestamp"`
	SensorID  string  `json:"sensor_id"`
	Reading   Reading `json:"reading"`
}

// LedgerEvent is a DataStored notification emitted alongside a record.
type LedgerEvent struct {
	Timestamp     int64  `json:"timestamp"`
	SensorID      string `json:"sensor_id"`
	TransactionID string `json:"transaction_id"`
	BlockNumber   uint64 `json:"block_number"`
	LogIndex      uint   `json:"log_index"`
}

// ReconciledRecord is a StoredRecord with its provenance resolved (or Unresolved).
type ReconciledRecord struct {
	StoredRecord
	TransactionID string `json:"transaction_id"`
	DisplayTime   string `json:"display_time"`
}

func (r ReconciledRecord) Resolved() bool {
	return r.TransactionID != Unresolved
}

// Reading is the decoded payload of a record. Values that are present but not
// numeric (e.g. "--") decode as invalid rather than failing.
type Reading struct {
	Temperature decimal.NullDecimal `json:"temperature"`
	Humidity    decimal.NullDecimal `json:"humidity"`
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	temp, ok := fields["temperature"]
	if !ok {
		return fmt.Errorf("payload has no temperature field")
	}
	hum, ok := fields["humidity"]
	if !ok {
		return fmt.Errorf("payload has no humidity field")
	}
	r.Temperature = parseMeasurement(temp)
	r.Humidity = parseMeasurement(hum)
	return nil
}

func parseMeasurement(raw json.RawMessage) decimal.NullDecimal {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return decimal.NullDecimal{}
	}
	s := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.NullDecimal{}
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
