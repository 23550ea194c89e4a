package model

import "errors"

var (
	// ErrNoDataAvailable is returned when the ledger holds no records yet.
	ErrNoDataAvailable = errors.New("no data available on ledger")
	// ErrPayloadDecode is returned when a record payload cannot be decoded.
	// A single bad record fails the whole batch.
	ErrPayloadDecode = errors.New("failed to decode record payload")
	// ErrLedgerQuery wraps any transport or contract call failure, including a missing provider.
	ErrLedgerQuery = errors.New("ledger query failed")
)
