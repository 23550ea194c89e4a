package server

import (
	"context"
	"encoding/json"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

type broadcaster interface {
	Broadcast(msg []byte) error
}

// SnapshotStream publishes snapshots to websocket subscribers.
type SnapshotStream struct {
	hub broadcaster
}

func NewSnapshotStream(hub broadcaster) *SnapshotStream {
	return &SnapshotStream{hub: hub}
}

func (s *SnapshotStream) Write(_ context.Context, snapshot *model.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.hub.Broadcast(data)
}
