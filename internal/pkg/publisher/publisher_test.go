package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

type mockPublisher struct {
	WriteFunc func(ctx context.Context, snapshot *model.Snapshot) error
	writes    int
}

func (m *mockPublisher) Write(ctx context.Context, snapshot *model.Snapshot) error {
	m.writes++
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, snapshot)
	}
	return nil
}

func snapshot(index uint64, tx string) *model.Snapshot {
	return &model.Snapshot{Records: []model.ReconciledRecord{{
		StoredRecord:  model.StoredRecord{Index: index},
		TransactionID: tx,
	}}}
}

func TestRegisterPublisher_Duplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterPublisher("mqtt", &mockPublisher{}))
	assert.ErrorIs(t, r.RegisterPublisher("mqtt", &mockPublisher{}), errAlreadyRegistered)
}

func TestPublish_SkipsUnchangedHead(t *testing.T) {
	r := NewRegistry()
	p := &mockPublisher{}
	require.NoError(t, r.RegisterPublisher("redis", p))
	ctx := context.Background()

	r.Publish(ctx, snapshot(3, model.Unresolved))
	r.Publish(ctx, snapshot(3, model.Unresolved))
	assert.Equal(t, 1, p.writes)

	r.Publish(ctx, snapshot(3, "0xabc"))
	assert.Equal(t, 2, p.writes, "newly resolved transaction is republished")

	r.Publish(ctx, snapshot(4, "0xdef"))
	assert.Equal(t, 3, p.writes)
}

func TestPublish_FailedSinkIsRetried(t *testing.T) {
	r := NewRegistry()
	failing := &mockPublisher{WriteFunc: func(context.Context, *model.Snapshot) error { return errors.New("broker down") }}
	healthy := &mockPublisher{}
	require.NoError(t, r.RegisterPublisher("mqtt", failing))
	require.NoError(t, r.RegisterPublisher("ws", healthy))
	ctx := context.Background()

	r.Publish(ctx, snapshot(1, "0x1"))
	r.Publish(ctx, snapshot(1, "0x1"))
	assert.Equal(t, 2, failing.writes)
	assert.Equal(t, 1, healthy.writes)
}

func TestPublish_EmptySnapshot(t *testing.T) {
	r := NewRegistry()
	p := &mockPublisher{}
	require.NoError(t, r.RegisterPublisher("ws", p))
	r.Publish(context.Background(), &model.Snapshot{})
	r.Publish(context.Background(), nil)
	assert.Zero(t, p.writes)
}
