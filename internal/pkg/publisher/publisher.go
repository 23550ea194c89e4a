package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/metrics"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

type publisher interface {
	// Write hands a freshly committed snapshot to the sink.
	Write(ctx context.Context, snapshot *model.Snapshot) error
}

// Registry fans snapshots out to every registered sink. A sink is only written
// again once the head of the snapshot changes (new record or newly resolved tx).
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]publisher
	published  sync.Map // publisher name -> last head fingerprint
	logger     *zap.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		publishers: make(map[string]publisher),
		logger:     zap.L(),
	}
}

func (r *Registry) RegisterPublisher(name string, p publisher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.publishers[name]; ok {
		return fmt.Errorf("%w: %s", errAlreadyRegistered, name)
	}
	r.publishers[name] = p
	r.logger.Info("registered publisher", zap.String("publisher", name))
	return nil
}

// Publish never fails the caller; sink errors are logged and the sink is retried next time.
func (r *Registry) Publish(ctx context.Context, snapshot *model.Snapshot) {
	head, ok := snapshot.Head()
	if !ok {
		return
	}
	key := fingerprint(head)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, p := range r.publishers {
		if !r.shouldUpdate(name, key) {
			continue
		}
		if err := p.Write(ctx, snapshot); err != nil {
			r.logger.Error("failed to publish snapshot", zap.Error(err), zap.String("publisher", name))
			metrics.PublishTotal.WithLabelValues(name, "error").Inc()
			continue
		}
		r.published.Store(name, key)
		metrics.PublishTotal.WithLabelValues(name, "ok").Inc()
		r.logger.Debug("published snapshot", zap.String("publisher", name), zap.Uint64("head_index", head.Index))
	}
}

func (r *Registry) shouldUpdate(name, key string) bool {
	last, exists := r.published.Load(name)
	return !exists || last.(string) != key
}

func fingerprint(head model.ReconciledRecord) string {
	return fmt.Sprintf("%d_%s", head.Index, head.TransactionID)
}
