package metrics

import (
	"context"

	"chefitup/internal/logging"
	"chefitup/internal/shared"

	"go.uber.org/zap"
)

// Recorder fans LLM call metadata out to the SQLite store and the
// Prometheus collector. Either may be nil.
type Recorder struct {
	store     *Store
	collector *Collector
	logger    *zap.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store *Store, collector *Collector, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, collector: collector, logger: logging.OrNop(logger)}
}

// RecordAgent stores one LLM call. Storage failures are logged, not returned.
func (r *Recorder) RecordAgent(ctx context.Context, meta shared.AgentMeta, callErr error) {
	if r == nil {
		return
	}
	r.collector.ObserveLLM(meta, callErr)

	if r.store == nil {
		return
	}
	if err := r.store.RecordMeta(ctx, meta); err != nil {
		r.logger.Warn("failed to record execution metric",
			zap.String("agent", meta.AgentName),
			zap.Error(err))
	}
}

// ObserveSearch counts one search answered by tier.
func (r *Recorder) ObserveSearch(tier string) {
	if r == nil {
		return
	}
	r.collector.ObserveSearch(tier)
}
