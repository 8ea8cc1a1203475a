package analytics

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/manufactureflow/backend/internal/relay"
)

// Publisher periodically broadcasts metric snapshots over the relay so
// connected dashboards refresh without polling.
type Publisher struct {
	service   *Service
	publisher relay.Publisher
	interval  time.Duration
	logger    *zap.Logger
}

// NewPublisher constructs a metrics publisher. Interval must be positive.
func NewPublisher(service *Service, publisher relay.Publisher, interval time.Duration, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		service:   service,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

// Run broadcasts a snapshot every interval until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	snapshot, err := p.service.ComputeSnapshot(ctx)
	if err != nil {
		p.logger.Warn("metrics snapshot failed", zap.Error(err))
		return
	}
	metrics, err := json.Marshal(snapshot)
	if err != nil {
		p.logger.Warn("metrics snapshot not encodable", zap.Error(err))
		return
	}
	envelope, err := relay.NewEnvelope(relay.TopicMetricsUpdated, relay.MetricsEvent{
		Type:    "analytics",
		Metrics: metrics,
	})
	if err != nil {
		p.logger.Warn("metrics envelope not encodable", zap.Error(err))
		return
	}
	p.publisher.Publish("", envelope)
}
