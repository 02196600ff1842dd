// Package publisher provides the audit emission path used by every privileged
// mutation call site. Emission is fire-and-forget: a failed or dropped audit
// write never blocks or rolls back the primary mutation. Failures are logged
// and counted so they can be monitored separately.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"shepherd/internal/audit"
	"shepherd/internal/platform/middleware"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store   audit.Store
	events  chan audit.Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	dropped prometheus.Counter
	async   bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
			p.async = true
		}
	}
}

// WithLogger sets a logger for async error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithDropCounter sets the counter incremented when the buffer is full and an
// event is dropped.
func WithDropCounter(c prometheus.Counter) Option {
	return func(p *Publisher) {
		p.dropped = c
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

// processEvents runs in a goroutine and persists events from the channel.
func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		if _, err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"type", event.Type,
				"target_id", event.TargetID,
			)
		}
	}
}

// Close shuts down the async publisher and waits for pending events to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

// Emit records one audit event. In async mode it never blocks: when the buffer
// is full the event is dropped, logged, and counted. In sync mode append
// failures are logged but still not returned - audit capture must not fail
// the mutation it describes.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	event = withClientMetadata(ctx, event)
	if p.async {
		select {
		case p.events <- event:
		default:
			p.logger.Warn("audit buffer full, event dropped",
				"type", event.Type,
				"target_id", event.TargetID,
			)
			if p.dropped != nil {
				p.dropped.Inc()
			}
		}
		return
	}
	if _, err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to persist audit event",
			"error", err,
			"type", event.Type,
			"target_id", event.TargetID,
		)
		if p.dropped != nil {
			p.dropped.Inc()
		}
	}
}

// withClientMetadata attributes the event to the originating client when the
// HTTP metadata middleware ran for this request. Background callers (outbox
// worker, migrations) emit without it.
func withClientMetadata(ctx context.Context, event audit.Event) audit.Event {
	md := middleware.GetClientMetadata(ctx)
	if md.IP == "" && md.UserAgent == "" {
		return event
	}
	if event.Metadata == nil {
		event.Metadata = make(map[string]string, 2)
	}
	if _, ok := event.Metadata["ip"]; !ok && md.IP != "" {
		event.Metadata["ip"] = md.IP
	}
	if _, ok := event.Metadata["client"]; !ok && md.Client != "" {
		event.Metadata["client"] = md.Client
	}
	return event
}

// List exposes the store's filtered listing for the admin log viewer.
func (p *Publisher) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	return p.store.List(ctx, filter)
}
