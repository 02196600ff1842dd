package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shepherd/internal/audit/outbox"
	"shepherd/internal/platform/kafka/producer"
	"shepherd/internal/platform/metrics"
)

// Sink is where published outbox entries go. Satisfied by the Kafka producer;
// tests substitute a recording fake.
type Sink interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox table and publishes audit events to Kafka.
// Entries that fail to publish stay pending and are retried on the next poll;
// consumers must tolerate duplicates (publish and mark are not atomic).
type Worker struct {
	store        outbox.Store
	sink         Sink
	topic        string
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Worker.
type Option func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

// WithBatchSize sets the maximum number of entries to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a new outbox worker.
func New(store outbox.Store, sink Sink, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:        store,
		sink:         sink,
		topic:        "shepherd.audit.events",
		batchSize:    100,
		pollInterval: 100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop halts polling, drains one final batch, and waits for the loop to exit.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.poll(w.ctx)
		}
	}
}

// drain processes one last batch with a fresh context so shutdown does not
// abandon entries that are already fetched.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.poll(ctx)
}

// poll fetches and publishes a batch of outbox entries.
func (w *Worker) poll(ctx context.Context) {
	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to fetch outbox entries", "error", err)
		return
	}

	for _, entry := range entries {
		if err := w.publishEntry(ctx, entry); err != nil {
			w.logger.Error("failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			// Stays pending; retried on the next poll.
			continue
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, time.Now()); err != nil {
			w.logger.Error("failed to mark entry as processed",
				"id", entry.ID,
				"error", err,
			)
			// Published but not marked: will be re-published, consumers dedupe on event ID.
			continue
		}
		metrics.OutboxPublished.Inc()
	}

	if pending, err := w.store.CountPending(ctx); err == nil {
		metrics.OutboxPending.Set(float64(pending))
	}
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	return w.sink.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.AggregateID),
		Value: entry.Payload,
		Headers: map[string]string{
			"event_type":     entry.EventType,
			"aggregate_type": entry.AggregateType,
		},
	})
}
