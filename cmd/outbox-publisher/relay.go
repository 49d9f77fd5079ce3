package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/metrics"
	"github.com/storefront-labs/storefront-backend/pkg/outbox/registry"
)

const (
	relayJobName = "outbox_relay"
	sendTimeout  = 15 * time.Second
	maxIdleDelay = 10 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxStore interface {
	FetchUnpublishedForPublish(ctx context.Context, tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailed(tx *gorm.DB, id uuid.UUID, cause error) error
	MarkTerminal(tx *gorm.DB, id uuid.UUID, cause error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// sink sends one message and blocks until the broker acknowledges it.
type sink interface {
	Ping(context.Context) error
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type RelayParams struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	Store    outboxStore
	Resolver eventResolver
	Sink     sink
	Metrics  *metrics.JobMetrics
}

// Relay moves committed outbox rows (order created, checkout paid) to Pub/Sub.
// Rows are claimed with SKIP LOCKED inside a transaction, so several relays can run side by side.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	store       outboxStore
	resolver    eventResolver
	sink        sink
	metrics     *metrics.JobMetrics
	batchSize   int
	maxAttempts int
	idle        *backoff
	now         func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Resolver == nil:
		return nil, errors.New("event resolver is required")
	case p.Sink == nil:
		return nil, errors.New("pubsub sink is required")
	}

	poll := time.Duration(p.Config.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Relay{
		logg:        p.Logger,
		db:          p.DB,
		store:       p.Store,
		resolver:    p.Resolver,
		sink:        p.Sink,
		metrics:     p.Metrics,
		batchSize:   positiveOr(p.Config.BatchSize, 50),
		maxAttempts: positiveOr(p.Config.MaxAttempts, 10),
		idle:        newBackoff(poll, maxIdleDelay),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run relays until ctx ends. Full batches are followed immediately by the next one; empty
// or failed batches wait, and repeated failures double the wait up to maxIdleDelay.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := r.sink.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.tick(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = r.idle.next()
		case n == 0:
			r.idle.reset()
			wait = r.idle.next()
		default:
			r.idle.reset()
			continue
		}

		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// tick relays one batch and reports how many rows it settled.
func (r *Relay) tick(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := r.relayBatch(ctx)
	if r.metrics != nil && (n > 0 || err != nil) {
		r.metrics.ObserveDuration(relayJobName, time.Since(start))
		if err != nil {
			r.metrics.IncFailure(relayJobName)
		} else {
			r.metrics.IncSuccess(relayJobName)
		}
	}
	return n, err
}

func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	settled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(ctx, tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		for _, row := range rows {
			if err := r.settle(ctx, tx, row, r.deliver(ctx, row)); err != nil {
				return err
			}
			settled++
		}
		return nil
	})
	return settled, err
}

type delivery struct {
	topic   string
	eventID string
	err     error
	// final marks errors that no retry can fix.
	final bool
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return delivery{err: err, final: isFinal(err)}
	}

	d := delivery{topic: resolved.Descriptor.Topic, eventID: resolved.Envelope.EventID}
	msg := &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, err := r.sink.Send(sendCtx, d.topic, msg); err != nil {
		d.err, d.final = err, isFinal(err)
	}
	return d
}

// settle records the delivery outcome on the row. Only bookkeeping errors abort the batch.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, d delivery) error {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt":        row.AttemptCount + 1,
		"topic":          d.topic,
		"event_id":       d.eventID,
	})

	if d.err == nil {
		if err := r.store.MarkPublished(tx, row.ID, r.now()); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.logg.Info(logCtx, "outbox event published")
		return nil
	}

	logCtx = r.logg.WithField(logCtx, "error", d.err.Error())
	if !d.final && row.AttemptCount+1 < r.maxAttempts {
		r.logg.Warn(logCtx, "outbox publish failed, will retry")
		if err := r.store.MarkFailed(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		return nil
	}

	cause := d.err
	if !d.final {
		cause = fmt.Errorf("gave up after %d attempts: %w", r.maxAttempts, d.err)
	}
	r.logg.Warn(logCtx, "outbox event parked")
	if err := r.store.MarkTerminal(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	return nil
}

func isFinal(err error) bool {
	var nr registry.NonRetryableError
	return errors.As(err, &nr)
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
