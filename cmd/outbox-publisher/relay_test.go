package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/dbtest"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/metrics"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
	"github.com/storefront-labs/storefront-backend/pkg/outbox/payloads"
	"github.com/storefront-labs/storefront-backend/pkg/outbox/registry"
)

func orderRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now(), Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func newTestRelay(t *testing.T, store outboxStore, s sink, resolver eventResolver, maxAttempts int) *Relay {
	t.Helper()
	relay, err := NewRelay(RelayParams{
		Config:   config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		Logger:   logger.Nop(),
		DB:       fakeDB{},
		Store:    store,
		Resolver: resolver,
		Sink:     s,
	})
	require.NoError(t, err)
	return relay
}

func TestRelayBatchKeepsGoingAfterSendFailure(t *testing.T) {
	store := &fakeStore{rows: []models.OutboxEvent{orderRow(t, 0), orderRow(t, 0)}}
	s := &fakeSink{errs: []error{errors.New("transient"), nil}}
	relay := newTestRelay(t, store, s, fakeResolver{}, 5)

	n, err := relay.relayBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{store.rows[0].ID}, store.failed)
	assert.Equal(t, []uuid.UUID{store.rows[1].ID}, store.published)
	assert.Empty(t, store.parked)
}

func TestRelayParksUnresolvableRows(t *testing.T) {
	row := orderRow(t, 0)
	store := &fakeStore{rows: []models.OutboxEvent{row}}
	s := &fakeSink{}
	relay := newTestRelay(t, store, s, fakeResolver{err: registry.NewNonRetryableError(errors.New("bad payload"))}, 5)

	_, err := relay.relayBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{row.ID}, store.parked)
	assert.Equal(t, 5, store.parkedAt)
	assert.Empty(t, s.sent, "nothing is sent for a row that cannot be decoded")
}

func TestRelayParksOnLastAttempt(t *testing.T) {
	row := orderRow(t, 1)
	store := &fakeStore{rows: []models.OutboxEvent{row}}
	relay := newTestRelay(t, store, &fakeSink{errs: []error{errors.New("transient")}}, fakeResolver{}, 2)

	_, err := relay.relayBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{row.ID}, store.parked)
	assert.Equal(t, 2, store.parkedAt)
	assert.Empty(t, store.failed)
}

func TestRelayBookkeepingFailureAbortsBatch(t *testing.T) {
	store := &fakeStore{rows: []models.OutboxEvent{orderRow(t, 0)}, markErr: errors.New("db gone")}
	relay := newTestRelay(t, store, &fakeSink{}, fakeResolver{}, 5)

	_, err := relay.relayBatch(context.Background())
	assert.ErrorContains(t, err, "db gone")
}

func TestRelayTickRecordsJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &fakeStore{rows: []models.OutboxEvent{orderRow(t, 0)}}
	relay := newTestRelay(t, store, &fakeSink{}, fakeResolver{}, 5)
	relay.metrics = metrics.NewJobMetrics(reg)

	_, err := relay.tick(context.Background())
	require.NoError(t, err)
	count, err := testutil.GatherAndCount(reg, "storefront_job_success_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	store.fetchErr = errors.New("db down")
	_, err = relay.tick(context.Background())
	require.Error(t, err)
	count, err = testutil.GatherAndCount(reg, "storefront_job_failure_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRelayRunStopsWithContext(t *testing.T) {
	relay := newTestRelay(t, &fakeStore{}, &fakeSink{}, fakeResolver{}, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, relay.Run(ctx), context.DeadlineExceeded)
}

func TestRelayRunRequiresPubSub(t *testing.T) {
	relay := newTestRelay(t, &fakeStore{}, &fakeSink{pingErr: errors.New("unreachable")}, fakeResolver{}, 5)
	assert.ErrorContains(t, relay.Run(context.Background()), "pubsub ping")
}

// Real repository and registry on sqlite; only the broker is faked.
func TestRelayPublishesCommittedOrderEvent(t *testing.T) {
	conn := dbtest.OpenClient(t)
	repo := outbox.NewRepository(conn.DB())
	emitter := outbox.NewService(repo, logger.Nop())

	orderID := uuid.New()
	require.NoError(t, conn.WithTx(context.Background(), func(tx *gorm.DB) error {
		return emitter.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderCreatedEvent{
				OrderID:    orderID,
				CheckoutID: uuid.New(),
				UserID:     uuid.New(),
				TotalPrice: decimal.NewFromInt(40),
				ItemCount:  2,
				CreatedAt:  time.Now().UTC(),
			},
		})
	}))

	resolver, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "storefront-orders"})
	require.NoError(t, err)

	s := &fakeSink{}
	relay, err := NewRelay(RelayParams{
		Logger:   logger.Nop(),
		DB:       conn,
		Store:    repo,
		Resolver: resolver,
		Sink:     s,
	})
	require.NoError(t, err)

	n, err := relay.relayBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, s.sent, 1)
	assert.Equal(t, []string{"storefront-orders"}, s.topics)
	assert.Equal(t, orderID.String(), s.sent[0].Attributes["aggregate_id"])
	assert.Equal(t, string(enums.EventOrderCreated), s.sent[0].Attributes["event_type"])

	pending, err := repo.CountUnpublished(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestBackoffDoublesToCeilingAndResets(t *testing.T) {
	b := newBackoff(time.Second, 4*time.Second)
	within := func(d, base time.Duration) {
		t.Helper()
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/4)
	}

	within(b.next(), time.Second)
	within(b.next(), 2*time.Second)
	within(b.next(), 4*time.Second)
	within(b.next(), 4*time.Second)

	b.reset()
	within(b.next(), time.Second)
}

func TestPubSubSinkReusesPublishersAndRejectsUnknownTopics(t *testing.T) {
	src := &fakeSource{}
	s := newPubSubSink(src)

	_, err := s.Send(context.Background(), "missing", &gcppubsub.Message{})
	var nr registry.NonRetryableError
	assert.ErrorAs(t, err, &nr)
	assert.Equal(t, 1, src.lookups)

	_, _ = s.Send(context.Background(), "missing", &gcppubsub.Message{})
	assert.Equal(t, 2, src.lookups, "nil publishers are not cached")
	s.Stop()
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeStore struct {
	rows      []models.OutboxEvent
	fetchErr  error
	markErr   error
	published []uuid.UUID
	failed    []uuid.UUID
	parked    []uuid.UUID
	parkedAt  int
}

func (f *fakeStore) FetchUnpublishedForPublish(context.Context, *gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.rows, f.fetchErr
}

func (f *fakeStore) MarkPublished(_ *gorm.DB, id uuid.UUID, _ time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkFailed(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return f.markErr
}

func (f *fakeStore) MarkTerminal(_ *gorm.DB, id uuid.UUID, _ error, attempts int) error {
	f.parked = append(f.parked, id)
	f.parkedAt = attempts
	return f.markErr
}

type fakeResolver struct {
	err error
}

func (f fakeResolver) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "orders-topic", AggregateType: row.AggregateType},
		Envelope:   outbox.PayloadEnvelope{EventID: row.ID.String(), OccurredAt: time.Now()},
		Payload:    &payloads.OrderCreatedEvent{},
	}, nil
}

type fakeSink struct {
	pingErr error
	errs    []error
	sent    []*gcppubsub.Message
	topics  []string
}

func (f *fakeSink) Ping(context.Context) error { return f.pingErr }

func (f *fakeSink) Send(_ context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	f.sent = append(f.sent, msg)
	f.topics = append(f.topics, topic)
	if len(f.errs) == 0 {
		return "server-id", nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return "", err
}

type fakeSource struct {
	lookups int
}

func (f *fakeSource) Ping(context.Context) error { return nil }

func (f *fakeSource) Publisher(string) *gcppubsub.Publisher {
	f.lookups++
	return nil
}
