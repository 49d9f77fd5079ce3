package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/checkout"
	"github.com/storefront-labs/storefront-backend/pkg/db/dbtest"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
)

func TestOutboxRetentionJobPrunesOnlyOldPublishedRows(t *testing.T) {
	client := dbtest.OpenClient(t)
	conn := client.DB()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	insert := func(publishedAt *time.Time) uuid.UUID {
		event := &models.OutboxEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
			PublishedAt:   publishedAt,
		}
		require.NoError(t, conn.Create(event).Error)
		return event.ID
	}
	prunable := insert(&old)
	keptRecent := insert(&recent)
	keptPending := insert(nil)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         client,
		Repository: outbox.NewRepository(conn),
	})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Pluck("id", &remaining).Error)
	assert.ElementsMatch(t, []uuid.UUID{keptRecent, keptPending}, remaining)
	assert.NotContains(t, remaining, prunable)
}

type failingPruner struct{}

func (failingPruner) DeletePublishedBefore(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestOutboxRetentionJobPropagatesErrors(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         dbtest.OpenClient(t),
		Repository: failingPruner{},
	})
	require.NoError(t, err)
	assert.ErrorContains(t, job.Run(context.Background()), "outbox retention")
}

func TestCheckoutExpiryJobKeepsPaidAndRecentCheckouts(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Now().UTC()
	userID := uuid.New()

	insert := func(paid bool, createdAt time.Time) uuid.UUID {
		c := &models.Checkout{
			UserID:        userID,
			PaymentMethod: "PayPal",
			IsPaid:        paid,
			CreatedAt:     createdAt,
		}
		require.NoError(t, conn.Create(c).Error)
		return c.ID
	}
	abandoned := insert(false, now.Add(-100*time.Hour))
	paidOld := insert(true, now.Add(-100*time.Hour))
	fresh := insert(false, now.Add(-time.Hour))

	job, err := NewCheckoutExpiryJob(CheckoutExpiryJobParams{
		Logger:     logger.Nop(),
		Repository: checkout.NewRepository(conn),
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	var remaining []uuid.UUID
	require.NoError(t, conn.Model(&models.Checkout{}).Pluck("id", &remaining).Error)
	assert.ElementsMatch(t, []uuid.UUID{paidOld, fresh}, remaining)
	assert.NotContains(t, remaining, abandoned)
}
