package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

const defaultCheckoutTTL = 72 * time.Hour

type abandonedCheckouts interface {
	DeleteAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type CheckoutExpiryJobParams struct {
	Logger     *logger.Logger
	Repository abandonedCheckouts
	TTL        time.Duration
}

// NewCheckoutExpiryJob deletes checkouts left unpaid past the TTL. Paid checkouts are kept
// whether or not they were finalized.
func NewCheckoutExpiryJob(params CheckoutExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultCheckoutTTL
	}
	return &checkoutExpiryJob{logg: params.Logger, repo: params.Repository, ttl: ttl, now: time.Now}, nil
}

type checkoutExpiryJob struct {
	logg *logger.Logger
	repo abandonedCheckouts
	ttl  time.Duration
	now  func() time.Time
}

func (j *checkoutExpiryJob) Name() string { return "checkout-expiry" }

func (j *checkoutExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	deleted, err := j.repo.DeleteAbandonedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire checkouts: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "checkout.expiry.complete")
	return nil
}
