package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
	"github.com/storefront-labs/storefront-backend/pkg/outbox/payloads"
	"github.com/storefront-labs/storefront-backend/pkg/types"
)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data []byte) types.RawJSON {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return types.RawJSON(raw)
}

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	data, err := json.Marshal(payloads.OrderCreatedEvent{OrderID: orderID, TotalPrice: decimal.NewFromInt(40), ItemCount: 2})
	require.NoError(t, err)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, data),
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, payload.TotalPrice.Equal(decimal.NewFromInt(40)))
}

func TestEventRegistryRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustEnvelope(t, []byte(`{"checkout_id":"`+uuid.NewString()+`"}`))

	cases := map[string]models.OutboxEvent{
		"unknown event": {EventType: "store_created", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: valid},
		"aggregate mismatch": {EventType: enums.EventCheckoutPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: valid},
		"missing aggregate id": {EventType: enums.EventCheckoutPaid, AggregateType: enums.AggregateCheckout, Payload: valid},
		"broken envelope": {EventType: enums.EventCheckoutPaid, AggregateType: enums.AggregateCheckout, AggregateID: uuid.New(), Payload: types.RawJSON(`{`)},
		"null data": {EventType: enums.EventCheckoutPaid, AggregateType: enums.AggregateCheckout, AggregateID: uuid.New(), Payload: mustEnvelope(t, []byte("null"))},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "expected non-retryable, got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	assert.Error(t, err)

	reg := newTestEventRegistry(t)
	assert.Equal(t, []string{"orders-topic"}, reg.Topics())
}
