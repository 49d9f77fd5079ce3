package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentStatusIsCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"paid", "PAID", " Paid "} {
		status, err := ParsePaymentStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, PaymentStatusPaid, status)
	}

	_, err := ParsePaymentStatus("completed")
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
	assert.True(t, RoleCustomer.IsValid())

	_, err = ParseRole("root")
	assert.Error(t, err)
	assert.False(t, Role("root").IsValid())
}

func TestOrderStatusValues(t *testing.T) {
	assert.True(t, OrderStatusProcessing.IsValid())
	_, err := ParseOrderStatus("processing")
	assert.Error(t, err, "order statuses are case-sensitive")
}

func TestOutboxEnums(t *testing.T) {
	ev, err := ParseOutboxEventType("order_created")
	require.NoError(t, err)
	assert.Equal(t, EventOrderCreated, ev)
	assert.False(t, OutboxAggregateType("store").IsValid())
	assert.True(t, GenderUnisex.IsValid())
}
