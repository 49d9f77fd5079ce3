package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks where a checkout session sits in the payment flow.
// The paid literal is lower case; clients and stored rows depend on it.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
}

func (s PaymentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known payment status.
func (s PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentStatus matches case-insensitively and returns the canonical value.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validPaymentStatuses {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
