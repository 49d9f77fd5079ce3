package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
)

const (
	TransitionCreate   = "create"
	TransitionPay      = "pay"
	TransitionFinalize = "finalize"
	TransitionMerge    = "merge"

	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

type CheckoutMetrics struct {
	transitions *prometheus.CounterVec
}

// NewCheckoutMetrics registers checkout_transitions_total on reg.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_transitions_total",
		Help: "Cart merge and checkout state transitions by outcome.",
	}, []string{"transition", "result"})
	reg.MustRegister(transitions)
	return &CheckoutMetrics{transitions: transitions}
}

// Record counts one attempted transition. Rejections are caller errors (validation, state,
// conflict); errors are storage or unexpected failures.
func (m *CheckoutMetrics) Record(transition, result string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(transition), normalizeLabel(result)).Inc()
}

// ResultFor classifies the outcome of a transition for Record.
func ResultFor(err error) string {
	if err == nil {
		return ResultOK
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() == pkgerrors.CodeInternal || typed.Code() == pkgerrors.CodeDependency {
		return ResultError
	}
	return ResultRejected
}
