package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics records business-level counters for the storefront.
type CoreMetrics struct {
	ordersCreated    *prometheus.CounterVec
	statusChanges    *prometheus.CounterVec
	rentalsSpawned   prometheus.Counter
	paymentsRecorded prometheus.Counter
	paymentCents     prometheus.Counter
	piiReveals       *prometheus.CounterVec
	emailsSent       *prometheus.CounterVec
}

// NewCoreMetrics registers the storefront metrics on the provided registerer.
func NewCoreMetrics(reg prometheus.Registerer) *CoreMetrics {
	if reg == nil {
		return &CoreMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders accepted through checkout.",
	}, []string{"status"})
	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_changes_total",
		Help: "Order status transitions applied by admins.",
	}, []string{"to"})
	rentalsSpawned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rentals_spawned_total",
		Help: "Rentals created from fulfilled orders.",
	})
	paymentsRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rental_payments_recorded_total",
		Help: "Rental payments appended to the ledger.",
	})
	paymentCents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rental_payment_cents_total",
		Help: "Cents billed across all recorded rental payments.",
	})
	piiReveals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pii_reveals_total",
		Help: "Identity reveal attempts by outcome.",
	}, []string{"outcome"})
	emailsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_emails_total",
		Help: "Notification email deliveries by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(ordersCreated, statusChanges, rentalsSpawned, paymentsRecorded, paymentCents, piiReveals, emailsSent)
	return &CoreMetrics{
		ordersCreated:    ordersCreated,
		statusChanges:    statusChanges,
		rentalsSpawned:   rentalsSpawned,
		paymentsRecorded: paymentsRecorded,
		paymentCents:     paymentCents,
		piiReveals:       piiReveals,
		emailsSent:       emailsSent,
	}
}

// IncOrderCreated records an accepted checkout with its initial status.
func (m *CoreMetrics) IncOrderCreated(status string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncStatusChange records an order status transition.
func (m *CoreMetrics) IncStatusChange(to string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncRentalSpawned records a rental created from an order.
func (m *CoreMetrics) IncRentalSpawned() {
	if m == nil || m.rentalsSpawned == nil {
		return
	}
	m.rentalsSpawned.Inc()
}

// ObservePayment records a ledger entry and its billed amount.
func (m *CoreMetrics) ObservePayment(amountCents int) {
	if m == nil || m.paymentsRecorded == nil {
		return
	}
	m.paymentsRecorded.Inc()
	if amountCents > 0 {
		m.paymentCents.Add(float64(amountCents))
	}
}

// IncPIIReveal records an identity reveal attempt with its outcome.
func (m *CoreMetrics) IncPIIReveal(outcome string) {
	if m == nil || m.piiReveals == nil {
		return
	}
	m.piiReveals.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncEmail records a notification delivery attempt with its outcome.
func (m *CoreMetrics) IncEmail(outcome string) {
	if m == nil || m.emailsSent == nil {
		return
	}
	m.emailsSent.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
