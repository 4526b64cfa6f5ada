package hangoutstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transaction outcomes recorded by [Metrics].
const (
	OutcomeCommitted = "committed"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

// Metrics holds the prometheus collectors the store reports to. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Transactions     *prometheus.CounterVec
	ItemsDeleted     prometheus.Counter
	UnprocessedItems prometheus.Counter
	SkippedItems     *prometheus.CounterVec
	FeedRequests     *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them with
// reg. Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of store transactions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ItemsDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_items_deleted_total",
				Help:      "Total number of items removed by batch deletion",
			},
		),
		UnprocessedItems: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_unprocessed_items_total",
				Help:      "Total number of batch write requests returned unprocessed",
			},
		),
		SkippedItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_items_total",
				Help:      "Total number of items skipped while decoding query results",
			},
			[]string{"item_type"},
		),
		FeedRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_requests_total",
				Help:      "Total number of group feed requests by result",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Transactions, m.ItemsDeleted, m.UnprocessedItems, m.SkippedItems, m.FeedRequests)
	}
	return m
}

func (m *Metrics) transaction(operation, outcome string) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) deleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsDeleted.Add(float64(n))
}

func (m *Metrics) unprocessed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UnprocessedItems.Add(float64(n))
}

func (m *Metrics) skipped(itemType string) {
	if m == nil {
		return
	}
	m.SkippedItems.WithLabelValues(itemType).Inc()
}

func (m *Metrics) feed(result string) {
	if m == nil {
		return
	}
	m.FeedRequests.WithLabelValues(result).Inc()
}
