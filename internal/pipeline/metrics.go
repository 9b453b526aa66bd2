package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/parsebank-dev/parsebank/internal/model"
)

// Metrics counts pipeline runs. A nil *Metrics records nothing.
type Metrics struct {
	documents    *prometheus.CounterVec
	transactions prometheus.Counter
	invalid      prometheus.Counter
	skipped      prometheus.Counter
	duration     *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parsebank",
			Name:      "documents_total",
			Help:      "Documents processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parsebank",
			Name:      "transactions_total",
			Help:      "Transactions extracted.",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parsebank",
			Name:      "invalid_rows_total",
			Help:      "Rows left out because a date or amount could not be parsed.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parsebank",
			Name:      "skipped_units_total",
			Help:      "Rows or pages that could not be read.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parsebank",
			Name:      "document_duration_seconds",
			Help:      "Time to extract and normalize one document.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"kind"}),
	}
	reg.MustRegister(m.documents, m.transactions, m.invalid, m.skipped, m.duration)
	return m
}

func (m *Metrics) observe(rep *Report) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(string(rep.Kind), Outcome(nil)).Inc()
	m.transactions.Add(float64(len(rep.Table)))
	m.invalid.Add(float64(rep.InvalidRows))
	m.skipped.Add(float64(rep.SkippedUnits))
	m.duration.WithLabelValues(string(rep.Kind)).Observe(rep.Elapsed.Seconds())
}

func (m *Metrics) observeFailure(kind model.Kind, err error) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(string(kind), Outcome(err)).Inc()
}
