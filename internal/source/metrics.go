package source

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reopen reasons recorded on logtrail_reopens_total.
const (
	reasonStall    = "stall"
	reasonRotate   = "rotate"
	reasonTruncate = "truncate"
	reasonRequest  = "request"
	reasonError    = "error"
)

// Metrics holds the engine counters, labelled by file path. One Metrics is
// shared by every session registered against the same registry.
type Metrics struct {
	records      *prometheus.CounterVec
	batches      *prometheus.CounterVec
	duplicates   *prometheus.CounterVec
	reopens      *prometheus.CounterVec
	openFailures *prometheus.CounterVec
}

// NewMetrics creates the engine counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logtrail_records_delivered_total",
			Help: "Records delivered to the consumer",
		}, []string{"path"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logtrail_batches_delivered_total",
			Help: "Batches delivered to the consumer",
		}, []string{"path", "kind"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logtrail_duplicates_skipped_total",
			Help: "Decoded records dropped because they were already delivered",
		}, []string{"path"}),
		reopens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logtrail_reopens_total",
			Help: "Forced close-and-reopen cycles of the followed file",
		}, []string{"path", "reason"}),
		openFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logtrail_open_failures_total",
			Help: "Failed attempts to open the followed file",
		}, []string{"path"}),
	}
	if reg != nil {
		reg.MustRegister(m.records, m.batches, m.duplicates, m.reopens, m.openFailures)
	}
	return m
}

// sessionMetrics is the per-path view a single engine writes to.
type sessionMetrics struct {
	m    *Metrics
	path string
}

func (m *Metrics) forPath(path string) sessionMetrics {
	if m == nil {
		m = NewMetrics(nil)
	}
	return sessionMetrics{m: m, path: path}
}

func (s sessionMetrics) delivered(b Batch) {
	s.m.batches.WithLabelValues(s.path, b.Kind.String()).Inc()
	s.m.records.WithLabelValues(s.path).Add(float64(len(b.Records)))
}

func (s sessionMetrics) duplicate() {
	s.m.duplicates.WithLabelValues(s.path).Inc()
}

func (s sessionMetrics) reopen(reason string) {
	s.m.reopens.WithLabelValues(s.path, reason).Inc()
}

func (s sessionMetrics) openFailed() {
	s.m.openFailures.WithLabelValues(s.path).Inc()
}
