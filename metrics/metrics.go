package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects analytics counters and timings.
type Recorder struct {
	exclusions   *prometheus.CounterVec
	providerErrs *prometheus.CounterVec
	shortlisted  prometheus.Histogram
	latency      *prometheus.HistogramVec
	universeSize prometheus.Gauge
}

func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		exclusions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfanalytics_fund_exclusions_total",
				Help: "Funds dropped from a table, by reason",
			},
			[]string{"reason"},
		),
		providerErrs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfanalytics_provider_errors_total",
				Help: "Failed calls to an upstream data provider",
			},
			[]string{"provider"},
		),
		shortlisted: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mfanalytics_shortlist_size",
			Help:    "Funds passing each screen",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mfanalytics_operation_duration_seconds",
				Help:    "Duration of analytics operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		universeSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mfanalytics_universe_schemes",
			Help: "Schemes in the lookup table",
		}),
	}
}

// NewNop returns a recorder on a private registry, for tests and tools.
func NewNop() *Recorder {
	return New(prometheus.NewRegistry())
}

func (r *Recorder) RecordExclusion(reason string) {
	r.exclusions.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordProviderError(provider string) {
	r.providerErrs.WithLabelValues(provider).Inc()
}

func (r *Recorder) RecordShortlist(n int) {
	r.shortlisted.Observe(float64(n))
}

func (r *Recorder) RecordUniverseSize(n int) {
	r.universeSize.Set(float64(n))
}

// Since observes the time elapsed from start for an operation.
func (r *Recorder) Since(operation string, start time.Time) {
	r.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
