package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for conflict checks and
// overrides.
type SchedulingMetrics struct {
	checksTotal        *prometheus.CounterVec
	checkFailuresTotal *prometheus.CounterVec
	overridesTotal     *prometheus.CounterVec
	slotsBlockedTotal  prometheus.Counter
	rollbacksTotal     prometheus.Counter
	overrideLatency    prometheus.Histogram
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practice",
			Subsystem: "scheduling",
			Name:      "conflict_checks_total",
			Help:      "Total conflict checks by result",
		}, []string{"result"}),
		checkFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practice",
			Subsystem: "scheduling",
			Name:      "check_source_failures_total",
			Help:      "Conflict-check data sources that failed and were degraded to empty",
		}, []string{"source"}),
		overridesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "practice",
			Subsystem: "scheduling",
			Name:      "overrides_total",
			Help:      "Total override attempts by outcome",
		}, []string{"outcome"}),
		slotsBlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "practice",
			Subsystem: "scheduling",
			Name:      "slots_blocked_total",
			Help:      "Appointment slots successfully transitioned to BLOCKED",
		}),
		rollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "practice",
			Subsystem: "scheduling",
			Name:      "slot_rollbacks_total",
			Help:      "Compensating slot resets issued after a partial block failure",
		}),
		overrideLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "practice",
			Subsystem: "scheduling",
			Name:      "override_latency_seconds",
			Help:      "Latency of override operations",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.checksTotal, m.checkFailuresTotal, m.overridesTotal,
		m.slotsBlockedTotal, m.rollbacksTotal, m.overrideLatency)
	return m
}

// ObserveCheck records one conflict check. result is "clear", "conflicts"
// or "degraded".
func (m *SchedulingMetrics) ObserveCheck(result string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(result).Inc()
}

// ObserveCheckFailure records a degraded data source ("appointments" or
// "tasks").
func (m *SchedulingMetrics) ObserveCheckFailure(source string) {
	if m == nil {
		return
	}
	m.checkFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveOverride records one override attempt. outcome is "applied",
// "partial_block_failure", "busy" or "error".
func (m *SchedulingMetrics) ObserveOverride(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.overridesTotal.WithLabelValues(outcome).Inc()
	m.overrideLatency.Observe(seconds)
}

// ObserveSlotsBlocked counts slots successfully blocked.
func (m *SchedulingMetrics) ObserveSlotsBlocked(n int) {
	if m == nil {
		return
	}
	m.slotsBlockedTotal.Add(float64(n))
}

// ObserveRollbacks counts compensating resets.
func (m *SchedulingMetrics) ObserveRollbacks(n int) {
	if m == nil {
		return
	}
	m.rollbacksTotal.Add(float64(n))
}
