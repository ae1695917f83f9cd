package controller

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the controller's loop state to Prometheus, mirroring
// the kind of dashboard the spec's "readers may observe mc/green
// without locks" note assumes exists.
type Metrics struct {
	EpochsTotal      prometheus.Counter
	UnitsPromoted    prometheus.Counter
	UnitsRejected    prometheus.Counter
	UnitsRolledBack  prometheus.Counter
	ActiveWorkers    prometheus.Gauge
	EMACostUSD       prometheus.Gauge
	StallCount       prometheus.Gauge
}

// NewMetrics registers the controller's gauges/counters against reg. A
// nil reg is valid: callers that don't want a metrics endpoint pass the
// result through unused, since every field is backed by a working
// prometheus collector even when unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EpochsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missionctl_epochs_total", Help: "Epochs completed across all missions.",
		}),
		UnitsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missionctl_units_promoted_total", Help: "Work units promoted to mc/green.",
		}),
		UnitsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missionctl_units_rejected_total", Help: "Work units abandoned after exhausting fixup attempts.",
		}),
		UnitsRolledBack: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missionctl_units_rolled_back_total", Help: "Work units rolled back from mc/working.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "missionctl_active_workers", Help: "Currently dispatched worker subprocesses.",
		}),
		EMACostUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "missionctl_ema_cost_usd", Help: "Exponential moving average of per-unit cost.",
		}),
		StallCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "missionctl_stall_count", Help: "Consecutive epochs without an mc/green advance.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.EpochsTotal, m.UnitsPromoted, m.UnitsRejected, m.UnitsRolledBack, m.ActiveWorkers, m.EMACostUSD, m.StallCount)
	}
	return m
}
