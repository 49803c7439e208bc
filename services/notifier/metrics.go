package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	polls  *prometheus.CounterVec
	toasts prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masomo",
			Subsystem: "notifier",
			Name:      "polls_total",
			Help:      "Attendance polls, by result (ok, error, skipped).",
		}, []string{"result"}),
		toasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "masomo",
			Subsystem: "notifier",
			Name:      "toasts_total",
			Help:      "Arrival toasts raised.",
		}),
	}
}
