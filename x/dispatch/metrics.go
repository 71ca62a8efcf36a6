package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aogo",
		Subsystem: "dispatch",
		Name:      "attempts_total",
		Help:      "Dispatch attempts, including retries.",
	}, []string{"op"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aogo",
		Subsystem: "dispatch",
		Name:      "failures_total",
		Help:      "Dispatch operations that failed after exhausting retries.",
	}, []string{"op"})
)
