package harvester

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rng_harvester_samples_total",
		Help: "Total number of source sample attempts, by source and result.",
	}, []string{"source", "result"})

	digestsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rng_harvester_digests_sent_total",
		Help: "Total number of digests sent to the mixer, by source and result.",
	}, []string{"source", "result"})
)
