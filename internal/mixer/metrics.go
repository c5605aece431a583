package mixer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entropyAbsorbedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rng_mixer_entropy_absorbed_total",
		Help: "Total number of digests absorbed into the entropy pool, by result.",
	}, []string{"result"})

	seedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rng_mixer_seed_requests_total",
		Help: "Total number of seed requests, by result.",
	}, []string{"result"})

	authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rng_mixer_auth_failures_total",
		Help: "Total number of authentication failures, by reason.",
	}, []string{"reason"})

	poolSources = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rng_mixer_pool_sources",
		Help: "Current number of absorbed digests counted toward readiness.",
	})
)
