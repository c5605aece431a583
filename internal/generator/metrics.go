package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	drawsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rng_generator_draws_total",
		Help: "Total number of draw requests, by endpoint and result.",
	}, []string{"endpoint", "result"})

	bytesStreamedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rng_generator_bytes_streamed_total",
		Help: "Total number of raw entropy bytes streamed to clients.",
	})

	rekeysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rng_generator_rekeys_total",
		Help: "Total number of keystream rekey events observed.",
	})

	authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rng_generator_auth_failures_total",
		Help: "Total number of authentication failures, by reason.",
	}, []string{"reason"})
)
