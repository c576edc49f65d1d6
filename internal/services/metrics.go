package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quetras_queries_submitted_total",
		Help: "Queries accepted by Submit.",
	})
	submissionsDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quetras_submission_denied_total",
		Help: "Submissions rejected by the one-per-day guard.",
	})
	storeParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quetras_store_parse_failures_total",
		Help: "Stored documents or records that could not be decoded and were dropped.",
	}, []string{"kind"})
	viewCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quetras_view_cache_hits_total",
		Help: "Filtered list views served from cache.",
	})
	viewCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quetras_view_cache_misses_total",
		Help: "Filtered list views computed from the store.",
	})
)
