package compile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts class cache lookups by template interface and
	// result ("hit" or "miss").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colgen_class_cache_lookups_total",
			Help: "Total number of generated class cache lookups",
		},
		[]string{"interface", "result"},
	)
	// CompileDuration is the latency of loading one generated unit.
	CompileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colgen_compile_duration_seconds",
			Help:    "Generated unit compile latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"interface", "strategy"},
	)
	CompileErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colgen_compile_errors_total",
			Help: "Total number of generated units the backend rejected",
		},
		[]string{"interface"},
	)
)

func strategy(plain bool) string {
	if plain {
		return "plain_go"
	}
	return "merge"
}
