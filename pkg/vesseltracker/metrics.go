package vesseltracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func registerCacheMetrics(reg prometheus.Registerer, locations func() int, metadata func() int) {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "vesseltracker_cache_size",
		Help:        "Entries held in the vessel caches",
		ConstLabels: prometheus.Labels{"cache": "location"},
	}, func() float64 { return float64(locations()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "vesseltracker_cache_size",
		Help:        "Entries held in the vessel caches",
		ConstLabels: prometheus.Labels{"cache": "metadata"},
	}, func() float64 { return float64(metadata()) })
}
