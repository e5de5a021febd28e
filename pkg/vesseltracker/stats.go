package vesseltracker

import (
	"fmt"
	"net/http"

	"github.com/adjust/rmq/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// HealthCheck returns nil while the process is able to serve live data
type HealthCheck func() error

// NewStatsMux serves /metrics and /health, plus rmq queue stats at
// /vessel-events/stats when a queue connection is supplied.
func NewStatsMux(gatherer prometheus.Gatherer, health HealthCheck, queueConnection rmq.Connection) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/health", NewHealthHandler(health))

	if queueConnection != nil {
		mux.Handle("/vessel-events/stats", NewQueueStatsHandler(queueConnection))
	}

	return mux
}

func StartStatsServer(listen string, mux *http.ServeMux) {
	log.Info().Msgf("Stats server listening on http://%s/metrics", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Error().Err(err).Msg("Stats server stopped")
	}
}

type QueueStatsHandler struct {
	redisConnection rmq.Connection
}

func NewQueueStatsHandler(connection rmq.Connection) *QueueStatsHandler {
	return &QueueStatsHandler{redisConnection: connection}
}

func (handler *QueueStatsHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	layout := request.FormValue("layout")
	refresh := request.FormValue("refresh")

	queues, err := handler.redisConnection.GetOpenQueues()
	if err != nil {
		writer.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(writer, err)
		return
	}

	stats, err := handler.redisConnection.CollectStats(queues)
	if err != nil {
		writer.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(writer, err)
		return
	}

	fmt.Fprint(writer, stats.GetHtml(layout, refresh))
}

type HealthHandler struct {
	check HealthCheck
}

func NewHealthHandler(check HealthCheck) *HealthHandler {
	return &HealthHandler{check: check}
}

func (handler *HealthHandler) ServeHTTP(writer http.ResponseWriter, _ *http.Request) {
	if handler.check != nil {
		if err := handler.check(); err != nil {
			writer.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(writer, err)

			return
		}
	}

	writer.WriteHeader(http.StatusOK)
	fmt.Fprint(writer, "OK")
}
