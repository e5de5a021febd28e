package digitraffic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type streamMetrics struct {
	received             *prometheus.CounterVec
	decodeErrors         *prometheus.CounterVec
	connectionsOpened    prometheus.Counter
	connectionsLost      prometheus.Counter
	notificationsDropped prometheus.Counter
}

// newStreamMetrics registers on reg. A nil registerer leaves the collectors
// unregistered.
func newStreamMetrics(reg prometheus.Registerer) *streamMetrics {
	factory := promauto.With(reg)

	return &streamMetrics{
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ais_stream_messages_received_total",
			Help: "Messages received from the stream by kind",
		}, []string{"kind"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ais_stream_decode_errors_total",
			Help: "Messages dropped because they could not be decoded or validated",
		}, []string{"kind"}),
		connectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "ais_stream_connections_opened_total",
			Help: "Stream connections subscribed to every topic",
		}),
		connectionsLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "ais_stream_connections_lost_total",
			Help: "Established stream connections that were lost",
		}),
		notificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ais_stream_notifications_dropped_total",
			Help: "Events dropped because the notification queue was full",
		}),
	}
}
