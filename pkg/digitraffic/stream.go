package digitraffic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/vesseltracker/pkg/ais"
	"github.com/travigo/vesseltracker/pkg/eventbus"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnectScheduled
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectScheduled:
		return "reconnect-scheduled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type StreamConfig struct {
	Transport TransportOptions

	// RetryPolicy decides how long to wait before reconnecting. Defaults to a
	// constant DefaultRetryInterval.
	RetryPolicy backoff.BackOff

	NotificationQueueSize int

	Clock      clock.Clock
	Registerer prometheus.Registerer

	NewTransport func(TransportOptions) (Transport, error)
}

// Stream keeps a connection to the streaming feed alive and turns its
// messages into vessel events.
type Stream struct {
	transport      Transport
	connectTimeout time.Duration
	clock          clock.Clock
	metrics        *streamMetrics
	logger         zerolog.Logger

	bus           *eventbus.Bus[ais.Event]
	notifications chan ais.Event

	mu                  sync.Mutex
	retry               backoff.BackOff
	destroyed           bool
	lostWhileConnecting bool
	state               atomic.Int32

	reconnect   chan time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	destroyOnce sync.Once
	workers     conc.WaitGroup
}

// NewStream creates the transport and starts connecting straight away.
func NewStream(config StreamConfig) (*Stream, error) {
	if config.RetryPolicy == nil {
		config.RetryPolicy = backoff.NewConstantBackOff(DefaultRetryInterval)
	}
	if config.NotificationQueueSize <= 0 {
		config.NotificationQueueSize = DefaultNotificationQueue
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.NewTransport == nil {
		config.NewTransport = NewTransport
	}
	if config.Transport.ConnectTimeout == 0 {
		config.Transport.ConnectTimeout = DefaultConnectTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		connectTimeout: config.Transport.ConnectTimeout,
		clock:          config.Clock,
		metrics:        newStreamMetrics(config.Registerer),
		logger:         log.With().Str("component", "stream").Logger(),
		bus:            eventbus.New[ais.Event]("vessel-events"),
		notifications:  make(chan ais.Event, config.NotificationQueueSize),
		retry:          config.RetryPolicy,
		reconnect:      make(chan time.Duration, 1),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	config.Transport.OnConnectionLost = s.onConnectionLost
	transport, err := config.NewTransport(config.Transport)
	if err != nil {
		cancel()
		return nil, err
	}
	s.transport = transport

	s.workers.Go(s.runNotifications)
	s.workers.Go(s.runReconnects)

	return s, nil
}

func (s *Stream) State() State {
	return State(s.state.Load())
}

// Subscribe registers handler for every decoded event. Handlers run on the
// notification goroutine, one event at a time.
func (s *Stream) Subscribe(handler func(ais.Event)) (unsubscribe func()) {
	return s.bus.Subscribe(handler)
}

// Destroy disconnects and stops all background work. Pending reconnects and
// queued notifications are abandoned. Safe to call more than once.
func (s *Stream) Destroy() {
	s.destroyOnce.Do(func() {
		s.mu.Lock()
		s.destroyed = true
		s.setState(StateDisconnected)
		s.mu.Unlock()

		s.cancel()
		close(s.done)
		s.workers.Wait()

		if s.transport.IsConnected() {
			s.logger.Info().Msg("Disconnecting from stream")
			if err := s.transport.Disconnect(); err != nil {
				s.logger.Error().Err(err).Msg("Error disconnecting from stream")
			}
		}
	})
}

// setState must be called with mu held
func (s *Stream) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Stream) runReconnects() {
	s.connect()

	for {
		select {
		case <-s.done:
			return
		case delay := <-s.reconnect:
			timer := s.clock.NewTimer(delay)

			select {
			case <-s.done:
				timer.Stop()
				return
			case <-timer.Chan():
				s.connect()
			}
		}
	}
}

func (s *Stream) connect() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.setState(StateConnecting)
	s.lostWhileConnecting = false
	s.mu.Unlock()

	s.logger.Info().Msg("Connecting to stream")

	ctx, cancel := context.WithTimeout(s.ctx, s.connectTimeout)
	defer cancel()

	err := s.transport.Connect(ctx)
	if err == nil {
		err = s.subscribeAll()
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Error connecting to stream")
		s.abandonConnection()
		return
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if s.lostWhileConnecting {
		s.mu.Unlock()
		s.logger.Warn().Msg("Lost connection to stream while subscribing")
		s.abandonConnection()
		return
	}
	s.metrics.connectionsOpened.Inc()
	s.setState(StateConnected)
	s.retry.Reset()
	s.mu.Unlock()

	s.logger.Info().Msg("Ready to receive stream messages")
}

func (s *Stream) subscribeAll() error {
	for _, topic := range Topics {
		if err := s.transport.Subscribe(topic, s.handleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}

	return nil
}

func (s *Stream) abandonConnection() {
	if err := s.transport.Disconnect(); err != nil {
		s.logger.Debug().Err(err).Msg("Error closing failed connection")
	}

	s.scheduleReconnect()
}

func (s *Stream) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	delay := s.retry.NextBackOff()
	if delay == backoff.Stop {
		s.setState(StateDisconnected)
		s.logger.Error().Msg("Retry policy exhausted, giving up on stream")
		return
	}

	s.setState(StateReconnectScheduled)
	s.logger.Info().Dur("delay", delay).Msg("Will try to connect to stream again")

	select {
	case s.reconnect <- delay:
	default:
	}
}

func (s *Stream) onConnectionLost(err error) {
	s.mu.Lock()
	switch {
	case s.destroyed:
		s.mu.Unlock()
		return
	case s.State() == StateConnecting:
		s.lostWhileConnecting = true
		s.mu.Unlock()
		return
	case s.State() != StateConnected:
		s.mu.Unlock()
		return
	}
	s.setState(StateDisconnected)
	s.mu.Unlock()

	s.logger.Warn().Err(err).Msg("Lost connection to stream")
	s.metrics.connectionsLost.Inc()

	s.scheduleReconnect()
}

// handleMessage runs on the transport's delivery goroutine and must not block
func (s *Stream) handleMessage(topic string, payload []byte) {
	if s.State() != StateConnected {
		return
	}

	kind := ClassifyTopic(topic)
	s.metrics.received.WithLabelValues(string(kind)).Inc()

	var event ais.Event
	var err error

	switch kind {
	case KindStatus:
		return
	case KindLocation:
		event, err = s.decodeLocation(topic, payload)
	case KindMetadata:
		event, err = s.decodeMetadata(topic, payload)
	default:
		s.logger.Debug().Str("topic", topic).Msg("Ignoring message on unknown topic")
		return
	}

	if err != nil {
		s.metrics.decodeErrors.WithLabelValues(string(kind)).Inc()
		s.logger.Error().Err(err).Str("topic", topic).Msgf("Error processing vessel %s message", kind)
		return
	}

	select {
	case s.notifications <- event:
	default:
		s.metrics.notificationsDropped.Inc()
		s.logger.Warn().Str("mmsi", event.MMSI().String()).Msg("Notification queue is full, dropping event")
	}
}

func (s *Stream) decodeLocation(topic string, payload []byte) (ais.Event, error) {
	mmsi, err := MMSIFromTopic(topic)
	if err != nil {
		return nil, err
	}

	var message LocationMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, err
	}

	location, err := message.ToLocation(mmsi, s.clock.Now())
	if err != nil {
		return nil, err
	}

	return ais.LocationUpdated{Location: location}, nil
}

func (s *Stream) decodeMetadata(topic string, payload []byte) (ais.Event, error) {
	mmsi, err := MMSIFromTopic(topic)
	if err != nil {
		return nil, err
	}

	var message MetadataMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, err
	}

	metadata, err := message.ToMetadata(mmsi)
	if err != nil {
		return nil, err
	}

	return ais.MetadataUpdated{Metadata: metadata}, nil
}

func (s *Stream) runNotifications() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.notifications:
			s.bus.Publish(event)
		}
	}
}
