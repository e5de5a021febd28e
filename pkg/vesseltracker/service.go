package vesseltracker

import (
	"context"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/vesseltracker/pkg/ais"
	"github.com/travigo/vesseltracker/pkg/batchprocessor"
	"github.com/travigo/vesseltracker/pkg/cache"
	"github.com/travigo/vesseltracker/pkg/util"
)

const (
	DefaultMaxAge = 24 * time.Hour
	DefaultWindow = time.Second

	minSearchTermLength = 3
	maxSearchTermLength = 50
)

type SnapshotLoader interface {
	LoadLocations(ctx context.Context) ([]ais.Location, error)
	LoadMetadata(ctx context.Context) ([]ais.Metadata, error)
}

type EventSource interface {
	Subscribe(handler func(ais.Event)) (unsubscribe func())
}

type Option func(*Service)

func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithMaxAge sets how old a location may be before it is no longer shown
func WithMaxAge(maxAge time.Duration) Option {
	return func(s *Service) { s.maxAge = maxAge }
}

// WithWindow sets the length of the batching window for subscribers
func WithWindow(window time.Duration) Option {
	return func(s *Service) { s.window = window }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) { s.registerer = reg }
}

// Service keeps the live view of every vessel and republishes changes to it
// in batches.
type Service struct {
	clock      clock.Clock
	maxAge     time.Duration
	window     time.Duration
	registerer prometheus.Registerer
	logger     zerolog.Logger

	locations *cache.Cache[ais.MMSI, ais.Location]
	metadata  *cache.Cache[ais.MMSI, ais.Metadata]
	batcher   *batchprocessor.EventBatcher[ais.Event]

	unsubscribe func()
}

func NewService(ctx context.Context, loader SnapshotLoader, source EventSource, opts ...Option) *Service {
	s := &Service{
		clock:  clock.WallClock,
		maxAge: DefaultMaxAge,
		window: DefaultWindow,
		logger: log.With().Str("component", "vessel-service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.locations = cache.New(ais.Location.Key, cache.WithPredicate(s.isCurrent))
	s.metadata = cache.New(ais.Metadata.Key)
	s.batcher = batchprocessor.NewEventBatcher[ais.Event]("vessel-batches", s.window, s.clock)

	registerCacheMetrics(s.registerer, s.locations.Len, s.metadata.Len)

	s.bootstrap(ctx, loader)
	s.unsubscribe = source.Subscribe(s.onEvent)

	return s
}

func (s *Service) bootstrap(ctx context.Context, loader SnapshotLoader) {
	var locations []ais.Location
	var metadata []ais.Metadata

	var wg conc.WaitGroup
	wg.Go(func() {
		loaded, err := loader.LoadLocations(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Error fetching vessel locations, starting empty")
			return
		}
		locations = loaded
	})
	wg.Go(func() {
		loaded, err := loader.LoadMetadata(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Error fetching vessel metadata, starting empty")
			return
		}
		metadata = loaded
	})
	wg.Wait()

	for _, location := range locations {
		s.locations.Put(location)
	}
	for _, m := range metadata {
		s.metadata.Put(m)
	}

	s.logger.Info().
		Int("locations", s.locations.Len()).
		Int("metadata", s.metadata.Len()).
		Msg("Loaded initial vessel state")
}

func (s *Service) isCurrent(location ais.Location) bool {
	return s.clock.Now().Sub(location.Timestamp) < s.maxAge
}

func (s *Service) onEvent(event ais.Event) {
	switch e := event.(type) {
	case ais.LocationUpdated:
		if !s.isCurrent(e.Location) {
			s.onLocationExpired(ais.LocationExpired{Vessel: e.Location.MMSI, At: s.clock.Now()})
			return
		}
		s.locations.Put(e.Location)
		s.batcher.Enqueue(e)
	case ais.MetadataUpdated:
		s.metadata.Put(e.Metadata)
		s.batcher.Enqueue(e)
	case ais.LocationExpired:
		s.onLocationExpired(e)
	default:
		s.logger.Warn().Type("event", event).Msg("Ignoring unknown vessel event")
	}
}

func (s *Service) onLocationExpired(event ais.LocationExpired) {
	s.locations.RemoveKey(event.Vessel)
	s.batcher.Enqueue(event)
}

// Locations returns at most limit current locations inside envelope, in no
// particular order.
func (s *Service) Locations(envelope ais.Envelope, limit int) []ais.Location {
	return util.CollectMatching(s.locations.Values(), limit, func(l ais.Location) bool {
		return envelope.Contains(l.Position)
	})
}

func (s *Service) Location(mmsi ais.MMSI) (ais.Location, bool) {
	return s.locations.Get(mmsi)
}

func (s *Service) Metadata(mmsi ais.MMSI) (ais.Metadata, bool) {
	return s.metadata.Get(mmsi)
}

func (s *Service) Details(mmsi ais.MMSI) ais.Details {
	details := ais.Details{MMSI: mmsi}

	if metadata, ok := s.metadata.Get(mmsi); ok {
		details.Metadata = &metadata
	}
	if location, ok := s.locations.Get(mmsi); ok {
		details.Location = &location
	}

	return details
}

// Search matches the start of the call sign, name or MMSI, ignoring case.
// Terms shorter than 3 or longer than 50 characters match nothing.
func (s *Service) Search(term string, limit int) []ais.Metadata {
	term = strings.ToLower(strings.TrimSpace(term))
	if length := util.RuneLength(term); length < minSearchTermLength || length > maxSearchTermLength {
		return []ais.Metadata{}
	}

	return util.CollectMatching(s.metadata.Values(), limit, func(m ais.Metadata) bool {
		return strings.HasPrefix(strings.ToLower(m.CallSign), term) ||
			strings.HasPrefix(strings.ToLower(m.Name), term) ||
			strings.HasPrefix(string(m.MMSI), term)
	})
}

// Subscribe delivers every window of changes, including empty ones
func (s *Service) Subscribe(handler func([]ais.Event)) (unsubscribe func()) {
	return s.batcher.Subscribe(handler)
}

func (s *Service) Close() {
	s.unsubscribe()
	s.batcher.Stop()
}
