// Package vesselevents mirrors the live vessel view into Redis and moves
// event batches through an rmq queue.
package vesselevents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/vesseltracker/pkg/ais"
)

const writeTimeout = 5 * time.Second

// Publisher is satisfied by rmq.Queue
type Publisher interface {
	PublishBytes(payload ...[]byte) error
}

// Sink receives event batches. Each location is stored under its own key,
// expiring after the tracker's max age, and each non-empty batch is
// published to the queue.
type Sink struct {
	queue     Publisher
	locations *cache.Cache[string]
}

func NewSink(client *redis.Client, queue Publisher, maxAge time.Duration) *Sink {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(maxAge))

	return &Sink{
		queue:     queue,
		locations: cache.New[string](redisStore),
	}
}

func LocationKey(mmsi ais.MMSI) string {
	return fmt.Sprintf("vessel_location:%s", mmsi)
}

// HandleBatch is meant to be passed to the tracker's Subscribe
func (s *Sink) HandleBatch(batch []ais.Event) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	for _, event := range batch {
		if err := s.mirror(ctx, event); err != nil {
			log.Error().Err(err).Str("mmsi", event.MMSI().String()).Msg("Failed to mirror vessel event to redis")
		}
	}

	payload, err := ais.MarshalEvents(batch)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode vessel event batch")
		return
	}
	if err := s.queue.PublishBytes(payload); err != nil {
		log.Error().Err(err).Int("length", len(batch)).Msg("Failed to publish vessel event batch")
	}
}

func (s *Sink) mirror(ctx context.Context, event ais.Event) error {
	switch e := event.(type) {
	case ais.LocationUpdated:
		locationJSON, err := json.Marshal(e.Location)
		if err != nil {
			return err
		}
		return s.locations.Set(ctx, LocationKey(e.Location.MMSI), string(locationJSON))
	case ais.LocationExpired:
		return s.locations.Delete(ctx, LocationKey(e.Vessel))
	default:
		return nil
	}
}

// Location reads a mirrored location back
func (s *Sink) Location(ctx context.Context, mmsi ais.MMSI) (ais.Location, error) {
	cached, err := s.locations.Get(ctx, LocationKey(mmsi))
	if err != nil {
		return ais.Location{}, err
	}

	var location ais.Location
	if err := json.Unmarshal([]byte(cached), &location); err != nil {
		return ais.Location{}, err
	}

	return location, nil
}
