package digitraffic

import (
	"context"
	"errors"
	"fmt"

	"github.com/travigo/vesseltracker/pkg/ais"
)

// Source is the live feed: snapshots from Client and updates from Stream
type Source struct {
	*Client
	*Stream
}

var ErrNotConnected = errors.New("stream is not connected")

// Health fails unless the stream is connected
func (s *Source) Health() error {
	if state := s.Stream.State(); state != StateConnected {
		return fmt.Errorf("%w: %s", ErrNotConnected, state)
	}
	return nil
}

func (s *Source) Close() {
	s.Stream.Destroy()
}

// MockSource has no vessels and never emits events. It lets the service run
// without network access.
type MockSource struct{}

func (MockSource) LoadLocations(context.Context) ([]ais.Location, error) {
	return []ais.Location{}, nil
}

func (MockSource) LoadMetadata(context.Context) ([]ais.Metadata, error) {
	return []ais.Metadata{}, nil
}

func (MockSource) Subscribe(func(ais.Event)) (unsubscribe func()) {
	return func() {}
}

func (MockSource) Health() error {
	return nil
}

func (MockSource) Close() {}
