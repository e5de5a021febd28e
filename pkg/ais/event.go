package ais

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a change to the live view of a vessel. The set of implementations
// is closed: LocationUpdated, MetadataUpdated and LocationExpired.
type Event interface {
	MMSI() MMSI
	Timestamp() time.Time

	isEvent()
}

type LocationUpdated struct {
	Location Location
}

func (e LocationUpdated) MMSI() MMSI           { return e.Location.MMSI }
func (e LocationUpdated) Timestamp() time.Time { return e.Location.Timestamp }
func (LocationUpdated) isEvent()               {}

type MetadataUpdated struct {
	Metadata Metadata
}

func (e MetadataUpdated) MMSI() MMSI           { return e.Metadata.MMSI }
func (e MetadataUpdated) Timestamp() time.Time { return e.Metadata.Timestamp }
func (MetadataUpdated) isEvent()               {}

// LocationExpired signals that the last known location of Vessel is no longer valid
type LocationExpired struct {
	Vessel MMSI
	At     time.Time
}

func (e LocationExpired) MMSI() MMSI           { return e.Vessel }
func (e LocationExpired) Timestamp() time.Time { return e.At }
func (LocationExpired) isEvent()               {}

const (
	EventTypeLocationUpdated = "location-updated"
	EventTypeMetadataUpdated = "metadata-updated"
	EventTypeLocationExpired = "location-expired"
)

// EventEnvelope is the wire form of an Event
type EventEnvelope struct {
	Type      string    `json:"type"`
	MMSI      MMSI      `json:"mmsi"`
	Timestamp time.Time `json:"timestamp"`
	Location  *Location `json:"location,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

func NewEventEnvelope(event Event) EventEnvelope {
	envelope := EventEnvelope{
		MMSI:      event.MMSI(),
		Timestamp: event.Timestamp(),
	}

	switch e := event.(type) {
	case LocationUpdated:
		envelope.Type = EventTypeLocationUpdated
		envelope.Location = &e.Location
	case MetadataUpdated:
		envelope.Type = EventTypeMetadataUpdated
		envelope.Metadata = &e.Metadata
	case LocationExpired:
		envelope.Type = EventTypeLocationExpired
	}

	return envelope
}

func (e EventEnvelope) Event() (Event, error) {
	switch e.Type {
	case EventTypeLocationUpdated:
		if e.Location == nil {
			return nil, fmt.Errorf("%s envelope has no location", e.Type)
		}
		return LocationUpdated{Location: *e.Location}, nil
	case EventTypeMetadataUpdated:
		if e.Metadata == nil {
			return nil, fmt.Errorf("%s envelope has no metadata", e.Type)
		}
		return MetadataUpdated{Metadata: *e.Metadata}, nil
	case EventTypeLocationExpired:
		return LocationExpired{Vessel: e.MMSI, At: e.Timestamp}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// MarshalEvents encodes a batch as a JSON array of envelopes
func MarshalEvents(events []Event) ([]byte, error) {
	envelopes := make([]EventEnvelope, 0, len(events))
	for _, event := range events {
		envelopes = append(envelopes, NewEventEnvelope(event))
	}

	return json.Marshal(envelopes)
}

func UnmarshalEvents(data []byte) ([]Event, error) {
	var envelopes []EventEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(envelopes))
	for _, envelope := range envelopes {
		event, err := envelope.Event()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}
