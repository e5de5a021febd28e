package ais

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidHeading   = errors.New("heading must be between 0 and 360")
	ErrInvalidCourse    = errors.New("course over ground must be between 0 and 360")
	ErrInvalidSpeed     = errors.New("speed over ground must be between 0 and 102.3")
	ErrInvalidEnvelope  = errors.New("invalid envelope")
)

type Position struct {
	Latitude  float64
	Longitude float64
	Accurate  bool
}

func NewPosition(latitude float64, longitude float64, accurate bool) (Position, error) {
	if latitude < -90 || latitude > 90 {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidLatitude, latitude)
	}
	if longitude < -180 || longitude > 180 {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidLongitude, longitude)
	}

	return Position{Latitude: latitude, Longitude: longitude, Accurate: accurate}, nil
}

type geoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Accurate    bool      `json:"accurate"`
}

// MarshalJSON writes the position as a GeoJSON point, longitude first
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoPoint{
		Type:        "Point",
		Coordinates: []float64{p.Longitude, p.Latitude},
		Accurate:    p.Accurate,
	})
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var point geoPoint
	if err := json.Unmarshal(data, &point); err != nil {
		return err
	}
	if len(point.Coordinates) != 2 {
		return fmt.Errorf("point must have 2 coordinates, got %d", len(point.Coordinates))
	}

	position, err := NewPosition(point.Coordinates[1], point.Coordinates[0], point.Accurate)
	if err != nil {
		return err
	}
	*p = position

	return nil
}

// Heading is a compass heading in whole degrees, 0 being true north
type Heading int

const HeadingUnavailable Heading = 511

func NewHeading(degrees int) (Heading, error) {
	heading := Heading(degrees)
	if heading == HeadingUnavailable {
		return heading, nil
	}
	if degrees < 0 || degrees > 360 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidHeading, degrees)
	}

	return heading, nil
}

func (h Heading) Available() bool {
	return h != HeadingUnavailable
}

type CourseOverGround float64

const CourseUnavailable CourseOverGround = 360

func NewCourseOverGround(degrees float64) (CourseOverGround, error) {
	if degrees < 0 || degrees > 360 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCourse, degrees)
	}

	return CourseOverGround(degrees), nil
}

func (c CourseOverGround) Available() bool {
	return c != CourseUnavailable
}

// SpeedOverGround is measured in knots
type SpeedOverGround float64

const SpeedUnavailable SpeedOverGround = 102.3

func NewSpeedOverGround(knots float64) (SpeedOverGround, error) {
	if knots < 0 || knots > 102.3 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSpeed, knots)
	}

	return SpeedOverGround(knots), nil
}

func (s SpeedOverGround) Available() bool {
	return s != SpeedUnavailable
}

// Envelope is a bounding box used for spatial queries. All edges are inclusive.
type Envelope struct {
	MinLatitude  float64
	MinLongitude float64
	MaxLatitude  float64
	MaxLongitude float64
}

func NewEnvelope(minLatitude, minLongitude, maxLatitude, maxLongitude float64) (Envelope, error) {
	if _, err := NewPosition(minLatitude, minLongitude, true); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if _, err := NewPosition(maxLatitude, maxLongitude, true); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if minLatitude > maxLatitude || minLongitude > maxLongitude {
		return Envelope{}, fmt.Errorf("%w: minimum corner is above maximum corner", ErrInvalidEnvelope)
	}

	return Envelope{
		MinLatitude:  minLatitude,
		MinLongitude: minLongitude,
		MaxLatitude:  maxLatitude,
		MaxLongitude: maxLongitude,
	}, nil
}

// WorldEnvelope covers every valid position
func WorldEnvelope() Envelope {
	return Envelope{MinLatitude: -90, MinLongitude: -180, MaxLatitude: 90, MaxLongitude: 180}
}

func (e Envelope) Contains(p Position) bool {
	return p.Latitude >= e.MinLatitude && p.Latitude <= e.MaxLatitude &&
		p.Longitude >= e.MinLongitude && p.Longitude <= e.MaxLongitude
}
