package ais

import (
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/travigo/vesseltracker/pkg/util"
)

var (
	ErrInvalidName     = errors.New("invalid vessel name")
	ErrInvalidCallSign = errors.New("invalid call sign")
	ErrInvalidShipType = errors.New("ship type must be between 0 and 255")
)

const (
	MaxNameLength     = 50
	MaxCallSignLength = 10
)

func ValidateName(name string) error {
	if util.RuneLength(name) > MaxNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxNameLength)
	}
	if !util.AllRunes(name, isNameRune) {
		return fmt.Errorf("%w: %q contains illegal characters", ErrInvalidName, name)
	}

	return nil
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' || r == '/' || r == '.'
}

func ValidateCallSign(callSign string) error {
	if len(callSign) > MaxCallSignLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidCallSign, MaxCallSignLength)
	}
	if !util.AllRunes(callSign, func(r rune) bool { return util.IsASCIILetter(r) || util.IsASCIIDigit(r) }) {
		return fmt.Errorf("%w: %q must be ASCII letters and digits only", ErrInvalidCallSign, callSign)
	}

	return nil
}

func ValidateShipType(shipType int) error {
	if shipType < 0 || shipType > 255 {
		return fmt.Errorf("%w: %d", ErrInvalidShipType, shipType)
	}

	return nil
}

// Location is the last reported position and movement of a vessel
type Location struct {
	Timestamp time.Time        `json:"timestamp"`
	MMSI      MMSI             `json:"mmsi"`
	Position  Position         `json:"position"`
	Heading   Heading          `json:"heading"`
	Course    CourseOverGround `json:"cog"`
	Speed     SpeedOverGround  `json:"sog"`
}

func (l Location) Key() MMSI {
	return l.MMSI
}

// Metadata holds the identity attributes of a vessel
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	MMSI      MMSI      `json:"mmsi"`
	Name      string    `json:"name"`
	CallSign  string    `json:"callSign"`
	ShipType  int       `json:"shipType"`
}

func (m Metadata) Key() MMSI {
	return m.MMSI
}

// Validate checks every attribute the feed can supply
func (m Metadata) Validate() error {
	if _, err := ParseMMSI(string(m.MMSI)); err != nil {
		return err
	}

	return errors.Join(ValidateName(m.Name), ValidateCallSign(m.CallSign), ValidateShipType(m.ShipType))
}

// Details combines everything known about one vessel
type Details struct {
	MMSI     MMSI      `json:"mmsi"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Location *Location `json:"location,omitempty"`
}

func (d Details) Known() bool {
	return d.Metadata != nil || d.Location != nil
}
