package digitraffic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/travigo/vesseltracker/pkg/ais"
	"github.com/travigo/vesseltracker/pkg/util"
)

var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// LocationMessage is the payload published on vessels-v2/<mmsi>/location
type LocationMessage struct {
	Time    int64   `json:"time"`
	SOG     float64 `json:"sog"`
	COG     float64 `json:"cog"`
	NavStat int     `json:"navStat"`
	ROT     int     `json:"rot"`
	PosAcc  bool    `json:"posAcc"`
	RAIM    bool    `json:"raim"`
	Heading int     `json:"heading"`
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
}

// ToLocation validates the message. Time in the payload only has second
// resolution, so the caller supplies the timestamp.
func (m *LocationMessage) ToLocation(mmsi ais.MMSI, timestamp time.Time) (ais.Location, error) {
	return buildLocation(timestamp, mmsi, m.Lat, m.Lon, m.PosAcc, m.Heading, m.COG, m.SOG)
}

// MetadataMessage is the payload published on vessels-v2/<mmsi>/metadata
type MetadataMessage struct {
	Timestamp   int64  `json:"timestamp"`
	Destination string `json:"destination"`
	Name        string `json:"name"`
	Draught     int    `json:"draught"`
	ETA         int64  `json:"eta"`
	PosType     int    `json:"posType"`
	RefA        int    `json:"refA"`
	RefB        int    `json:"refB"`
	RefC        int    `json:"refC"`
	RefD        int    `json:"refD"`
	CallSign    string `json:"callSign"`
	IMO         int    `json:"imo"`
	Type        int    `json:"type"`
}

func (m *MetadataMessage) ToMetadata(mmsi ais.MMSI) (ais.Metadata, error) {
	return buildMetadata(util.FromUnixMillis(m.Timestamp), mmsi, m.Name, m.CallSign, m.Type)
}

type featureCollection struct {
	Type            string `json:"type"`
	DataUpdatedTime string `json:"dataUpdatedTime"`
}

type geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type featureProperties struct {
	MMSI              int64   `json:"mmsi"`
	SOG               float64 `json:"sog"`
	COG               float64 `json:"cog"`
	NavStat           int     `json:"navStat"`
	ROT               int     `json:"rot"`
	PosAcc            bool    `json:"posAcc"`
	RAIM              bool    `json:"raim"`
	Heading           int     `json:"heading"`
	Timestamp         int64   `json:"timestamp"`
	TimestampExternal int64   `json:"timestampExternal"`
}

// locationFeature is one entry of the locations snapshot
type locationFeature struct {
	MMSI       int64             `json:"mmsi"`
	Type       string            `json:"type"`
	Geometry   geometry          `json:"geometry"`
	Properties featureProperties `json:"properties"`
}

func (f *locationFeature) toLocation() (ais.Location, error) {
	if !strings.EqualFold(f.Geometry.Type, "point") {
		return ais.Location{}, fmt.Errorf("%w: %q", ErrUnsupportedGeometry, f.Geometry.Type)
	}
	if len(f.Geometry.Coordinates) < 2 {
		return ais.Location{}, fmt.Errorf("%w: point has %d coordinates", ErrUnsupportedGeometry, len(f.Geometry.Coordinates))
	}

	mmsi, err := ais.MMSIFromInt(f.MMSI)
	if err != nil {
		return ais.Location{}, err
	}

	p := f.Properties
	return buildLocation(util.FromUnixMillis(p.TimestampExternal), mmsi,
		f.Geometry.Coordinates[1], f.Geometry.Coordinates[0], p.PosAcc, p.Heading, p.COG, p.SOG)
}

// vesselRecord is one entry of the metadata snapshot
type vesselRecord struct {
	Timestamp       int64  `json:"timestamp"`
	Destination     string `json:"destination"`
	MMSI            int64  `json:"mmsi"`
	CallSign        string `json:"callSign"`
	IMO             int    `json:"imo"`
	ShipType        int    `json:"shipType"`
	Draught         int    `json:"draught"`
	ETA             int64  `json:"eta"`
	PosType         int    `json:"posType"`
	ReferencePointA int    `json:"referencePointA"`
	ReferencePointB int    `json:"referencePointB"`
	ReferencePointC int    `json:"referencePointC"`
	ReferencePointD int    `json:"referencePointD"`
	Name            string `json:"name"`
}

func (v *vesselRecord) toMetadata() (ais.Metadata, error) {
	mmsi, err := ais.MMSIFromInt(v.MMSI)
	if err != nil {
		return ais.Metadata{}, err
	}

	return buildMetadata(util.FromUnixMillis(v.Timestamp), mmsi, v.Name, v.CallSign, v.ShipType)
}

func buildLocation(timestamp time.Time, mmsi ais.MMSI, lat, lon float64, accurate bool, heading int, cog, sog float64) (ais.Location, error) {
	position, err := ais.NewPosition(lat, lon, accurate)
	if err != nil {
		return ais.Location{}, err
	}
	validHeading, err := ais.NewHeading(heading)
	if err != nil {
		return ais.Location{}, err
	}
	course, err := ais.NewCourseOverGround(cog)
	if err != nil {
		return ais.Location{}, err
	}
	speed, err := ais.NewSpeedOverGround(sog)
	if err != nil {
		return ais.Location{}, err
	}

	return ais.Location{
		Timestamp: timestamp,
		MMSI:      mmsi,
		Position:  position,
		Heading:   validHeading,
		Course:    course,
		Speed:     speed,
	}, nil
}

func buildMetadata(timestamp time.Time, mmsi ais.MMSI, name, callSign string, shipType int) (ais.Metadata, error) {
	metadata := ais.Metadata{
		Timestamp: timestamp,
		MMSI:      mmsi,
		Name:      name,
		CallSign:  callSign,
		ShipType:  shipType,
	}
	if err := metadata.Validate(); err != nil {
		return ais.Metadata{}, err
	}

	return metadata, nil
}
