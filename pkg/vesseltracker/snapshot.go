package vesseltracker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/kr/pretty"
	"github.com/travigo/vesseltracker/pkg/ais"
)

const (
	SnapshotLocations = "locations"
	SnapshotMetadata  = "metadata"
)

type locationRow struct {
	MMSI      string  `csv:"mmsi"`
	Timestamp string  `csv:"timestamp"`
	Latitude  float64 `csv:"latitude"`
	Longitude float64 `csv:"longitude"`
	Accurate  bool    `csv:"accurate"`
	Heading   int     `csv:"heading"`
	Course    float64 `csv:"cog"`
	Speed     float64 `csv:"sog"`
}

type metadataRow struct {
	MMSI      string `csv:"mmsi"`
	Timestamp string `csv:"timestamp"`
	Name      string `csv:"name"`
	CallSign  string `csv:"call_sign"`
	ShipType  int    `csv:"ship_type"`
}

func locationRows(locations []ais.Location) []*locationRow {
	rows := make([]*locationRow, 0, len(locations))
	for _, location := range locations {
		rows = append(rows, &locationRow{
			MMSI:      location.MMSI.String(),
			Timestamp: location.Timestamp.UTC().Format(time.RFC3339),
			Latitude:  location.Position.Latitude,
			Longitude: location.Position.Longitude,
			Accurate:  location.Position.Accurate,
			Heading:   int(location.Heading),
			Course:    float64(location.Course),
			Speed:     float64(location.Speed),
		})
	}
	return rows
}

func metadataRows(metadata []ais.Metadata) []*metadataRow {
	rows := make([]*metadataRow, 0, len(metadata))
	for _, m := range metadata {
		rows = append(rows, &metadataRow{
			MMSI:      m.MMSI.String(),
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
			Name:      m.Name,
			CallSign:  m.CallSign,
			ShipType:  m.ShipType,
		})
	}
	return rows
}

// WriteSnapshot loads one snapshot kind and writes it to out as CSV. The
// first sample records are also pretty printed to samples.
func WriteSnapshot(ctx context.Context, loader SnapshotLoader, kind string, out io.Writer, samples io.Writer, sample int) (int, error) {
	switch kind {
	case SnapshotLocations:
		locations, err := loader.LoadLocations(ctx)
		if err != nil {
			return 0, err
		}
		printSamples(samples, locations, sample)
		return len(locations), gocsv.Marshal(locationRows(locations), out)
	case SnapshotMetadata:
		metadata, err := loader.LoadMetadata(ctx)
		if err != nil {
			return 0, err
		}
		printSamples(samples, metadata, sample)
		return len(metadata), gocsv.Marshal(metadataRows(metadata), out)
	default:
		return 0, fmt.Errorf("unknown snapshot kind %q", kind)
	}
}

func printSamples[T any](w io.Writer, records []T, sample int) {
	for i := 0; i < sample && i < len(records); i++ {
		pretty.Fprintf(w, "%# v\n", records[i])
	}
}
