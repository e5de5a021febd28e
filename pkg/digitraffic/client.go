package digitraffic

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/travigo/vesseltracker/pkg/ais"
)

var (
	ErrUnexpectedStatus    = errors.New("server responded with error")
	ErrEmptyBody           = errors.New("response had no body")
	ErrUnsupportedEncoding = errors.New("unknown content encoding")
)

// Client loads full snapshots of the feed over HTTP
type Client struct {
	LocationsURL string
	MetadataURL  string
	ClientName   string

	httpClient *http.Client
}

func NewClient(locationsURL string, metadataURL string, clientName string) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: DefaultConnectTimeout}).DialContext
	transport.DisableCompression = true

	return &Client{
		LocationsURL: locationsURL,
		MetadataURL:  metadataURL,
		ClientName:   clientName,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   DefaultReadTimeout,
		},
	}
}

// LoadLocations fetches the current location of every vessel. Features that
// fail to decode or validate are skipped.
func (c *Client) LoadLocations(ctx context.Context) ([]ais.Location, error) {
	var collection struct {
		featureCollection
		Features []json.RawMessage `json:"features"`
	}
	if err := c.get(ctx, c.LocationsURL, &collection); err != nil {
		return nil, fmt.Errorf("loading vessel locations: %w", err)
	}

	locations := make([]ais.Location, 0, len(collection.Features))
	for _, raw := range collection.Features {
		var feature locationFeature
		if err := json.Unmarshal(raw, &feature); err != nil {
			log.Debug().Err(err).RawJSON("feature", raw).Msg("Failed to decode vessel location")
			continue
		}

		location, err := feature.toLocation()
		if errors.Is(err, ErrUnsupportedGeometry) {
			log.Warn().Err(err).Int64("mmsi", feature.MMSI).Msg("Unknown geometry while parsing vessel location")
			continue
		} else if err != nil {
			log.Debug().Err(err).RawJSON("feature", raw).Msg("Failed to parse vessel location")
			continue
		}

		locations = append(locations, location)
	}

	log.Info().Int("received", len(collection.Features)).Int("accepted", len(locations)).Msg("Loaded vessel locations")

	return locations, nil
}

// LoadMetadata fetches the identity attributes of every vessel. Records that
// fail to decode or validate are skipped.
func (c *Client) LoadMetadata(ctx context.Context) ([]ais.Metadata, error) {
	var records []json.RawMessage
	if err := c.get(ctx, c.MetadataURL, &records); err != nil {
		return nil, fmt.Errorf("loading vessel metadata: %w", err)
	}

	metadata := make([]ais.Metadata, 0, len(records))
	for _, raw := range records {
		var record vesselRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			log.Debug().Err(err).RawJSON("record", raw).Msg("Failed to decode vessel metadata")
			continue
		}

		m, err := record.toMetadata()
		if err != nil {
			log.Debug().Err(err).RawJSON("record", raw).Msg("Failed to parse vessel metadata")
			continue
		}

		metadata = append(metadata, m)
	}

	log.Info().Int("received", len(records)).Int("accepted", len(metadata)).Msg("Loaded vessel metadata")

	return metadata, nil
}

func (c *Client) get(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set(userHeader, c.ClientName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return ErrEmptyBody
	}

	if encoding := resp.Header.Get("Content-Encoding"); !strings.EqualFold(encoding, "gzip") {
		return fmt.Errorf("%w %q", ErrUnsupportedEncoding, encoding)
	}

	gzipDecoder, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cannot decode gzip stream: %w", err)
	}
	defer gzipDecoder.Close()

	return json.NewDecoder(gzipDecoder).Decode(target)
}
