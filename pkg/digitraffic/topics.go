package digitraffic

import (
	"fmt"
	"strings"

	"github.com/travigo/vesseltracker/pkg/ais"
)

type MessageKind string

const (
	KindLocation MessageKind = "location"
	KindMetadata MessageKind = "metadata"
	KindStatus   MessageKind = "status"
	KindUnknown  MessageKind = "unknown"
)

// ClassifyTopic works on concrete topics such as vessels-v2/230123456/location
func ClassifyTopic(topic string) MessageKind {
	switch {
	case topic == StatusTopic:
		return KindStatus
	case strings.HasSuffix(topic, "/location"):
		return KindLocation
	case strings.HasSuffix(topic, "/metadata"):
		return KindMetadata
	default:
		return KindUnknown
	}
}

// MMSIFromTopic reads the vessel segment of vessels-v2/<mmsi>/<kind>
func MMSIFromTopic(topic string) (ais.MMSI, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}

	return ais.ParseMMSI(parts[1])
}
