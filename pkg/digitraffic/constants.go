package digitraffic

import "time"

const (
	DefaultClientName = "travigo-vesseltracker"

	DefaultLocationsURL = "https://meri.digitraffic.fi/api/ais/v1/locations"
	DefaultMetadataURL  = "https://meri.digitraffic.fi/api/ais/v1/vessels"
	DefaultStreamURL    = "wss://meri.digitraffic.fi:443/mqtt"

	LocationTopic = "vessels-v2/+/location"
	MetadataTopic = "vessels-v2/+/metadata"
	StatusTopic   = "vessels-v2/status"

	DefaultConnectTimeout    = 10 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultRetryInterval     = 10 * time.Second
	DefaultKeepAlive         = time.Minute
	DefaultNotificationQueue = 1000

	userHeader = "Digitraffic-User"
)

var Topics = []string{LocationTopic, MetadataTopic, StatusTopic}
