package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/travigo/vesseltracker/pkg/digitraffic"
	"github.com/travigo/vesseltracker/pkg/util"
	"gopkg.in/yaml.v3"
)

const (
	SourceDigitraffic = "digitraffic"
	SourceMock        = "mock"
)

// FeedConfig describes where vessel data comes from
type FeedConfig struct {
	ClientName   string `yaml:"clientName" validate:"required"`
	LocationsURL string `yaml:"locationsURL" validate:"required,url"`
	MetadataURL  string `yaml:"metadataURL" validate:"required,url"`
	StreamURL    string `yaml:"streamURL" validate:"required,url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`

	ConnectTimeout        time.Duration `yaml:"connectTimeout" validate:"gt=0"`
	KeepAlive             time.Duration `yaml:"keepAlive" validate:"gt=0"`
	RetryInterval         time.Duration `yaml:"retryInterval" validate:"gt=0"`
	NotificationQueueSize int           `yaml:"notificationQueueSize" validate:"gt=0"`
}

type TrackerConfig struct {
	MaxAge time.Duration `yaml:"maxAge" validate:"gt=0"`
	Window time.Duration `yaml:"window" validate:"gt=0"`
}

type ServerConfig struct {
	APIListen   string `yaml:"apiListen" validate:"required"`
	StatsListen string `yaml:"statsListen" validate:"required"`
}

// RedisConfig is optional, an empty address disables the Redis sink
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Database int    `yaml:"database" validate:"gte=0"`
	Queue    string `yaml:"queue" validate:"required_with=Address"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type Config struct {
	Source  string        `yaml:"source" validate:"oneof=digitraffic mock"`
	Feed    FeedConfig    `yaml:"feed"`
	Tracker TrackerConfig `yaml:"tracker"`
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
}

func Default() Config {
	return Config{
		Source: SourceMock,
		Feed: FeedConfig{
			ClientName:            digitraffic.DefaultClientName,
			LocationsURL:          digitraffic.DefaultLocationsURL,
			MetadataURL:           digitraffic.DefaultMetadataURL,
			StreamURL:             digitraffic.DefaultStreamURL,
			ConnectTimeout:        digitraffic.DefaultConnectTimeout,
			KeepAlive:             digitraffic.DefaultKeepAlive,
			RetryInterval:         digitraffic.DefaultRetryInterval,
			NotificationQueueSize: digitraffic.DefaultNotificationQueue,
		},
		Tracker: TrackerConfig{
			MaxAge: 24 * time.Hour,
			Window: time.Second,
		},
		Server: ServerConfig{
			APIListen:   ":8080",
			StatsListen: ":3333",
		},
		Redis: RedisConfig{
			Queue: "vessel-events",
		},
	}
}

// Load applies, in order, the defaults, the YAML file at path (skipped when
// path is empty) and TRAVIGO_* environment variables, then validates.
func Load(path string) (*Config, error) {
	return load(path, util.GetEnvironmentVariables())
}

func load(path string, env map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := applyEnvironment(&cfg, env); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvironment(cfg *Config, env map[string]string) error {
	util.OverrideString(env, "TRAVIGO_AIS_SOURCE", &cfg.Source)

	util.OverrideString(env, "TRAVIGO_AIS_CLIENT_NAME", &cfg.Feed.ClientName)
	util.OverrideString(env, "TRAVIGO_AIS_LOCATIONS_URL", &cfg.Feed.LocationsURL)
	util.OverrideString(env, "TRAVIGO_AIS_METADATA_URL", &cfg.Feed.MetadataURL)
	util.OverrideString(env, "TRAVIGO_AIS_STREAM_URL", &cfg.Feed.StreamURL)
	util.OverrideString(env, "TRAVIGO_AIS_STREAM_USERNAME", &cfg.Feed.Username)
	util.OverrideString(env, "TRAVIGO_AIS_STREAM_PASSWORD", &cfg.Feed.Password)

	util.OverrideString(env, "TRAVIGO_AIS_API_LISTEN", &cfg.Server.APIListen)
	util.OverrideString(env, "TRAVIGO_AIS_STATS_LISTEN", &cfg.Server.StatsListen)

	util.OverrideString(env, "TRAVIGO_REDIS_ADDRESS", &cfg.Redis.Address)
	util.OverrideString(env, "TRAVIGO_REDIS_PASSWORD", &cfg.Redis.Password)
	util.OverrideString(env, "TRAVIGO_AIS_REDIS_QUEUE", &cfg.Redis.Queue)

	return errors.Join(
		util.OverrideInt(env, "TRAVIGO_REDIS_DATABASE", &cfg.Redis.Database),
		util.OverrideInt(env, "TRAVIGO_AIS_NOTIFICATION_QUEUE", &cfg.Feed.NotificationQueueSize),
		util.OverrideDuration(env, "TRAVIGO_AIS_CONNECT_TIMEOUT", &cfg.Feed.ConnectTimeout),
		util.OverrideDuration(env, "TRAVIGO_AIS_KEEP_ALIVE", &cfg.Feed.KeepAlive),
		util.OverrideDuration(env, "TRAVIGO_AIS_RETRY_INTERVAL", &cfg.Feed.RetryInterval),
		util.OverrideDuration(env, "TRAVIGO_AIS_MAX_AGE", &cfg.Tracker.MaxAge),
		util.OverrideDuration(env, "TRAVIGO_AIS_WINDOW", &cfg.Tracker.Window),
	)
}
