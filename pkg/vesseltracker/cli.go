package vesseltracker

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/cenkalti/backoff/v4"
	"github.com/kr/pretty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/travigo/vesseltracker/pkg/ais"
	"github.com/travigo/vesseltracker/pkg/api"
	"github.com/travigo/vesseltracker/pkg/config"
	"github.com/travigo/vesseltracker/pkg/digitraffic"
	"github.com/travigo/vesseltracker/pkg/redis_client"
	"github.com/travigo/vesseltracker/pkg/vesselevents"
	"github.com/urfave/cli/v2"
)

type feedSource interface {
	SnapshotLoader
	EventSource
	Health() error
	Close()
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "path to a YAML config file",
	EnvVars: []string{"TRAVIGO_AIS_CONFIG"},
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "vessel-tracker",
		Usage: "Tracks live vessel locations from the AIS feed",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the vessel tracker with its web api and stats server",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					source, err := openSource(cfg, prometheus.DefaultRegisterer)
					if err != nil {
						return err
					}
					defer source.Close()

					service := NewService(c.Context, source, source,
						WithMaxAge(cfg.Tracker.MaxAge),
						WithWindow(cfg.Tracker.Window),
						WithRegisterer(prometheus.DefaultRegisterer),
					)
					defer service.Close()

					var queueConnection rmq.Connection
					if cfg.Redis.Enabled() {
						if err := redis_client.Connect(cfg.Redis); err != nil {
							return err
						}
						queue, err := redis_client.QueueConnection.OpenQueue(cfg.Redis.Queue)
						if err != nil {
							return err
						}

						sink := vesselevents.NewSink(redis_client.Client, queue, cfg.Tracker.MaxAge)
						service.Subscribe(sink.HandleBatch)

						queueConnection = redis_client.QueueConnection
					}

					go StartStatsServer(cfg.Server.StatsListen, NewStatsMux(prometheus.DefaultGatherer, source.Health, queueConnection))

					webApp := api.NewApp(service)
					go func() {
						log.Info().Str("listen", cfg.Server.APIListen).Msg("Web API listening")
						if err := webApp.Listen(cfg.Server.APIListen); err != nil {
							log.Error().Err(err).Msg("Web API stopped")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					if err := webApp.ShutdownWithTimeout(5 * time.Second); err != nil {
						log.Error().Err(err).Msg("Failed to shut down web API")
					}
					if queueConnection != nil {
						<-queueConnection.StopAllConsuming()
					}

					return nil
				},
			},
			{
				Name:  "snapshot",
				Usage: "download a bulk snapshot from the feed and print it as CSV",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "kind",
						Value: SnapshotLocations,
						Usage: "snapshot to download, locations or metadata",
					},
					&cli.IntFlag{
						Name:  "sample",
						Value: 0,
						Usage: "number of records to pretty print to stderr",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}

					client := digitraffic.NewClient(cfg.Feed.LocationsURL, cfg.Feed.MetadataURL, cfg.Feed.ClientName)

					count, err := WriteSnapshot(c.Context, client, c.String("kind"), os.Stdout, os.Stderr, c.Int("sample"))
					if err != nil {
						return err
					}

					log.Info().Int("records", count).Str("kind", c.String("kind")).Msg("Snapshot written")

					return nil
				},
			},
			{
				Name:  "tail",
				Usage: "consume event batches from the redis queue and print them",
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "pretty print whole events instead of one log line each",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if !cfg.Redis.Enabled() {
						return errors.New("tail needs a redis address")
					}
					if err := redis_client.Connect(cfg.Redis); err != nil {
						return err
					}

					handler := vesselevents.LogEvents
					if c.Bool("pretty") {
						handler = func(events []ais.Event) { pretty.Println(events) }
					}

					consumer := &vesselevents.RedisConsumer{
						QueueName:       cfg.Redis.Queue,
						NumberConsumers: 1,
						BatchSize:       10,
						Timeout:         time.Second,
						Consumer:        vesselevents.NewBatchConsumer(handler),
					}
					if err := consumer.Setup(redis_client.QueueConnection); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
		},
	}
}

func openSource(cfg *config.Config, reg prometheus.Registerer) (feedSource, error) {
	switch cfg.Source {
	case config.SourceMock:
		log.Info().Msg("Using mock vessel source")
		return digitraffic.MockSource{}, nil
	case config.SourceDigitraffic:
		stream, err := digitraffic.NewStream(digitraffic.StreamConfig{
			Transport: digitraffic.TransportOptions{
				URL:            cfg.Feed.StreamURL,
				ClientID:       fmt.Sprintf("%s-%d", cfg.Feed.ClientName, time.Now().UnixNano()),
				Username:       cfg.Feed.Username,
				Password:       cfg.Feed.Password,
				ConnectTimeout: cfg.Feed.ConnectTimeout,
				KeepAlive:      cfg.Feed.KeepAlive,
			},
			RetryPolicy:           backoff.NewConstantBackOff(cfg.Feed.RetryInterval),
			NotificationQueueSize: cfg.Feed.NotificationQueueSize,
			Registerer:            reg,
		})
		if err != nil {
			return nil, err
		}

		return &digitraffic.Source{
			Client: digitraffic.NewClient(cfg.Feed.LocationsURL, cfg.Feed.MetadataURL, cfg.Feed.ClientName),
			Stream: stream,
		}, nil
	default:
		return nil, fmt.Errorf("unknown vessel source %q", cfg.Source)
	}
}

var _ feedSource = (*digitraffic.Source)(nil)
var _ feedSource = digitraffic.MockSource{}
