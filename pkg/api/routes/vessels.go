package routes

import (
	"bufio"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/vesseltracker/pkg/ais"
)

const eventStreamBuffer = 16

// VesselTracker is the read side of the tracking service
type VesselTracker interface {
	Locations(envelope ais.Envelope, limit int) []ais.Location
	Details(mmsi ais.MMSI) ais.Details
	Search(term string, limit int) []ais.Metadata
	Subscribe(handler func([]ais.Event)) (unsubscribe func())
}

func VesselsRouter(router fiber.Router, tracker VesselTracker) {
	router.Get("/locations", listLocations(tracker))
	router.Get("/search", searchVessels(tracker))
	router.Get("/events", streamEvents(tracker))
	router.Get("/:mmsi", getVessel(tracker))
}

func listLocations(tracker VesselTracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		envelope, err := getBoundsQuery(c)
		if err != nil {
			return sendError(c, fiber.StatusBadRequest, err.Error())
		}

		limit, err := getLimitQuery(c)
		if err != nil {
			return sendError(c, fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(tracker.Locations(envelope, limit))
	}
}

func searchVessels(tracker VesselTracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := getLimitQuery(c)
		if err != nil {
			return sendError(c, fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(tracker.Search(c.Query("q"), limit))
	}
}

func getVessel(tracker VesselTracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mmsi, err := ais.ParseMMSI(c.Params("mmsi"))
		if err != nil {
			return sendError(c, fiber.StatusBadRequest, err.Error())
		}

		details := tracker.Details(mmsi)
		if !details.Known() {
			return sendError(c, fiber.StatusNotFound, "Could not find Vessel matching MMSI")
		}

		return c.JSON(details)
	}
}

func streamEvents(tracker VesselTracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		batches := make(chan []ais.Event, eventStreamBuffer)
		unsubscribe := tracker.Subscribe(func(batch []ais.Event) {
			select {
			case batches <- batch:
			default:
				log.Warn().Int("length", len(batch)).Msg("Event stream client is too slow, dropping batch")
			}
		})

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer unsubscribe()

			if err := writeEventStream(w, batches); err != nil {
				log.Debug().Err(err).Msg("Event stream closed")
			}
		})

		return nil
	}
}

// writeEventStream writes one data line per batch until batches is closed or a write fails
func writeEventStream(w *bufio.Writer, batches <-chan []ais.Event) error {
	for batch := range batches {
		payload, err := ais.MarshalEvents(batch)
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	return nil
}
