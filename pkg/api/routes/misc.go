package routes

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/vesseltracker/pkg/ais"
)

const (
	defaultLimit = 1000
	maxLimit     = 10000
)

// getBoundsQuery reads bbox=minLon,minLat,maxLon,maxLat, defaulting to the whole world
func getBoundsQuery(c *fiber.Ctx) (ais.Envelope, error) {
	bounds := c.Query("bbox")

	if bounds == "" {
		return ais.WorldEnvelope(), nil
	}

	boundsSplit := strings.Split(bounds, ",")
	if len(boundsSplit) != 4 {
		return ais.Envelope{}, errors.New("Bounds must contain 4 co-ordinates")
	}

	var coordinates [4]float64
	for i, value := range boundsSplit {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return ais.Envelope{}, errors.New("Bounds must be numeric")
		}
		coordinates[i] = parsed
	}

	bottomLeftLon, bottomLeftLat, topRightLon, topRightLat := coordinates[0], coordinates[1], coordinates[2], coordinates[3]

	return ais.NewEnvelope(bottomLeftLat, bottomLeftLon, topRightLat, topRightLon)
}

func getLimitQuery(c *fiber.Ctx) (int, error) {
	limit := c.QueryInt("limit", defaultLimit)

	if limit <= 0 || limit > maxLimit {
		return 0, errors.New("Limit must be between 1 and 10000")
	}

	return limit, nil
}

func sendError(c *fiber.Ctx, status int, message string) error {
	c.Status(status)
	return c.JSON(fiber.Map{
		"error": message,
	})
}
