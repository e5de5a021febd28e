package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/vesseltracker/pkg/api/routes"
)

func NewApp(tracker routes.VesselTracker) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	webApp.Get("version", routes.APIVersion)

	routes.VesselsRouter(webApp.Group("/vessels"), tracker)

	return webApp
}

func SetupServer(listen string, tracker routes.VesselTracker) error {
	return NewApp(tracker).Listen(listen)
}
