package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway"
)

// RegisterGatewayRoutes wires the path-routed data gateway endpoints. CORS is
// open to all origins; preflight OPTIONS requests short-circuit with 200.
func RegisterGatewayRoutes(app *fiber.App, h *gateway.Handler) {
	gw := app.Group("", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	gw.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	gw.Post("/put-item", h.PutItem)
	gw.Post("/get-item", h.GetItem)
	gw.Post("/update-item", h.UpdateItem)
	gw.Post("/delete-item", h.DeleteItem)
	gw.Post("/query", h.Query)
	gw.Post("/scan", h.Scan)
}
