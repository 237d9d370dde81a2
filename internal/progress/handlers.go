package progress

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes wires the dashboard API.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/cities", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		cities, err := svc.CitiesProgress(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if cities == nil {
			cities = []CityProgress{}
		}
		return c.JSON(cities)
	})

	r.Get("/cities/:city", authMiddleware, func(c *fiber.Ctx) error {
		city := c.Params("city")
		if city == "" {
			return fiber.NewError(fiber.StatusBadRequest, "city is required")
		}

		userID, _ := c.Locals("user_id").(string)
		view, err := svc.CityProgress(c.Context(), userID, city)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(view)
	})
}
