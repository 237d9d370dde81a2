package badge

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		badges, err := svc.ListBadges(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if badges == nil {
			badges = []Badge{}
		}
		return c.JSON(badges)
	})

	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		badges, err := svc.UserBadges(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if badges == nil {
			badges = []UserBadge{}
		}
		return c.JSON(badges)
	})

	r.Post("/check", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		newly, err := svc.CheckAndUnlock(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if newly == nil {
			newly = []Badge{}
		}
		return c.JSON(fiber.Map{"unlocked": newly})
	})
}
