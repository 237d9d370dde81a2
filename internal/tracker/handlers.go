package tracker

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/SkaSmat/city-explorer/internal/geo"
)

var validate = validator.New()

// RegisterRoutes wires the tracking API. The position endpoint feeds
// the PushSource; everything else drives the Tracker state machine.
func RegisterRoutes(r fiber.Router, t *Tracker, source *PushSource, authMiddleware fiber.Handler) {
	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		var req StartRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		userID, _ := c.Locals("user_id").(string)
		if err := t.Start(c.Context(), userID, req.City); err != nil {
			return startError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(t.State())
	})

	r.Post("/position", authMiddleware, func(c *fiber.Ctx) error {
		var req PositionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		source.Push(geo.Point{
			Lat:       req.Lat,
			Lng:       req.Lng,
			Timestamp: req.Timestamp,
			Altitude:  req.Altitude,
		})
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Post("/stop", authMiddleware, func(c *fiber.Ctx) error {
		result, err := t.Stop(c.Context())
		if err != nil {
			if errors.Is(err, ErrNoActiveSession) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(result)
	})

	r.Get("/state", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(t.State())
	})

	r.Post("/reset", authMiddleware, func(c *fiber.Ctx) error {
		t.ForceReset()
		return c.JSON(fiber.Map{"status": "reset"})
	})
}

func startError(err error) error {
	switch {
	case errors.Is(err, ErrAlreadyTracking):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrPositioningUnavailable), errors.Is(err, ErrStreetDataUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
