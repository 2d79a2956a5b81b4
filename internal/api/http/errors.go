package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/snow-report/internal/report"
	"github.com/i474232898/snow-report/internal/resort"
	"github.com/i474232898/snow-report/internal/weather"
)

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// statusError maps domain errors onto HTTP errors. key is the resort the
// request was about, if any.
func statusError(err error, key string) error {
	var missing *weather.MissingMetricError
	var malformed *weather.MalformedSeriesError

	switch {
	case errors.Is(err, resort.ErrUnknownResort):
		return fiber.NewError(fiber.StatusNotFound, report.UnknownKey(key))
	case errors.Is(err, resort.ErrDuplicateResort):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, weather.ErrEmptySeries):
		return fiber.NewError(fiber.StatusNotFound, "no data available")
	case errors.Is(err, weather.ErrServiceUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "weather service unavailable")
	case errors.As(err, &missing), errors.As(err, &malformed), errors.Is(err, weather.ErrNonNumeric):
		return fiber.NewError(fiber.StatusBadGateway, "failed to process weather data")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
