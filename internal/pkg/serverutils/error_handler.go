package serverutils

import (
	"errors"

	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// StatusOf maps an error onto an HTTP status.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusUnprocessableEntity
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalid:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindRateLimited:
		return fiber.StatusTooManyRequests
	case apperr.KindUpstreamUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error as an ErrorBody. Only client errors carry
// the error text; everything else gets a generic message.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		status := StatusOf(err)
		body := ErrorResponse(status, publicMessage(status, err))

		var ve *ValidationError
		if errors.As(err, &ve) {
			body.Errors = ve.Fields
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"status": status,
				"error":  err,
			})
		}
		return ctx.Status(status).JSON(body)
	}
}

func publicMessage(status int, err error) string {
	switch {
	case status == fiber.StatusServiceUnavailable:
		return "Service temporarily unavailable"
	case status >= fiber.StatusInternalServerError:
		return "Internal server error"
	default:
		return err.Error()
	}
}
