package rest

import (
	"errors"

	"github.com/Freeeeeet/tutor_sessions/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return fiber.StatusUnprocessableEntity
	case service.KindNotFound:
		return fiber.StatusNotFound
	case service.KindForbidden:
		return fiber.StatusForbidden
	case service.KindConflict:
		return fiber.StatusConflict
	case service.KindDependency:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler единая точка превращения ошибок в JSON-ответ
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return JsonValidationError(c, fieldErrors(ve))
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return JsonError(c, fe.Code, fe.Message)
		}

		status := statusForKind(service.KindOf(err))
		if status >= fiber.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		if status == fiber.StatusInternalServerError {
			return JsonError(c, status, "internal server error")
		}
		return JsonError(c, status, err.Error())
	}
}
