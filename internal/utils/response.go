package utils

import (
	"net/http"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/logging"
	"portal/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

// Created sends a JSON response with status 201.
func Created(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusCreated, data)
}

// BadRequest sends a JSON error response with status 400.
func BadRequest(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusBadRequest, fiber.Map{"error": message, "code": apperrors.ErrInvalidRequest.Code})
}

// Unauthorized sends a JSON error response with status 401.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusUnauthorized, fiber.Map{"error": message, "code": apperrors.ErrUnauthorized.Code})
}

// Forbidden sends a JSON error response with status 403.
func Forbidden(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusForbidden, fiber.Map{"error": message, "code": apperrors.ErrForbidden.Code})
}

// NotFound sends a JSON error response with status 404.
func NotFound(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusNotFound, fiber.Map{"error": message, "code": apperrors.ErrNotFound.Code})
}

// InternalError sends a JSON error response with status 500.
func InternalError(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusInternalServerError, fiber.Map{"error": message})
}

// Fail maps err to a response. Domain and validation errors are shown to
// the caller; vendor failures become 502 and anything else 500, both logged.
func Fail(c *fiber.Ctx, err error) error {
	if verr, ok := err.(*validation.ValidationError); ok {
		return Respond(c, fiber.StatusBadRequest, fiber.Map{
			"error":   "validation failed",
			"code":    apperrors.ErrInvalidRequest.Code,
			"details": verr.Fields,
		})
	}
	if de, ok := apperrors.As(err); ok {
		return Respond(c, de.HTTPStatus(), fiber.Map{"error": de.Message, "code": de.Code})
	}

	log := logging.FromFiber(c)
	if apiErr, ok := clients.IsAPIError(err); ok {
		log.Error("upstream call failed",
			zap.String("service", apiErr.Service),
			zap.Int("upstream_status", apiErr.Status),
			zap.Error(err))
		return Respond(c, http.StatusBadGateway, fiber.Map{
			"error": apperrors.ErrUpstream.Message,
			"code":  apperrors.ErrUpstream.Code,
		})
	}
	if fe, ok := err.(*fiber.Error); ok {
		return Respond(c, fe.Code, fiber.Map{"error": fe.Message})
	}

	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return InternalError(c, "internal server error")
}

// ParseAndValidate decodes the JSON body into v and validates it.
func ParseAndValidate(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return apperrors.ErrInvalidRequest.WithMessage("invalid request body")
	}
	return validation.Struct(v)
}
