package mockapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/adrelay/adrelay-go/internal/telemetry"
)

// SetupMiddleware configures all middleware for the application
func SetupMiddleware(app *fiber.App) {
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(telemetry.FiberMetricsMiddleware())
	app.Use(telemetry.FiberLoggingMiddleware())
}

// requestID returns the ID assigned by the requestid middleware
func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

// ErrorHandler renders every error as an ErrorResponse
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	errCode := ErrCodeInternalError
	switch code {
	case fiber.StatusNotFound:
		errCode = ErrCodeNotFound
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		errCode = ErrCodeInvalidRequest
	case fiber.StatusUnauthorized:
		errCode = ErrCodeUnauthorized
	}

	if code >= 500 {
		telemetry.WithContext(c.UserContext()).WithError(err).WithFields(map[string]interface{}{
			"path":   c.Path(),
			"method": c.Method(),
		}).Error("Request error")
	}

	return c.Status(code).JSON(NewErrorResponse(errCode, message, requestID(c)))
}

// ValidateAPIKey creates a middleware for bearer API key validation
func ValidateAPIKey(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" {
			return c.Next()
		}

		key, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || key != apiKey {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or missing API key")
		}
		return c.Next()
	}
}
