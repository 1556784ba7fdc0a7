package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/escalation-service/internal/observability"
	apperrors "github.com/spec-kit/escalation-service/pkg/errorutil"
)

// RegisterMiddlewares attaches global middlewares: request ids, access logging, request
// timeouts and error rendering. The request logger wraps the error handler so it sees the
// final status code.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestIDMiddleware())
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
}

// NewApp builds a fiber app configured for this service.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		Immutable:             true,
		DisableStartupMessage: true,
	})
}

func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(observability.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(observability.RequestIDHeader, requestID)
		c.SetUserContext(observability.WithRequestID(c.UserContext(), requestID))
		return c.Next()
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StatusFor maps an error code onto an HTTP status.
func StatusFor(code string) int {
	switch code {
	case apperrors.CodeNotFound:
		return fiber.StatusNotFound
	case apperrors.CodeStateConflict:
		return fiber.StatusConflict
	case apperrors.CodeInvalidRequest:
		return fiber.StatusBadRequest
	case apperrors.CodePersistenceFailure:
		return fiber.StatusServiceUnavailable
	case apperrors.CodeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// fromFiberError turns routing errors such as unknown paths into the error envelope.
func fromFiberError(err *fiber.Error) (*apperrors.DomainError, int) {
	code := apperrors.CodeInvalidRequest
	switch {
	case err.Code == fiber.StatusNotFound:
		code = apperrors.CodeNotFound
	case err.Code >= fiber.StatusInternalServerError:
		code = apperrors.CodeInternal
	}
	return apperrors.NewDomainError(code, err.Message, nil), err.Code
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				observability.LoggerFromContext(c.UserContext(), logger).Error("panic recovered",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}

			var (
				domainErr *apperrors.DomainError
				status    int
				fiberErr  *fiber.Error
			)
			if errors.As(err, &fiberErr) {
				domainErr, status = fromFiberError(fiberErr)
			} else {
				domainErr = apperrors.ToDomainError(err)
				status = StatusFor(domainErr.Code)
			}

			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
			body := fiber.Map{
				"code":    domainErr.Code,
				"message": domainErr.Message,
			}
			if len(domainErr.Details) > 0 {
				body["details"] = domainErr.Details
			}
			if status >= fiber.StatusInternalServerError {
				observability.LoggerFromContext(c.UserContext(), logger).Error("request failed",
					zap.String("code", domainErr.Code),
					zap.String("path", c.Path()),
					zap.Error(domainErr),
				)
			}
			c.Status(status)
			err = c.JSON(fiber.Map{"error": body})
		}()
		return c.Next()
	}
}
