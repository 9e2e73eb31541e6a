package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Error is the JSON body of every failed request.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"detail"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, msg string) Error {
	return Error{Code: code, Message: msg}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusBadRequest,
		Errors: errors,
	}
}

func ErrBadRequest(msg string) Error {
	return NewError(fiber.StatusBadRequest, msg)
}

func ErrNotFound(msg string) Error {
	return NewError(fiber.StatusNotFound, msg)
}

func ErrInternal(msg string) Error {
	return NewError(fiber.StatusInternalServerError, msg)
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			apiErr Error
			valErr ValidationError
			fbErr  *fiber.Error
		)
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &valErr):
			return c.Status(valErr.Status).JSON(valErr)
		case errors.As(err, &fbErr):
			apiErr = NewError(fbErr.Code, fbErr.Message)
		default:
			apiErr = ErrInternal(err.Error())
		}

		if apiErr.Code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", apiErr.Code, "error", apiErr.Message)
		}
		return c.Status(apiErr.Code).JSON(apiErr)
	}
}
