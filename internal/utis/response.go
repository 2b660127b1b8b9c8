package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type ErrorBody struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func JSONSuccess(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(payload)
}

func JSONError(c *fiber.Ctx, status int, code, msg string, details *string) error {
	return c.Status(status).JSON(ErrorEnvelope{Error: ErrorBody{Code: code, Message: msg, Details: details}})
}

// JSONAppError writes err using the envelope. Internal details are only
// exposed when expose is set.
func JSONAppError(c *fiber.Ctx, err error, expose bool) error {
	status, code := Classify(err)
	var details *string
	msg := "An unexpected error occurred"

	var ae *AppError
	if code != CodeInternal {
		msg = err.Error()
		if errors.As(err, &ae) {
			msg = ae.Message
			if ae.Details != "" {
				d := ae.Details
				details = &d
			}
		}
	} else if expose {
		d := err.Error()
		details = &d
	}
	return JSONError(c, status, code, msg, details)
}
