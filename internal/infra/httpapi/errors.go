package httpapi

import (
	"errors"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

// statusFor maps a domain error to its HTTP status and taxonomy code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		return fiber.StatusBadRequest, "invalid_input"
	case errors.Is(err, entity.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, entity.ErrNotReady):
		return fiber.StatusConflict, "not_ready"
	case errors.Is(err, entity.ErrExternalTool):
		return fiber.StatusBadGateway, "external_tool_failure"
	case errors.Is(err, entity.ErrStorage):
		return fiber.StatusInternalServerError, "storage_failure"
	}
	return fiber.StatusInternalServerError, "internal_error"
}

func writeError(c *fiber.Ctx, err error, jobID uuid.UUID) error {
	status, code := statusFor(err)
	resp := errorResponse{Error: code, Message: err.Error()}
	if jobID != uuid.Nil {
		resp.JobID = jobID.String()
	}
	return c.Status(status).JSON(resp)
}

// errorHandler renders errors that escape a handler, including fiber's own.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := "http_error"
		switch fe.Code {
		case fiber.StatusRequestEntityTooLarge:
			code = "upload_too_large"
		case fiber.StatusNotFound:
			code = "not_found"
		}
		return c.Status(fe.Code).JSON(errorResponse{Error: code, Message: fe.Message})
	}
	return writeError(c, err, uuid.Nil)
}
