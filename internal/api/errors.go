package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"furnacewear/internal/store"
	"furnacewear/pkg/analysis"
	"furnacewear/pkg/ingest"
	"furnacewear/pkg/repair"
)

// errFileNotLoaded is returned when a file name is not in the file cache.
var errFileNotLoaded = errors.New("file not loaded")

func badRequest(msg string) error {
	return fiber.NewError(http.StatusBadRequest, msg)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, store.ErrNotFound), errors.Is(err, errFileNotLoaded):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalid),
		errors.Is(err, ingest.ErrEmptyInput),
		errors.Is(err, ingest.ErrSchema),
		errors.Is(err, ingest.ErrNoData),
		errors.Is(err, analysis.ErrProfileRange),
		errors.Is(err, repair.ErrUnknownMaterial):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes every error as {"error": "..."}.
func (s *Server) handleError(c fiber.Ctx, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		msg = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
