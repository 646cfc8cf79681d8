package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
)

// liveness reports that the process is serving requests.
func (s *Server) liveness(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// readiness reports whether the database answers.
func (s *Server) readiness(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"files":  s.deps.Files.Snapshot().Len(),
	})
}
