package handlers

import (
	"time"

	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	store *database.Store
}

func NewHealthHandler(store *database.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	dbStatus := h.store.State().String()
	if err := h.store.Ping(c.UserContext()); err != nil {
		status = "degraded"
		dbStatus = "unhealthy: " + err.Error()
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	})
}
