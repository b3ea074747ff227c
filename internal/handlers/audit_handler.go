package handlers

import (
	"github.com/alohasecurity/aloha-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuditHandler struct {
	auditLogs *services.AuditService
}

func NewAuditHandler(auditLogs *services.AuditService) *AuditHandler {
	return &AuditHandler{auditLogs: auditLogs}
}

func (h *AuditHandler) List(c *fiber.Ctx) error {
	resp, err := h.auditLogs.List(c.UserContext(), pageQuery(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, resp)
}
