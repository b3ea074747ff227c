package handlers

import (
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/middleware"
	"github.com/alohasecurity/aloha-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type DeploymentHandler struct {
	deployments *services.DeploymentService
}

func NewDeploymentHandler(deployments *services.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{deployments: deployments}
}

func (h *DeploymentHandler) Create(c *fiber.Ctx) error {
	var req dto.DeployRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := h.deployments.Deploy(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, dto.CreatedResponse{ID: id, Message: "Guard deployed successfully."})
}

func (h *DeploymentHandler) List(c *fiber.Ctx) error {
	resp, err := h.deployments.List(c.UserContext(), pageQuery(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, resp)
}

func (h *DeploymentHandler) UpdateStatus(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "Invalid deployment ID")
	}
	var req dto.DeploymentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	msg, err := h.deployments.UpdateStatus(c.UserContext(), middleware.Actor(c), id, req.Status)
	if err != nil {
		return fail(c, err)
	}
	return message(c, msg)
}

func (h *DeploymentHandler) Delete(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "Invalid deployment ID")
	}

	if err := h.deployments.Delete(c.UserContext(), middleware.Actor(c), id); err != nil {
		return fail(c, err)
	}
	return message(c, "Deployment record deleted.")
}
