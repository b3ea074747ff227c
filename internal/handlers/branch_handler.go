package handlers

import (
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/middleware"
	"github.com/alohasecurity/aloha-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type BranchHandler struct {
	branches *services.BranchService
}

func NewBranchHandler(branches *services.BranchService) *BranchHandler {
	return &BranchHandler{branches: branches}
}

func (h *BranchHandler) Create(c *fiber.Ctx) error {
	var req dto.BranchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := h.branches.Create(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, dto.CreatedResponse{ID: id, Message: "Branch created successfully."})
}

func (h *BranchHandler) List(c *fiber.Ctx) error {
	resp, err := h.branches.List(c.UserContext(), pageQuery(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, resp)
}

func (h *BranchHandler) Update(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "Invalid branch ID")
	}
	var req dto.BranchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.branches.Update(c.UserContext(), middleware.Actor(c), id, &req); err != nil {
		return fail(c, err)
	}
	return message(c, "Branch updated successfully.")
}

func (h *BranchHandler) Delete(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "Invalid branch ID")
	}

	if err := h.branches.Delete(c.UserContext(), middleware.Actor(c), id, forced(c)); err != nil {
		return fail(c, err)
	}
	return message(c, "Branch deleted successfully.")
}
