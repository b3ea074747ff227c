package handlers

import (
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/middleware"
	"github.com/alohasecurity/aloha-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, users)
}

func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := h.users.Create(c.UserContext(), middleware.Actor(c), &req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, dto.CreatedResponse{ID: id, Message: "User created successfully."})
}

func (h *UserHandler) Update(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "Invalid user ID")
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.users.Update(c.UserContext(), middleware.Actor(c), id, &req); err != nil {
		return fail(c, err)
	}
	return message(c, "User updated successfully.")
}

func (h *UserHandler) Delete(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "Invalid user ID")
	}

	if err := h.users.Delete(c.UserContext(), middleware.Actor(c), id); err != nil {
		return fail(c, err)
	}
	return message(c, "User deleted successfully.")
}
