package handlers

import (
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/middleware"
	"github.com/alohasecurity/aloha-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, resp)
}

// ForgotPasswordInit returns the security question for an email.
func (h *AuthHandler) ForgotPasswordInit(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	question, err := h.authService.SecurityQuestion(c.UserContext(), req.Email)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, dto.SecurityQuestionResponse{Question: question})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.authService.ResetPassword(c.UserContext(), &req, c.IP()); err != nil {
		return fail(c, err)
	}
	return message(c, "Password reset successful. You can now log in.")
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.authService.UpdateProfile(c.UserContext(), middleware.Actor(c), &req); err != nil {
		return fail(c, err)
	}
	return message(c, "Profile updated successfully.")
}
