package handlers

import (
	"log/slog"
	"strconv"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindAuth:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindThrottled:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes err as an ErrorResponse. Domain errors keep their message;
// anything else is logged and reported generically.
func fail(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	msg := apperr.Message(err)
	if status == fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "request failed",
			"request_id", c.Locals("requestid"),
			"method", c.Method(),
			"path", c.Path(),
			"kind", kind.String(),
			"error", err,
		)
		msg = "Internal server error"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(dto.DataResponse{Success: true, Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(dto.DataResponse{Success: true, Data: data})
}

func message(c *fiber.Ctx, msg string) error {
	return ok(c, dto.MessageResponse{Message: msg})
}

func idParam(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func pageQuery(c *fiber.Ctx) dto.PageQuery {
	return dto.PageQuery{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 0),
		Search: c.Query("search"),
		Sort:   c.Query("sort"),
	}
}

func forced(c *fiber.Ctx) bool {
	return c.QueryBool("force", false)
}
