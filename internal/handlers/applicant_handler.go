package handlers

import (
	"mime/multipart"

	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/middleware"
	"github.com/alohasecurity/aloha-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ApplicantHandler struct {
	applicants *services.ApplicantService
}

func NewApplicantHandler(applicants *services.ApplicantService) *ApplicantHandler {
	return &ApplicantHandler{applicants: applicants}
}

func formFile(c *fiber.Ctx, field string) *multipart.FileHeader {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return fh
}

// Apply accepts the public multipart application form.
func (h *ApplicantHandler) Apply(c *fiber.Ctx) error {
	req := dto.ApplyRequest{
		FirstName:        c.FormValue("first_name"),
		LastName:         c.FormValue("last_name"),
		Email:            c.FormValue("email"),
		ContactNum:       c.FormValue("contact_num"),
		Birthdate:        c.FormValue("birthdate"),
		Gender:           c.FormValue("gender"),
		Address:          c.FormValue("address"),
		PositionApplied:  c.FormValue("position_applied"),
		YearsExperience:  c.FormValue("years_experience"),
		PreviousEmployer: c.FormValue("previous_employer"),
	}

	id, err := h.applicants.Apply(c.UserContext(), &req,
		formFile(c, "resume"), formFile(c, "id_image"), c.IP())
	if err != nil {
		return fail(c, err)
	}
	return created(c, dto.ApplyResponse{
		Message:     "Application submitted successfully!",
		ApplicantID: id,
	})
}

func (h *ApplicantHandler) Status(c *fiber.Ctx) error {
	applicant, err := h.applicants.Status(c.UserContext(), c.Query("id"), c.Query("email"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, applicant)
}

func (h *ApplicantHandler) List(c *fiber.Ctx) error {
	resp, err := h.applicants.List(c.UserContext(), dto.ApplicantListQuery{
		PageQuery: pageQuery(c),
		Status:    c.Query("status"),
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, resp)
}

func (h *ApplicantHandler) UpdateStatus(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "Invalid applicant ID")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.applicants.UpdateStatus(c.UserContext(), middleware.Actor(c), id, req.Status); err != nil {
		return fail(c, err)
	}
	return message(c, "Status updated successfully.")
}

func (h *ApplicantHandler) Delete(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "Invalid applicant ID")
	}

	if err := h.applicants.Delete(c.UserContext(), middleware.Actor(c), id, forced(c)); err != nil {
		return fail(c, err)
	}
	return message(c, "Applicant deleted successfully.")
}

func (h *ApplicantHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.applicants.DashboardStats(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, stats)
}
