package handlers

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/backup"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// SystemHandler serves full-system backup and restore.
type SystemHandler struct {
	backups  *backup.Manager
	maxBytes int64
}

func NewSystemHandler(backups *backup.Manager, maxBytes int64) *SystemHandler {
	return &SystemHandler{backups: backups, maxBytes: maxBytes}
}

// Backup snapshots the store before any header is written, so a failed
// snapshot still gets a proper error response. The archive itself is
// streamed; a failure mid-stream can only truncate the download.
func (h *SystemHandler) Backup(c *fiber.Ctx) error {
	snap, err := h.backups.Snapshot(c.UserContext())
	if err != nil {
		return fail(c, err)
	}

	actor := middleware.Actor(c)
	requestID := c.Locals("requestid")
	name := fmt.Sprintf("aloha_full_backup_%s.zip", time.Now().UTC().Format("2006-01-02"))

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer snap.Close()
		// the request context is gone once the handler returns
		ctx := context.Background()
		if err := h.backups.Stream(ctx, snap, w, actor); err != nil {
			slog.ErrorContext(ctx, "backup stream failed", "request_id", requestID, "error", err)
			return
		}
		if err := w.Flush(); err != nil {
			slog.WarnContext(ctx, "backup flush failed", "request_id", requestID, "error", err)
		}
	})
	return nil
}

func (h *SystemHandler) Restore(c *fiber.Ctx) error {
	fh, err := c.FormFile("backup_file")
	if err != nil {
		return badRequest(c, "No backup file uploaded.")
	}
	if fh.Size > h.maxBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{
			Error: true, Message: fmt.Sprintf("Backup file exceeds %d bytes.", h.maxBytes),
		})
	}

	src, err := fh.Open()
	if err != nil {
		return fail(c, err)
	}
	defer src.Close()

	res, err := h.backups.Restore(c.UserContext(), fh.Filename, src, fh.Size, middleware.Actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{
		"message": "System restored successfully.",
		"result":  res,
	})
}
