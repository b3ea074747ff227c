package logging

import (
	"context"
	"log/slog"
)

// BestEffort logs a failed side effect and swallows it. Callers use it for
// work whose failure must not fail the request, such as removing an
// orphaned upload.
func BestEffort(ctx context.Context, op string, err error, attrs ...any) {
	if err == nil {
		return
	}
	args := append([]any{"op", op, "error", err}, attrs...)
	slog.WarnContext(ctx, "best-effort operation failed", args...)
}
