// Package audit appends administrative actions to the audit_logs table.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/metrics"
)

const (
	ActionStatusUpdate         = "STATUS_UPDATE"
	ActionDelete               = "DELETE"
	ActionForceDeleteDep       = "FORCE_DELETE_DEP"
	ActionBranchCreate         = "BRANCH_CREATE"
	ActionBranchUpdate         = "BRANCH_UPDATE"
	ActionBranchDelete         = "BRANCH_DELETE"
	ActionForceDeleteBranchDep = "FORCE_DELETE_BRANCH_DEP"
	ActionDeploymentCreate     = "DEPLOYMENT_CREATE"
	ActionDeploymentEnd        = "DEPLOYMENT_END"
	ActionDeploymentUpdate     = "DEPLOYMENT_UPDATE"
	ActionDeploymentDelete     = "DEPLOYMENT_DELETE"
	ActionUserCreate           = "USER_CREATE"
	ActionUserUpdate           = "USER_UPDATE"
	ActionUserDelete           = "USER_DELETE"
	ActionPassReset            = "PASS_RESET"
	ActionProfileUpdate        = "PROFILE_UPDATE"
	ActionSystemBackup         = "SYSTEM_BACKUP"
	ActionSystemRestore        = "SYSTEM_RESTORE"
)

// Actor identifies who performed an action. UserID is nil for
// unauthenticated flows such as a password reset.
type Actor struct {
	UserID *uint
	IP     string
}

// UserActor is a convenience for an authenticated actor.
func UserActor(id uint, ip string) Actor {
	return Actor{UserID: &id, IP: ip}
}

type Recorder struct {
	store *database.Store
}

func NewRecorder(store *database.Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one audit entry. It never fails the caller: a write
// error is logged and counted. It must not be called from inside a
// store transaction.
func (r *Recorder) Record(ctx context.Context, actor Actor, action, details string) {
	_, err := r.store.Execute(ctx,
		"INSERT INTO audit_logs (user_id, action, details, ip_address, timestamp) VALUES (?, ?, ?, ?, ?)",
		actor.UserID, action, details, actor.IP, time.Now().UTC().Truncate(time.Second))
	if err != nil {
		metrics.AuditWriteFailures.Inc()
		slog.ErrorContext(ctx, "audit write failed", "action", action, "error", err)
	}
}
