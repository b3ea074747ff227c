package services

import (
	"context"

	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/dto"
)

// AuditService is the read side of the audit trail.
type AuditService struct {
	store *database.Store
}

func NewAuditService(store *database.Store) *AuditService {
	return &AuditService{store: store}
}

// List pages through audit entries newest first. The search matches the
// entry details or the acting user's name.
func (s *AuditService) List(ctx context.Context, q dto.PageQuery) (*dto.AuditLogListResponse, error) {
	q.Normalize(15)
	like := q.Like()

	const from = `
		FROM audit_logs al
		LEFT JOIN users u ON al.user_id = u.id
		WHERE (al.details LIKE ? OR u.username LIKE ?)`

	resp := &dto.AuditLogListResponse{Logs: []dto.AuditLogRow{}}
	if err := s.store.FetchMany(ctx, &resp.Logs,
		`SELECT al.id, al.action, al.details, al.ip_address, al.timestamp, u.username AS admin_username`+from+
			" ORDER BY al.timestamp DESC, al.id DESC LIMIT ? OFFSET ?",
		like, like, q.Limit, q.Offset()); err != nil {
		return nil, err
	}

	var total int64
	if _, err := s.store.FetchOne(ctx, &total, "SELECT COUNT(*)"+from, like, like); err != nil {
		return nil, err
	}
	resp.Pagination = dto.NewPagination(q.Page, q.Limit, total)
	return resp, nil
}
