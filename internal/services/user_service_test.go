package services

import (
	"context"
	"testing"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	adminID, err := e.users.Create(ctx, admin, &dto.CreateUserRequest{
		Username: "boss", Email: "boss@aloha.com", Password: "Secret123",
	})
	require.NoError(t, err)
	staffID, err := e.users.Create(ctx, admin, &dto.CreateUserRequest{
		Username: "desk", Email: "desk@aloha.com", Password: "Secret123", Role: models.RoleStaff,
		SecurityQuestion: "Island?", SecurityAnswer: "Maui",
	})
	require.NoError(t, err)

	_, err = e.users.Create(ctx, admin, &dto.CreateUserRequest{Username: "boss", Email: "x@aloha.com", Password: "Secret123"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = e.users.Create(ctx, admin, &dto.CreateUserRequest{Username: "x", Email: "x@aloha.com", Password: "Secret123", Role: "Root"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	users, err := e.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	err = e.users.Update(ctx, admin, uint(staffID), &dto.UpdateUserRequest{Username: "boss", Email: "desk@aloha.com", Role: models.RoleStaff})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	require.NoError(t, e.users.Update(ctx, admin, uint(staffID), &dto.UpdateUserRequest{Username: "frontdesk", Email: "desk@aloha.com", Role: models.RoleStaff}))
	assert.True(t, apperr.Is(e.users.Update(ctx, admin, 999, &dto.UpdateUserRequest{Username: "a", Email: "b"}), apperr.KindNotFound))

	self := audit.UserActor(uint(adminID), "127.0.0.1")
	assert.True(t, apperr.Is(e.users.Delete(ctx, self, uint(adminID)), apperr.KindForbidden))
	require.NoError(t, e.users.Delete(ctx, self, uint(staffID)))
	assert.True(t, apperr.Is(e.users.Delete(ctx, self, uint(staffID)), apperr.KindNotFound))

	assert.Equal(t, []string{
		audit.ActionUserCreate,
		audit.ActionUserCreate,
		audit.ActionUserUpdate,
		audit.ActionUserDelete,
	}, e.auditActions(t))
}

func TestAuditListSearch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedAdmin(t, e)
	login, err := e.auth.Login(ctx, &dto.LoginRequest{Email: "admin@aloha.com", Password: "Admin123!"})
	require.NoError(t, err)
	me := audit.UserActor(login.User.ID, "127.0.0.1")

	for _, name := range []string{"Hilo", "Kona", "Lihue"} {
		_, err := e.branches.Create(ctx, me, &dto.BranchRequest{Name: name, Location: "Islands"})
		require.NoError(t, err)
	}

	resp, err := e.auditLogs.List(ctx, dto.PageQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Logs, 2)
	assert.Contains(t, resp.Logs[0].Details, "Lihue")
	require.NotNil(t, resp.Logs[0].AdminUsername)
	assert.Equal(t, "admin", *resp.Logs[0].AdminUsername)
	assert.Equal(t, dto.Pagination{CurrentPage: 1, TotalPages: 2, TotalRecords: 3}, resp.Pagination)

	resp, err = e.auditLogs.List(ctx, dto.PageQuery{Search: "kona"})
	require.NoError(t, err)
	assert.Len(t, resp.Logs, 1)

	resp, err = e.auditLogs.List(ctx, dto.PageQuery{Search: "admin"})
	require.NoError(t, err)
	assert.Len(t, resp.Logs, 3)
}
