package services

import (
	"context"
	"testing"

	"github.com/alohasecurity/aloha-backend/internal/apperr"
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchCRUD(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id := e.mustBranch(t, "Ala Moana")
	e.mustBranch(t, "Kapolei")

	_, err := e.branches.Create(ctx, admin, &dto.BranchRequest{Name: "Ala Moana", Location: "Oahu"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = e.branches.Create(ctx, admin, &dto.BranchRequest{Name: "No Location"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, e.branches.Update(ctx, admin, id, &dto.BranchRequest{Name: "Ala Moana Center", Location: "Honolulu", RequiredGuards: 4}))
	assert.True(t, apperr.Is(e.branches.Update(ctx, admin, id, &dto.BranchRequest{Name: "Kapolei", Location: "Oahu"}), apperr.KindConflict))
	assert.True(t, apperr.Is(e.branches.Update(ctx, admin, 999, &dto.BranchRequest{Name: "Ghost", Location: "Nowhere"}), apperr.KindNotFound))

	resp, err := e.branches.List(ctx, dto.PageQuery{Search: "center"})
	require.NoError(t, err)
	require.Len(t, resp.Branches, 1)
	assert.Equal(t, 4, resp.Branches[0].RequiredGuards)
	assert.Equal(t, dto.BranchStats{TotalBranches: 2, TotalLocations: 2}, resp.Stats)
	assert.Equal(t, int64(1), resp.Pagination.TotalRecords)
}

func TestDeleteBranchForce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	guard := e.mustApply(t, "Kai", "Akana", "kai@example.com", "10.0.0.1")
	branch := e.mustBranch(t, "Hilo")
	_, err := e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: branch})
	require.NoError(t, err)

	err = e.branches.Delete(ctx, admin, branch, false)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, apperr.Message(err), "Hilo")

	require.NoError(t, e.branches.Delete(ctx, admin, branch, true))

	var left int64
	_, err = e.store.FetchOne(ctx, &left, "SELECT COUNT(*) FROM deployments")
	require.NoError(t, err)
	assert.Zero(t, left)

	actions := e.auditActions(t)
	assert.Equal(t, []string{audit.ActionForceDeleteBranchDep, audit.ActionBranchDelete}, actions[len(actions)-2:])

	assert.True(t, apperr.Is(e.branches.Delete(ctx, admin, branch, false), apperr.KindNotFound))
}

func TestDeleteBranchWithoutDeployments(t *testing.T) {
	e := newEnv(t)
	branch := e.mustBranch(t, "Lihue")

	require.NoError(t, e.branches.Delete(context.Background(), admin, branch, false))
}
