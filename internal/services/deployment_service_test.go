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

func applicantStatus(t *testing.T, e *env, id uint) string {
	t.Helper()
	var status string
	_, err := e.store.FetchOne(context.Background(), &status, "SELECT status FROM applicants WHERE id = ?", id)
	require.NoError(t, err)
	return status
}

func TestDeployEndRedeploy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	guard := e.mustApply(t, "Kai", "Akana", "kai@example.com", "10.0.0.1")
	alaMoana := e.mustBranch(t, "Ala Moana")
	kapolei := e.mustBranch(t, "Kapolei")

	first, err := e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: alaMoana})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicantStatusHired, applicantStatus(t, e, guard))

	_, err = e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: kapolei})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	msg, err := e.deployments.UpdateStatus(ctx, admin, uint(first), models.DeploymentStatusEnded)
	require.NoError(t, err)
	assert.Contains(t, msg, "Hired pool")
	assert.Equal(t, models.ApplicantStatusHired, applicantStatus(t, e, guard))

	_, err = e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: kapolei})
	require.NoError(t, err)

	// reactivating the ended one would make two active deployments
	_, err = e.deployments.UpdateStatus(ctx, admin, uint(first), models.DeploymentStatusActive)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	assert.Equal(t, []string{
		audit.ActionBranchCreate,
		audit.ActionBranchCreate,
		audit.ActionDeploymentCreate,
		audit.ActionDeploymentEnd,
		audit.ActionDeploymentCreate,
	}, e.auditActions(t))
}

func TestOneActiveDeploymentWithoutIndex(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.store.Execute(ctx, "DROP INDEX idx_deployments_one_active")
	require.NoError(t, err)

	guard := e.mustApply(t, "Kai", "Akana", "kai@example.com", "10.0.0.1")
	alaMoana := e.mustBranch(t, "Ala Moana")
	kapolei := e.mustBranch(t, "Kapolei")

	first, err := e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: alaMoana})
	require.NoError(t, err)

	_, err = e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: kapolei})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	// re-marking the active deployment as Active is not a second one
	_, err = e.deployments.UpdateStatus(ctx, admin, uint(first), models.DeploymentStatusActive)
	require.NoError(t, err)

	_, err = e.deployments.UpdateStatus(ctx, admin, uint(first), models.DeploymentStatusEnded)
	require.NoError(t, err)
	_, err = e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: kapolei})
	require.NoError(t, err)

	_, err = e.deployments.UpdateStatus(ctx, admin, uint(first), models.DeploymentStatusActive)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	var active int64
	_, err = e.store.FetchOne(ctx, &active,
		"SELECT COUNT(*) FROM deployments WHERE applicant_id = ? AND status = ?", guard, models.DeploymentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)
}

func TestDeployMissingReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	guard := e.mustApply(t, "Kai", "Akana", "kai@example.com", "10.0.0.1")
	branch := e.mustBranch(t, "Hilo")

	_, err := e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: 999, BranchID: branch})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: 999})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = e.deployments.Deploy(ctx, admin, &dto.DeployRequest{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestListAndDeleteDeployments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	guard := e.mustApply(t, "Kai", "Akana", "kai@example.com", "10.0.0.1")
	other := e.mustApply(t, "Lani", "Kahale", "lani@example.com", "10.0.0.2")
	branch := e.mustBranch(t, "Waikiki")

	id, err := e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: guard, BranchID: branch})
	require.NoError(t, err)
	_, err = e.deployments.Deploy(ctx, admin, &dto.DeployRequest{ApplicantID: other, BranchID: branch})
	require.NoError(t, err)

	resp, err := e.deployments.List(ctx, dto.PageQuery{Search: "kai"})
	require.NoError(t, err)
	require.Len(t, resp.Deployments, 1)
	row := resp.Deployments[0]
	assert.Equal(t, "Kai", row.FirstName)
	assert.Equal(t, "Waikiki", row.BranchName)
	assert.Equal(t, models.DeploymentStatusActive, row.Status)
	assert.Equal(t, testNow, row.DateDeployed.UTC())
	assert.Equal(t, dto.DeploymentStats{TotalDeployments: 2, TotalActive: 2, ThisMonth: 2}, resp.Stats)

	require.NoError(t, e.deployments.Delete(ctx, admin, uint(id)))
	assert.True(t, apperr.Is(e.deployments.Delete(ctx, admin, uint(id)), apperr.KindNotFound))

	_, err = e.deployments.UpdateStatus(ctx, admin, uint(id), models.DeploymentStatusEnded)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = e.deployments.UpdateStatus(ctx, admin, uint(id), "Paused")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
