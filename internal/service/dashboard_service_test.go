package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
)

func TestDashboardSummarisesTenantAssets(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	camera := h.createAsset(t, adminA, "Camera", 1000)
	h.createAsset(t, adminA, "Tripod", 100)
	lift := h.createAsset(t, adminA, "Lift", 2000)
	drone := h.createAsset(t, adminA, "Drone", 1500)
	h.createAsset(t, adminB, "Elsewhere", 99999)

	overdue := time.Now().UTC().Add(-72 * time.Hour)
	_, err := h.assignments.Checkout(ctx, adminA, dto.CheckoutRequest{AssetID: camera.ID, AssignedTo: memberA.UserID, ExpectedReturnAt: &overdue})
	require.NoError(t, err)

	h.report(t, memberA, lift.ID, models.IncidentSeverityCritical)

	missing := string(models.AssetStatusMissing)
	_, err = h.assets.Update(ctx, adminA, drone.ID, dto.AssetUpdateRequest{Status: &missing, StatusReason: "Not returned from event"})
	require.NoError(t, err)

	summary, err := h.dashboard.Summary(ctx, memberA)
	require.NoError(t, err)

	require.Equal(t, dto.DashboardCounts{TotalAssets: 4, CheckedOut: 1, Overdue: 1, Repair: 1, Missing: 1}, summary.Counts)
	require.Equal(t, dto.DashboardHealth{Good: 2, NeedsAttention: 1, OutOfService: 1}, summary.HealthBreakdown)
	require.Equal(t, dto.DashboardValueAtRisk{OverdueValue: 1000, RepairValue: 2000, MissingValue: 1500, TotalValue: 4500}, summary.ValueAtRisk)

	require.Len(t, summary.Lists.OverdueAssignments, 1)
	require.Equal(t, memberA.UserID, summary.Lists.OverdueAssignments[0].Assignee)
	require.Len(t, summary.Lists.RepairAssets, 1)
	require.Equal(t, "Lift", summary.Lists.RepairAssets[0].Name)
	require.Len(t, summary.Lists.MissingAssets, 1)

	require.Len(t, summary.TopAssets, 1)
	require.Equal(t, camera.ID, summary.TopAssets[0].AssetID)
	require.Contains(t, summary.Insights, "1 item is overdue today.")
	require.Contains(t, summary.Insights, "$4,500 worth of gear is currently unavailable (missing/repair/overdue).")
}

func TestDashboardEmptyTenant(t *testing.T) {
	h := newHarness(t, nil)

	summary, err := h.dashboard.Summary(context.Background(), adminB)
	require.NoError(t, err)
	require.Zero(t, summary.Counts.TotalAssets)
	require.Empty(t, summary.TopAssets)
	require.Equal(t, []string{"All equipment is accounted for and operational."}, summary.Insights)
}

func TestDashboardCacheIsInvalidatedByWrites(t *testing.T) {
	mr, client := newRedis(t)
	h := newHarness(t, client)
	ctx := context.Background()
	asset := h.createAsset(t, adminA, "Speaker", 300)

	_, err := h.dashboard.Summary(ctx, adminA)
	require.NoError(t, err)
	require.True(t, mr.Exists("dashboard:"+testOrgA))

	_, err = h.assignments.Checkout(ctx, adminA, dto.CheckoutRequest{AssetID: asset.ID, AssignedTo: memberA.UserID})
	require.NoError(t, err)
	require.False(t, mr.Exists("dashboard:"+testOrgA))

	summary, err := h.dashboard.Summary(ctx, adminA)
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.Counts.CheckedOut)

	_, err = h.assignments.Checkin(ctx, adminA, asset.ID)
	require.NoError(t, err)
	require.False(t, mr.Exists("dashboard:"+testOrgA))

	summary, err = h.dashboard.Summary(ctx, adminA)
	require.NoError(t, err)
	require.Zero(t, summary.Counts.CheckedOut)
}

func TestDashboardServesWithoutRedis(t *testing.T) {
	mr, client := newRedis(t)
	h := newHarness(t, client)
	ctx := context.Background()
	h.createAsset(t, adminA, "Speaker", 300)

	mr.Close()

	summary, err := h.dashboard.Summary(ctx, adminA)
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.Counts.TotalAssets)
}
