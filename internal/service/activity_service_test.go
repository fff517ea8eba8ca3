package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
)

func TestActivityListIsAdminOnly(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.activity.List(context.Background(), memberA, dto.ActivityListRequest{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestActivityListPaginatesNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for _, name := range []string{"One", "Two", "Three"} {
		h.createAsset(t, adminA, name, 1)
	}
	h.createAsset(t, adminB, "Foreign", 1)

	page, err := h.activity.List(ctx, adminA, dto.ActivityListRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, dto.PaginationMeta{Page: 1, PageSize: 2, TotalItems: 3, TotalPages: 2}, page.Pagination)
	require.Equal(t, "Three", page.Items[0].AssetName)
	require.Equal(t, "Two", page.Items[1].AssetName)

	next, err := h.activity.List(ctx, adminA, dto.ActivityListRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	require.Equal(t, "One", next.Items[0].AssetName)

	capped, err := h.activity.List(ctx, adminA, dto.ActivityListRequest{PageSize: 1000})
	require.NoError(t, err)
	require.Equal(t, 200, capped.Pagination.PageSize)
	require.Equal(t, 1, capped.Pagination.Page)

	byType, err := h.activity.List(ctx, adminA, dto.ActivityListRequest{EventType: models.EventCheckedOut})
	require.NoError(t, err)
	require.Empty(t, byType.Items)
}

func TestStarterHistoryWindowHidesOldEntries(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	asset := h.createAsset(t, adminA, "Archive box", 5)

	old := models.ActivityLog{
		OrgID:     testOrgA,
		AssetID:   asset.ID,
		AssetName: asset.Name,
		ActorID:   adminA.UserID,
		EventType: models.EventAssetUpdated,
		Details:   datatypes.JSONMap{"changed_fields": []string{"name"}},
		CreatedAt: time.Now().UTC().AddDate(0, 0, -40),
	}
	require.NoError(t, h.db.Create(&old).Error)

	starter, err := h.activity.List(ctx, adminA, dto.ActivityListRequest{AssetID: &asset.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, starter.Pagination.TotalItems)
	require.Equal(t, models.EventAssetCreated, starter.Items[0].EventType)

	h.billing.setPlan(testOrgA, testProPlanID)

	pro, err := h.activity.List(ctx, adminA, dto.ActivityListRequest{AssetID: &asset.ID})
	require.NoError(t, err)
	require.EqualValues(t, 2, pro.Pagination.TotalItems)
	require.Equal(t, old.ID, pro.Items[1].ID)
}

func TestActivityIsPublishedOnlyAfterCommit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	entries, unsubscribe := h.stream.Subscribe(testOrgA)
	defer unsubscribe()
	foreign, unsubscribeForeign := h.stream.Subscribe(testOrgB)
	defer unsubscribeForeign()

	asset := h.createAsset(t, adminA, "Barrier", 75)

	select {
	case entry := <-entries:
		require.Equal(t, models.EventAssetCreated, entry.EventType)
		require.Equal(t, asset.ID, entry.AssetID)
	case <-time.After(time.Second):
		t.Fatal("expected created entry on the stream")
	}

	status := string(models.AssetStatusRetired)
	_, err := h.assets.Update(ctx, adminA, asset.ID, dto.AssetUpdateRequest{Status: &status})
	require.ErrorIs(t, err, ErrReasonRequired)

	h.seedAssets(t, testOrgA, 100)
	_, err = h.assets.Create(ctx, adminA, dto.AssetCreateRequest{Name: "Over quota"})
	require.ErrorIs(t, err, ErrQuotaExceeded)

	select {
	case entry := <-entries:
		t.Fatalf("unexpected entry %q published for a failed operation", entry.EventType)
	default:
	}
	select {
	case entry := <-foreign:
		t.Fatalf("entry %q leaked to another tenant", entry.EventType)
	default:
	}
}

func TestFailedActivityWriteRollsBackMutation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	camera := h.createAsset(t, adminA, "Camera", 1200)
	boiler := h.createAsset(t, adminA, "Boiler", 3000)

	require.NoError(t, h.db.Migrator().DropTable(&models.ActivityLog{}))

	_, err := h.assignments.Checkout(ctx, adminA, dto.CheckoutRequest{AssetID: camera.ID, AssignedTo: memberA.UserID})
	require.ErrorIs(t, err, ErrStorageFailure)
	require.Equal(t, models.AssetStatusAvailable, h.assetStatus(t, testOrgA, camera.ID))

	var assignments int64
	require.NoError(t, h.db.Model(&models.Assignment{}).Where("asset_id = ?", camera.ID).Count(&assignments).Error)
	require.Zero(t, assignments)

	_, err = h.incidents.Report(ctx, memberA, dto.IncidentCreateRequest{
		AssetID:     boiler.ID,
		Title:       "Pressure drop",
		Description: "Gauge reads zero after restart",
		Severity:    string(models.IncidentSeverityCritical),
	})
	require.ErrorIs(t, err, ErrStorageFailure)
	require.Equal(t, models.AssetStatusAvailable, h.assetStatus(t, testOrgA, boiler.ID))

	var incidents int64
	require.NoError(t, h.db.Model(&models.Incident{}).Where("asset_id = ?", boiler.ID).Count(&incidents).Error)
	require.Zero(t, incidents)
}

func TestActivityDetailsMaskSecrets(t *testing.T) {
	details := sanitizeDetails(map[string]interface{}{
		"assignee_email": "someone@example.com",
		"reset_token":    "abc",
		"reason":         "Damaged",
	})

	require.Equal(t, "***", details["assignee_email"])
	require.Equal(t, "***", details["reset_token"])
	require.Equal(t, "Damaged", details["reason"])
}
