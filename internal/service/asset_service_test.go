package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
)

func TestAssetsAreInvisibleAcrossTenants(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	asset := h.createAsset(t, adminA, "Microphone", 220)

	_, err := h.assets.Get(ctx, adminB, asset.ID)
	require.ErrorIs(t, err, ErrAssetNotFound)

	name := "Stolen"
	_, err = h.assets.Update(ctx, adminB, asset.ID, dto.AssetUpdateRequest{Name: &name})
	require.ErrorIs(t, err, ErrAssetNotFound)

	require.ErrorIs(t, h.assets.Delete(ctx, adminB, asset.ID), ErrAssetNotFound)

	listed, err := h.assets.List(ctx, adminB, dto.AssetListRequest{})
	require.NoError(t, err)
	require.Empty(t, listed)

	own, err := h.assets.Get(ctx, memberA, asset.ID)
	require.NoError(t, err)
	require.Equal(t, "Microphone", own.Name)
}

func TestAssetWritesRequireAdmin(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.assets.Create(ctx, memberA, dto.AssetCreateRequest{Name: "Speaker"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = h.assets.Create(ctx, Actor{UserID: "nobody", IsAdmin: true}, dto.AssetCreateRequest{Name: "Speaker"})
	require.ErrorIs(t, err, ErrMissingOrganization)

	_, err = h.assets.Create(ctx, adminA, dto.AssetCreateRequest{Name: "Speaker", Status: string(models.AssetStatusCheckedOut)})
	require.ErrorIs(t, err, ErrCheckoutOwned)

	_, err = h.assets.Create(ctx, adminA, dto.AssetCreateRequest{Name: "Speaker", Status: "Borrowed"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusChangeRequiresReason(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	asset := h.createAsset(t, adminA, "Stage light", 310)

	maintenance := string(models.AssetStatusMaintenance)
	_, err := h.assets.Update(ctx, adminA, asset.ID, dto.AssetUpdateRequest{Status: &maintenance})
	require.ErrorIs(t, err, ErrReasonRequired)
	require.Equal(t, models.AssetStatusAvailable, h.assetStatus(t, testOrgA, asset.ID))

	checkedOut := string(models.AssetStatusCheckedOut)
	_, err = h.assets.Update(ctx, adminA, asset.ID, dto.AssetUpdateRequest{Status: &checkedOut, StatusReason: "Lent out"})
	require.ErrorIs(t, err, ErrCheckoutOwned)

	updated, err := h.assets.Update(ctx, adminA, asset.ID, dto.AssetUpdateRequest{Status: &maintenance, StatusReason: "Bulb replacement"})
	require.NoError(t, err)
	require.Equal(t, string(models.AssetStatusMaintenance), updated.Status)

	var change models.ActivityLog
	require.NoError(t, h.db.Where("asset_id = ? AND event_type = ?", asset.ID, models.EventAssetStatusChanged).First(&change).Error)
	require.Equal(t, "Available", change.Details["previous_status"])
	require.Equal(t, "Maintenance", change.Details["new_status"])
	require.Equal(t, "Bulb replacement", change.Details["reason"])
	require.Equal(t, adminA.UserID, change.ActorID)
}

func TestRetireRejectsCheckedOutAndIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	asset := h.createAsset(t, adminA, "Tablet", 450)

	_, err := h.assignments.Checkout(ctx, adminA, dto.CheckoutRequest{AssetID: asset.ID, AssignedTo: memberA.UserID})
	require.NoError(t, err)

	_, err = h.assets.Retire(ctx, adminA, asset.ID, dto.AssetRetireRequest{Reason: "Screen cracked"})
	require.ErrorIs(t, err, ErrAssetUnavailable)

	_, err = h.assignments.Checkin(ctx, memberA, asset.ID)
	require.NoError(t, err)

	retired, err := h.assets.Retire(ctx, adminA, asset.ID, dto.AssetRetireRequest{Reason: "Screen cracked"})
	require.NoError(t, err)
	require.Equal(t, string(models.AssetStatusRetired), retired.Status)

	again, err := h.assets.Retire(ctx, adminA, asset.ID, dto.AssetRetireRequest{Reason: "Screen cracked"})
	require.NoError(t, err)
	require.Equal(t, string(models.AssetStatusRetired), again.Status)

	require.Equal(t, 1, countEvents(h.eventTypes(t, testOrgA, asset.ID), models.EventAssetRetired))

	_, err = h.assignments.Checkout(ctx, adminA, dto.CheckoutRequest{AssetID: asset.ID, AssignedTo: memberA.UserID})
	require.ErrorIs(t, err, ErrAssetUnavailable)
}

func TestDeleteRefusesReferencedAssets(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	used := h.createAsset(t, adminA, "Keyboard", 60)
	unused := h.createAsset(t, adminA, "Mouse", 25)

	h.report(t, memberA, used.ID, models.IncidentSeverityLow)
	require.ErrorIs(t, h.assets.Delete(ctx, adminA, used.ID), ErrAssetInUse)

	require.NoError(t, h.assets.Delete(ctx, adminA, unused.ID))
	_, err := h.assets.Get(ctx, adminA, unused.ID)
	require.ErrorIs(t, err, ErrAssetNotFound)
	require.Equal(t, 1, countEvents(h.eventTypes(t, testOrgA, unused.ID), models.EventAssetDeleted))
}

func TestQRCodesAreUniquePerTenant(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	code := "QR-0001"

	_, err := h.assets.Create(ctx, adminA, dto.AssetCreateRequest{Name: "Amp", QRCode: &code})
	require.NoError(t, err)

	_, err = h.assets.Create(ctx, adminA, dto.AssetCreateRequest{Name: "Second amp", QRCode: &code})
	require.ErrorIs(t, err, ErrQRCodeTaken)

	_, err = h.assets.Create(ctx, adminB, dto.AssetCreateRequest{Name: "Other tenant amp", QRCode: &code})
	require.NoError(t, err)

	blank := "  "
	_, err = h.assets.Create(ctx, adminA, dto.AssetCreateRequest{Name: "Unlabelled one", QRCode: &blank})
	require.NoError(t, err)
	_, err = h.assets.Create(ctx, adminA, dto.AssetCreateRequest{Name: "Unlabelled two", QRCode: &blank})
	require.NoError(t, err)
}

func TestListFiltersByStatusAndSearch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.createAsset(t, adminA, "Canon camera", 900)
	h.createAsset(t, adminA, "Sony camera", 1100)
	lens := h.createAsset(t, adminA, "Zoom lens", 700)

	missing := string(models.AssetStatusMissing)
	_, err := h.assets.Update(ctx, adminA, lens.ID, dto.AssetUpdateRequest{Status: &missing, StatusReason: "Lost on set"})
	require.NoError(t, err)

	cameras, err := h.assets.List(ctx, memberA, dto.AssetListRequest{Search: "camera"})
	require.NoError(t, err)
	require.Len(t, cameras, 2)

	lost, err := h.assets.List(ctx, memberA, dto.AssetListRequest{Status: missing})
	require.NoError(t, err)
	require.Len(t, lost, 1)
	require.Equal(t, lens.ID, lost[0].ID)

	_, err = h.assets.List(ctx, memberA, dto.AssetListRequest{Status: "Lent"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}
