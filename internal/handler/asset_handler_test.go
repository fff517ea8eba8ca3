package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/handler"
	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/service"
)

type stubAssetService struct {
	err      error
	actor    service.Actor
	created  dto.AssetCreateRequest
	listReq  dto.AssetListRequest
	assets   []dto.AssetResponse
	deleted  uint
	retireID uint
}

func (s *stubAssetService) List(_ context.Context, actor service.Actor, req dto.AssetListRequest) ([]dto.AssetResponse, error) {
	s.actor, s.listReq = actor, req
	return s.assets, s.err
}

func (s *stubAssetService) Get(_ context.Context, actor service.Actor, id uint) (dto.AssetResponse, error) {
	s.actor = actor
	if s.err != nil {
		return dto.AssetResponse{}, s.err
	}
	return dto.AssetResponse{ID: id, OrgID: actor.OrgID, Name: "Camera", Status: string(models.AssetStatusAvailable)}, nil
}

func (s *stubAssetService) Create(_ context.Context, actor service.Actor, payload dto.AssetCreateRequest) (dto.AssetResponse, error) {
	s.actor, s.created = actor, payload
	if s.err != nil {
		return dto.AssetResponse{}, s.err
	}
	return dto.AssetResponse{ID: 1, OrgID: actor.OrgID, Name: payload.Name, Status: string(models.AssetStatusAvailable)}, nil
}

func (s *stubAssetService) Update(_ context.Context, actor service.Actor, id uint, _ dto.AssetUpdateRequest) (dto.AssetResponse, error) {
	s.actor = actor
	return dto.AssetResponse{ID: id}, s.err
}

func (s *stubAssetService) Retire(_ context.Context, actor service.Actor, id uint, _ dto.AssetRetireRequest) (dto.AssetResponse, error) {
	s.actor, s.retireID = actor, id
	return dto.AssetResponse{ID: id, Status: string(models.AssetStatusRetired)}, s.err
}

func (s *stubAssetService) Delete(_ context.Context, actor service.Actor, id uint) error {
	s.actor, s.deleted = actor, id
	return s.err
}

func (s *stubAssetService) SetStatus(context.Context, *service.Tx, *models.Asset, models.AssetStatus, service.Actor, string) error {
	return s.err
}

func newAssetApp(svc service.AssetService, identity fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(identity)
	handler.NewAssetHandler(svc, zerolog.Nop()).Register(app.Group("/assets"))
	return app
}

func TestCreateAssetReturnsCreated(t *testing.T) {
	svc := &stubAssetService{}
	app := newAssetApp(svc, asAdmin())

	resp, body := perform(t, app, http.MethodPost, "/assets", map[string]interface{}{
		"name":            "Camera",
		"estimated_value": 1200,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)

	var asset dto.AssetResponse
	require.NoError(t, json.Unmarshal(body.Data, &asset))
	require.Equal(t, "Camera", asset.Name)
	require.Equal(t, "org_1", asset.OrgID)

	require.Equal(t, service.Actor{OrgID: "org_1", UserID: "admin_1", IsAdmin: true}, svc.actor)
	require.Equal(t, 1200.0, svc.created.EstimatedValue)
}

func TestAssetWritesAreAdminOnly(t *testing.T) {
	svc := &stubAssetService{}
	app := newAssetApp(svc, asMember())

	resp, _ := perform(t, app, http.MethodPost, "/assets", map[string]interface{}{"name": "Camera"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = perform(t, app, http.MethodDelete, "/assets/3", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Zero(t, svc.deleted)

	resp, _ = perform(t, app, http.MethodGet, "/assets/3", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.False(t, svc.actor.IsAdmin)
}

func TestAssetRoutesRequireOrganization(t *testing.T) {
	app := newAssetApp(&stubAssetService{}, withIdentity("user_1", "", "org:admin"))

	resp, _ := perform(t, app, http.MethodGet, "/assets", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListAssetsIncludesFilterMeta(t *testing.T) {
	svc := &stubAssetService{assets: []dto.AssetResponse{{ID: 1, Name: "Lens"}, {ID: 2, Name: "Lens cap"}}}
	app := newAssetApp(svc, asMember())

	resp, body := perform(t, app, http.MethodGet, "/assets?status=Available&search=lens", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, dto.AssetListRequest{Status: "Available", Search: "lens"}, svc.listReq)

	var meta struct {
		Count   int               `json:"count"`
		Filters map[string]string `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(body.Meta, &meta))
	require.Equal(t, 2, meta.Count)
	require.Equal(t, "lens", meta.Filters["search"])
}

func TestAssetHandlerRejectsMalformedInput(t *testing.T) {
	app := newAssetApp(&stubAssetService{}, asAdmin())

	resp, body := perform(t, app, http.MethodGet, "/assets/abc", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid id", body.Message)

	resp, _ = perform(t, app, http.MethodPost, "/assets/0/retire", map[string]string{"reason": "old"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAssetErrorsMapToStatusCodes(t *testing.T) {
	validationErr := validator.New().Struct(dto.AssetRetireRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: service.ErrAssetNotFound, status: fiber.StatusNotFound},
		{name: "in use", err: service.ErrAssetInUse, status: fiber.StatusConflict},
		{name: "unavailable", err: service.ErrAssetUnavailable, status: fiber.StatusConflict},
		{name: "quota", err: &service.QuotaExceededError{Resource: service.ResourceAssets, Tier: service.PlanStarter, Limit: 100}, status: fiber.StatusForbidden},
		{name: "reason required", err: service.ErrReasonRequired, status: fiber.StatusBadRequest},
		{name: "duplicate qr", err: service.ErrQRCodeTaken, status: fiber.StatusBadRequest},
		{name: "validator", err: validationErr, status: fiber.StatusBadRequest},
		{name: "storage", err: errors.New("disk on fire"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newAssetApp(&stubAssetService{err: tc.err}, asAdmin())

			resp, body := perform(t, app, http.MethodPost, "/assets/7/retire", map[string]string{"reason": "Broken beyond repair"})
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, body.Success)
		})
	}
}

func TestUnexpectedErrorsDoNotLeakDetails(t *testing.T) {
	app := newAssetApp(&stubAssetService{err: errors.New("pq: relation assets does not exist")}, asAdmin())

	resp, body := perform(t, app, http.MethodDelete, "/assets/5", nil)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "failed to delete asset", body.Message)
}

func TestValidationErrorsIncludeFieldDetails(t *testing.T) {
	validationErr := validator.New().Struct(dto.AssetRetireRequest{})
	app := newAssetApp(&stubAssetService{err: validationErr}, asAdmin())

	resp, body := perform(t, app, http.MethodPost, "/assets/7/retire", map[string]string{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var details map[string]string
	require.NoError(t, json.Unmarshal(body.Details, &details))
	require.Equal(t, "required", details["reason"])
}
