package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/observability"
	"github.com/noah-isme/steward-api/internal/repository"
)

// AssetService is the AssetRegistry. SetStatus is the only path that mutates
// an asset's status.
type AssetService interface {
	List(ctx context.Context, actor Actor, req dto.AssetListRequest) ([]dto.AssetResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.AssetResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.AssetCreateRequest) (dto.AssetResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.AssetUpdateRequest) (dto.AssetResponse, error)
	Retire(ctx context.Context, actor Actor, id uint, payload dto.AssetRetireRequest) (dto.AssetResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	SetStatus(ctx context.Context, tx *Tx, asset *models.Asset, to models.AssetStatus, actor Actor, reason string) error
}

type assetService struct {
	store     repository.Store
	activity  ActivityRecorder
	plans     PlanService
	dashboard DashboardInvalidator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewAssetService constructs the asset registry.
func NewAssetService(store repository.Store, activity ActivityRecorder, plans PlanService, dashboard DashboardInvalidator, validate *validator.Validate, logger zerolog.Logger) AssetService {
	return &assetService{
		store:     store,
		activity:  activity,
		plans:     plans,
		dashboard: dashboard,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "asset_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/steward-api/internal/service/asset"),
	}
}

func (s *assetService) SetStatus(ctx context.Context, tx *Tx, asset *models.Asset, to models.AssetStatus, actor Actor, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if !to.Valid() {
		return ErrInvalidStatus
	}

	from := asset.Status
	if from == to {
		return nil
	}

	spanCtx, span := s.tracer.Start(ctx, "assets.set_status", trace.WithAttributes(
		attribute.String("org_id", asset.OrgID),
		attribute.Int64("asset_id", int64(asset.ID)),
		attribute.String("asset.from", string(from)),
		attribute.String("asset.to", string(to)),
	))
	defer span.End()

	swapped, err := tx.Assets().CompareAndSetStatus(spanCtx, asset.OrgID, asset.ID, from, to, actor.UserID)
	if err != nil {
		span.RecordError(err)
		return storageFailure("set asset status", err)
	}
	if !swapped {
		return ErrStatusConflict
	}

	if _, err := s.activity.Record(spanCtx, tx, ActivityEntry{
		OrgID:     asset.OrgID,
		AssetID:   asset.ID,
		AssetName: asset.Name,
		ActorID:   actor.UserID,
		EventType: models.EventAssetStatusChanged,
		Details: map[string]interface{}{
			"previous_status": string(from),
			"new_status":      string(to),
			"reason":          reason,
		},
	}); err != nil {
		return err
	}

	asset.Status = to
	asset.UpdatedBy = actor.UserID
	tx.afterCommit(func() {
		observability.AssetStatusTransitions().WithLabelValues(string(from), string(to)).Inc()
	})
	return nil
}

func (s *assetService) List(ctx context.Context, actor Actor, req dto.AssetListRequest) ([]dto.AssetResponse, error) {
	if err := actor.requireMember(); err != nil {
		return nil, err
	}

	status := strings.TrimSpace(req.Status)
	if status != "" && !models.AssetStatus(status).Valid() {
		return nil, ErrInvalidStatus
	}

	assets, err := s.store.Assets().List(ctx, repository.AssetFilter{
		OrgID:  actor.OrgID,
		Status: status,
		Search: req.Search,
	})
	if err != nil {
		return nil, storageFailure("list assets", err)
	}

	return dto.NewAssetResponseSlice(assets), nil
}

func (s *assetService) Get(ctx context.Context, actor Actor, id uint) (dto.AssetResponse, error) {
	if err := actor.requireMember(); err != nil {
		return dto.AssetResponse{}, err
	}

	asset, err := loadAsset(ctx, s.store.Assets(), actor.OrgID, id)
	if err != nil {
		return dto.AssetResponse{}, err
	}

	return dto.NewAssetResponse(asset), nil
}

func (s *assetService) Create(ctx context.Context, actor Actor, payload dto.AssetCreateRequest) (dto.AssetResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return dto.AssetResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssetResponse{}, err
	}

	status := models.AssetStatusAvailable
	if raw := strings.TrimSpace(payload.Status); raw != "" {
		status = models.AssetStatus(raw)
		if !status.Valid() {
			return dto.AssetResponse{}, ErrInvalidStatus
		}
		if status == models.AssetStatusCheckedOut {
			return dto.AssetResponse{}, ErrCheckoutOwned
		}
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	if name == "" {
		return dto.AssetResponse{}, fmt.Errorf("asset name empty after sanitization: %w", ErrValidation)
	}

	asset := models.Asset{
		OrgID:          actor.OrgID,
		Name:           name,
		Description:    strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Status:         status,
		EstimatedValue: payload.EstimatedValue,
		QRCode:         normalizeQRCode(payload.QRCode),
		ImageURL:       strings.TrimSpace(payload.ImageURL),
		CreatedBy:      actor.UserID,
		UpdatedBy:      actor.UserID,
	}

	tier := s.plans.Tier(ctx, actor.OrgID)

	spanCtx, span := s.tracer.Start(ctx, "assets.create", trace.WithAttributes(
		attribute.String("org_id", actor.OrgID),
		attribute.String("plan", string(tier)),
	))
	defer span.End()

	err := atomically(spanCtx, s.store, s.activity, func(tx *Tx) error {
		count, err := tx.Assets().Count(spanCtx, actor.OrgID)
		if err != nil {
			return storageFailure("count assets", err)
		}
		if err := s.plans.CheckQuota(tier, ResourceAssets, count); err != nil {
			return err
		}

		if err := tx.Assets().Create(spanCtx, &asset); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrQRCodeTaken
			}
			return storageFailure("create asset", err)
		}

		_, err = s.activity.Record(spanCtx, tx, ActivityEntry{
			OrgID:     asset.OrgID,
			AssetID:   asset.ID,
			AssetName: asset.Name,
			ActorID:   actor.UserID,
			EventType: models.EventAssetCreated,
			Details: map[string]interface{}{
				"status":          string(asset.Status),
				"estimated_value": asset.EstimatedValue,
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		return dto.AssetResponse{}, err
	}

	s.dashboard.Invalidate(ctx, actor.OrgID)
	return dto.NewAssetResponse(asset), nil
}

func (s *assetService) Update(ctx context.Context, actor Actor, id uint, payload dto.AssetUpdateRequest) (dto.AssetResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return dto.AssetResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssetResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "assets.update", trace.WithAttributes(
		attribute.String("org_id", actor.OrgID),
		attribute.Int64("asset_id", int64(id)),
	))
	defer span.End()

	var updated models.Asset
	err := atomically(spanCtx, s.store, s.activity, func(tx *Tx) error {
		asset, err := loadAsset(spanCtx, tx.Assets(), actor.OrgID, id)
		if err != nil {
			return err
		}

		var nextStatus *models.AssetStatus
		if payload.Status != nil {
			candidate := models.AssetStatus(strings.TrimSpace(*payload.Status))
			if !candidate.Valid() {
				return ErrInvalidStatus
			}
			if candidate != asset.Status {
				if candidate == models.AssetStatusCheckedOut || asset.Status == models.AssetStatusCheckedOut {
					return ErrCheckoutOwned
				}
				if strings.TrimSpace(payload.StatusReason) == "" {
					return ErrReasonRequired
				}
				nextStatus = &candidate
			}
		}

		updates, changed, err := s.assetFieldUpdates(asset, payload)
		if err != nil {
			return err
		}

		if len(changed) > 0 {
			updates["updated_by"] = actor.UserID
			if err := tx.Assets().Update(spanCtx, actor.OrgID, asset.ID, updates); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrQRCodeTaken
				}
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAssetNotFound
				}
				return storageFailure("update asset", err)
			}
			if name, ok := updates["name"].(string); ok {
				asset.Name = name
			}

			if _, err := s.activity.Record(spanCtx, tx, ActivityEntry{
				OrgID:     asset.OrgID,
				AssetID:   asset.ID,
				AssetName: asset.Name,
				ActorID:   actor.UserID,
				EventType: models.EventAssetUpdated,
				Details: map[string]interface{}{
					"changed_fields": changed,
				},
			}); err != nil {
				return err
			}
		}

		if nextStatus != nil {
			if err := s.SetStatus(spanCtx, tx, &asset, *nextStatus, actor, payload.StatusReason); err != nil {
				return err
			}
		}

		updated, err = loadAsset(spanCtx, tx.Assets(), actor.OrgID, asset.ID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return dto.AssetResponse{}, err
	}

	s.dashboard.Invalidate(ctx, actor.OrgID)
	return dto.NewAssetResponse(updated), nil
}

func (s *assetService) assetFieldUpdates(asset models.Asset, payload dto.AssetUpdateRequest) (map[string]interface{}, []string, error) {
	updates := make(map[string]interface{})
	changed := make([]string, 0)

	if payload.Name != nil {
		name := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Name))
		if name == "" {
			return nil, nil, fmt.Errorf("asset name empty after sanitization: %w", ErrValidation)
		}
		if name != asset.Name {
			updates["name"] = name
			changed = append(changed, "name")
		}
	}
	if payload.Description != nil {
		description := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
		if description != asset.Description {
			updates["description"] = description
			changed = append(changed, "description")
		}
	}
	if payload.EstimatedValue != nil && *payload.EstimatedValue != asset.EstimatedValue {
		updates["estimated_value"] = *payload.EstimatedValue
		changed = append(changed, "estimated_value")
	}
	if payload.QRCode != nil {
		code := normalizeQRCode(payload.QRCode)
		if !sameQRCode(code, asset.QRCode) {
			updates["qr_code"] = code
			changed = append(changed, "qr_code")
		}
	}
	if payload.ImageURL != nil {
		imageURL := strings.TrimSpace(*payload.ImageURL)
		if imageURL != asset.ImageURL {
			updates["image_url"] = imageURL
			changed = append(changed, "image_url")
		}
	}

	return updates, changed, nil
}

func (s *assetService) Retire(ctx context.Context, actor Actor, id uint, payload dto.AssetRetireRequest) (dto.AssetResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return dto.AssetResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssetResponse{}, err
	}

	reason := strings.TrimSpace(s.sanitizer.Sanitize(payload.Reason))

	var retired models.Asset
	err := atomically(ctx, s.store, s.activity, func(tx *Tx) error {
		asset, err := loadAsset(ctx, tx.Assets(), actor.OrgID, id)
		if err != nil {
			return err
		}

		switch asset.Status {
		case models.AssetStatusCheckedOut:
			return ErrAssetUnavailable
		case models.AssetStatusRetired:
			retired = asset
			return nil
		}

		previous := asset.Status
		if err := s.SetStatus(ctx, tx, &asset, models.AssetStatusRetired, actor, reason); err != nil {
			return err
		}

		if _, err := s.activity.Record(ctx, tx, ActivityEntry{
			OrgID:     asset.OrgID,
			AssetID:   asset.ID,
			AssetName: asset.Name,
			ActorID:   actor.UserID,
			EventType: models.EventAssetRetired,
			Details: map[string]interface{}{
				"previous_status": string(previous),
				"reason":          reason,
			},
		}); err != nil {
			return err
		}

		retired = asset
		return nil
	})
	if err != nil {
		return dto.AssetResponse{}, err
	}

	s.dashboard.Invalidate(ctx, actor.OrgID)
	return dto.NewAssetResponse(retired), nil
}

func (s *assetService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := actor.requireAdmin(); err != nil {
		return err
	}

	err := atomically(ctx, s.store, s.activity, func(tx *Tx) error {
		asset, err := loadAsset(ctx, tx.Assets(), actor.OrgID, id)
		if err != nil {
			return err
		}

		referenced, err := tx.Assets().IsReferenced(ctx, actor.OrgID, asset.ID)
		if err != nil {
			return storageFailure("check asset references", err)
		}
		if referenced {
			return ErrAssetInUse
		}

		if _, err := s.activity.Record(ctx, tx, ActivityEntry{
			OrgID:     asset.OrgID,
			AssetID:   asset.ID,
			AssetName: asset.Name,
			ActorID:   actor.UserID,
			EventType: models.EventAssetDeleted,
			Details: map[string]interface{}{
				"status":          string(asset.Status),
				"estimated_value": asset.EstimatedValue,
			},
		}); err != nil {
			return err
		}

		if err := tx.Assets().Delete(ctx, actor.OrgID, asset.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAssetNotFound
			}
			return storageFailure("delete asset", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dashboard.Invalidate(ctx, actor.OrgID)
	return nil
}

func loadAsset(ctx context.Context, repo repository.AssetRepository, orgID string, id uint) (models.Asset, error) {
	asset, err := repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Asset{}, ErrAssetNotFound
		}
		return models.Asset{}, storageFailure("load asset", err)
	}
	return asset, nil
}

// lockAsset loads the asset under a row lock so status policy decisions taken
// in the same transaction see the latest committed state.
func lockAsset(ctx context.Context, repo repository.AssetRepository, orgID string, id uint) (models.Asset, error) {
	asset, err := repo.GetForUpdate(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Asset{}, ErrAssetNotFound
		}
		return models.Asset{}, storageFailure("lock asset", err)
	}
	return asset, nil
}

func normalizeQRCode(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sameQRCode(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
