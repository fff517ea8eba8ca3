package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/observability"
	"github.com/noah-isme/steward-api/internal/repository"
)

// AssignmentService is the AssignmentLedger: who holds which asset.
type AssignmentService interface {
	Checkout(ctx context.Context, actor Actor, payload dto.CheckoutRequest) (dto.AssignmentResponse, error)
	// Checkin closes the active assignment. Only a Checked Out asset returns to
	// Available; an asset in Maintenance stays there until its incidents resolve.
	Checkin(ctx context.Context, actor Actor, assetID uint) (dto.AssignmentResponse, error)
	ListActive(ctx context.Context, actor Actor) ([]dto.AssignmentResponse, error)
	ListHistory(ctx context.Context, actor Actor) ([]dto.AssignmentResponse, error)
	AssetHistory(ctx context.Context, actor Actor, assetID uint) ([]dto.AssignmentResponse, error)
}

type assignmentService struct {
	store     repository.Store
	assets    AssetService
	activity  ActivityRecorder
	dashboard DashboardInvalidator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAssignmentService constructs the assignment ledger.
func NewAssignmentService(store repository.Store, assets AssetService, activity ActivityRecorder, dashboard DashboardInvalidator, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		store:     store,
		assets:    assets,
		activity:  activity,
		dashboard: dashboard,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/steward-api/internal/service/assignment"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *assignmentService) Checkout(ctx context.Context, actor Actor, payload dto.CheckoutRequest) (dto.AssignmentResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.checkout", trace.WithAttributes(
		attribute.String("org_id", actor.OrgID),
		attribute.Int64("asset_id", int64(payload.AssetID)),
	))
	defer span.End()

	assignee := strings.TrimSpace(payload.AssignedTo)
	now := s.now()

	var assignment models.Assignment
	err := atomically(spanCtx, s.store, s.activity, func(tx *Tx) error {
		asset, err := loadAsset(spanCtx, tx.Assets(), actor.OrgID, payload.AssetID)
		if err != nil {
			return err
		}
		if asset.Status != models.AssetStatusAvailable {
			return ErrAssetUnavailable
		}

		reason := fmt.Sprintf("Checked out to %s", assignee)
		if err := s.assets.SetStatus(spanCtx, tx, &asset, models.AssetStatusCheckedOut, actor, reason); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				return ErrAssetUnavailable
			}
			return err
		}

		assignment = models.Assignment{
			OrgID:            actor.OrgID,
			AssetID:          asset.ID,
			AssignedTo:       assignee,
			AssignedBy:       actor.UserID,
			Status:           models.AssignmentStatusActive,
			CheckedOutAt:     now,
			ExpectedReturnAt: payload.ExpectedReturnAt,
			Notes:            strings.TrimSpace(s.sanitizer.Sanitize(payload.Notes)),
			EventTags:        datatypes.JSONSlice[string](normalizeTags(payload.EventTags)),
		}
		if err := tx.Assignments().Create(spanCtx, &assignment); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAssetUnavailable
			}
			return storageFailure("create assignment", err)
		}
		assignment.Asset = &asset

		details := map[string]interface{}{
			"assignment_id": assignment.ID,
			"assigned_to":   assignee,
		}
		if payload.ExpectedReturnAt != nil {
			details["expected_return_at"] = payload.ExpectedReturnAt.UTC().Format(time.RFC3339)
		}

		_, err = s.activity.Record(spanCtx, tx, ActivityEntry{
			OrgID:     actor.OrgID,
			AssetID:   asset.ID,
			AssetName: asset.Name,
			ActorID:   actor.UserID,
			EventType: models.EventCheckedOut,
			Details:   details,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		result := "error"
		if errors.Is(err, ErrAssetUnavailable) {
			result = "unavailable"
		}
		observability.Checkouts().WithLabelValues(result).Inc()
		return dto.AssignmentResponse{}, err
	}

	observability.Checkouts().WithLabelValues("success").Inc()
	s.dashboard.Invalidate(ctx, actor.OrgID)
	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Checkin(ctx context.Context, actor Actor, assetID uint) (dto.AssignmentResponse, error) {
	if err := actor.requireMember(); err != nil {
		return dto.AssignmentResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.checkin", trace.WithAttributes(
		attribute.String("org_id", actor.OrgID),
		attribute.Int64("asset_id", int64(assetID)),
	))
	defer span.End()

	now := s.now()

	var returned models.Assignment
	err := atomically(spanCtx, s.store, s.activity, func(tx *Tx) error {
		asset, err := lockAsset(spanCtx, tx.Assets(), actor.OrgID, assetID)
		if err != nil {
			if errors.Is(err, ErrAssetNotFound) {
				return ErrNoActiveAssignment
			}
			return err
		}

		active, err := tx.Assignments().FindActive(spanCtx, actor.OrgID, assetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoActiveAssignment
			}
			return storageFailure("find active assignment", err)
		}

		closed, err := tx.Assignments().MarkReturned(spanCtx, actor.OrgID, active.ID, now)
		if err != nil {
			return storageFailure("close assignment", err)
		}
		if !closed {
			return ErrNoActiveAssignment
		}

		if asset.Status == models.AssetStatusCheckedOut {
			reason := fmt.Sprintf("Checked in by %s", actor.UserID)
			if err := s.assets.SetStatus(spanCtx, tx, &asset, models.AssetStatusAvailable, actor, reason); err != nil {
				return err
			}
		}

		_, err = s.activity.Record(spanCtx, tx, ActivityEntry{
			OrgID:     actor.OrgID,
			AssetID:   asset.ID,
			AssetName: asset.Name,
			ActorID:   actor.UserID,
			EventType: models.EventCheckedIn,
			Details: map[string]interface{}{
				"assignment_id": active.ID,
				"assigned_to":   active.AssignedTo,
				"overdue":       active.IsOverdue(now),
			},
		})
		if err != nil {
			return err
		}

		returned = active
		returned.Status = models.AssignmentStatusReturned
		returned.ActualReturnAt = &now
		returned.Asset = &asset
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return dto.AssignmentResponse{}, err
	}

	s.dashboard.Invalidate(ctx, actor.OrgID)
	return dto.NewAssignmentResponse(returned), nil
}

func (s *assignmentService) ListActive(ctx context.Context, actor Actor) ([]dto.AssignmentResponse, error) {
	return s.list(ctx, actor, models.AssignmentStatusActive, "")
}

func (s *assignmentService) ListHistory(ctx context.Context, actor Actor) ([]dto.AssignmentResponse, error) {
	return s.list(ctx, actor, models.AssignmentStatusReturned, "-actual_return_at")
}

func (s *assignmentService) list(ctx context.Context, actor Actor, status models.AssignmentStatus, sort string) ([]dto.AssignmentResponse, error) {
	if err := actor.requireMember(); err != nil {
		return nil, err
	}

	filter := repository.AssignmentFilter{
		OrgID:  actor.OrgID,
		Status: status,
		Sort:   sort,
	}
	if !actor.IsAdmin {
		filter.AssignedTo = actor.UserID
	}

	assignments, err := s.store.Assignments().List(ctx, filter)
	if err != nil {
		return nil, storageFailure("list assignments", err)
	}
	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) AssetHistory(ctx context.Context, actor Actor, assetID uint) ([]dto.AssignmentResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}

	if _, err := loadAsset(ctx, s.store.Assets(), actor.OrgID, assetID); err != nil {
		return nil, err
	}

	assignments, err := s.store.Assignments().List(ctx, repository.AssignmentFilter{
		OrgID:   actor.OrgID,
		AssetID: &assetID,
	})
	if err != nil {
		return nil, storageFailure("list asset history", err)
	}
	return dto.NewAssignmentResponseSlice(assignments), nil
}

func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.ToLower(strings.TrimSpace(tag))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
