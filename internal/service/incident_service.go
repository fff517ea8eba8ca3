package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/repository"
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// IncidentService is the IncidentTracker.
type IncidentService interface {
	Report(ctx context.Context, actor Actor, payload dto.IncidentCreateRequest) (dto.IncidentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.IncidentResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.IncidentUpdateRequest) (dto.IncidentResponse, error)
	List(ctx context.Context, actor Actor, req dto.IncidentListRequest) ([]dto.IncidentResponse, error)
	AttachPhoto(ctx context.Context, actor Actor, id uint, file *multipart.FileHeader) (dto.IncidentResponse, error)
}

type incidentService struct {
	store     repository.Store
	assets    AssetService
	activity  ActivityRecorder
	lifecycle IncidentLifecycle
	plans     PlanService
	dashboard DashboardInvalidator
	storage   FileStorage
	maxPhoto  int64
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// IncidentDeps bundles the collaborators of the incident tracker.
type IncidentDeps struct {
	Store      repository.Store
	Assets     AssetService
	Activity   ActivityRecorder
	Lifecycle  IncidentLifecycle
	Plans      PlanService
	Dashboard  DashboardInvalidator
	Storage    FileStorage
	MaxPhotoMB int
}

// NewIncidentService constructs the incident tracker. Storage may be nil, which
// disables photo attachments.
func NewIncidentService(deps IncidentDeps, validate *validator.Validate, logger zerolog.Logger) IncidentService {
	maxMB := deps.MaxPhotoMB
	if maxMB <= 0 {
		maxMB = 10
	}

	return &incidentService{
		store:     deps.Store,
		assets:    deps.Assets,
		activity:  deps.Activity,
		lifecycle: deps.Lifecycle,
		plans:     deps.Plans,
		dashboard: deps.Dashboard,
		storage:   deps.Storage,
		maxPhoto:  int64(maxMB) * 1024 * 1024,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "incident_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/steward-api/internal/service/incident"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// severityRequiresMaintenance reports whether a new incident takes its asset out of service.
func severityRequiresMaintenance(severity models.IncidentSeverity) bool {
	return severity == models.IncidentSeverityHigh || severity == models.IncidentSeverityCritical
}

// statusReleasesMaintenance reports whether moving an incident into status may
// return its asset to service.
func statusReleasesMaintenance(status models.IncidentStatus) bool {
	return status == models.IncidentStatusResolved || status == models.IncidentStatusClosed
}

func (s *incidentService) Report(ctx context.Context, actor Actor, payload dto.IncidentCreateRequest) (dto.IncidentResponse, error) {
	if err := actor.requireMember(); err != nil {
		return dto.IncidentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.IncidentResponse{}, err
	}

	severity := models.IncidentSeverity(strings.TrimSpace(payload.Severity))
	if !severity.Valid() {
		return dto.IncidentResponse{}, ErrInvalidSeverity
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	description := strings.TrimSpace(s.sanitizer.Sanitize(payload.Description))
	if title == "" || description == "" {
		return dto.IncidentResponse{}, fmt.Errorf("incident text empty after sanitization: %w", ErrValidation)
	}

	spanCtx, span := s.tracer.Start(ctx, "incidents.report", trace.WithAttributes(
		attribute.String("org_id", actor.OrgID),
		attribute.Int64("asset_id", int64(payload.AssetID)),
		attribute.String("incident.severity", string(severity)),
	))
	defer span.End()

	now := s.now()

	var incident models.Incident
	err := atomically(spanCtx, s.store, s.activity, func(tx *Tx) error {
		asset, err := lockAsset(spanCtx, tx.Assets(), actor.OrgID, payload.AssetID)
		if err != nil {
			return err
		}

		incident = models.Incident{
			OrgID:       actor.OrgID,
			AssetID:     asset.ID,
			ReportedBy:  actor.UserID,
			Title:       title,
			Description: description,
			Severity:    severity,
			Status:      models.IncidentStatusOpen,
			Notes:       datatypes.JSONSlice[models.IncidentNote]{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Incidents().Create(spanCtx, &incident); err != nil {
			return storageFailure("create incident", err)
		}

		if _, err := s.activity.Record(spanCtx, tx, ActivityEntry{
			OrgID:     actor.OrgID,
			AssetID:   asset.ID,
			AssetName: asset.Name,
			ActorID:   actor.UserID,
			EventType: models.EventIncidentReported,
			Details: map[string]interface{}{
				"incident_id": incident.ID,
				"title":       incident.Title,
				"severity":    string(incident.Severity),
			},
		}); err != nil {
			return err
		}

		if err := s.applyMaintenance(spanCtx, tx, &asset, incident); err != nil {
			return err
		}

		incident.Asset = &asset
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return dto.IncidentResponse{}, err
	}

	s.dashboard.Invalidate(ctx, actor.OrgID)
	return dto.NewIncidentResponse(incident), nil
}

func (s *incidentService) applyMaintenance(ctx context.Context, tx *Tx, asset *models.Asset, incident models.Incident) error {
	if !severityRequiresMaintenance(incident.Severity) {
		return nil
	}

	reason := fmt.Sprintf("Incident #%d reported with %s severity", incident.ID, incident.Severity)
	for attempt := 0; attempt < 2; attempt++ {
		if asset.Status == models.AssetStatusMaintenance || asset.Status == models.AssetStatusRetired {
			return nil
		}

		err := s.assets.SetStatus(ctx, tx, asset, models.AssetStatusMaintenance, SystemActor(asset.OrgID), reason)
		if !errors.Is(err, ErrStatusConflict) {
			return err
		}

		fresh, loadErr := loadAsset(ctx, tx.Assets(), asset.OrgID, asset.ID)
		if loadErr != nil {
			return loadErr
		}
		*asset = fresh
	}
	return ErrStatusConflict
}

// releaseMaintenance returns the asset to service once no other active incident
// holds it. An asset that is still assigned goes back to Checked Out.
func (s *incidentService) releaseMaintenance(ctx context.Context, tx *Tx, incident models.Incident) error {
	others, err := tx.Incidents().CountActiveForAsset(ctx, incident.OrgID, incident.AssetID, incident.ID)
	if err != nil {
		return storageFailure("count active incidents", err)
	}
	if others > 0 {
		return nil
	}

	asset, err := loadAsset(ctx, tx.Assets(), incident.OrgID, incident.AssetID)
	if err != nil {
		return err
	}
	if asset.Status != models.AssetStatusMaintenance {
		return nil
	}

	target := models.AssetStatusAvailable
	active, err := tx.Assignments().CountActive(ctx, incident.OrgID, incident.AssetID)
	if err != nil {
		return storageFailure("count active assignments", err)
	}
	if active > 0 {
		target = models.AssetStatusCheckedOut
	}

	reason := fmt.Sprintf("All incidents for asset resolved (triggered by resolution of #%d)", incident.ID)
	return s.assets.SetStatus(ctx, tx, &asset, target, SystemActor(incident.OrgID), reason)
}

func (s *incidentService) Get(ctx context.Context, actor Actor, id uint) (dto.IncidentResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return dto.IncidentResponse{}, err
	}

	s.sweep(ctx, actor.OrgID)

	incident, err := loadIncident(ctx, s.store.Incidents(), actor.OrgID, id)
	if err != nil {
		return dto.IncidentResponse{}, err
	}
	return dto.NewIncidentResponse(incident), nil
}

func (s *incidentService) List(ctx context.Context, actor Actor, req dto.IncidentListRequest) ([]dto.IncidentResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}

	status := strings.TrimSpace(req.Status)
	if status != "" && !models.IncidentStatus(status).Valid() {
		return nil, ErrInvalidStatus
	}
	severity := strings.TrimSpace(req.Severity)
	if severity != "" && !models.IncidentSeverity(severity).Valid() {
		return nil, ErrInvalidSeverity
	}

	s.sweep(ctx, actor.OrgID)

	incidents, err := s.store.Incidents().List(ctx, repository.IncidentFilter{
		OrgID:           actor.OrgID,
		Status:          status,
		Severity:        severity,
		IncludeArchived: req.IncludeArchived,
		CreatedSince:    s.plans.HistoryCutoff(ctx, actor.OrgID, s.now()),
	})
	if err != nil {
		return nil, storageFailure("list incidents", err)
	}
	return dto.NewIncidentResponseSlice(incidents), nil
}

// sweep runs the lifecycle catch-up before a read; a failed sweep must not block the read.
func (s *incidentService) sweep(ctx context.Context, orgID string) {
	if s.lifecycle == nil {
		return
	}
	if _, err := s.lifecycle.Sweep(ctx, orgID); err != nil {
		s.logger.Warn().Err(err).Str("org_id", orgID).Msg("lifecycle sweep before read failed")
	}
}

func (s *incidentService) Update(ctx context.Context, actor Actor, id uint, payload dto.IncidentUpdateRequest) (dto.IncidentResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return dto.IncidentResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.IncidentResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "incidents.update", trace.WithAttributes(
		attribute.String("org_id", actor.OrgID),
		attribute.Int64("incident_id", int64(id)),
	))
	defer span.End()

	now := s.now()

	var updated models.Incident
	err := atomically(spanCtx, s.store, s.activity, func(tx *Tx) error {
		target, err := loadIncident(spanCtx, tx.Incidents(), actor.OrgID, id)
		if err != nil {
			return err
		}
		// Updates on one asset's incidents serialize on the asset row, and the
		// incident is reread once the lock is held.
		if _, err := lockAsset(spanCtx, tx.Assets(), actor.OrgID, target.AssetID); err != nil {
			return err
		}
		incident, err := loadIncident(spanCtx, tx.Incidents(), actor.OrgID, target.ID)
		if err != nil {
			return err
		}

		updates := make(map[string]interface{})
		changed := make([]string, 0)

		if payload.Title != nil {
			title := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
			if title == "" {
				return fmt.Errorf("incident title empty after sanitization: %w", ErrValidation)
			}
			if title != incident.Title {
				updates["title"] = title
				changed = append(changed, "title")
			}
		}
		if payload.Description != nil {
			description := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
			if description == "" {
				return fmt.Errorf("incident description empty after sanitization: %w", ErrValidation)
			}
			if description != incident.Description {
				updates["description"] = description
				changed = append(changed, "description")
			}
		}
		if payload.Severity != nil {
			severity := models.IncidentSeverity(strings.TrimSpace(*payload.Severity))
			if !severity.Valid() {
				return ErrInvalidSeverity
			}
			if severity != incident.Severity {
				updates["severity"] = severity
				changed = append(changed, "severity")
			}
		}

		previousStatus := incident.Status
		resultingStatus := incident.Status
		if payload.Status != nil {
			status := models.IncidentStatus(strings.TrimSpace(*payload.Status))
			if !status.Valid() {
				return ErrInvalidStatus
			}
			if status != incident.Status {
				resultingStatus = status
				updates["status"] = status
				changed = append(changed, "status")
			}
		}
		statusChanged := resultingStatus != previousStatus

		archived := incident.IsArchived
		if statusChanged && resultingStatus != models.IncidentStatusClosed {
			archived = false
		}
		if payload.IsArchived != nil {
			if *payload.IsArchived && resultingStatus != models.IncidentStatusClosed {
				return ErrArchiveRequiresClosed
			}
			archived = *payload.IsArchived
		}
		if archived != incident.IsArchived {
			updates["is_archived"] = archived
			changed = append(changed, "is_archived")
		}

		if len(payload.Notes) > 0 {
			notes := make(datatypes.JSONSlice[models.IncidentNote], 0, len(incident.Notes)+len(payload.Notes))
			notes = append(notes, incident.Notes...)
			for _, note := range payload.Notes {
				appended, err := s.buildNote(note, actor, now)
				if err != nil {
					return err
				}
				notes = append(notes, appended)
			}
			updates["notes"] = notes
			changed = append(changed, "notes")
		}

		if len(changed) == 0 {
			updated = incident
			return nil
		}

		updates["updated_at"] = now
		if err := tx.Incidents().Update(spanCtx, actor.OrgID, incident.ID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIncidentNotFound
			}
			return storageFailure("update incident", err)
		}

		details := map[string]interface{}{
			"incident_id":    incident.ID,
			"changed_fields": changed,
		}
		if statusChanged {
			details["previous_status"] = string(previousStatus)
			details["new_status"] = string(resultingStatus)
		}
		if _, err := s.activity.Record(spanCtx, tx, ActivityEntry{
			OrgID:     actor.OrgID,
			AssetID:   incident.AssetID,
			AssetName: incidentAssetName(incident),
			ActorID:   actor.UserID,
			EventType: models.EventIncidentUpdated,
			Details:   details,
		}); err != nil {
			return err
		}

		if statusChanged && statusReleasesMaintenance(resultingStatus) {
			if err := s.releaseMaintenance(spanCtx, tx, incident); err != nil {
				return err
			}
		}

		updated, err = loadIncident(spanCtx, tx.Incidents(), actor.OrgID, incident.ID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return dto.IncidentResponse{}, err
	}

	s.dashboard.Invalidate(ctx, actor.OrgID)
	return dto.NewIncidentResponse(updated), nil
}

func (s *incidentService) buildNote(note dto.IncidentNoteRequest, actor Actor, now time.Time) (models.IncidentNote, error) {
	text := strings.TrimSpace(s.sanitizer.Sanitize(note.Text))
	if text == "" {
		return models.IncidentNote{}, ErrEmptyNote
	}

	actorID := strings.TrimSpace(note.ActorID)
	if actorID == "" {
		actorID = actor.UserID
	}

	createdAt := now
	if note.CreatedAt != nil && !note.CreatedAt.IsZero() {
		createdAt = note.CreatedAt.UTC()
	}

	return models.IncidentNote{
		Text:      text,
		ActorID:   actorID,
		CreatedAt: createdAt,
	}, nil
}

func (s *incidentService) AttachPhoto(ctx context.Context, actor Actor, id uint, file *multipart.FileHeader) (dto.IncidentResponse, error) {
	if err := actor.requireMember(); err != nil {
		return dto.IncidentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "incidents.attach_photo", trace.WithAttributes(
		attribute.String("org_id", actor.OrgID),
		attribute.Int64("incident_id", int64(id)),
		attribute.Int64("upload.max_bytes", s.maxPhoto),
	))
	defer span.End()

	incident, err := loadIncident(ctx, s.store.Incidents(), actor.OrgID, id)
	if err != nil {
		return dto.IncidentResponse{}, err
	}
	if !actor.IsAdmin && incident.ReportedBy != actor.UserID {
		return dto.IncidentResponse{}, ErrAdminRequired
	}

	if !s.plans.Limits(s.plans.Tier(ctx, actor.OrgID)).HasPhotos {
		return dto.IncidentResponse{}, ErrFeatureUnavailable
	}
	if s.storage == nil {
		return dto.IncidentResponse{}, fmt.Errorf("photo storage not configured: %w", ErrFeatureUnavailable)
	}

	if file == nil {
		return dto.IncidentResponse{}, fmt.Errorf("file is required: %w", ErrValidation)
	}
	if file.Size > s.maxPhoto {
		span.SetStatus(codes.Error, "payload too large")
		return dto.IncidentResponse{}, ErrFileTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.IncidentResponse{}, fmt.Errorf("open upload: %w", ErrValidation)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxPhoto+1)); err != nil {
		span.RecordError(err)
		return dto.IncidentResponse{}, fmt.Errorf("read upload: %w", ErrValidation)
	}
	if int64(buf.Len()) > s.maxPhoto {
		span.SetStatus(codes.Error, "payload too large")
		return dto.IncidentResponse{}, ErrFileTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !strings.HasPrefix(detected.String(), "image/") {
		span.SetStatus(codes.Error, "type not allowed")
		return dto.IncidentResponse{}, ErrUnsupportedFileType
	}

	name := fmt.Sprintf("%s-incident-%d%s", actor.OrgID, incident.ID, detected.Extension())
	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.IncidentResponse{}, storageFailure("upload incident photo", err)
	}

	now := s.now()
	var updated models.Incident
	err = atomically(ctx, s.store, s.activity, func(tx *Tx) error {
		if err := tx.Incidents().Update(ctx, actor.OrgID, incident.ID, map[string]interface{}{
			"photo_url":  url,
			"updated_at": now,
		}); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIncidentNotFound
			}
			return storageFailure("attach incident photo", err)
		}

		if _, err := s.activity.Record(ctx, tx, ActivityEntry{
			OrgID:     actor.OrgID,
			AssetID:   incident.AssetID,
			AssetName: incidentAssetName(incident),
			ActorID:   actor.UserID,
			EventType: models.EventIncidentPhotoAttached,
			Details: map[string]interface{}{
				"incident_id": incident.ID,
				"photo_url":   url,
				"mime_type":   detected.String(),
				"size_bytes":  buf.Len(),
			},
		}); err != nil {
			return err
		}

		updated, err = loadIncident(ctx, tx.Incidents(), actor.OrgID, incident.ID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return dto.IncidentResponse{}, err
	}

	span.SetStatus(codes.Ok, "stored")
	return dto.NewIncidentResponse(updated), nil
}

func loadIncident(ctx context.Context, repo repository.IncidentRepository, orgID string, id uint) (models.Incident, error) {
	incident, err := repo.GetByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Incident{}, ErrIncidentNotFound
		}
		return models.Incident{}, storageFailure("load incident", err)
	}
	return incident, nil
}
