package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/repository"
)

const (
	defaultActivityPageSize = 50
	maxActivityPageSize     = 200
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	OrgID     string
	AssetID   uint
	AssetName string
	ActorID   string
	EventType string
	Details   map[string]interface{}
}

// ActivityRecorder appends audit entries inside the caller's transaction.
type ActivityRecorder interface {
	Record(ctx context.Context, tx *Tx, entry ActivityEntry) (models.ActivityLog, error)
	Publish(ctx context.Context, entries ...models.ActivityLog)
}

// ActivityService records and queries the activity log.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, actor Actor, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	plans  PlanService
	stream ActivityStream
	logger zerolog.Logger
	now    func() time.Time
}

// NewActivityService constructs the activity log service. stream may be nil.
func NewActivityService(repo repository.ActivityLogRepository, plans PlanService, stream ActivityStream, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		plans:  plans,
		stream: stream,
		logger: logger.With().Str("component", "activity_service").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *activityService) Record(ctx context.Context, tx *Tx, entry ActivityEntry) (models.ActivityLog, error) {
	if strings.TrimSpace(entry.OrgID) == "" {
		return models.ActivityLog{}, ErrMissingOrganization
	}
	if strings.TrimSpace(entry.EventType) == "" {
		return models.ActivityLog{}, errors.New("event type is required")
	}

	actorID := strings.TrimSpace(entry.ActorID)
	if actorID == "" {
		actorID = models.SystemActorID
	}

	model := models.ActivityLog{
		OrgID:     entry.OrgID,
		AssetID:   entry.AssetID,
		AssetName: entry.AssetName,
		ActorID:   actorID,
		EventType: entry.EventType,
		Details:   sanitizeDetails(entry.Details),
		CreatedAt: s.now(),
	}

	if err := tx.Activity().Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("event_type", entry.EventType).Msg("failed to persist activity log")
		return models.ActivityLog{}, storageFailure("record activity", err)
	}

	tx.recorded = append(tx.recorded, model)
	return model, nil
}

func (s *activityService) Publish(ctx context.Context, entries ...models.ActivityLog) {
	if s.stream == nil {
		return
	}
	for _, entry := range entries {
		s.stream.Publish(ctx, dto.NewActivityResponse(entry))
	}
}

func (s *activityService) List(ctx context.Context, actor Actor, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if err := actor.requireAdmin(); err != nil {
		return dto.ActivityListResponse{}, err
	}

	page := maxInt(req.Page, 1)
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultActivityPageSize
	}
	if pageSize > maxActivityPageSize {
		pageSize = maxActivityPageSize
	}

	filter := repository.ActivityLogFilter{
		OrgID:     actor.OrgID,
		AssetID:   req.AssetID,
		EventType: strings.TrimSpace(req.EventType),
		Since:     s.plans.HistoryCutoff(ctx, actor.OrgID, s.now()),
		Page:      page,
		PageSize:  pageSize,
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, storageFailure("list activity", err)
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}

	return dto.ActivityListResponse{Items: responses, Pagination: pagination}, nil
}

func sanitizeDetails(details map[string]interface{}) datatypes.JSONMap {
	if details == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range details {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
