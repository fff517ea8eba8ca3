package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/steward-api/internal/cache"
	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/observability"
	"github.com/noah-isme/steward-api/internal/repository"
)

const dashboardListLimit = 5

// DashboardInvalidator drops a tenant's cached dashboard. It never fails.
type DashboardInvalidator interface {
	Invalidate(ctx context.Context, orgID string)
}

// DashboardService builds the per-tenant dashboard summary.
type DashboardService interface {
	DashboardInvalidator
	Summary(ctx context.Context, actor Actor) (dto.DashboardSummaryResponse, error)
}

type dashboardService struct {
	repo     repository.DashboardRepository
	cache    *cache.Store
	cacheTTL time.Duration
	logger   zerolog.Logger
	printer  *message.Printer
	now      func() time.Time
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(repo repository.DashboardRepository, store *cache.Store, ttl time.Duration, logger zerolog.Logger) DashboardService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &dashboardService{
		repo:     repo,
		cache:    store,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "dashboard_service").Logger(),
		printer:  message.NewPrinter(language.English),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *dashboardService) Invalidate(ctx context.Context, orgID string) {
	s.cache.Delete(ctx, dashboardCacheKey(orgID))
}

func (s *dashboardService) Summary(ctx context.Context, actor Actor) (dto.DashboardSummaryResponse, error) {
	if err := actor.requireMember(); err != nil {
		return dto.DashboardSummaryResponse{}, err
	}

	key := dashboardCacheKey(actor.OrgID)

	var cached dto.DashboardSummaryResponse
	if s.cache.GetJSON(ctx, key, &cached) {
		observability.DashboardCacheRequests().WithLabelValues("hit").Inc()
		s.logger.Debug().Str("org_id", actor.OrgID).Msg("dashboard cache hit")
		return cached, nil
	}
	observability.DashboardCacheRequests().WithLabelValues("miss").Inc()

	summary, err := s.build(ctx, actor.OrgID)
	if err != nil {
		return dto.DashboardSummaryResponse{}, err
	}

	s.cache.SetJSON(ctx, key, summary, s.cacheTTL)
	return summary, nil
}

func (s *dashboardService) build(ctx context.Context, orgID string) (dto.DashboardSummaryResponse, error) {
	now := s.now()

	counts, err := s.repo.CountByStatus(ctx, orgID)
	if err != nil {
		return dto.DashboardSummaryResponse{}, storageFailure("count assets by status", err)
	}

	overdue, err := s.repo.OverdueAssignments(ctx, orgID, now)
	if err != nil {
		return dto.DashboardSummaryResponse{}, storageFailure("list overdue assignments", err)
	}

	top, err := s.repo.TopCheckedOut(ctx, orgID, dashboardListLimit)
	if err != nil {
		return dto.DashboardSummaryResponse{}, storageFailure("rank assets", err)
	}

	repairValue, err := s.repo.SumValueByStatus(ctx, orgID, models.AssetStatusMaintenance)
	if err != nil {
		return dto.DashboardSummaryResponse{}, storageFailure("sum repair value", err)
	}

	missingValue, err := s.repo.SumValueByStatus(ctx, orgID, models.AssetStatusMissing)
	if err != nil {
		return dto.DashboardSummaryResponse{}, storageFailure("sum missing value", err)
	}

	repairAssets, err := s.repo.ListByStatus(ctx, orgID, models.AssetStatusMaintenance, dashboardListLimit)
	if err != nil {
		return dto.DashboardSummaryResponse{}, storageFailure("list repair assets", err)
	}

	missingAssets, err := s.repo.ListByStatus(ctx, orgID, models.AssetStatusMissing, dashboardListLimit)
	if err != nil {
		return dto.DashboardSummaryResponse{}, storageFailure("list missing assets", err)
	}

	var total int64
	for _, count := range counts {
		total += count
	}

	overdueValue := 0.0
	overdueItems := make([]dto.DashboardAssetItem, 0, dashboardListLimit)
	for _, assignment := range overdue {
		if assignment.Asset == nil {
			continue
		}
		overdueValue += assignment.Asset.EstimatedValue
		if len(overdueItems) < dashboardListLimit {
			overdueItems = append(overdueItems, dto.DashboardAssetItem{
				ID:       assignment.Asset.ID,
				Name:     assignment.Asset.Name,
				Status:   string(assignment.Asset.Status),
				Value:    assignment.Asset.EstimatedValue,
				Assignee: assignment.AssignedTo,
				DueDate:  assignment.ExpectedReturnAt,
			})
		}
	}

	topAssets := make([]dto.DashboardTopAsset, 0, len(top))
	for _, row := range top {
		topAssets = append(topAssets, dto.DashboardTopAsset{
			AssetID:       row.AssetID,
			Name:          row.Name,
			CheckoutCount: row.CheckoutCount,
		})
	}

	summary := dto.DashboardSummaryResponse{
		Counts: dto.DashboardCounts{
			TotalAssets: total,
			CheckedOut:  counts[models.AssetStatusCheckedOut],
			Overdue:     int64(len(overdue)),
			Repair:      counts[models.AssetStatusMaintenance],
			Missing:     counts[models.AssetStatusMissing],
		},
		HealthBreakdown: dto.DashboardHealth{
			Good:           counts[models.AssetStatusAvailable] + counts[models.AssetStatusCheckedOut],
			NeedsAttention: counts[models.AssetStatusMaintenance],
			OutOfService:   counts[models.AssetStatusMissing] + counts[models.AssetStatusRetired],
		},
		TopAssets: topAssets,
		ValueAtRisk: dto.DashboardValueAtRisk{
			OverdueValue: overdueValue,
			RepairValue:  repairValue,
			MissingValue: missingValue,
			TotalValue:   overdueValue + repairValue + missingValue,
		},
		Lists: dto.DashboardLists{
			OverdueAssignments: overdueItems,
			RepairAssets:       dashboardItems(repairAssets),
			MissingAssets:      dashboardItems(missingAssets),
		},
		GeneratedAt: now,
	}
	summary.Insights = s.insights(summary)

	return summary, nil
}

func (s *dashboardService) insights(summary dto.DashboardSummaryResponse) []string {
	insights := make([]string, 0, 3)

	switch overdue := summary.Counts.Overdue; {
	case overdue == 1:
		insights = append(insights, "1 item is overdue today.")
	case overdue > 1:
		insights = append(insights, fmt.Sprintf("%d items are overdue today.", overdue))
	}

	if atRisk := summary.ValueAtRisk.TotalValue; atRisk > 0 {
		insights = append(insights, s.printer.Sprintf("$%.0f worth of gear is currently unavailable (missing/repair/overdue).", atRisk))
	}

	if len(summary.TopAssets) > 0 {
		top := summary.TopAssets[0]
		insights = append(insights, fmt.Sprintf("The most checked-out asset is %s (%d checkouts).", top.Name, top.CheckoutCount))
	}

	if len(insights) == 0 {
		insights = append(insights, "All equipment is accounted for and operational.")
	}
	return insights
}

func dashboardItems(assets []models.Asset) []dto.DashboardAssetItem {
	items := make([]dto.DashboardAssetItem, 0, len(assets))
	for _, asset := range assets {
		items = append(items, dto.DashboardAssetItem{
			ID:     asset.ID,
			Name:   asset.Name,
			Status: string(asset.Status),
			Value:  asset.EstimatedValue,
		})
	}
	return items
}

func dashboardCacheKey(orgID string) string {
	return "dashboard:" + orgID
}
