package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/steward-api/internal/models"
)

// AssetCheckoutCount is one row of the most-checked-out ranking.
type AssetCheckoutCount struct {
	AssetID       uint
	Name          string
	CheckoutCount int64
}

// DashboardRepository exposes the read-only aggregates behind the tenant dashboard.
type DashboardRepository interface {
	CountByStatus(ctx context.Context, orgID string) (map[models.AssetStatus]int64, error)
	SumValueByStatus(ctx context.Context, orgID string, statuses ...models.AssetStatus) (float64, error)
	ListByStatus(ctx context.Context, orgID string, status models.AssetStatus, limit int) ([]models.Asset, error)
	OverdueAssignments(ctx context.Context, orgID string, now time.Time) ([]models.Assignment, error)
	TopCheckedOut(ctx context.Context, orgID string, limit int) ([]AssetCheckoutCount, error)
}

type dashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository builds the aggregate repository.
func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

func (r *dashboardRepository) CountByStatus(ctx context.Context, orgID string) (map[models.AssetStatus]int64, error) {
	type row struct {
		Status models.AssetStatus
		Total  int64
	}

	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Asset{}).
		Select("status, COUNT(*) AS total").
		Where("org_id = ?", orgID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.AssetStatus]int64, len(rows))
	for _, item := range rows {
		counts[item.Status] = item.Total
	}
	return counts, nil
}

func (r *dashboardRepository) SumValueByStatus(ctx context.Context, orgID string, statuses ...models.AssetStatus) (float64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}

	var total float64
	err := r.db.WithContext(ctx).Model(&models.Asset{}).
		Select("COALESCE(SUM(estimated_value), 0)").
		Where("org_id = ? AND status IN ?", orgID, statuses).
		Scan(&total).Error
	return total, err
}

func (r *dashboardRepository) ListByStatus(ctx context.Context, orgID string, status models.AssetStatus, limit int) ([]models.Asset, error) {
	query := r.db.WithContext(ctx).Where("org_id = ? AND status = ?", orgID, status).Order("updated_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var assets []models.Asset
	if err := query.Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *dashboardRepository) OverdueAssignments(ctx context.Context, orgID string, now time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).Preload("Asset").
		Where("org_id = ? AND status = ?", orgID, models.AssignmentStatusActive).
		Where("expected_return_at IS NOT NULL AND expected_return_at < ?", now).
		Order("expected_return_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *dashboardRepository) TopCheckedOut(ctx context.Context, orgID string, limit int) ([]AssetCheckoutCount, error) {
	var rows []AssetCheckoutCount
	query := r.db.WithContext(ctx).Table("assets").
		Select("assets.id AS asset_id, assets.name AS name, COUNT(assignments.id) AS checkout_count").
		Joins("JOIN assignments ON assignments.asset_id = assets.id AND assignments.org_id = assets.org_id").
		Where("assets.org_id = ?", orgID).
		Group("assets.id, assets.name").
		Order("checkout_count DESC").
		Order("assets.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
