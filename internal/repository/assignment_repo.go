package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/steward-api/internal/models"
)

// AssignmentFilter describes which assignments to list for a tenant.
type AssignmentFilter struct {
	OrgID      string
	Status     models.AssignmentStatus
	AssetID    *uint
	AssignedTo string
	Sort       string
}

// AssignmentRepository defines persistence operations for asset checkouts.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindActive(ctx context.Context, orgID string, assetID uint) (models.Assignment, error)
	MarkReturned(ctx context.Context, orgID string, id uint, returnedAt time.Time) (bool, error)
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error)
	CountActive(ctx context.Context, orgID string, assetID uint) (int64, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) FindActive(ctx context.Context, orgID string, assetID uint) (models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND asset_id = ? AND status = ?", orgID, assetID, models.AssignmentStatusActive).
		Order("checked_out_at DESC").
		First(&assignment).Error
	if err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

// MarkReturned closes an active assignment. It reports false when the row was
// already returned by a concurrent checkin.
func (r *assignmentRepository) MarkReturned(ctx context.Context, orgID string, id uint, returnedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("org_id = ? AND id = ? AND status = ?", orgID, id, models.AssignmentStatusActive).
		Updates(map[string]interface{}{
			"status":           models.AssignmentStatusReturned,
			"actual_return_at": returnedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx).Preload("Asset").Where("org_id = ?", filter.OrgID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AssetID != nil {
		query = query.Where("asset_id = ?", *filter.AssetID)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}

	var assignments []models.Assignment
	if err := query.Order(normalizeAssignmentSort(filter.Sort)).Order("id DESC").Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) CountActive(ctx context.Context, orgID string, assetID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("org_id = ? AND asset_id = ? AND status = ?", orgID, assetID, models.AssignmentStatusActive).
		Count(&total).Error
	return total, err
}

func normalizeAssignmentSort(sort string) string {
	switch sort {
	case "-actual_return_at":
		return "actual_return_at DESC"
	case "actual_return_at":
		return "actual_return_at ASC"
	case "checked_out_at":
		return "checked_out_at ASC"
	default:
		return "checked_out_at DESC"
	}
}
