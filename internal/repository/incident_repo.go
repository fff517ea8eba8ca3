package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/steward-api/internal/models"
)

// IncidentFilter narrows incident listings for a tenant.
type IncidentFilter struct {
	OrgID           string
	Status          string
	Severity        string
	IncludeArchived bool
	CreatedSince    *time.Time
}

// IncidentRepository persists incidents and supports the lifecycle sweep.
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, orgID string, id uint) (models.Incident, error)
	Update(ctx context.Context, orgID string, id uint, updates map[string]interface{}) error
	CountActiveForAsset(ctx context.Context, orgID string, assetID, excludeID uint) (int64, error)
	List(ctx context.Context, filter IncidentFilter) ([]models.Incident, error)
	ListStale(ctx context.Context, orgID string, status models.IncidentStatus, updatedBefore time.Time) ([]models.Incident, error)
	Transition(ctx context.Context, orgID string, id uint, from models.IncidentStatus, updates map[string]interface{}) (bool, error)
	ListOrgsWithPendingLifecycle(ctx context.Context) ([]string, error)
}

type incidentRepository struct {
	db *gorm.DB
}

// NewIncidentRepository instantiates a GORM-backed incident repository.
func NewIncidentRepository(db *gorm.DB) IncidentRepository {
	return &incidentRepository{db: db}
}

func (r *incidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	return r.db.WithContext(ctx).Create(incident).Error
}

func (r *incidentRepository) GetByID(ctx context.Context, orgID string, id uint) (models.Incident, error) {
	var incident models.Incident
	if err := r.db.WithContext(ctx).Preload("Asset").Where("org_id = ? AND id = ?", orgID, id).First(&incident).Error; err != nil {
		return models.Incident{}, err
	}
	return incident, nil
}

func (r *incidentRepository) Update(ctx context.Context, orgID string, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Incident{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActiveForAsset counts the other non-archived Open or In Progress incidents
// of the asset within the tenant.
func (r *incidentRepository) CountActiveForAsset(ctx context.Context, orgID string, assetID, excludeID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Incident{}).
		Where("org_id = ? AND asset_id = ? AND id <> ?", orgID, assetID, excludeID).
		Where("is_archived = ?", false).
		Where("status IN ?", []models.IncidentStatus{models.IncidentStatusOpen, models.IncidentStatusInProgress}).
		Count(&total).Error
	return total, err
}

func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter) ([]models.Incident, error) {
	query := r.db.WithContext(ctx).Preload("Asset").Where("org_id = ?", filter.OrgID)

	if filter.CreatedSince != nil {
		query = query.Where("created_at >= ?", *filter.CreatedSince)
	}
	if !filter.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var incidents []models.Incident
	if err := query.Order("created_at DESC").Order("id DESC").Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

func (r *incidentRepository) ListStale(ctx context.Context, orgID string, status models.IncidentStatus, updatedBefore time.Time) ([]models.Incident, error) {
	var incidents []models.Incident
	err := r.db.WithContext(ctx).Preload("Asset").
		Where("org_id = ? AND status = ? AND is_archived = ?", orgID, status, false).
		Where("updated_at <= ?", updatedBefore).
		Order("id ASC").
		Find(&incidents).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

// Transition applies updates only while the incident is still non-archived in
// the expected status, so a repeated or concurrent sweep cannot apply it twice.
func (r *incidentRepository) Transition(ctx context.Context, orgID string, id uint, from models.IncidentStatus, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Incident{}).
		Where("org_id = ? AND id = ? AND status = ? AND is_archived = ?", orgID, id, from, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *incidentRepository) ListOrgsWithPendingLifecycle(ctx context.Context) ([]string, error) {
	var orgIDs []string
	err := r.db.WithContext(ctx).Model(&models.Incident{}).
		Where("is_archived = ?", false).
		Where("status IN ?", []models.IncidentStatus{models.IncidentStatusResolved, models.IncidentStatusClosed}).
		Distinct().
		Pluck("org_id", &orgIDs).Error
	if err != nil {
		return nil, err
	}
	return orgIDs, nil
}
