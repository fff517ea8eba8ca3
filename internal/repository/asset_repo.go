package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/steward-api/internal/models"
)

// AssetFilter narrows asset listings.
type AssetFilter struct {
	OrgID  string
	Status string
	Search string
}

// AssetRepository persists assets for a single tenant at a time.
type AssetRepository interface {
	List(ctx context.Context, filter AssetFilter) ([]models.Asset, error)
	GetByID(ctx context.Context, orgID string, id uint) (models.Asset, error)
	GetForUpdate(ctx context.Context, orgID string, id uint) (models.Asset, error)
	Count(ctx context.Context, orgID string) (int64, error)
	Create(ctx context.Context, asset *models.Asset) error
	Update(ctx context.Context, orgID string, id uint, updates map[string]interface{}) error
	CompareAndSetStatus(ctx context.Context, orgID string, id uint, from, to models.AssetStatus, actorID string) (bool, error)
	IsReferenced(ctx context.Context, orgID string, id uint) (bool, error)
	Delete(ctx context.Context, orgID string, id uint) error
}

type assetRepository struct {
	db *gorm.DB
}

// NewAssetRepository instantiates a GORM-backed asset repository.
func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) List(ctx context.Context, filter AssetFilter) ([]models.Asset, error) {
	query := r.db.WithContext(ctx).Where("org_id = ?", filter.OrgID)

	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ?", pattern)
	}

	var assets []models.Asset
	if err := query.Order("name ASC").Order("id ASC").Find(&assets).Error; err != nil {
		return nil, err
	}

	return assets, nil
}

func (r *assetRepository) GetByID(ctx context.Context, orgID string, id uint) (models.Asset, error) {
	var asset models.Asset
	if err := r.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&asset).Error; err != nil {
		return models.Asset{}, err
	}

	return asset, nil
}

// GetForUpdate loads the asset and holds its row lock until the surrounding
// transaction ends. SQLite has no row locks and ignores the clause.
func (r *assetRepository) GetForUpdate(ctx context.Context, orgID string, id uint) (models.Asset, error) {
	var asset models.Asset
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&asset).Error
	if err != nil {
		return models.Asset{}, err
	}

	return asset, nil
}

func (r *assetRepository) Count(ctx context.Context, orgID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Asset{}).Where("org_id = ?", orgID).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *assetRepository) Create(ctx context.Context, asset *models.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *assetRepository) Update(ctx context.Context, orgID string, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Asset{}).
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

// CompareAndSetStatus flips the status only if the row still holds the expected
// previous status, which serializes competing writers on the asset row.
func (r *assetRepository) CompareAndSetStatus(ctx context.Context, orgID string, id uint, from, to models.AssetStatus, actorID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Asset{}).
		Where("org_id = ? AND id = ? AND status = ?", orgID, id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_by": actorID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *assetRepository) IsReferenced(ctx context.Context, orgID string, id uint) (bool, error) {
	var assignments int64
	if err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("org_id = ? AND asset_id = ?", orgID, id).
		Count(&assignments).Error; err != nil {
		return false, err
	}
	if assignments > 0 {
		return true, nil
	}

	var incidents int64
	if err := r.db.WithContext(ctx).Model(&models.Incident{}).
		Where("org_id = ? AND asset_id = ?", orgID, id).
		Count(&incidents).Error; err != nil {
		return false, err
	}
	return incidents > 0, nil
}

func (r *assetRepository) Delete(ctx context.Context, orgID string, id uint) error {
	result := r.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).Delete(&models.Asset{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
