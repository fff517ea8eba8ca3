package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/steward-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Asset{}))
	return db
}

func TestAssetGetForUpdateLocksTenantRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssetRepository(db)

	asset := models.Asset{OrgID: "org_a", Name: "Generator", Status: models.AssetStatusMaintenance}
	require.NoError(t, db.Create(&asset).Error)

	var locking *clause.Locking
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture_locking", func(tx *gorm.DB) {
		locking = nil
		if c, ok := tx.Statement.Clauses["FOR"]; ok {
			if lock, ok := c.Expression.(clause.Locking); ok {
				locking = &lock
			}
		}
	}))

	locked, err := repo.GetForUpdate(context.Background(), "org_a", asset.ID)
	require.NoError(t, err)
	require.Equal(t, asset.ID, locked.ID)
	require.Equal(t, models.AssetStatusMaintenance, locked.Status)
	require.NotNil(t, locking)
	require.Equal(t, "UPDATE", locking.Strength)

	_, err = repo.GetByID(context.Background(), "org_a", asset.ID)
	require.NoError(t, err)
	require.Nil(t, locking, "plain reads must not lock")

	_, err = repo.GetForUpdate(context.Background(), "org_b", asset.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
