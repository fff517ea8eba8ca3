package models

import "time"

// AssetStatus enumerates the operational states an asset can be in.
type AssetStatus string

const (
	AssetStatusAvailable   AssetStatus = "Available"
	AssetStatusCheckedOut  AssetStatus = "Checked Out"
	AssetStatusMaintenance AssetStatus = "Maintenance"
	AssetStatusRetired     AssetStatus = "Retired"
	AssetStatusMissing     AssetStatus = "Missing"
)

// Valid reports whether the status is one of the known asset states.
func (s AssetStatus) Valid() bool {
	switch s {
	case AssetStatusAvailable, AssetStatusCheckedOut, AssetStatusMaintenance, AssetStatusRetired, AssetStatusMissing:
		return true
	default:
		return false
	}
}

// Asset is a physical item owned by an organization.
type Asset struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	OrgID          string      `gorm:"size:64;not null;index;uniqueIndex:idx_assets_org_qr,priority:1" json:"org_id"`
	Name           string      `gorm:"size:255;not null;index" json:"name"`
	Description    string      `gorm:"type:text" json:"description"`
	Status         AssetStatus `gorm:"size:32;not null;default:Available;index" json:"status"`
	EstimatedValue float64     `gorm:"not null;default:0" json:"estimated_value"`
	QRCode         *string     `gorm:"size:128;uniqueIndex:idx_assets_org_qr,priority:2" json:"qr_code"`
	ImageURL       string      `gorm:"size:512" json:"image_url"`
	CreatedBy      string      `gorm:"size:64" json:"created_by"`
	UpdatedBy      string      `gorm:"size:64" json:"updated_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
