package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssignmentStatus tracks whether an asset is still held by the assignee.
type AssignmentStatus string

const (
	AssignmentStatusActive   AssignmentStatus = "Active"
	AssignmentStatusReturned AssignmentStatus = "Returned"
)

// Assignment records a checkout of an asset to a member of the organization.
type Assignment struct {
	ID               uint                        `gorm:"primaryKey" json:"id"`
	OrgID            string                      `gorm:"size:64;not null;index" json:"org_id"`
	AssetID          uint                        `gorm:"not null;index;uniqueIndex:idx_assignments_active_asset,where:status = 'Active'" json:"asset_id"`
	AssignedTo       string                      `gorm:"size:64;not null;index" json:"assigned_to"`
	AssignedBy       string                      `gorm:"size:64;not null" json:"assigned_by"`
	Status           AssignmentStatus            `gorm:"size:16;not null;default:Active;index" json:"status"`
	CheckedOutAt     time.Time                   `gorm:"not null" json:"checked_out_at"`
	ExpectedReturnAt *time.Time                  `json:"expected_return_at"`
	ActualReturnAt   *time.Time                  `json:"actual_return_at"`
	Notes            string                      `gorm:"type:text" json:"notes"`
	EventTags        datatypes.JSONSlice[string] `gorm:"type:json" json:"event_tags"`
	Asset            *Asset                      `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

// IsOverdue returns true when an active assignment is past its expected return time.
func (a Assignment) IsOverdue(reference time.Time) bool {
	if a.Status != AssignmentStatusActive || a.ExpectedReturnAt == nil {
		return false
	}
	return reference.After(*a.ExpectedReturnAt)
}
