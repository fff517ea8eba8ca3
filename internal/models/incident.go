package models

import (
	"time"

	"gorm.io/datatypes"
)

// IncidentSeverity grades how badly a problem affects an asset.
type IncidentSeverity string

const (
	IncidentSeverityLow      IncidentSeverity = "Low"
	IncidentSeverityMedium   IncidentSeverity = "Medium"
	IncidentSeverityHigh     IncidentSeverity = "High"
	IncidentSeverityCritical IncidentSeverity = "Critical"
)

// Valid reports whether the severity is recognised.
func (s IncidentSeverity) Valid() bool {
	switch s {
	case IncidentSeverityLow, IncidentSeverityMedium, IncidentSeverityHigh, IncidentSeverityCritical:
		return true
	default:
		return false
	}
}

// IncidentStatus is the position of an incident in its lifecycle.
type IncidentStatus string

const (
	IncidentStatusOpen       IncidentStatus = "Open"
	IncidentStatusInProgress IncidentStatus = "In Progress"
	IncidentStatusResolved   IncidentStatus = "Resolved"
	IncidentStatusClosed     IncidentStatus = "Closed"
)

// Valid reports whether the status is recognised.
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusInProgress, IncidentStatusResolved, IncidentStatusClosed:
		return true
	default:
		return false
	}
}

// IsActive is true for incidents that still hold their asset in maintenance.
func (s IncidentStatus) IsActive() bool {
	return s == IncidentStatusOpen || s == IncidentStatusInProgress
}

// IncidentNote is a single append-only comment on an incident.
type IncidentNote struct {
	Text      string    `json:"text"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Incident is a reported problem with an asset.
type Incident struct {
	ID          uint                              `gorm:"primaryKey" json:"id"`
	OrgID       string                            `gorm:"size:64;not null;index" json:"org_id"`
	AssetID     uint                              `gorm:"not null;index" json:"asset_id"`
	ReportedBy  string                            `gorm:"size:64;not null" json:"reported_by"`
	Title       string                            `gorm:"size:255;not null" json:"title"`
	Description string                            `gorm:"type:text;not null" json:"description"`
	Severity    IncidentSeverity                  `gorm:"size:16;not null" json:"severity"`
	Status      IncidentStatus                    `gorm:"size:16;not null;default:Open;index" json:"status"`
	Notes       datatypes.JSONSlice[IncidentNote] `gorm:"type:json" json:"notes"`
	PhotoURL    string                            `gorm:"size:512" json:"photo_url"`
	IsArchived  bool                              `gorm:"not null;default:false;index" json:"is_archived"`
	CreatedAt   time.Time                         `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time                         `gorm:"index" json:"updated_at"`
	Asset       *Asset                            `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}
