package models

import (
	"time"

	"gorm.io/datatypes"
)

// SystemActorID identifies transitions performed by automation rather than a person.
const SystemActorID = "system"

// Activity event types written to the audit trail.
const (
	EventAssetCreated          = "created"
	EventAssetUpdated          = "updated"
	EventAssetStatusChanged    = "status_changed"
	EventAssetRetired          = "retired"
	EventAssetDeleted          = "deleted"
	EventCheckedOut            = "checked_out"
	EventCheckedIn             = "checked_in"
	EventIncidentReported      = "incident_reported"
	EventIncidentUpdated       = "incident_updated"
	EventIncidentClosed        = "incident_closed"
	EventIncidentArchived      = "incident_archived"
	EventIncidentPhotoAttached = "incident_photo_attached"
)

// ActivityLog is a write-once audit entry describing a change to an asset or its records.
type ActivityLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	OrgID     string            `gorm:"size:64;not null;index" json:"org_id"`
	AssetID   uint              `gorm:"not null;index" json:"asset_id"`
	AssetName string            `gorm:"size:255" json:"asset_name"`
	ActorID   string            `gorm:"size:64;not null" json:"actor_id"`
	EventType string            `gorm:"size:64;not null;index" json:"event_type"`
	Details   datatypes.JSONMap `gorm:"type:json" json:"details"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}
