package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/steward-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ActivityListRequest defines filters for retrieving activity logs.
type ActivityListRequest struct {
	Page      int
	PageSize  int
	AssetID   *uint
	EventType string
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID        uint                   `json:"id"`
	OrgID     string                 `json:"org_id"`
	AssetID   uint                   `json:"asset_id"`
	AssetName string                 `json:"asset_name"`
	ActorID   string                 `json:"actor_id"`
	EventType string                 `json:"event_type"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

// ActivityListResponse wraps paginated activity logs.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:        entry.ID,
		OrgID:     entry.OrgID,
		AssetID:   entry.AssetID,
		AssetName: entry.AssetName,
		ActorID:   entry.ActorID,
		EventType: entry.EventType,
		Details:   detailsFromJSON(entry.Details),
		CreatedAt: entry.CreatedAt,
	}
}

func detailsFromJSON(data datatypes.JSONMap) map[string]interface{} {
	result := make(map[string]interface{}, len(data))
	for key, value := range data {
		result[key] = value
	}
	return result
}
