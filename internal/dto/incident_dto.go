package dto

import (
	"time"

	"github.com/noah-isme/steward-api/internal/models"
)

// IncidentCreateRequest describes the payload for reporting a problem with an asset.
type IncidentCreateRequest struct {
	AssetID     uint   `json:"asset_id" validate:"required"`
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"required,min=3,max=5000"`
	Severity    string `json:"severity" validate:"required"`
}

// IncidentNoteRequest is a note to append. Missing CreatedAt and ActorID
// default to the time of the update and the caller.
type IncidentNoteRequest struct {
	Text      string     `json:"text" validate:"required,max=5000"`
	ActorID   string     `json:"actor_id" validate:"omitempty,max=64"`
	CreatedAt *time.Time `json:"created_at"`
}

// IncidentUpdateRequest describes a partial incident update. Notes are appended,
// never replacing the existing sequence.
type IncidentUpdateRequest struct {
	Title       *string               `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string               `json:"description" validate:"omitempty,min=3,max=5000"`
	Severity    *string               `json:"severity" validate:"omitempty"`
	Status      *string               `json:"status" validate:"omitempty"`
	Notes       []IncidentNoteRequest `json:"notes" validate:"omitempty,dive"`
	IsArchived  *bool                 `json:"is_archived"`
}

// IncidentListRequest filters the incident listing.
type IncidentListRequest struct {
	Status          string
	Severity        string
	IncludeArchived bool
}

// IncidentNoteResponse serializes a single note.
type IncidentNoteResponse struct {
	Text      string    `json:"text"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// IncidentResponse is the serialized representation of an incident.
type IncidentResponse struct {
	ID          uint                   `json:"id"`
	OrgID       string                 `json:"org_id"`
	AssetID     uint                   `json:"asset_id"`
	ReportedBy  string                 `json:"reported_by"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Severity    string                 `json:"severity"`
	Status      string                 `json:"status"`
	Notes       []IncidentNoteResponse `json:"notes"`
	PhotoURL    string                 `json:"photo_url"`
	IsArchived  bool                   `json:"is_archived"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Asset       *AssetResponse         `json:"asset,omitempty"`
}

// NewIncidentResponse converts a model into a DTO.
func NewIncidentResponse(model models.Incident) IncidentResponse {
	notes := make([]IncidentNoteResponse, 0, len(model.Notes))
	for _, note := range model.Notes {
		notes = append(notes, IncidentNoteResponse{
			Text:      note.Text,
			ActorID:   note.ActorID,
			CreatedAt: note.CreatedAt,
		})
	}

	response := IncidentResponse{
		ID:          model.ID,
		OrgID:       model.OrgID,
		AssetID:     model.AssetID,
		ReportedBy:  model.ReportedBy,
		Title:       model.Title,
		Description: model.Description,
		Severity:    string(model.Severity),
		Status:      string(model.Status),
		Notes:       notes,
		PhotoURL:    model.PhotoURL,
		IsArchived:  model.IsArchived,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	if model.Asset != nil {
		asset := NewAssetResponse(*model.Asset)
		response.Asset = &asset
	}
	return response
}

// NewIncidentResponseSlice converts a slice of models into DTOs.
func NewIncidentResponseSlice(incidents []models.Incident) []IncidentResponse {
	responses := make([]IncidentResponse, 0, len(incidents))
	for _, incident := range incidents {
		responses = append(responses, NewIncidentResponse(incident))
	}
	return responses
}
