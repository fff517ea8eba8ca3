package dto

import (
	"time"

	"github.com/noah-isme/steward-api/internal/models"
)

// CheckoutRequest describes the payload for checking an asset out to a member.
type CheckoutRequest struct {
	AssetID          uint       `json:"asset_id" validate:"required"`
	AssignedTo       string     `json:"assigned_to" validate:"required,max=64"`
	ExpectedReturnAt *time.Time `json:"expected_return_at"`
	Notes            string     `json:"notes" validate:"omitempty,max=2000"`
	EventTags        []string   `json:"event_tags" validate:"omitempty,max=20,dive,min=1,max=64"`
}

// AssignmentResponse is the serialized representation of an assignment.
type AssignmentResponse struct {
	ID               uint           `json:"id"`
	OrgID            string         `json:"org_id"`
	AssetID          uint           `json:"asset_id"`
	AssignedTo       string         `json:"assigned_to"`
	AssignedBy       string         `json:"assigned_by"`
	Status           string         `json:"status"`
	CheckedOutAt     time.Time      `json:"checked_out_at"`
	ExpectedReturnAt *time.Time     `json:"expected_return_at"`
	ActualReturnAt   *time.Time     `json:"actual_return_at"`
	Notes            string         `json:"notes"`
	EventTags        []string       `json:"event_tags"`
	Asset            *AssetResponse `json:"asset,omitempty"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	tags := []string(model.EventTags)
	if tags == nil {
		tags = []string{}
	}

	response := AssignmentResponse{
		ID:               model.ID,
		OrgID:            model.OrgID,
		AssetID:          model.AssetID,
		AssignedTo:       model.AssignedTo,
		AssignedBy:       model.AssignedBy,
		Status:           string(model.Status),
		CheckedOutAt:     model.CheckedOutAt,
		ExpectedReturnAt: model.ExpectedReturnAt,
		ActualReturnAt:   model.ActualReturnAt,
		Notes:            model.Notes,
		EventTags:        tags,
	}
	if model.Asset != nil {
		asset := NewAssetResponse(*model.Asset)
		response.Asset = &asset
	}
	return response
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}
	return responses
}
