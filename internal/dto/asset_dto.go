package dto

import (
	"time"

	"github.com/noah-isme/steward-api/internal/models"
)

// AssetCreateRequest describes the payload for registering a new asset.
type AssetCreateRequest struct {
	Name           string  `json:"name" validate:"required,min=1,max=255"`
	Description    string  `json:"description" validate:"omitempty,max=5000"`
	Status         string  `json:"status" validate:"omitempty"`
	EstimatedValue float64 `json:"estimated_value" validate:"gte=0"`
	QRCode         *string `json:"qr_code" validate:"omitempty,max=128"`
	ImageURL       string  `json:"image_url" validate:"omitempty,url,max=512"`
}

// AssetUpdateRequest describes a partial asset update. StatusReason is
// mandatory whenever Status changes the current status.
type AssetUpdateRequest struct {
	Name           *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Description    *string  `json:"description" validate:"omitempty,max=5000"`
	Status         *string  `json:"status" validate:"omitempty"`
	StatusReason   string   `json:"status_reason" validate:"omitempty,max=500"`
	EstimatedValue *float64 `json:"estimated_value" validate:"omitempty,gte=0"`
	QRCode         *string  `json:"qr_code" validate:"omitempty,max=128"`
	ImageURL       *string  `json:"image_url" validate:"omitempty,url,max=512"`
}

// AssetRetireRequest carries the mandatory reason for retiring an asset.
type AssetRetireRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AssetListRequest filters the asset listing.
type AssetListRequest struct {
	Status string
	Search string
}

// AssetResponse is the serialized representation returned to API clients.
type AssetResponse struct {
	ID             uint      `json:"id"`
	OrgID          string    `json:"org_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	EstimatedValue float64   `json:"estimated_value"`
	QRCode         *string   `json:"qr_code"`
	ImageURL       string    `json:"image_url"`
	CreatedBy      string    `json:"created_by"`
	UpdatedBy      string    `json:"updated_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewAssetResponse converts a model into a DTO.
func NewAssetResponse(model models.Asset) AssetResponse {
	return AssetResponse{
		ID:             model.ID,
		OrgID:          model.OrgID,
		Name:           model.Name,
		Description:    model.Description,
		Status:         string(model.Status),
		EstimatedValue: model.EstimatedValue,
		QRCode:         model.QRCode,
		ImageURL:       model.ImageURL,
		CreatedBy:      model.CreatedBy,
		UpdatedBy:      model.UpdatedBy,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewAssetResponseSlice converts a slice of models into DTOs.
func NewAssetResponseSlice(assets []models.Asset) []AssetResponse {
	responses := make([]AssetResponse, 0, len(assets))
	for _, asset := range assets {
		responses = append(responses, NewAssetResponse(asset))
	}
	return responses
}
