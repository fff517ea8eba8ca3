package dto

import "time"

// DashboardCounts summarises asset states for a tenant.
type DashboardCounts struct {
	TotalAssets int64 `json:"total_assets"`
	CheckedOut  int64 `json:"checked_out"`
	Overdue     int64 `json:"overdue"`
	Repair      int64 `json:"repair"`
	Missing     int64 `json:"missing"`
}

// DashboardHealth groups assets by whether they can be used.
type DashboardHealth struct {
	Good           int64 `json:"good"`
	NeedsAttention int64 `json:"needs_attention"`
	OutOfService   int64 `json:"out_of_service"`
}

// DashboardTopAsset is an asset ranked by how often it was checked out.
type DashboardTopAsset struct {
	AssetID       uint   `json:"asset_id"`
	Name          string `json:"name"`
	CheckoutCount int64  `json:"checkout_count"`
}

// DashboardValueAtRisk totals the estimated value of unavailable assets.
type DashboardValueAtRisk struct {
	OverdueValue float64 `json:"overdue_value"`
	RepairValue  float64 `json:"repair_value"`
	MissingValue float64 `json:"missing_value"`
	TotalValue   float64 `json:"total_value"`
}

// DashboardAssetItem is a short list row.
type DashboardAssetItem struct {
	ID       uint       `json:"id"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	Value    float64    `json:"value"`
	Assignee string     `json:"assignee,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

// DashboardLists holds the short lists shown on the dashboard.
type DashboardLists struct {
	OverdueAssignments []DashboardAssetItem `json:"overdue_assignments"`
	RepairAssets       []DashboardAssetItem `json:"repair_assets"`
	MissingAssets      []DashboardAssetItem `json:"missing_assets"`
}

// DashboardSummaryResponse aggregates the tenant dashboard.
type DashboardSummaryResponse struct {
	Counts          DashboardCounts      `json:"counts"`
	HealthBreakdown DashboardHealth      `json:"health_breakdown"`
	TopAssets       []DashboardTopAsset  `json:"top_assets"`
	ValueAtRisk     DashboardValueAtRisk `json:"value_at_risk"`
	Lists           DashboardLists       `json:"lists"`
	Insights        []string             `json:"insights"`
	GeneratedAt     time.Time            `json:"generated_at"`
}
