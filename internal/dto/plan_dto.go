package dto

// PlanUsage reports how much of the plan a tenant currently consumes.
// PlanUsage reports how much of the plan a tenant currently consumes. AtLimit
// names the resources that cannot grow without an upgrade.
type PlanUsage struct {
	Assets  int64    `json:"assets"`
	Members int      `json:"members"`
	AtLimit []string `json:"at_limit"`
}

// PlanResponse describes the tenant's plan. Nil limits mean unlimited.
type PlanResponse struct {
	Plan                 string    `json:"plan"`
	MaxAssets            *int      `json:"max_assets"`
	MaxPeople            *int      `json:"max_people"`
	HistoryDays          *int      `json:"history_days"`
	HasPhotos            bool      `json:"has_photos"`
	HasAdvancedReporting bool      `json:"has_advanced_reporting"`
	Usage                PlanUsage `json:"usage"`
}
