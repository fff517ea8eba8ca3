package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadReadsPrefixedEnvironment(t *testing.T) {
	t.Setenv("STEWARD_JWT_SECRET", "secret")
	t.Setenv("STEWARD_APP_PORT", "9090")
	t.Setenv("STEWARD_BILLING_PRO_PLAN_IDS", "plan_pro, plan_pro_annual ,")
	t.Setenv("STEWARD_PLAN_CACHE_TTL", "2m")
	t.Setenv("STEWARD_LIFECYCLE_SWEEP_INTERVAL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, []string{"plan_pro", "plan_pro_annual"}, cfg.ProPlanIDs)
	require.Equal(t, 2*time.Minute, cfg.PlanCacheTTL)
	require.Equal(t, 15*time.Minute, cfg.SweepInterval)
	require.Equal(t, 5*time.Minute, cfg.DashboardCacheTTL)
	require.Equal(t, "steward", cfg.NATSSubjectPrefix)
	require.False(t, cfg.CloudinaryEnabled())
}

func TestLoadRequiresVerificationKey(t *testing.T) {
	t.Setenv("STEWARD_JWT_SECRET", "")
	t.Setenv("STEWARD_JWT_PUBLIC_KEY_PEM", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("STEWARD_JWT_SECRET", "secret")
	t.Setenv("STEWARD_DASHBOARD_CACHE_TTL", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "dashboard.cache_ttl")
}
