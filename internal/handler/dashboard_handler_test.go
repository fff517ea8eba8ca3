package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/handler"
	"github.com/noah-isme/steward-api/internal/service"
)

type stubDashboardService struct {
	response dto.DashboardSummaryResponse
	err      error
}

func (s stubDashboardService) Summary(context.Context, service.Actor) (dto.DashboardSummaryResponse, error) {
	return s.response, s.err
}

func (s stubDashboardService) Invalidate(context.Context, string) {}

func TestDashboardSummaryContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "dashboard_summary.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	now := time.Now().UTC()
	due := now.Add(-48 * time.Hour)
	response := dto.DashboardSummaryResponse{
		Counts:          dto.DashboardCounts{TotalAssets: 12, CheckedOut: 4, Overdue: 1, Repair: 2, Missing: 1},
		HealthBreakdown: dto.DashboardHealth{Good: 9, NeedsAttention: 2, OutOfService: 1},
		TopAssets:       []dto.DashboardTopAsset{{AssetID: 3, Name: "Camera", CheckoutCount: 14}},
		ValueAtRisk:     dto.DashboardValueAtRisk{OverdueValue: 1200, RepairValue: 800, MissingValue: 300, TotalValue: 2300},
		Lists: dto.DashboardLists{
			OverdueAssignments: []dto.DashboardAssetItem{{ID: 3, Name: "Camera", Status: "Checked Out", Value: 1200, Assignee: "user_9", DueDate: &due}},
			RepairAssets:       []dto.DashboardAssetItem{{ID: 5, Name: "Lift", Status: "Maintenance", Value: 800}},
			MissingAssets:      []dto.DashboardAssetItem{},
		},
		Insights:    []string{"1 item is overdue today."},
		GeneratedAt: now,
	}

	app := fiber.New()
	app.Use(asMember())
	handler.NewDashboardHandler(stubDashboardService{response: response}, zerolog.Nop()).Register(app.Group("/dashboard"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var document interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	require.NoError(t, decoder.Decode(&document))
	require.NoError(t, schema.Validate(document))
}

func TestDashboardSummaryRequiresOrganization(t *testing.T) {
	app := fiber.New()
	app.Use(withIdentity("user_1", "", "org:member"))
	handler.NewDashboardHandler(stubDashboardService{}, zerolog.Nop()).Register(app.Group("/dashboard"))

	resp, _ := perform(t, app, http.MethodGet, "/dashboard/summary", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
