package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/steward-api/internal/cache"
	"github.com/noah-isme/steward-api/internal/database"
	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/repository"
)

const (
	testOrgA      = "org_a"
	testOrgB      = "org_b"
	testProPlanID = "plan_pro"
)

var (
	adminA  = Actor{OrgID: testOrgA, UserID: "admin_a", IsAdmin: true}
	memberA = Actor{OrgID: testOrgA, UserID: "member_a"}
	adminB  = Actor{OrgID: testOrgB, UserID: "admin_b", IsAdmin: true}
)

type fakeBilling struct {
	mu      sync.Mutex
	planIDs map[string]string
	members int
	err     error
	calls   int
}

func (f *fakeBilling) PlanID(_ context.Context, orgID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.planIDs[orgID], nil
}

func (f *fakeBilling) MemberCount(context.Context, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.members, nil
}

func (f *fakeBilling) setPlan(orgID, planID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planIDs[orgID] = planID
}

func (f *fakeBilling) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	m.uploads[name] = buf.Bytes()
	return "https://cdn.example.com/" + name, nil
}

type harness struct {
	db          *gorm.DB
	store       repository.Store
	cache       *cache.Store
	billing     *fakeBilling
	storage     *memoryStorage
	stream      ActivityStream
	plans       PlanService
	activity    ActivityService
	dashboard   DashboardService
	assets      AssetService
	assignments AssignmentService
	lifecycle   IncidentLifecycle
	incidents   IncidentService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// newHarness wires every service against a fresh database. redisClient may be nil.
func newHarness(t *testing.T, redisClient *redis.Client) *harness {
	t.Helper()

	db := newTestDB(t)
	log := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	h := &harness{
		db:      db,
		store:   repository.NewStore(db),
		cache:   cache.New(redisClient, log),
		billing: &fakeBilling{planIDs: map[string]string{}},
		storage: &memoryStorage{uploads: map[string][]byte{}},
		stream:  NewActivityStream(nil, "steward-test", log),
	}

	h.plans = NewPlanService(h.billing, h.store.Assets(), h.cache, PlanCatalog{ProPlanIDs: []string{testProPlanID}}, time.Minute, log)
	h.activity = NewActivityService(h.store.Activity(), h.plans, h.stream, log)
	h.dashboard = NewDashboardService(repository.NewDashboardRepository(db), h.cache, time.Minute, log)
	h.assets = NewAssetService(h.store, h.activity, h.plans, h.dashboard, validate, log)
	h.assignments = NewAssignmentService(h.store, h.assets, h.activity, h.dashboard, validate, log)
	h.lifecycle = NewIncidentLifecycle(h.store, h.activity, log)
	h.incidents = NewIncidentService(IncidentDeps{
		Store:      h.store,
		Assets:     h.assets,
		Activity:   h.activity,
		Lifecycle:  h.lifecycle,
		Plans:      h.plans,
		Dashboard:  h.dashboard,
		Storage:    h.storage,
		MaxPhotoMB: 1,
	}, validate, log)

	return h
}

func (h *harness) createAsset(t *testing.T, actor Actor, name string, value float64) dto.AssetResponse {
	t.Helper()
	asset, err := h.assets.Create(context.Background(), actor, dto.AssetCreateRequest{
		Name:           name,
		EstimatedValue: value,
	})
	require.NoError(t, err)
	return asset
}

func (h *harness) seedAssets(t *testing.T, orgID string, count int) {
	t.Helper()
	assets := make([]models.Asset, 0, count)
	for i := 0; i < count; i++ {
		assets = append(assets, models.Asset{OrgID: orgID, Name: "Seeded", Status: models.AssetStatusAvailable})
	}
	require.NoError(t, h.db.CreateInBatches(&assets, 50).Error)
}

func (h *harness) assetStatus(t *testing.T, orgID string, id uint) models.AssetStatus {
	t.Helper()
	asset, err := h.store.Assets().GetByID(context.Background(), orgID, id)
	require.NoError(t, err)
	return asset.Status
}

func (h *harness) report(t *testing.T, actor Actor, assetID uint, severity models.IncidentSeverity) dto.IncidentResponse {
	t.Helper()
	incident, err := h.incidents.Report(context.Background(), actor, dto.IncidentCreateRequest{
		AssetID:     assetID,
		Title:       "Cracked housing",
		Description: "The casing split along the seam",
		Severity:    string(severity),
	})
	require.NoError(t, err)
	return incident
}

func (h *harness) setIncidentStatus(t *testing.T, actor Actor, id uint, status models.IncidentStatus) dto.IncidentResponse {
	t.Helper()
	value := string(status)
	incident, err := h.incidents.Update(context.Background(), actor, id, dto.IncidentUpdateRequest{Status: &value})
	require.NoError(t, err)
	return incident
}

// eventTypes returns the activity event types for an asset in insertion order.
func (h *harness) eventTypes(t *testing.T, orgID string, assetID uint) []string {
	t.Helper()
	var entries []models.ActivityLog
	require.NoError(t, h.db.Where("org_id = ? AND asset_id = ?", orgID, assetID).Order("id ASC").Find(&entries).Error)

	types := make([]string, 0, len(entries))
	for _, entry := range entries {
		types = append(types, entry.EventType)
	}
	return types
}

func countEvents(types []string, eventType string) int {
	total := 0
	for _, candidate := range types {
		if candidate == eventType {
			total++
		}
	}
	return total
}

func withoutEvent(types []string, eventType string) []string {
	filtered := make([]string, 0, len(types))
	for _, candidate := range types {
		if candidate != eventType {
			filtered = append(filtered, candidate)
		}
	}
	return filtered
}

func rewindIncident(t *testing.T, db *gorm.DB, id uint, age time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(&models.Incident{}).Where("id = ?", id).UpdateColumn("updated_at", time.Now().UTC().Add(-age)).Error)
}

// multipartFile builds a *multipart.FileHeader the way Fiber hands one to handlers.
func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
