package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tempora-hq/timetrack-api/internal/middleware"
	"github.com/tempora-hq/timetrack-api/internal/models"
	"github.com/tempora-hq/timetrack-api/internal/rbac"
	"github.com/tempora-hq/timetrack-api/internal/repository"
	"github.com/tempora-hq/timetrack-api/internal/session"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type mockTimeLogRepository struct {
	listFunc     func(ctx context.Context, scope rbac.Scope, userID, department string, filter repository.TimeLogFilter) ([]models.TimeLog, int64, error)
	findByIDFunc func(ctx context.Context, id string) (*models.TimeLog, error)
	createFunc   func(ctx context.Context, log *models.TimeLog) error
	updateFunc   func(ctx context.Context, log *models.TimeLog) error
	deleteFunc   func(ctx context.Context, id string) error
	summaryFunc  func(ctx context.Context, userID string, start, end time.Time) ([]models.TimeSummary, error)
}

func (m *mockTimeLogRepository) List(ctx context.Context, scope rbac.Scope, userID, department string, filter repository.TimeLogFilter) ([]models.TimeLog, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, scope, userID, department, filter)
	}
	return nil, 0, nil
}

func (m *mockTimeLogRepository) FindByID(ctx context.Context, id string) (*models.TimeLog, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockTimeLogRepository) Create(ctx context.Context, log *models.TimeLog) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, log)
	}
	return nil
}

func (m *mockTimeLogRepository) Update(ctx context.Context, log *models.TimeLog) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, log)
	}
	return nil
}

func (m *mockTimeLogRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockTimeLogRepository) Summary(ctx context.Context, userID string, start, end time.Time) ([]models.TimeSummary, error) {
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx, userID, start, end)
	}
	return nil, nil
}

type mockUserRepository struct {
	hasConsentFunc func(ctx context.Context, userID, consentType string) (bool, error)
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error { return nil }

func (m *mockUserRepository) Update(ctx context.Context, user *models.User) error { return nil }

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *mockUserRepository) GetRoleGrants(ctx context.Context, userID string) ([]models.RoleGrant, error) {
	return nil, nil
}

func (m *mockUserRepository) ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error {
	return nil
}

func (m *mockUserRepository) HasConsent(ctx context.Context, userID, consentType string) (bool, error) {
	if m.hasConsentFunc != nil {
		return m.hasConsentFunc(ctx, userID, consentType)
	}
	return false, nil
}

func (m *mockUserRepository) SetConsent(ctx context.Context, userID, consentType string, granted bool, version string) error {
	return nil
}

// =============================================================================
// Test Helpers
// =============================================================================

type timeLogFixture struct {
	timeLogRepo *mockTimeLogRepository
	userRepo    *mockUserRepository
	auditRepo   *mockAuditRepository
	cache       *redis.Client
	router      *gin.Engine
}

// setupTimeLogHandler wires the handler behind a stub that injects the
// caller's cached claim set, standing in for the session middleware.
func setupTimeLogHandler(t *testing.T, caller *session.Entry) *timeLogFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	fixture := &timeLogFixture{
		timeLogRepo: &mockTimeLogRepository{},
		userRepo:    &mockUserRepository{},
		auditRepo:   &mockAuditRepository{},
		cache:       client,
	}

	handler := NewTimeLogHandler(
		fixture.timeLogRepo,
		fixture.userRepo,
		fixture.auditRepo,
		client,
		zerolog.Nop(),
	)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if caller != nil {
			c.Set(middleware.ContextAuthKey, caller)
		}
		c.Next()
	})
	router.GET("/api/time/logs", handler.List)
	router.POST("/api/time/logs", handler.Create)
	router.PATCH("/api/time/logs/:id", handler.Update)
	router.DELETE("/api/time/logs/:id", handler.Delete)
	router.GET("/api/time/summary", handler.Summary)

	fixture.router = router
	return fixture
}

func aliceEntry(permissions ...string) *session.Entry {
	return &session.Entry{
		UserID:      "dev-alice",
		Username:    "alice",
		Email:       "alice@example.com",
		Department:  "Engineering",
		Roles:       []string{"developer"},
		Permissions: permissions,
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
}

func createPayload() map[string]interface{} {
	return map[string]interface{}{
		"project_id":  "project-1",
		"description": "sprint work",
		"start_time":  time.Now().Add(-time.Hour).Format(time.RFC3339),
		"duration":    60,
		"type":        "work",
		"billable":    true,
	}
}

func (f *timeLogFixture) do(method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

// =============================================================================
// List Tests
// =============================================================================

func TestTimeLogList_ScopeDowngrade(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		requested   string
		wantScope   rbac.Scope
	}{
		{
			name:        "admin gets all",
			permissions: []string{"admin:*"},
			requested:   "department_reports",
			wantScope:   rbac.ScopeAll,
		},
		{
			name:        "manager gets department",
			permissions: []string{"read:department_reports"},
			requested:   "department_reports",
			wantScope:   rbac.ScopeDepartment,
		},
		{
			name:        "developer downgraded to own",
			permissions: []string{"read:own_time"},
			requested:   "department_reports",
			wantScope:   rbac.ScopeOwn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotScope rbac.Scope
			fixture := setupTimeLogHandler(t, aliceEntry(tt.permissions...))
			fixture.timeLogRepo.listFunc = func(ctx context.Context, scope rbac.Scope, userID, department string, filter repository.TimeLogFilter) ([]models.TimeLog, int64, error) {
				gotScope = scope
				return []models.TimeLog{}, 0, nil
			}

			recorder := fixture.do(http.MethodGet, "/api/time/logs?scope="+tt.requested, nil)
			if recorder.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", recorder.Code)
			}
			if gotScope != tt.wantScope {
				t.Errorf("scope = %q, want %q", gotScope, tt.wantScope)
			}
		})
	}
}

func TestTimeLogList_Pagination(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("read:own_time"))
	fixture.timeLogRepo.listFunc = func(ctx context.Context, scope rbac.Scope, userID, department string, filter repository.TimeLogFilter) ([]models.TimeLog, int64, error) {
		if filter.Page != 2 || filter.PageSize != 10 {
			t.Errorf("filter = %+v", filter)
		}
		return make([]models.TimeLog, 10), 25, nil
	}

	recorder := fixture.do(http.MethodGet, "/api/time/logs?page=2&limit=10", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var body struct {
		Pagination struct {
			Total   int64 `json:"total"`
			HasMore bool  `json:"hasMore"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Pagination.Total != 25 || !body.Pagination.HasMore {
		t.Errorf("pagination = %+v", body.Pagination)
	}
}

func TestTimeLogList_LimitCapped(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("read:own_time"))

	var gotPageSize int
	fixture.timeLogRepo.listFunc = func(ctx context.Context, scope rbac.Scope, userID, department string, filter repository.TimeLogFilter) ([]models.TimeLog, int64, error) {
		gotPageSize = filter.PageSize
		return []models.TimeLog{}, 0, nil
	}

	recorder := fixture.do(http.MethodGet, "/api/time/logs?limit=1000000", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if gotPageSize != 100 {
		t.Errorf("page size = %d, want 100", gotPageSize)
	}
}

// =============================================================================
// Create Tests
// =============================================================================

func TestTimeLogCreate_Success(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("write:time_logs"))
	fixture.userRepo.hasConsentFunc = func(ctx context.Context, userID, consentType string) (bool, error) {
		if userID != "dev-alice" || consentType != models.ConsentTimeTracking {
			t.Errorf("consent check for %s/%s", userID, consentType)
		}
		return true, nil
	}

	var created *models.TimeLog
	fixture.timeLogRepo.createFunc = func(ctx context.Context, log *models.TimeLog) error {
		created = log
		return nil
	}

	recorder := fixture.do(http.MethodPost, "/api/time/logs", createPayload())
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", recorder.Code, recorder.Body.String())
	}
	if created == nil {
		t.Fatal("time log was not written")
	}
	if created.UserID != "dev-alice" || created.ID == "" {
		t.Errorf("created = %+v", created)
	}
	if len(fixture.auditRepo.entries) != 1 || fixture.auditRepo.entries[0].Action != models.AuditCreateTimeLog {
		t.Errorf("audit entries = %+v", fixture.auditRepo.entries)
	}
}

// Consent is checked before the write: a user whose time_tracking
// consent is not granted gets a 403 and no row is ever created.
func TestTimeLogCreate_ConsentRequired(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("write:time_logs"))
	fixture.userRepo.hasConsentFunc = func(ctx context.Context, userID, consentType string) (bool, error) {
		return false, nil
	}
	fixture.timeLogRepo.createFunc = func(ctx context.Context, log *models.TimeLog) error {
		t.Error("create must not be called without consent")
		return nil
	}

	recorder := fixture.do(http.MethodPost, "/api/time/logs", createPayload())
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", recorder.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["error"] != "user consent required" {
		t.Errorf("error = %q", body["error"])
	}
	if len(fixture.auditRepo.entries) != 0 {
		t.Errorf("no audit entry expected, got %+v", fixture.auditRepo.entries)
	}
}

func TestTimeLogCreate_BadPayload(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("write:time_logs"))

	payload := createPayload()
	payload["type"] = "vacation"

	recorder := fixture.do(http.MethodPost, "/api/time/logs", payload)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
}

// =============================================================================
// Update Tests
// =============================================================================

func existingLog(owner string) *models.TimeLog {
	return &models.TimeLog{
		ID:          "log-1",
		UserID:      owner,
		ProjectID:   "project-1",
		Description: "original",
		StartTime:   time.Now().Add(-2 * time.Hour),
		Duration:    30,
		Type:        models.TimeLogWork,
	}
}

func TestTimeLogUpdate_Owner(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("write:time_logs"))
	fixture.timeLogRepo.findByIDFunc = func(ctx context.Context, id string) (*models.TimeLog, error) {
		return existingLog("dev-alice"), nil
	}

	var saved *models.TimeLog
	fixture.timeLogRepo.updateFunc = func(ctx context.Context, log *models.TimeLog) error {
		saved = log
		return nil
	}

	recorder := fixture.do(http.MethodPatch, "/api/time/logs/log-1", map[string]interface{}{
		"description": "amended",
		"duration":    45,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", recorder.Code, recorder.Body.String())
	}
	if saved == nil || saved.Description != "amended" || saved.Duration != 45 {
		t.Errorf("saved = %+v", saved)
	}
	// Untouched fields survive a partial update.
	if saved.ProjectID != "project-1" {
		t.Errorf("project_id = %q", saved.ProjectID)
	}
}

func TestTimeLogUpdate_Ownership(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		wantStatus  int
	}{
		{
			name:        "other user's log is forbidden",
			permissions: []string{"write:time_logs"},
			wantStatus:  http.StatusForbidden,
		},
		{
			name:        "admin may edit any log",
			permissions: []string{"admin:*"},
			wantStatus:  http.StatusOK,
		},
		{
			name:        "write:other_time may edit any log",
			permissions: []string{"write:time_logs", "write:other_time"},
			wantStatus:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := setupTimeLogHandler(t, aliceEntry(tt.permissions...))
			fixture.timeLogRepo.findByIDFunc = func(ctx context.Context, id string) (*models.TimeLog, error) {
				return existingLog("manager-bob"), nil
			}

			recorder := fixture.do(http.MethodPatch, "/api/time/logs/log-1", map[string]interface{}{
				"description": "amended",
			})
			if recorder.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", recorder.Code, tt.wantStatus)
			}
		})
	}
}

func TestTimeLogUpdate_NotFound(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("write:time_logs"))

	recorder := fixture.do(http.MethodPatch, "/api/time/logs/missing", map[string]interface{}{
		"description": "amended",
	})
	if recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", recorder.Code)
	}
}

// =============================================================================
// Delete Tests
// =============================================================================

func TestTimeLogDelete(t *testing.T) {
	tests := []struct {
		name        string
		owner       string
		permissions []string
		wantStatus  int
		wantDeleted bool
	}{
		{
			name:        "owner deletes own log",
			owner:       "dev-alice",
			permissions: []string{"write:time_logs"},
			wantStatus:  http.StatusOK,
			wantDeleted: true,
		},
		{
			name:        "non-owner is forbidden",
			owner:       "manager-bob",
			permissions: []string{"write:time_logs", "write:other_time"},
			wantStatus:  http.StatusForbidden,
		},
		{
			name:        "admin deletes any log",
			owner:       "manager-bob",
			permissions: []string{"admin:*"},
			wantStatus:  http.StatusOK,
			wantDeleted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := setupTimeLogHandler(t, aliceEntry(tt.permissions...))
			fixture.timeLogRepo.findByIDFunc = func(ctx context.Context, id string) (*models.TimeLog, error) {
				return existingLog(tt.owner), nil
			}

			deleted := false
			fixture.timeLogRepo.deleteFunc = func(ctx context.Context, id string) error {
				deleted = true
				return nil
			}

			recorder := fixture.do(http.MethodDelete, "/api/time/logs/log-1", nil)
			if recorder.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", recorder.Code, tt.wantStatus)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %v, want %v", deleted, tt.wantDeleted)
			}
		})
	}
}

// =============================================================================
// Summary Tests
// =============================================================================

func TestTimeLogSummary_CachesResult(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("read:own_time"))

	queries := 0
	fixture.timeLogRepo.summaryFunc = func(ctx context.Context, userID string, start, end time.Time) ([]models.TimeSummary, error) {
		queries++
		return []models.TimeSummary{{Type: "work", TotalMinutes: 120, Count: 2, BillableMinutes: 60}}, nil
	}

	window := "?startDate=2026-08-01T00:00:00Z&endDate=2026-08-28T00:00:00Z"

	first := fixture.do(http.MethodGet, "/api/time/summary"+window, nil)
	second := fixture.do(http.MethodGet, "/api/time/summary"+window, nil)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if queries != 1 {
		t.Errorf("repository queried %d times, want 1", queries)
	}

	var body struct {
		FromCache bool `json:"fromCache"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !body.FromCache {
		t.Error("second read should be served from cache")
	}
}

// A write bumps the per-user summary version, so the next summary read
// bypasses every previously cached window.
func TestTimeLogSummary_InvalidatedByWrite(t *testing.T) {
	fixture := setupTimeLogHandler(t, aliceEntry("write:time_logs", "read:own_time"))
	fixture.userRepo.hasConsentFunc = func(ctx context.Context, userID, consentType string) (bool, error) {
		return true, nil
	}

	queries := 0
	fixture.timeLogRepo.summaryFunc = func(ctx context.Context, userID string, start, end time.Time) ([]models.TimeSummary, error) {
		queries++
		return []models.TimeSummary{{Type: "work", TotalMinutes: int64(60 * queries), Count: int64(queries)}}, nil
	}

	window := "?startDate=2026-08-01T00:00:00Z&endDate=2026-08-28T00:00:00Z"

	fixture.do(http.MethodGet, "/api/time/summary"+window, nil)

	created := fixture.do(http.MethodPost, "/api/time/logs", createPayload())
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d", created.Code)
	}

	fixture.do(http.MethodGet, "/api/time/summary"+window, nil)
	if queries != 2 {
		t.Errorf("repository queried %d times, want 2 after invalidation", queries)
	}
}
