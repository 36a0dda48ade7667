package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/renamer"
)

// MockRenameService is a mock implementation of RenameService
type MockRenameService struct {
	mock.Mock
}

func (m *MockRenameService) Detect(ctx context.Context, root string) (*domain.ProjectMetadata, error) {
	args := m.Called(ctx, root)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProjectMetadata), args.Error(1)
}

func (m *MockRenameService) Plan(ctx context.Context, req renamer.Request) (*renamer.Plan, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*renamer.Plan), args.Error(1)
}

func (m *MockRenameService) Apply(ctx context.Context, req renamer.Request) (*domain.SessionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionResult), args.Error(1)
}

func (m *MockRenameService) History(ctx context.Context, root string) ([]domain.SessionSummary, error) {
	args := m.Called(ctx, root)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SessionSummary), args.Error(1)
}

// MockMetadataCache is a mock implementation of MetadataCache
type MockMetadataCache struct {
	mock.Mock
}

func (m *MockMetadataCache) Get(root string) (*domain.ProjectMetadata, bool) {
	args := m.Called(root)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.ProjectMetadata), args.Bool(1)
}

func (m *MockMetadataCache) Set(root string, meta *domain.ProjectMetadata) {
	m.Called(root, meta)
}

func (m *MockMetadataCache) Invalidate(root string) {
	m.Called(root)
}

func (m *MockMetadataCache) Clear() {
	m.Called()
}

func (m *MockMetadataCache) Stats() domain.CacheStats {
	args := m.Called()
	return args.Get(0).(domain.CacheStats)
}

func (m *MockMetadataCache) HealthCheck(ctx context.Context) domain.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(domain.HealthStatus)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) CheckHealth(ctx context.Context) domain.SystemHealth {
	args := m.Called(ctx)
	return args.Get(0).(domain.SystemHealth)
}

func (m *MockHealthChecker) CheckComponent(ctx context.Context, component string) domain.HealthStatus {
	args := m.Called(ctx, component)
	return args.Get(0).(domain.HealthStatus)
}

type mocks struct {
	service *MockRenameService
	cache   *MockMetadataCache
	health  *MockHealthChecker
}

func newTestApp(t *testing.T, config RouterConfig) (*fiber.App, mocks) {
	t.Helper()
	m := mocks{
		service: new(MockRenameService),
		cache:   new(MockMetadataCache),
		health:  new(MockHealthChecker),
	}
	if config.BodyLimit == 0 {
		config.BodyLimit = 1048576
	}
	result := SetupRouter(RouterDependencies{
		Service:       m.service,
		Cache:         m.cache,
		HealthChecker: m.health,
	}, config)
	t.Cleanup(result.Cleanup)
	return result.App, m
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (int, map[string]any) {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decode(t, resp.Body)
}

func decode(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}

func lyraMetadata() *domain.ProjectMetadata {
	return &domain.ProjectMetadata{
		RootPath:           "/work/Lyra",
		ProjectName:        "Lyra",
		DescriptorFilePath: "/work/Lyra/Lyra.uproject",
		Targets: []domain.TargetInfo{
			{Name: "Lyra", DeclarationFilePath: "/work/Lyra/Source/Lyra.Target.cs", Kind: domain.KindGame, ClassName: "LyraTarget"},
		},
	}
}

func TestDetectHandler(t *testing.T) {
	app, m := newTestApp(t, RouterConfig{})
	m.service.On("Detect", mock.Anything, "/work/Lyra").Return(lyraMetadata(), nil)

	status, body := postJSON(t, app, "/v1/detect", DetectRequest{Root: " /work/Lyra "})
	assert.Equal(t, 200, status)
	assert.Equal(t, "success", body["status"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "Lyra", data["project_name"])
	assert.Equal(t, "/work/Lyra/Lyra.uproject", data["descriptor_file_path"])
	m.service.AssertExpectations(t)
}

func TestDetectHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no descriptor", domain.NewAppError(domain.ErrNoDescriptor, "No project descriptor found", 404, nil), 404, domain.ErrNoDescriptor},
		{"ambiguous", domain.NewAppError(domain.ErrAmbiguousDescriptor, "More than one project descriptor found", 409, nil), 409, domain.ErrAmbiguousDescriptor},
		{"malformed", domain.NewAppError(domain.ErrMalformedMetadata, "bad json", 422, nil), 422, domain.ErrMalformedMetadata},
		{"plain error", assert.AnError, 500, domain.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, m := newTestApp(t, RouterConfig{})
			m.service.On("Detect", mock.Anything, "/work/Lyra").Return(nil, tt.err)

			status, body := postJSON(t, app, "/v1/detect", DetectRequest{Root: "/work/Lyra"})
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestPlanHandler(t *testing.T) {
	app, m := newTestApp(t, RouterConfig{})
	want := renamer.Request{Root: "/work/Lyra", NewName: "Spyro", Kind: domain.SessionTarget, Subject: "LyraEditor"}
	m.service.On("Plan", mock.Anything, want).Return(&renamer.Plan{
		Kind:    domain.SessionTarget,
		Root:    "/work/Lyra",
		OldName: "LyraEditor",
		NewName: "Spyro",
		Operations: []domain.Operation{
			domain.NewRenameFile("/work/Lyra/Source/LyraEditor.Target.cs", "/work/Lyra/Source/Spyro.Target.cs"),
		},
	}, nil)

	status, body := postJSON(t, app, "/v1/plan", RenameRequest{Root: "/work/Lyra", NewName: " Spyro ", Kind: "target", Subject: "LyraEditor"})
	require.Equal(t, 200, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "LyraEditor", data["old_name"])
	ops := data["operations"].([]any)
	require.Len(t, ops, 1)
	assert.Equal(t, string(domain.OpRenameFile), ops[0].(map[string]any)["kind"])
	m.service.AssertExpectations(t)
}

func TestPlanHandler_Validation(t *testing.T) {
	app, m := newTestApp(t, RouterConfig{})

	status, body := postJSON(t, app, "/v1/plan", `{"root": "/work/Lyra"`)
	assert.Equal(t, 400, status)
	assert.Equal(t, domain.ErrInvalidInput, body["code"])

	status, body = postJSON(t, app, "/v1/plan", RenameRequest{Root: "/work/Lyra"})
	assert.Equal(t, 422, status)
	assert.Equal(t, domain.ErrValidationFailed, body["code"])

	m.service.AssertNotCalled(t, "Plan", mock.Anything, mock.Anything)
}

func TestApplyHandler(t *testing.T) {
	app, m := newTestApp(t, RouterConfig{})
	session := &domain.RenameSession{
		SessionID:   "abc",
		Kind:        domain.SessionProject,
		ProjectRoot: "/work/Lyra",
		FinalRoot:   "/work/Spyro",
		State:       domain.StateCompleted,
		Outcome:     domain.OutcomeApplied,
	}
	m.service.On("Apply", mock.Anything, renamer.Request{Root: "/work/Lyra", NewName: "Spyro"}).
		Return(&domain.SessionResult{Session: session, Applied: []int{0, 1, 2}}, nil)

	status, body := postJSON(t, app, "/v1/apply", RenameRequest{Root: "/work/Lyra", NewName: "Spyro"})
	require.Equal(t, 200, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{0.0, 1.0, 2.0}, data["applied"])
	assert.Equal(t, "/work/Spyro", data["session"].(map[string]any)["final_root"])
}

func TestApplyHandler_Failures(t *testing.T) {
	report := &domain.FailureReport{
		SessionID:   "abc",
		FailedIndex: 2,
		FailedKind:  domain.OpRenameFile,
		Cause:       "permission denied",
		RolledBack:  true,
		BackupDir:   "/tmp/backups/lyra-abc",
	}

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"busy", domain.NewAppError(domain.ErrSessionInProgress, "busy", 409, nil), 409, domain.ErrSessionInProgress},
		{"conflict", domain.NewAppError(domain.ErrPlanConflict, "conflict", 409, nil), 409, domain.ErrPlanConflict},
		{"invalid name", domain.NewAppError(domain.ErrInvalidName, "bad name", 422, nil), 422, domain.ErrInvalidName},
		{"apply failed", domain.NewAppError(domain.ErrApplyFailed, "apply failed", 500, report), 500, domain.ErrApplyFailed},
		{"rollback failed", domain.NewAppError(domain.ErrRollbackFailed, "rollback failed", 500, report), 500, domain.ErrRollbackFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, m := newTestApp(t, RouterConfig{})
			m.service.On("Apply", mock.Anything, mock.Anything).Return(nil, tt.err)

			status, body := postJSON(t, app, "/v1/apply", RenameRequest{Root: "/work/Lyra", NewName: "Spyro"})
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	t.Run("failure report is exposed", func(t *testing.T) {
		app, m := newTestApp(t, RouterConfig{})
		m.service.On("Apply", mock.Anything, mock.Anything).
			Return(nil, domain.NewAppError(domain.ErrApplyFailed, "apply failed", 500, report))

		_, body := postJSON(t, app, "/v1/apply", RenameRequest{Root: "/work/Lyra", NewName: "Spyro"})
		details := body["details"].(map[string]any)
		assert.Equal(t, 2.0, details["failed_index"])
		assert.Equal(t, true, details["rolled_back"])
		assert.Equal(t, "/tmp/backups/lyra-abc", details["backup_dir"])
	})
}

func TestHistoryHandler(t *testing.T) {
	app, m := newTestApp(t, RouterConfig{})
	m.service.On("History", mock.Anything, "/work/Spyro").Return([]domain.SessionSummary{
		{SessionID: "1", Kind: domain.SessionProject, OldName: "Lyra", NewName: "Spyro", Outcome: domain.OutcomeApplied},
	}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/history?root=/work/Spyro", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	body := decode(t, resp.Body)
	data := body["data"].(map[string]any)
	assert.Equal(t, 1.0, data["count"])
	sessions := data["sessions"].([]any)
	assert.Equal(t, "Spyro", sessions[0].(map[string]any)["new_name"])
}

func TestHealthHandler(t *testing.T) {
	for _, tc := range []struct {
		status string
		code   int
	}{
		{domain.HealthStatusHealthy, 200},
		{domain.HealthStatusDegraded, 503},
		{domain.HealthStatusUnhealthy, 503},
	} {
		t.Run(tc.status, func(t *testing.T) {
			app, m := newTestApp(t, RouterConfig{})
			m.health.On("CheckHealth", mock.Anything).Return(domain.SystemHealth{
				Status:    tc.status,
				Timestamp: time.Now(),
				Components: map[string]domain.HealthStatus{
					"backups": {Status: tc.status, Timestamp: time.Now()},
				},
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), 5000)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.code, resp.StatusCode)
			body := decode(t, resp.Body)
			assert.Equal(t, tc.status, body["status"])
			assert.Contains(t, body["components"], "backups")
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	app, m := newTestApp(t, RouterConfig{})
	m.cache.On("Stats").Return(domain.CacheStats{Hits: 3, Misses: 1, Size: 2, MaxSize: 256, HitRatio: 0.75})

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := decode(t, resp.Body)
	cache := body["data"].(map[string]any)["cache"].(map[string]any)
	assert.Equal(t, 3.0, cache["hits"])
	assert.Equal(t, 0.75, cache["hit_ratio"])
}

func TestBodySizeLimit(t *testing.T) {
	app, _ := newTestApp(t, RouterConfig{BodyLimit: 64})

	// fasthttp drops the in-memory conn of app.Test on an oversized body,
	// so the 413 response is only observable over a real socket.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	payload := `{"root": "` + strings.Repeat("a", 200) + `", "new_name": "Spyro"}`
	resp, err := http.Post("http://"+ln.Addr().String()+"/v1/plan", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 413, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.Equal(t, domain.ErrTooLarge, body["code"])
}

func TestSecurityHeaders(t *testing.T) {
	app, m := newTestApp(t, RouterConfig{})
	m.cache.On("Stats").Return(domain.CacheStats{})

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	app, m := newTestApp(t, RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 2})
	m.service.On("History", mock.Anything, "").Return([]domain.SessionSummary{}, nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/history", nil), 5000)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestUnknownRoute(t *testing.T) {
	app, _ := newTestApp(t, RouterConfig{})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/rules", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, domain.ErrNotFound, decode(t, resp.Body)["code"])
}

// Property: every request gets a distinct request id
func TestProperty_UniqueRequestIDs(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("request ids never repeat", prop.ForAll(
		func(n int) bool {
			app, m := newTestApp(t, RouterConfig{})
			m.cache.On("Stats").Return(domain.CacheStats{})

			seen := make(map[string]bool, n)
			for i := 0; i < n; i++ {
				resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), 5000)
				if err != nil {
					return false
				}
				resp.Body.Close()
				id := resp.Header.Get("X-Request-ID")
				if id == "" || seen[id] {
					return false
				}
				seen[id] = true
			}
			return true
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
