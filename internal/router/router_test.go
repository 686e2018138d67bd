package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskflow/internal/auth"
	"taskflow/internal/db"
	"taskflow/internal/handler"
	"taskflow/internal/model"
	"taskflow/internal/realtime"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

// memTokenStore keeps tokens in memory.
type memTokenStore struct {
	mu      sync.Mutex
	refresh map[string]uint
	revoked map[string]bool
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{refresh: map[string]uint{}, revoked: map[string]bool{}}
}

func (m *memTokenStore) StoreRefreshToken(_ context.Context, tokenID string, userID uint, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenID] = userID
	return nil
}

func (m *memTokenStore) GetRefreshToken(_ context.Context, tokenID string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.refresh[tokenID]
	if !ok {
		return 0, fmt.Errorf("refresh token not found")
	}
	return id, nil
}

func (m *memTokenStore) DeleteRefreshToken(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenID)
	return nil
}

func (m *memTokenStore) BlacklistAccessToken(_ context.Context, tokenID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = true
	return nil
}

func (m *memTokenStore) IsAccessTokenBlacklisted(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[tokenID], nil
}

type testServer struct {
	e  *echo.Echo
	db *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", t.Name())
	gormDB, err := db.Open("sqlite", dsn, db.Options{MaxOpenConns: 1, LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(gormDB)
	tasks := repository.NewTaskRepository(gormDB)
	categories := repository.NewCategoryRepository(gormDB)
	jwtService := auth.NewJWTService("test-secret")
	tokens := newMemTokenStore()

	userService := service.NewUserService(users, nil)

	hub := realtime.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	t.Cleanup(stopHub)
	taskService := service.WithTaskEvents(service.NewTaskService(tasks, users, categories), hub)

	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	Register(e, Deps{
		JWT:        jwtService,
		TokenStore: tokens,
		Users:      userService,
		Health: map[string]func(context.Context) error{
			"database": func(ctx context.Context) error {
				sqlDB, err := gormDB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
	}, Handlers{
		Auth:        handler.NewAuthHandler(service.NewAuthService(users, jwtService, tokens)),
		User:        handler.NewUserHandler(userService),
		Task:        handler.NewTaskHandler(taskService),
		Category:    handler.NewCategoryHandler(service.NewCategoryService(categories)),
		Analytics:   handler.NewAnalyticsHandler(service.NewAnalyticsService(tasks, time.UTC)),
		Maintenance: handler.NewMaintenanceHandler(service.NewHousekeepingService(taskService, tasks)),
		Realtime:    handler.NewRealtimeHandler(hub, nil),
	})
	return &testServer{e: e, db: gormDB}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email, password string) handler.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handler.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRouter_TaskFlow(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, "ada@example.com", "password123")

	rec := s.do(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/tasks", session.AccessToken, map[string]string{"title": "Write tests", "priority": "high"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, model.PriorityHigh, task.Priority)

	rec = s.do(t, http.MethodPost, "/api/tasks", session.AccessToken, map[string]string{"priority": "high"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", task.ID), session.AccessToken, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.True(t, task.IsCompleted)
	assert.NotNil(t, task.CompletedAt)

	rec = s.do(t, http.MethodGet, "/api/tasks", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page service.Page[model.Task]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)

	rec = s.do(t, http.MethodGet, "/api/tasks/9999", session.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "TASK_NOT_FOUND")

	rec = s.do(t, http.MethodGet, "/api/tasks/abc", session.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/tasks?page=abc", session.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_QUERY")

	rec = s.do(t, http.MethodGet, "/api/analytics/overview?period=week", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var overview service.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, 1, overview.TotalTasks)
	assert.Equal(t, 100.0, overview.CompletionRate)

	rec = s.do(t, http.MethodGet, "/api/analytics/overview?period=decade", session.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/analytics/insights", session.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_AdminRoutesRequireRole(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, "user@example.com", "password123")

	for _, path := range []string{"/api/admin/users", "/api/admin/tasks", "/api/admin/maintenance/stats"} {
		rec := s.do(t, http.MethodGet, path, session.AccessToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	require.NoError(t, s.db.Model(&model.User{}).Where("id = ?", session.User.ID).Update("role", model.RoleAdmin).Error)

	rec := s.do(t, http.MethodGet, "/api/admin/users", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/admin/maintenance/overdue", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result service.JobResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, service.JobOverdueSweep, result.Job)

	rec = s.do(t, http.MethodPost, "/api/admin/maintenance/bogus", session.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/role", session.User.ID), session.AccessToken, map[string]string{"role": "common"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "LAST_ADMIN")
}

func TestRouter_LogoutRevokesAccessToken(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, "bye@example.com", "password123")

	rec := s.do(t, http.MethodGet, "/api/me", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": session.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/logout", session.AccessToken, map[string]string{"refresh_token": session.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/me", session.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": session.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_DeactivatedUserIsRejected(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, "gone@example.com", "password123")

	require.NoError(t, s.db.Model(&model.User{}).Where("id = ?", session.User.ID).Update("is_active", false).Error)

	rec := s.do(t, http.MethodGet, "/api/me", session.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "USER_INACTIVE")

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "gone@example.com", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_TaskEventStream(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, "live@example.com", "password123")

	srv := httptest.NewServer(s.e)
	t.Cleanup(srv.Close)
	wsURL := "ws" + srv.URL[len("http"):] + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+session.AccessToken, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	next := func() realtime.Event {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var evt realtime.Event
		require.NoError(t, conn.ReadJSON(&evt))
		return evt
	}
	assert.Equal(t, realtime.EventConnected, next().Type)

	rec := s.do(t, http.MethodPost, "/api/tasks", session.AccessToken, map[string]string{"title": "Live"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	evt := next()
	assert.Equal(t, service.EventTaskCreated, evt.Type)
	data, ok := evt.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Live", data["title"])
}

func TestRouter_Healthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
}
