package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arnold/goalmentor-api/internal/database"
	"github.com/arnold/goalmentor-api/internal/handlers"
	"github.com/arnold/goalmentor-api/internal/middleware"
	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/arnold/goalmentor-api/internal/routes"
	"github.com/arnold/goalmentor-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testSecret = []byte("handler-test-secret-0123456789abcdef")

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	completer services.CompleterFunc
	lastTurns []services.ChatTurn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(database.Dialector(filepath.Join(t.TempDir(), "test.db")), logger.Silent)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	env := &testEnv{db: db}
	env.completer = func(_ context.Context, msgs []services.ChatTurn) (string, error) {
		env.lastTurns = msgs
		return "### Focus\n\nOne step at a time.", nil
	}

	goals := services.NewGoalService(db)
	push := services.NewPushService(context.Background(), db, "")
	h := handlers.New(handlers.Services{
		Auth:  services.NewAuthService(db, "", ""),
		Goals: goals,
		Tasks: services.NewTaskService(db, push),
		Chat: services.NewChatService(db, goals, services.CompleterFunc(func(ctx context.Context, msgs []services.ChatTurn) (string, error) {
			return env.completer(ctx, msgs)
		})),
		Push: push,
	}, nil, testSecret, false)

	env.app = fiber.New()
	routes.Setup(env.app, h)
	return env
}

func (e *testEnv) token(t *testing.T, email string) string {
	t.Helper()
	user := models.User{Email: email, Name: "Test"}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := middleware.GenerateToken(testSecret, user.ID, user.Email)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func goalOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	goal, ok := body["goal"].(map[string]interface{})
	if !ok {
		t.Fatalf("no goal in %v", body)
	}
	return goal
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", status, body)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/goals"},
		{http.MethodGet, "/api/goals/demo"},
		{http.MethodPost, "/api/chat"},
		{http.MethodDelete, "/api/chat/clear?conversationId=x"},
		{http.MethodPost, "/api/tasks/" + uuid.NewString() + "/toggle"},
	} {
		status, body := env.do(t, r.method, r.path, "", nil)
		if status != http.StatusUnauthorized || body["error"] == nil {
			t.Fatalf("%s %s: %d %v", r.method, r.path, status, body)
		}
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Name: "Ann", Email: "ann@example.com", Password: "password1",
	})
	if status != http.StatusCreated || body["token"] == "" {
		t.Fatalf("register: %d %v", status, body)
	}
	user := body["user"].(map[string]interface{})
	if _, leaked := user["password"]; leaked {
		t.Fatalf("password hash leaked in response")
	}

	status, body = env.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Name: "Ann", Email: "ann@example.com", Password: "password1",
	})
	if status != http.StatusBadRequest || body["error"] != "User already exists with this email" {
		t.Fatalf("duplicate register: %d %v", status, body)
	}

	status, _ = env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ann@example.com", Password: "nope-nope"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", status)
	}

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ann@example.com", Password: "password1"})
	if status != http.StatusOK {
		t.Fatalf("login: %d %v", status, body)
	}
	token := body["token"].(string)

	status, body = env.do(t, http.MethodGet, "/api/me", token, nil)
	if status != http.StatusOK || body["email"] != "ann@example.com" {
		t.Fatalf("me: %d %v", status, body)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password1"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ann@example.com","password":"password1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			session = c
		}
	}
	if session == nil || session.Value == "" || !session.HttpOnly {
		t.Fatalf("session cookie not set: %+v", resp.Cookies())
	}

	me := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	me.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: session.Value})
	resp, err = env.app.Test(me, -1)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("me with cookie: %v %v", resp.StatusCode, err)
	}
}

func TestGoalAndTaskActions(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "runner@example.com")

	status, body := env.do(t, http.MethodPost, "/api/goals", token, map[string]interface{}{"title": "", "priority": 3})
	if status != http.StatusBadRequest || body["error"] != "Title is required" {
		t.Fatalf("empty title: %d %v", status, body)
	}
	status, body = env.do(t, http.MethodPost, "/api/goals", token, map[string]interface{}{"title": "Run", "priority": 7})
	if status != http.StatusBadRequest {
		t.Fatalf("bad priority: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/goals", token, map[string]interface{}{"title": "Run 5k", "priority": 3, "deadline": "2026-03-09"})
	if status != http.StatusCreated {
		t.Fatalf("create goal: %d %v", status, body)
	}
	if v, present := body["error"]; !present || v != nil {
		t.Fatalf("action result should carry error:null, got %v", body)
	}
	goal := goalOf(t, body)
	goalID := goal["id"].(string)
	if goal["progress"].(float64) != 0 {
		t.Fatalf("new goal progress = %v", goal["progress"])
	}

	var taskIDs []string
	for _, title := range []string{"Buy shoes", "Run 1k"} {
		status, body = env.do(t, http.MethodPost, "/api/goals/"+goalID+"/tasks", token, map[string]interface{}{"title": title})
		if status != http.StatusCreated {
			t.Fatalf("create task: %d %v", status, body)
		}
		taskIDs = append(taskIDs, body["task"].(map[string]interface{})["id"].(string))
	}

	status, body = env.do(t, http.MethodPost, "/api/tasks/"+taskIDs[0]+"/toggle", token, nil)
	if status != http.StatusOK || goalOf(t, body)["progress"].(float64) != 50 {
		t.Fatalf("toggle: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodDelete, "/api/tasks/"+taskIDs[0], token, nil)
	if status != http.StatusOK || goalOf(t, body)["progress"].(float64) != 0 {
		t.Fatalf("delete task: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPut, "/api/goals/"+goalID, token, map[string]interface{}{"title": "Run 5k", "priority": 3, "progress": 150})
	if status != http.StatusOK || goalOf(t, body)["progress"].(float64) != 100 {
		t.Fatalf("update goal: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPut, "/api/tasks/"+taskIDs[1], token, map[string]interface{}{"title": "Run 2k", "estimateMins": 15})
	if status != http.StatusOK {
		t.Fatalf("update task: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodGet, "/api/goals", token, nil)
	goals := body["goals"].([]interface{})
	if status != http.StatusOK || len(goals) != 1 {
		t.Fatalf("list goals: %d %v", status, body)
	}
	tasks := goals[0].(map[string]interface{})["tasks"].([]interface{})
	if len(tasks) != 1 || tasks[0].(map[string]interface{})["title"] != "Run 2k" {
		t.Fatalf("unexpected tasks %v", tasks)
	}

	status, body = env.do(t, http.MethodGet, "/api/goals/demo", token, nil)
	demo := body["goals"].([]interface{})
	if status != http.StatusOK || len(demo) != 1 {
		t.Fatalf("demo goals: %d %v", status, body)
	}
	if _, hasTasks := demo[0].(map[string]interface{})["tasks"]; hasTasks {
		t.Fatalf("demo goals should not embed tasks")
	}

	status, body = env.do(t, http.MethodDelete, "/api/goals/"+goalID, token, nil)
	if status != http.StatusOK || body["error"] != nil {
		t.Fatalf("delete goal: %d %v", status, body)
	}
	var remaining int64
	env.db.Model(&models.Task{}).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("%d tasks survived their goal", remaining)
	}
}

func TestForeignResourcesAreNotFound(t *testing.T) {
	env := newTestEnv(t)
	owner := env.token(t, "owner@example.com")
	other := env.token(t, "other@example.com")

	_, body := env.do(t, http.MethodPost, "/api/goals", owner, map[string]interface{}{"title": "Mine", "priority": 2})
	goalID := goalOf(t, body)["id"].(string)
	_, body = env.do(t, http.MethodPost, "/api/goals/"+goalID+"/tasks", owner, map[string]interface{}{"title": "step"})
	taskID := body["task"].(map[string]interface{})["id"].(string)

	for _, r := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPut, "/api/goals/" + goalID, map[string]interface{}{"title": "Yours", "priority": 2}},
		{http.MethodDelete, "/api/goals/" + goalID, nil},
		{http.MethodPost, "/api/goals/" + goalID + "/tasks", map[string]interface{}{"title": "x"}},
		{http.MethodPut, "/api/tasks/" + taskID, map[string]interface{}{"title": "x"}},
		{http.MethodPost, "/api/tasks/" + taskID + "/toggle", nil},
		{http.MethodDelete, "/api/tasks/" + taskID, nil},
		{http.MethodPost, "/api/tasks/" + uuid.NewString() + "/toggle", nil},
	} {
		status, resp := env.do(t, r.method, r.path, other, r.body)
		if status != http.StatusNotFound || resp["error"] == nil {
			t.Fatalf("%s %s: %d %v", r.method, r.path, status, resp)
		}
	}

	status, _ := env.do(t, http.MethodPost, "/api/tasks/not-a-uuid/toggle", other, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("malformed id: %d", status)
	}
}

func TestChatEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "a@example.com")

	status, body := env.do(t, http.MethodPost, "/api/chat", token, map[string]interface{}{"message": "hi"})
	if status != http.StatusBadRequest || body["error"] != "Message and conversationId are required" {
		t.Fatalf("missing conversationId: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/chat", token, map[string]interface{}{
		"message":        "How do I start?",
		"conversationId": "conv-1",
		"goals":          []map[string]interface{}{{"title": "Learn Go", "priority": 2, "progress": 10}},
	})
	if status != http.StatusOK || body["reply"] != "### Focus\n\nOne step at a time." {
		t.Fatalf("chat: %d %v", status, body)
	}
	if !strings.Contains(env.lastTurns[0].Content, "1. Learn Go, Priority: 2, Progress: 10%") {
		t.Fatalf("request goals missing from system prompt: %s", env.lastTurns[0].Content)
	}

	status, body = env.do(t, http.MethodGet, "/api/chat/history?conversationId=conv-1", token, nil)
	if msgs := body["messages"].([]interface{}); status != http.StatusOK || len(msgs) != 2 {
		t.Fatalf("history: %d %v", status, body)
	}

	status, body = env.do(t, http.MethodDelete, "/api/chat/clear?conversationId=conv-1", token, nil)
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("clear: %d %v", status, body)
	}
	status, body = env.do(t, http.MethodDelete, "/api/chat/clear", token, nil)
	if status != http.StatusBadRequest || body["error"] != "conversationId is required" {
		t.Fatalf("clear without id: %d %v", status, body)
	}

	_, body = env.do(t, http.MethodGet, "/api/chat/history?conversationId=conv-1", token, nil)
	if msgs := body["messages"].([]interface{}); len(msgs) != 0 {
		t.Fatalf("history after clear: %v", msgs)
	}
}

func TestChatAcceptsDateOnlyGoalDeadline(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "a@example.com")

	status, body := env.do(t, http.MethodPost, "/api/chat", token, map[string]interface{}{
		"message":        "Plan my week",
		"conversationId": "conv-1",
		"goals": []map[string]interface{}{
			{"title": "Run", "deadline": "2026-03-09"},
			{"title": "Read", "deadline": "someday"},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("chat: %d %v", status, body)
	}
	system := env.lastTurns[0].Content
	if !strings.Contains(system, "1. Run, Deadline: 3/9/2026\n2. Read\n") {
		t.Fatalf("goal deadlines not rendered as expected:\n%s", system)
	}
}

func TestChatUpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable", services.UpstreamError("AI service is not available", nil), http.StatusServiceUnavailable},
		{"rate limited", services.RateLimitedError("AI service is busy. Please try again shortly.", nil), http.StatusTooManyRequests},
		{"unclassified", io.ErrUnexpectedEOF, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			token := env.token(t, "a@example.com")
			env.completer = func(context.Context, []services.ChatTurn) (string, error) {
				return "", tt.err
			}

			status, body := env.do(t, http.MethodPost, "/api/chat", token, map[string]interface{}{"message": "hi", "conversationId": "c"})
			if status != tt.status || body["error"] == nil {
				t.Fatalf("status %d body %v, want %d", status, body, tt.status)
			}

			var n int64
			env.db.Model(&models.ChatMessage{}).Count(&n)
			if n != 0 {
				t.Fatalf("%d messages persisted after a failed call", n)
			}
		})
	}
}

func TestRegisterDeviceToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "a@example.com")

	status, _ := env.do(t, http.MethodPost, "/api/device-token", token, map[string]string{"token": ""})
	if status != http.StatusBadRequest {
		t.Fatalf("empty token: %d", status)
	}
	status, body := env.do(t, http.MethodPost, "/api/device-token", token, map[string]string{"token": "fcm-abc"})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("device token: %d %v", status, body)
	}
}

func TestWebSocketRequiresUpgradeAndToken(t *testing.T) {
	env := newTestEnv(t)

	plain, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/ws/goals", nil), -1)
	if err != nil {
		t.Fatalf("plain GET: %v", err)
	}
	if plain.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("plain GET: %d", plain.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/goals?token=bogus", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", resp.StatusCode)
	}
}
