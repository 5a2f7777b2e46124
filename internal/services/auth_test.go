package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/google/uuid"
)

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuthService(db, "", "")
	ctx := context.Background()

	invalid := []models.RegisterRequest{
		{Name: "", Email: "a@example.com", Password: "password1"},
		{Name: "Ann", Email: "not-an-email", Password: "password1"},
		{Name: "Ann", Email: "a@example.com", Password: "short"},
	}
	for _, req := range invalid {
		_, err := svc.Register(ctx, req)
		requireKind(t, err, KindValidation)
	}

	user, err := svc.Register(ctx, models.RegisterRequest{Name: "Ann", Email: " Ann@Example.com ", Password: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "ann@example.com" || user.AuthProvider != ProviderEmail || !user.HasPassword() {
		t.Fatalf("unexpected user %+v", user)
	}
	if *user.Password == "password1" {
		t.Fatalf("password stored in clear text")
	}

	_, err = svc.Register(ctx, models.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password2"})
	requireKind(t, err, KindValidation)

	logged, err := svc.Login(ctx, "ANN@example.com", "password1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("logged in as %s, want %s", logged.ID, user.ID)
	}

	_, err = svc.Login(ctx, "ann@example.com", "wrong-password")
	requireKind(t, err, KindUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "password1")
	requireKind(t, err, KindUnauthorized)
	_, err = svc.Login(ctx, "", "")
	requireKind(t, err, KindValidation)

	me, err := svc.Me(ctx, user.ID)
	if err != nil || me.Email != "ann@example.com" {
		t.Fatalf("Me: %+v %v", me, err)
	}
	_, err = svc.Me(ctx, uuid.New())
	requireKind(t, err, KindNotFound)
}

func TestRegisterAddsPasswordToOAuthAccount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuthService(db, "", "")
	ctx := context.Background()
	githubID := "42"
	existing := models.User{Email: "dev@example.com", Name: "octo", AuthProvider: ProviderGitHub, GitHubID: &githubID}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	user, err := svc.Register(ctx, models.RegisterRequest{Name: "Dev", Email: "dev@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID != existing.ID || user.Name != "Dev" {
		t.Fatalf("expected the existing account to be updated, got %+v", user)
	}
	if _, err := svc.Login(ctx, "dev@example.com", "password1"); err != nil {
		t.Fatalf("Login after adding password: %v", err)
	}
}

func newGitHubServer(t *testing.T, profileEmail string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body["code"] != "good-code" || body["client_id"] != "gh-client-id" {
			w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`))
			return
		}
		w.Write([]byte(`{"access_token":"gho_token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": 1001, "login": "octocat", "name": "", "email": profileEmail, "avatar_url": "https://avatars.example/1001",
		})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"email":"old@example.com","primary":false,"verified":true},{"email":"octo@example.com","primary":true,"verified":true}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGitHubLogin(t *testing.T) {
	db := setupTestDB(t)
	srv := newGitHubServer(t, "")
	svc := NewAuthService(db, "gh-client-id", "gh-client-secret", WithGitHubEndpoints(srv.URL, srv.URL))
	ctx := context.Background()

	user, err := svc.GitHubLogin(ctx, "good-code")
	if err != nil {
		t.Fatalf("GitHubLogin: %v", err)
	}
	if user.Email != "octo@example.com" || user.Name != "octocat" || user.AuthProvider != ProviderGitHub {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.GitHubID == nil || *user.GitHubID != "1001" {
		t.Fatalf("github id not stored: %+v", user.GitHubID)
	}

	again, err := svc.GitHubLogin(ctx, "good-code")
	if err != nil {
		t.Fatalf("second GitHubLogin: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second login created a new user")
	}

	_, err = svc.GitHubLogin(ctx, "bad-code")
	requireKind(t, err, KindUnauthorized)
	_, err = svc.GitHubLogin(ctx, "")
	requireKind(t, err, KindValidation)
}

func TestGitHubLoginLinksExistingAccount(t *testing.T) {
	db := setupTestDB(t)
	srv := newGitHubServer(t, "ann@example.com")
	svc := NewAuthService(db, "gh-client-id", "gh-client-secret", WithGitHubEndpoints(srv.URL, srv.URL))
	ctx := context.Background()

	registered, err := svc.Register(ctx, models.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	user, err := svc.GitHubLogin(ctx, "good-code")
	if err != nil {
		t.Fatalf("GitHubLogin: %v", err)
	}
	if user.ID != registered.ID || user.GitHubID == nil || *user.GitHubID != "1001" {
		t.Fatalf("expected account to be linked, got %+v", user)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Fatalf("user count = %d, want 1", count)
	}
}

func TestGitHubLoginNotConfigured(t *testing.T) {
	db := setupTestDB(t)
	_, err := NewAuthService(db, "", "").GitHubLogin(context.Background(), "code")
	requireKind(t, err, KindUpstream)
}
