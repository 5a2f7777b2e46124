package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ProviderEmail  = "email"
	ProviderGitHub = "github"

	githubTimeout = 10 * time.Second
)

type AuthService struct {
	db           *gorm.DB
	githubID     string
	githubSecret string
	oauthURL     string
	apiURL       string
}

type AuthOption func(*AuthService)

// WithGitHubEndpoints points the OAuth exchange at other hosts. Tests use it
// with a local server.
func WithGitHubEndpoints(oauthURL, apiURL string) AuthOption {
	return func(s *AuthService) {
		s.oauthURL = strings.TrimRight(oauthURL, "/")
		s.apiURL = strings.TrimRight(apiURL, "/")
	}
}

func NewAuthService(db *gorm.DB, githubID, githubSecret string, opts ...AuthOption) *AuthService {
	s := &AuthService{
		db:           db,
		githubID:     githubID,
		githubSecret: githubSecret,
		oauthURL:     "https://github.com",
		apiURL:       "https://api.github.com",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a credentials account. An account that so far only
// signed in through GitHub gains a password instead.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" {
		return nil, ValidationError("Name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, ValidationError("Invalid email address")
	}
	if len(req.Password) < 8 {
		return nil, ValidationError("Password must be at least 8 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: "Failed to hash password", Err: err}
	}
	password := string(hashed)

	db := s.db.WithContext(ctx)
	var existing models.User
	err = db.Where("email = ?", email).First(&existing).Error
	switch {
	case err == nil:
		if existing.HasPassword() {
			return nil, ValidationError("User already exists with this email")
		}
		if err := db.Model(&existing).Updates(map[string]interface{}{"name": name, "password": password}).Error; err != nil {
			return nil, dbError(err)
		}
		existing.Name = name
		existing.Password = &password
		return &existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, dbError(err)
	}

	user := models.User{
		Email:        email,
		Name:         name,
		Password:     &password,
		AuthProvider: ProviderEmail,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, dbError(err)
	}
	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ValidationError("Email and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, UnauthorizedError("Invalid credentials")
	}
	if err != nil {
		return nil, dbError(err)
	}
	if !user.HasPassword() {
		return nil, UnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)); err != nil {
		return nil, UnauthorizedError("Invalid credentials")
	}
	return &user, nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("User not found")
	}
	if err != nil {
		return nil, dbError(err)
	}
	return &user, nil
}

type githubToken struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type githubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubLogin exchanges an OAuth code for the GitHub profile and finds or
// creates the matching user. Accounts are matched by GitHub id first and
// then by email, which links an existing credentials account.
func (s *AuthService) GitHubLogin(ctx context.Context, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ValidationError("Authorization code is required")
	}
	if s.githubID == "" || s.githubSecret == "" {
		return nil, UpstreamError("GitHub sign-in is not configured", nil)
	}

	var token githubToken
	agent := fiber.Post(s.oauthURL+"/login/oauth/access_token").
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		JSON(fiber.Map{"client_id": s.githubID, "client_secret": s.githubSecret, "code": code})
	if status, err := fetchJSON(agent, &token); err != nil {
		return nil, UpstreamError("GitHub is not reachable", err)
	} else if status != fiber.StatusOK || token.AccessToken == "" {
		slog.Warn("github code exchange rejected", "status", status, "error", token.Error, "description", token.ErrorDescription)
		return nil, UnauthorizedError("Invalid GitHub code")
	}

	var profile githubProfile
	if err := s.githubGet("/user", token.AccessToken, &profile); err != nil {
		return nil, err
	}
	if profile.Email == "" {
		var emails []githubEmail
		if err := s.githubGet("/user/emails", token.AccessToken, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				profile.Email = e.Email
				break
			}
		}
	}
	if profile.Email == "" {
		return nil, ValidationError("Email not available from GitHub account")
	}

	return s.findOrCreateGitHubUser(ctx, profile)
}

func (s *AuthService) githubGet(path, accessToken string, v interface{}) error {
	agent := fiber.Get(s.apiURL+path).
		Set(fiber.HeaderAccept, "application/vnd.github+json").
		Set(fiber.HeaderAuthorization, "Bearer "+accessToken)
	status, err := fetchJSON(agent, v)
	if err != nil {
		return UpstreamError("GitHub is not reachable", err)
	}
	if status == fiber.StatusUnauthorized {
		return UnauthorizedError("Invalid GitHub code")
	}
	if status != fiber.StatusOK {
		return UpstreamError("GitHub is not reachable", fmt.Errorf("GET %s: status %d", path, status))
	}
	return nil
}

func (s *AuthService) findOrCreateGitHubUser(ctx context.Context, profile githubProfile) (*models.User, error) {
	githubID := strconv.FormatInt(profile.ID, 10)
	email := normalizeEmail(profile.Email)
	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("github_id = ?", githubID).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = tx.Where("email = ?", email).First(&user).Error
		if err == nil {
			user.GitHubID = &githubID
			if user.AvatarURL == "" {
				user.AvatarURL = profile.AvatarURL
			}
			return tx.Model(&user).Updates(map[string]interface{}{
				"github_id":  githubID,
				"avatar_url": user.AvatarURL,
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = models.User{
			Email:        email,
			Name:         name,
			AvatarURL:    profile.AvatarURL,
			GitHubID:     &githubID,
			AuthProvider: ProviderGitHub,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, dbError(err)
	}
	return &user, nil
}

// fetchJSON runs agent and decodes a JSON body into v. Non-JSON error
// bodies are ignored so the caller can act on the status code.
func fetchJSON(agent *fiber.Agent, v interface{}) (int, error) {
	agent = agent.Timeout(githubTimeout)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return 0, err
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return status, errors.Join(errs...)
	}
	if status >= 200 && status <= 299 {
		if err := json.Unmarshal(body, v); err != nil {
			return status, fmt.Errorf("decode response: %w", err)
		}
	} else {
		_ = json.Unmarshal(body, v)
	}
	return status, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
