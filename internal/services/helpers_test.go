package services

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/arnold/goalmentor-api/internal/database"
	"github.com/arnold/goalmentor-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Dialector(filepath.Join(t.TempDir(), "test.db")), logger.Silent)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{Email: email, Name: "Test User"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *services.Error, got %T: %v", err, err)
	}
	if svcErr.Kind != want {
		t.Fatalf("kind = %s, want %s (%v)", svcErr.Kind, want, err)
	}
}
