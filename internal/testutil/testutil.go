// Package testutil sets up throwaway stores and fixtures for tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// DatabaseConfig points at a fresh SQLite file inside t.TempDir().
func DatabaseConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "stackit_test.db"),
		LogLevel:   "silent",
	}
}

// SetupTestDB opens and migrates a fresh store that is closed when the
// test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(DatabaseConfig(t), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CreateTestUser inserts a user with a placeholder password hash.
func CreateTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()

	user := models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "not-a-real-hash",
		Role:     models.RoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateTestQuestion inserts a question with the given starting votes.
func CreateTestQuestion(t *testing.T, db *gorm.DB, authorID uint, votes int) models.Question {
	t.Helper()

	question := models.Question{
		Title:       "How do I test vote toggling?",
		Description: "A question long enough to pass validation rules.",
		UserID:      authorID,
		Votes:       votes,
	}
	if err := db.Create(&question).Error; err != nil {
		t.Fatalf("Failed to create test question: %v", err)
	}
	return question
}

// CreateTestAnswer inserts an answer with the given starting votes.
func CreateTestAnswer(t *testing.T, db *gorm.DB, questionID, authorID uint, votes int) models.Answer {
	t.Helper()

	answer := models.Answer{
		Content:    "An answer long enough to pass validation rules.",
		QuestionID: questionID,
		UserID:     authorID,
		Votes:      votes,
	}
	if err := db.Create(&answer).Error; err != nil {
		t.Fatalf("Failed to create test answer: %v", err)
	}
	return answer
}

func ReloadQuestion(t *testing.T, db *gorm.DB, id uint) models.Question {
	t.Helper()
	var q models.Question
	if err := db.First(&q, id).Error; err != nil {
		t.Fatalf("Failed to reload question %d: %v", id, err)
	}
	return q
}

func ReloadAnswer(t *testing.T, db *gorm.DB, id uint) models.Answer {
	t.Helper()
	var a models.Answer
	if err := db.First(&a, id).Error; err != nil {
		t.Fatalf("Failed to reload answer %d: %v", id, err)
	}
	return a
}
