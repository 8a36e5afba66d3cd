package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"projectboard/internal/database"
	"projectboard/internal/models"
)

// NewInMemoryDB creates an in-memory SQLite DB and runs migrations.
func NewInMemoryDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// every new connection would get its own empty :memory: database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// MustDB is NewInMemoryDB for tests.
func MustDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewInMemoryDB()
	require.NoError(t, err)
	return db
}

// SeedUser inserts a user with the given id and name.
func SeedUser(t *testing.T, db *gorm.DB, id, name string) models.User {
	t.Helper()
	u := models.User{ID: id, Name: name, Email: id + "@example.com"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// SeedProject inserts a project.
func SeedProject(t *testing.T, db *gorm.DB, id, name, key string, createdAt time.Time) models.Project {
	t.Helper()
	p := models.Project{ID: id, Name: name, Key: key, Status: models.ProjectInProgress, CreatedAt: createdAt}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// SeedTask inserts a task created by creatorID.
func SeedTask(t *testing.T, db *gorm.DB, id, title string, status models.TaskStatus, creatorID string, createdAt time.Time) models.Task {
	t.Helper()
	task := models.Task{
		ID:        id,
		Title:     title,
		Status:    status,
		Priority:  models.PriorityMedium,
		CreatorID: creatorID,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
