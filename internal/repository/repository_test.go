package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskflow/internal/db"
	"taskflow/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := db.Open("sqlite", dsn, db.Options{MaxOpenConns: 1, LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormDB
}

func seedUser(t *testing.T, gormDB *gorm.DB, email string, role model.Role, active bool) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "x", Role: role, IsActive: true}
	require.NoError(t, gormDB.Create(user).Error)
	if !active {
		// IsActive has a database default, so false must be written explicitly.
		require.NoError(t, gormDB.Model(user).Update("is_active", false).Error)
		user.IsActive = false
	}
	return user
}

func seedTask(t *testing.T, gormDB *gorm.DB, task *model.Task) *model.Task {
	t.Helper()
	if task.Status == "" {
		task.Status = model.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if task.AssignedToUserID == nil {
		owner := task.UserID
		task.AssignedToUserID = &owner
	}
	require.NoError(t, gormDB.Create(task).Error)
	return task
}

func ptr[T any](v T) *T { return &v }

var ctx = context.Background()

func utcNow() time.Time { return time.Now().UTC() }
