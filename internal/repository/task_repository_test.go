package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskflow/internal/model"
)

func TestTaskRepository_FindByOwnerOrAssignee(t *testing.T) {
	gormDB := newTestDB(t)
	repo := NewTaskRepository(gormDB)
	creator := seedUser(t, gormDB, "creator@example.com", model.RoleAdmin, true)
	assignee := seedUser(t, gormDB, "assignee@example.com", model.RoleCommon, true)
	stranger := seedUser(t, gormDB, "stranger@example.com", model.RoleCommon, true)

	task := seedTask(t, gormDB, &model.Task{Title: "write report", UserID: creator.ID, AssignedToUserID: ptr(assignee.ID)})

	found, err := repo.FindByOwnerOrAssignee(ctx, task.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, found.ID)

	_, err = repo.FindByOwnerOrAssignee(ctx, task.ID, assignee.ID)
	assert.NoError(t, err)

	_, err = repo.FindByOwnerOrAssignee(ctx, task.ID, stranger.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskRepository_ListVisibility(t *testing.T) {
	gormDB := newTestDB(t)
	repo := NewTaskRepository(gormDB)
	user := seedUser(t, gormDB, "u@example.com", model.RoleCommon, true)
	now := utcNow()

	recent := now.Add(-time.Hour)
	recentUntil := recent.Add(model.VisibilityWindow)
	old := now.Add(-20 * time.Hour)
	oldUntil := old.Add(model.VisibilityWindow)

	seedTask(t, gormDB, &model.Task{Title: "open", UserID: user.ID})
	seedTask(t, gormDB, &model.Task{Title: "fresh done", UserID: user.ID, Status: model.TaskStatusCompleted,
		IsCompleted: true, CompletedAt: &recent, VisibleUntil: &recentUntil})
	seedTask(t, gormDB, &model.Task{Title: "stale done", UserID: user.ID, Status: model.TaskStatusCompleted,
		IsCompleted: true, CompletedAt: &old, VisibleUntil: &oldUntil})
	seedTask(t, gormDB, &model.Task{Title: "legacy done", UserID: user.ID, Status: model.TaskStatusCompleted,
		IsCompleted: true})

	tasks, total, err := repo.List(ctx, TaskFilter{OwnerID: &user.ID, Now: now, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	titles := make([]string, 0, len(tasks))
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	assert.ElementsMatch(t, []string{"open", "fresh done", "legacy done"}, titles)

	_, total, err = repo.List(ctx, TaskFilter{OwnerID: &user.ID, Now: now, Limit: 20, IncludeExpired: true})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestTaskRepository_ListFiltersAndPaging(t *testing.T) {
	gormDB := newTestDB(t)
	repo := NewTaskRepository(gormDB)
	user := seedUser(t, gormDB, "u@example.com", model.RoleCommon, true)
	other := seedUser(t, gormDB, "o@example.com", model.RoleCommon, true)

	base := utcNow().Add(-10 * time.Hour)
	for i := 0; i < 5; i++ {
		seedTask(t, gormDB, &model.Task{Title: "task", UserID: user.ID, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	seedTask(t, gormDB, &model.Task{Title: "Buy milk", UserID: user.ID, Priority: model.PriorityUrgent, CreatedAt: base.Add(6 * time.Hour)})
	seedTask(t, gormDB, &model.Task{Title: "someone else", UserID: other.ID})

	page, total, err := repo.List(ctx, TaskFilter{OwnerID: &user.ID, Offset: 0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, page, 2)
	assert.Equal(t, "Buy milk", page[0].Title)
	assert.True(t, !page[0].CreatedAt.Before(page[1].CreatedAt))

	found, total, err := repo.List(ctx, TaskFilter{OwnerID: &user.ID, Search: "milk", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Buy milk", found[0].Title)

	_, total, err = repo.List(ctx, TaskFilter{OwnerID: &user.ID, Priority: ptr(model.PriorityUrgent), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.List(ctx, TaskFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
}

func TestTaskRepository_MarkOverdueIsIdempotent(t *testing.T) {
	gormDB := newTestDB(t)
	repo := NewTaskRepository(gormDB)
	user := seedUser(t, gormDB, "u@example.com", model.RoleCommon, true)
	now := utcNow()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	late := seedTask(t, gormDB, &model.Task{Title: "late", UserID: user.ID, DueDate: &yesterday})
	seedTask(t, gormDB, &model.Task{Title: "future", UserID: user.ID, DueDate: &tomorrow})
	seedTask(t, gormDB, &model.Task{Title: "done late", UserID: user.ID, DueDate: &yesterday, Status: model.TaskStatusCompleted})
	seedTask(t, gormDB, &model.Task{Title: "cancelled late", UserID: user.ID, DueDate: &yesterday, Status: model.TaskStatusCancelled})
	seedTask(t, gormDB, &model.Task{Title: "started late", UserID: user.ID, DueDate: &yesterday, Status: model.TaskStatusInProgress})

	affected, err := repo.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	reloaded, err := repo.FindByID(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsOverdue)

	count, err := repo.Count(ctx, TaskCountFilter{OverdueOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTaskRepository_HideExpired(t *testing.T) {
	gormDB := newTestDB(t)
	repo := NewTaskRepository(gormDB)
	user := seedUser(t, gormDB, "u@example.com", model.RoleCommon, true)
	now := utcNow()
	expired := now.Add(-time.Hour)
	live := now.Add(time.Hour)

	gone := seedTask(t, gormDB, &model.Task{Title: "expired", UserID: user.ID, Status: model.TaskStatusCompleted, VisibleUntil: &expired})
	seedTask(t, gormDB, &model.Task{Title: "live", UserID: user.ID, Status: model.TaskStatusCompleted, VisibleUntil: &live})

	affected, err := repo.HideExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.HideExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	reloaded, err := repo.FindByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsHidden)
	require.NotNil(t, reloaded.VisibleUntil)

	count, err := repo.Count(ctx, TaskCountFilter{ExpiredAt: &now})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTaskRepository_CountActiveByCreator(t *testing.T) {
	gormDB := newTestDB(t)
	repo := NewTaskRepository(gormDB)
	user := seedUser(t, gormDB, "u@example.com", model.RoleCommon, true)

	seedTask(t, gormDB, &model.Task{Title: "a", UserID: user.ID})
	seedTask(t, gormDB, &model.Task{Title: "b", UserID: user.ID, Status: model.TaskStatusInProgress})
	seedTask(t, gormDB, &model.Task{Title: "c", UserID: user.ID, Status: model.TaskStatusCompleted})

	count, err := repo.Count(ctx, TaskCountFilter{CreatorID: &user.ID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestTaskRepository_ListCompletedSince(t *testing.T) {
	gormDB := newTestDB(t)
	repo := NewTaskRepository(gormDB)
	user := seedUser(t, gormDB, "u@example.com", model.RoleCommon, true)
	now := utcNow()
	recent := now.Add(-2 * time.Hour)
	old := now.Add(-40 * 24 * time.Hour)

	seedTask(t, gormDB, &model.Task{Title: "recent", UserID: user.ID, Status: model.TaskStatusCompleted, CompletedAt: &recent})
	seedTask(t, gormDB, &model.Task{Title: "old", UserID: user.ID, Status: model.TaskStatusCompleted, CompletedAt: &old})

	tasks, err := repo.ListCompletedSince(ctx, user.ID, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "recent", tasks[0].Title)
}
