package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "taskflow/internal/errors"
	"taskflow/internal/model"
)

func TestTaskService_Create(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	svc := f.taskService(now)
	owner := seedUser(t, f.db, "owner@example.com", model.RoleCommon, true)
	other := seedUser(t, f.db, "other@example.com", model.RoleCommon, true)
	admin := seedUser(t, f.db, "admin@example.com", model.RoleAdmin, true)

	t.Run("defaults", func(t *testing.T) {
		task, err := svc.Create(ctx, CreateTaskInput{Title: "  Write report  "}, owner)
		require.NoError(t, err)
		assert.NotZero(t, task.ID)
		assert.Equal(t, "Write report", task.Title)
		assert.Equal(t, model.TaskStatusPending, task.Status)
		assert.Equal(t, model.PriorityMedium, task.Priority)
		assert.False(t, task.IsCompleted)
		require.NotNil(t, task.AssignedToUserID)
		assert.Equal(t, owner.ID, *task.AssignedToUserID)
		assert.Equal(t, owner.DisplayName(), task.AssignedByName)
	})

	t.Run("empty title", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateTaskInput{Title: "   "}, owner)
		assert.ErrorIs(t, err, apperrors.ErrTitleRequired)
	})

	t.Run("invalid priority", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateTaskInput{Title: "x", Priority: "whenever"}, owner)
		assert.ErrorIs(t, err, apperrors.ErrInvalidPriority)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateTaskInput{Title: "x", CategoryID: ptr(uint(999))}, owner)
		assert.ErrorIs(t, err, apperrors.ErrCategoryNotFound)
	})

	t.Run("common user cannot assign to others", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateTaskInput{Title: "x", AssignedToUserID: &other.ID}, owner)
		assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	})

	t.Run("admin assigns on create", func(t *testing.T) {
		task, err := svc.Create(ctx, CreateTaskInput{Title: "x", AssignedToUserID: &other.ID}, admin)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, task.UserID)
		assert.Equal(t, other.ID, *task.AssignedToUserID)
	})

	t.Run("inactive requester", func(t *testing.T) {
		inactive := seedUser(t, f.db, "gone@example.com", model.RoleAdmin, false)
		_, err := svc.Create(ctx, CreateTaskInput{Title: "x"}, inactive)
		assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	})
}

func TestTaskService_CreateQuota(t *testing.T) {
	f := newFixture(t)
	svc := f.taskService(time.Now().UTC())
	user := seedUser(t, f.db, "busy@example.com", model.RoleCommon, true)

	tasks := make([]model.Task, 50)
	for i := range tasks {
		tasks[i] = model.Task{Title: "t", Status: model.TaskStatusPending, Priority: model.PriorityLow, UserID: user.ID, AssignedToUserID: &user.ID}
	}
	require.NoError(t, f.db.Create(&tasks).Error)

	_, err := svc.Create(ctx, CreateTaskInput{Title: "one too many"}, user)
	assert.ErrorIs(t, err, apperrors.ErrTaskLimitReached)

	require.NoError(t, f.db.Model(&model.Task{}).Where("id = ?", tasks[0].ID).Update("status", model.TaskStatusCompleted).Error)
	_, err = svc.Create(ctx, CreateTaskInput{Title: "fits again"}, user)
	assert.NoError(t, err)
}

func TestTaskService_Assign(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	svc := f.taskService(now)
	admin := seedUser(t, f.db, "admin@example.com", model.RoleAdmin, true)
	worker := seedUser(t, f.db, "worker@example.com", model.RoleCommon, true)
	gone := seedUser(t, f.db, "gone@example.com", model.RoleCommon, false)

	_, err := svc.Assign(ctx, AssignTaskInput{CreateTaskInput: CreateTaskInput{Title: "x"}, AssignedToUserID: gone.ID}, admin)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = svc.Assign(ctx, AssignTaskInput{CreateTaskInput: CreateTaskInput{Title: "x"}, AssignedToUserID: admin.ID}, worker)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	task, err := svc.Assign(ctx, AssignTaskInput{CreateTaskInput: CreateTaskInput{Title: "Ship it", Priority: model.PriorityUrgent}, AssignedToUserID: worker.ID}, admin)
	require.NoError(t, err)
	require.NotNil(t, task.AssignedAt)
	assert.True(t, task.AssignedAt.Equal(now))

	page, err := svc.List(ctx, worker, ListTasksInput{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Ship it", page.Items[0].Title)

	// The assignee may work on the task even though they did not create it.
	updated, err := svc.Update(ctx, task.ID, UpdateTaskInput{Status: ptr(model.TaskStatusInProgress)}, worker)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, updated.Status)
}

func TestTaskService_CompletionLifecycle(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	svc := f.taskService(now)
	user := seedUser(t, f.db, "u@example.com", model.RoleCommon, true)

	task, err := svc.Create(ctx, CreateTaskInput{Title: "Finish"}, user)
	require.NoError(t, err)

	completed, err := svc.Update(ctx, task.ID, UpdateTaskInput{Status: ptr(model.TaskStatusCompleted)}, user)
	require.NoError(t, err)
	assert.True(t, completed.IsCompleted)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.VisibleUntil)
	assert.True(t, completed.CompletedAt.Equal(now))
	assert.True(t, completed.VisibleUntil.Equal(now.Add(10*time.Hour)))

	reopened, err := svc.Update(ctx, task.ID, UpdateTaskInput{IsCompleted: ptr(false)}, user)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, reopened.Status)
	assert.False(t, reopened.IsCompleted)
	assert.Nil(t, reopened.CompletedAt)
	assert.Nil(t, reopened.VisibleUntil)

	viaFlag, err := svc.Update(ctx, task.ID, UpdateTaskInput{IsCompleted: ptr(true)}, user)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, viaFlag.Status)

	cancelled, err := svc.Update(ctx, task.ID, UpdateTaskInput{Status: ptr(model.TaskStatusCancelled)}, user)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.IsCompleted)
	assert.Nil(t, cancelled.CompletedAt)

	_, err = svc.Update(ctx, task.ID, UpdateTaskInput{Status: ptr(model.TaskStatus("done"))}, user)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)

	stored, err := f.tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, stored.Status)
}

func TestTaskService_OverdueSweepAndCompletion(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	svc := f.taskService(now)
	user := seedUser(t, f.db, "u@example.com", model.RoleCommon, true)

	due := now.Add(-time.Hour)
	task, err := svc.Create(ctx, CreateTaskInput{Title: "Late", DueDate: &due}, user)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateTaskInput{Title: "No due date"}, user)
	require.NoError(t, err)

	affected, err := svc.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = svc.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	got, err := svc.Get(ctx, task.ID, user)
	require.NoError(t, err)
	assert.True(t, got.IsOverdue)

	done, err := svc.Update(ctx, task.ID, UpdateTaskInput{Status: ptr(model.TaskStatusCompleted)}, user)
	require.NoError(t, err)
	assert.False(t, done.IsOverdue)
	assert.True(t, done.IsCompleted)

	stored, err := f.tasks.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOverdue)
}

func TestTaskService_MovingDueDateClearsOverdue(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	svc := f.taskService(now)
	user := seedUser(t, f.db, "u@example.com", model.RoleCommon, true)

	due := now.Add(-time.Hour)
	task, err := svc.Create(ctx, CreateTaskInput{Title: "Late", DueDate: &due}, user)
	require.NoError(t, err)
	_, err = svc.MarkOverdue(ctx)
	require.NoError(t, err)

	later := now.Add(24 * time.Hour)
	updated, err := svc.Update(ctx, task.ID, UpdateTaskInput{DueDate: &later}, user)
	require.NoError(t, err)
	assert.False(t, updated.IsOverdue)
}

func TestTaskService_Ownership(t *testing.T) {
	f := newFixture(t)
	svc := f.taskService(time.Now().UTC())
	owner := seedUser(t, f.db, "owner@example.com", model.RoleCommon, true)
	stranger := seedUser(t, f.db, "stranger@example.com", model.RolePremium, true)
	admin := seedUser(t, f.db, "admin@example.com", model.RoleAdmin, true)

	task, err := svc.Create(ctx, CreateTaskInput{Title: "Private"}, owner)
	require.NoError(t, err)

	// Strangers cannot tell someone else's task from a missing one.
	_, err = svc.Get(ctx, task.ID, stranger)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrForbidden)
	_, err = svc.Update(ctx, task.ID, UpdateTaskInput{Title: ptr("mine now")}, stranger)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, task.ID, stranger), apperrors.ErrTaskNotFound)

	got, err := svc.Get(ctx, task.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Title)

	require.NoError(t, svc.Delete(ctx, task.ID, owner))
	_, err = svc.Get(ctx, task.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}

func TestTaskService_ListVisibilityWindow(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	svc := f.taskService(now)
	user := seedUser(t, f.db, "u@example.com", model.RoleCommon, true)

	done, err := svc.Create(ctx, CreateTaskInput{Title: "Done"}, user)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateTaskInput{Title: "Open"}, user)
	require.NoError(t, err)
	_, err = svc.Update(ctx, done.ID, UpdateTaskInput{Status: ptr(model.TaskStatusCompleted)}, user)
	require.NoError(t, err)

	page, err := svc.List(ctx, user, ListTasksInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	later := f.taskService(now.Add(11 * time.Hour))
	page, err = later.List(ctx, user, ListTasksInput{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Open", page.Items[0].Title)

	page, err = later.List(ctx, user, ListTasksInput{IncludeExpired: true})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = later.List(ctx, user, ListTasksInput{Status: "completed", IncludeExpired: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Done", page.Items[0].Title)

	_, err = later.List(ctx, user, ListTasksInput{Status: "bogus"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)
}

func TestTaskService_ListAll(t *testing.T) {
	f := newFixture(t)
	svc := f.taskService(time.Now().UTC())
	alice := seedUser(t, f.db, "alice@example.com", model.RoleCommon, true)
	bob := seedUser(t, f.db, "bob@example.com", model.RoleCommon, true)
	admin := seedUser(t, f.db, "admin@example.com", model.RoleAdmin, true)

	for _, u := range []*model.User{alice, bob} {
		_, err := svc.Create(ctx, CreateTaskInput{Title: "task of " + u.Email}, u)
		require.NoError(t, err)
	}

	_, err := svc.ListAll(ctx, alice, ListTasksInput{})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	page, err := svc.ListAll(ctx, admin, ListTasksInput{PageParams: PageParams{Page: 1, Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalPages)
}

func TestTaskService_CategoryAssignment(t *testing.T) {
	f := newFixture(t)
	svc := f.taskService(time.Now().UTC())
	user := seedUser(t, f.db, "u@example.com", model.RoleCommon, true)
	work := &model.Category{Name: "Work", Color: "#FF0000"}
	require.NoError(t, f.categories.Create(ctx, work))

	task, err := svc.Create(ctx, CreateTaskInput{Title: "Plan", CategoryID: &work.ID}, user)
	require.NoError(t, err)
	require.NotNil(t, task.Category)
	assert.Equal(t, "Work", task.Category.Name)

	cleared, err := svc.Update(ctx, task.ID, UpdateTaskInput{ClearCategory: true}, user)
	require.NoError(t, err)
	assert.Nil(t, cleared.CategoryID)
	assert.Nil(t, cleared.Category)

	var count int64
	require.NoError(t, f.db.Model(&model.Category{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
