package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskflow/internal/model"
)

// TaskFilter narrows task listings. A nil OwnerID lists every user's tasks.
type TaskFilter struct {
	OwnerID        *uint
	Status         *model.TaskStatus
	Priority       *model.TaskPriority
	CategoryID     *uint
	Search         string
	IncludeExpired bool
	Now            time.Time
	Offset         int
	Limit          int
}

// TaskCountFilter selects tasks for Count.
type TaskCountFilter struct {
	CreatorID *uint
	// ActiveOnly keeps pending and in-progress tasks.
	ActiveOnly  bool
	OverdueOnly bool
	// ExpiredAt keeps completed tasks that are hidden or whose visibility window ended before it.
	ExpiredAt *time.Time
}

// TaskRepository defines task persistence operations.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id uint) (*model.Task, error)
	FindByOwnerOrAssignee(ctx context.Context, id, userID uint) (*model.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]model.Task, int64, error)
	Count(ctx context.Context, filter TaskCountFilter) (int64, error)
	ListForUserSince(ctx context.Context, userID uint, since time.Time) ([]model.Task, error)
	ListCompletedSince(ctx context.Context, userID uint, since time.Time) ([]model.Task, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	HideExpired(ctx context.Context, now time.Time) (int64, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create inserts task. Associations are never written through a task.
func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
}

// Update writes every column of task (last write wins).
func (r *taskRepository) Update(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(task).Error
}

func (r *taskRepository) Delete(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Delete(task).Error
}

func (r *taskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Category").First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByOwnerOrAssignee finds a task the user created or was assigned.
func (r *taskRepository) FindByOwnerOrAssignee(ctx context.Context, id, userID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Category").
		Where("id = ?", id).
		Where("user_id = ? OR assigned_to_user_id = ?", userID, userID).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns one page of tasks, newest first, together with the total match count.
func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.OwnerID != nil {
		q = q.Where("user_id = ? OR assigned_to_user_id = ?", *filter.OwnerID, *filter.OwnerID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", *filter.Priority)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}
	if !filter.IncludeExpired {
		now := filter.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		q = q.Where("status <> ? OR (is_hidden = ? AND (visible_until IS NULL OR visible_until >= ?))",
			model.TaskStatusCompleted, false, now)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []model.Task
	if err := q.Preload("Category").
		Order("created_at DESC").Order("id DESC").
		Offset(filter.Offset).Limit(filter.Limit).
		Find(&tasks).Error; err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *taskRepository) Count(ctx context.Context, filter TaskCountFilter) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.CreatorID != nil {
		q = q.Where("user_id = ?", *filter.CreatorID)
	}
	if filter.ActiveOnly {
		q = q.Where("status IN ?", []model.TaskStatus{model.TaskStatusPending, model.TaskStatusInProgress})
	}
	if filter.OverdueOnly {
		q = q.Where("is_overdue = ?", true)
	}
	if filter.ExpiredAt != nil {
		q = q.Where("status = ? AND (is_hidden = ? OR visible_until < ?)",
			model.TaskStatusCompleted, true, *filter.ExpiredAt)
	}

	var count int64
	err := q.Count(&count).Error
	return count, err
}

// ListForUserSince returns the user's tasks created or completed at or after since.
func (r *taskRepository) ListForUserSince(ctx context.Context, userID uint, since time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Preload("Category").
		Where("user_id = ? OR assigned_to_user_id = ?", userID, userID).
		Where("created_at >= ? OR completed_at >= ?", since, since).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListCompletedSince returns the user's tasks completed at or after since.
func (r *taskRepository) ListCompletedSince(ctx context.Context, userID uint, since time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? OR assigned_to_user_id = ?", userID, userID).
		Where("status = ? AND completed_at >= ?", model.TaskStatusCompleted, since).
		Order("completed_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkOverdue flags pending tasks whose due date passed. Already flagged rows
// are not touched, so a repeated run affects zero rows.
func (r *taskRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("due_date < ? AND status = ? AND is_overdue = ?", now, model.TaskStatusPending, false).
		Update("is_overdue", true)
	return res.RowsAffected, res.Error
}

// HideExpired hides completed tasks whose visibility window ended. VisibleUntil is kept.
func (r *taskRepository) HideExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("status = ? AND is_hidden = ? AND visible_until < ?", model.TaskStatusCompleted, false, now).
		Update("is_hidden", true)
	return res.RowsAffected, res.Error
}
