package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "taskflow/internal/errors"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// CreateTaskInput is a validated request to create a task.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    model.TaskPriority
	DueDate     *time.Time
	CategoryID  *uint
	// AssignedToUserID defaults to the requester.
	AssignedToUserID *uint
}

// AssignTaskInput is the admin-assignment path: AssignedToUserID is required.
type AssignTaskInput struct {
	CreateTaskInput
	AssignedToUserID uint
}

// UpdateTaskInput is a partial update. Nil fields are left alone.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Status        *model.TaskStatus
	Priority      *model.TaskPriority
	DueDate       *time.Time
	ClearDueDate  bool
	CategoryID    *uint
	ClearCategory bool
	IsCompleted   *bool
}

// ListTasksInput filters task listings.
type ListTasksInput struct {
	Status         string
	Priority       string
	CategoryID     *uint
	Search         string
	IncludeExpired bool
	PageParams
}

// TaskService is the task lifecycle engine.
type TaskService interface {
	Create(ctx context.Context, input CreateTaskInput, requester *model.User) (*model.Task, error)
	Assign(ctx context.Context, input AssignTaskInput, requester *model.User) (*model.Task, error)
	Get(ctx context.Context, id uint, requester *model.User) (*model.Task, error)
	Update(ctx context.Context, id uint, patch UpdateTaskInput, requester *model.User) (*model.Task, error)
	Delete(ctx context.Context, id uint, requester *model.User) error
	List(ctx context.Context, requester *model.User, input ListTasksInput) (*Page[model.Task], error)
	ListAll(ctx context.Context, requester *model.User, input ListTasksInput) (*Page[model.Task], error)
	MarkOverdue(ctx context.Context) (int64, error)
}

type taskService struct {
	tasks      repository.TaskRepository
	users      repository.UserRepository
	categories repository.CategoryRepository
	now        func() time.Time
}

// NewTaskService creates a new task service.
func NewTaskService(tasks repository.TaskRepository, users repository.UserRepository, categories repository.CategoryRepository) TaskService {
	return &taskService{
		tasks:      tasks,
		users:      users,
		categories: categories,
		now:        utcNow,
	}
}

// Create persists a new pending task. Assigning to someone else requires CanAssignTasks.
func (s *taskService) Create(ctx context.Context, input CreateTaskInput, requester *model.User) (*model.Task, error) {
	perms := permissionsOf(requester)
	if !perms.CanCreateTasks {
		return nil, apperrors.ErrPermissionDenied
	}

	assignee := requester.ID
	if input.AssignedToUserID != nil && *input.AssignedToUserID != requester.ID {
		if !perms.CanAssignTasks {
			return nil, apperrors.ErrPermissionDenied
		}
		if err := s.ensureAssignable(ctx, *input.AssignedToUserID); err != nil {
			return nil, err
		}
		assignee = *input.AssignedToUserID
	}

	if perms.MaxActiveTasks > 0 {
		active, err := s.tasks.Count(ctx, repository.TaskCountFilter{CreatorID: &requester.ID, ActiveOnly: true})
		if err != nil {
			return nil, fmt.Errorf("count active tasks: %w", err)
		}
		if active >= int64(perms.MaxActiveTasks) {
			return nil, apperrors.ErrTaskLimitReached
		}
	}

	task, err := s.build(ctx, input, requester, assignee)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Assign creates a task on behalf of another user and stamps AssignedAt.
func (s *taskService) Assign(ctx context.Context, input AssignTaskInput, requester *model.User) (*model.Task, error) {
	if !permissionsOf(requester).CanAssignTasks {
		return nil, apperrors.ErrPermissionDenied
	}
	if err := s.ensureAssignable(ctx, input.AssignedToUserID); err != nil {
		return nil, err
	}

	task, err := s.build(ctx, input.CreateTaskInput, requester, input.AssignedToUserID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	task.AssignedAt = &now

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("assign task: %w", err)
	}
	return task, nil
}

func (s *taskService) build(ctx context.Context, input CreateTaskInput, requester *model.User, assignee uint) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.ErrTitleRequired
	}
	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.ErrInvalidPriority
	}
	var category *model.Category
	if input.CategoryID != nil {
		found, err := s.ensureCategory(ctx, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		category = found
	}

	return &model.Task{
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		Status:           model.TaskStatusPending,
		Priority:         priority,
		DueDate:          input.DueDate,
		CategoryID:       input.CategoryID,
		UserID:           requester.ID,
		AssignedToUserID: &assignee,
		AssignedByName:   requester.DisplayName(),
		Category:         category,
	}, nil
}

func (s *taskService) Get(ctx context.Context, id uint, requester *model.User) (*model.Task, error) {
	return s.fetchOwned(ctx, id, requester)
}

// Update applies patch with last-write-wins semantics and keeps the
// completion and overdue metadata consistent with the resulting status.
func (s *taskService) Update(ctx context.Context, id uint, patch UpdateTaskInput, requester *model.User) (*model.Task, error) {
	task, err := s.fetchOwned(ctx, id, requester)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperrors.ErrInvalidStatus
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, apperrors.ErrInvalidPriority
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperrors.ErrTitleRequired
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	switch {
	case patch.ClearDueDate:
		task.DueDate = nil
	case patch.DueDate != nil:
		task.DueDate = patch.DueDate
	}
	switch {
	case patch.ClearCategory:
		task.CategoryID = nil
		task.Category = nil
	case patch.CategoryID != nil:
		category, err := s.ensureCategory(ctx, *patch.CategoryID)
		if err != nil {
			return nil, err
		}
		task.CategoryID = patch.CategoryID
		task.Category = category
	}

	now := s.now()
	applyTransition(task, patch, now)
	task.RefreshOverdue(now)

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// applyTransition resolves the status part of a patch:
//
//	status=completed          -> completed, stamps completion and visibility
//	isCompleted=false         -> pending, clears completion and visibility
//	status=other              -> other, clears completion if it was completed
//	isCompleted=true (alone)  -> completed
func applyTransition(task *model.Task, patch UpdateTaskInput, now time.Time) {
	switch {
	case patch.Status != nil && *patch.Status == model.TaskStatusCompleted:
		task.MarkCompleted(now)
	case patch.IsCompleted != nil && !*patch.IsCompleted:
		task.Reopen(model.TaskStatusPending)
	case patch.Status != nil:
		if task.Status == model.TaskStatusCompleted || task.IsCompleted {
			task.Reopen(*patch.Status)
		} else {
			task.Status = *patch.Status
		}
	case patch.IsCompleted != nil && *patch.IsCompleted:
		task.MarkCompleted(now)
	}
}

func (s *taskService) Delete(ctx context.Context, id uint, requester *model.User) error {
	task, err := s.fetchOwned(ctx, id, requester)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, task); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// List returns the requester's tasks (created or assigned).
func (s *taskService) List(ctx context.Context, requester *model.User, input ListTasksInput) (*Page[model.Task], error) {
	return s.list(ctx, &requester.ID, input)
}

// ListAll is the admin overview across every user.
func (s *taskService) ListAll(ctx context.Context, requester *model.User, input ListTasksInput) (*Page[model.Task], error) {
	if !permissionsOf(requester).CanViewAllTasks {
		return nil, apperrors.ErrPermissionDenied
	}
	return s.list(ctx, nil, input)
}

func (s *taskService) list(ctx context.Context, ownerID *uint, input ListTasksInput) (*Page[model.Task], error) {
	filter := repository.TaskFilter{
		OwnerID:        ownerID,
		CategoryID:     input.CategoryID,
		Search:         strings.TrimSpace(input.Search),
		IncludeExpired: input.IncludeExpired,
		Now:            s.now(),
	}
	if input.Status != "" {
		status := model.TaskStatus(input.Status)
		if !status.Valid() {
			return nil, apperrors.ErrInvalidStatus
		}
		filter.Status = &status
	}
	if input.Priority != "" {
		priority := model.TaskPriority(input.Priority)
		if !priority.Valid() {
			return nil, apperrors.ErrInvalidPriority
		}
		filter.Priority = &priority
	}
	page, limit, offset := input.normalize()
	filter.Offset, filter.Limit = offset, limit

	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return newPage(tasks, total, page, limit), nil
}

// MarkOverdue flags every pending task whose due date has passed.
func (s *taskService) MarkOverdue(ctx context.Context) (int64, error) {
	affected, err := s.tasks.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return affected, nil
}

// fetchOwned loads a task the requester may act on. Users with
// CanViewAllTasks reach any task; everyone else only their own.
func (s *taskService) fetchOwned(ctx context.Context, id uint, requester *model.User) (*model.Task, error) {
	var (
		task *model.Task
		err  error
	)
	admin := permissionsOf(requester).CanViewAllTasks
	if admin {
		task, err = s.tasks.FindByID(ctx, id)
	} else {
		task, err = s.tasks.FindByOwnerOrAssignee(ctx, id, requester.ID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

func (s *taskService) ensureAssignable(ctx context.Context, userID uint) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("find assignee: %w", err)
	}
	if !user.IsActive {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (s *taskService) ensureCategory(ctx context.Context, id uint) (*model.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return category, nil
}
