package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

// TaskHandler serves task lifecycle endpoints.
type TaskHandler struct {
	svc service.TaskService
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(svc service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// CreateTaskRequest represents a task creation request.
type CreateTaskRequest struct {
	Title            string     `json:"title" validate:"required,max=200"`
	Description      string     `json:"description" validate:"max=5000"`
	Priority         string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate          *time.Time `json:"due_date"`
	CategoryID       *uint      `json:"category_id"`
	AssignedToUserID *uint      `json:"assigned_to_user_id"`
}

// AssignTaskRequest represents an admin task assignment.
type AssignTaskRequest struct {
	CreateTaskRequest
	AssignedToUserID uint `json:"assigned_to_user_id" validate:"required"`
}

// UpdateTaskRequest is a partial update; omitted fields are kept.
type UpdateTaskRequest struct {
	Title         *string    `json:"title" validate:"omitempty,max=200"`
	Description   *string    `json:"description" validate:"omitempty,max=5000"`
	Status        *string    `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority      *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate       *time.Time `json:"due_date"`
	ClearDueDate  bool       `json:"clear_due_date"`
	CategoryID    *uint      `json:"category_id"`
	ClearCategory bool       `json:"clear_category"`
	IsCompleted   *bool      `json:"is_completed"`
}

func (r CreateTaskRequest) input() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:            r.Title,
		Description:      r.Description,
		Priority:         model.TaskPriority(r.Priority),
		DueDate:          utcPtr(r.DueDate),
		CategoryID:       r.CategoryID,
		AssignedToUserID: r.AssignedToUserID,
	}
}

func (r UpdateTaskRequest) input() service.UpdateTaskInput {
	in := service.UpdateTaskInput{
		Title:         r.Title,
		Description:   r.Description,
		DueDate:       utcPtr(r.DueDate),
		ClearDueDate:  r.ClearDueDate,
		CategoryID:    r.CategoryID,
		ClearCategory: r.ClearCategory,
		IsCompleted:   r.IsCompleted,
	}
	if r.Status != nil {
		status := model.TaskStatus(*r.Status)
		in.Status = &status
	}
	if r.Priority != nil {
		priority := model.TaskPriority(*r.Priority)
		in.Priority = &priority
	}
	return in
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func listInput(c echo.Context) (service.ListTasksInput, error) {
	categoryID, err := queryUint(c, "category_id")
	if err != nil {
		return service.ListTasksInput{}, err
	}
	includeExpired, err := queryBool(c, "include_expired")
	if err != nil {
		return service.ListTasksInput{}, err
	}
	params, err := pageParams(c)
	if err != nil {
		return service.ListTasksInput{}, err
	}
	in := service.ListTasksInput{
		Status:     c.QueryParam("status"),
		Priority:   c.QueryParam("priority"),
		CategoryID: categoryID,
		Search:     c.QueryParam("search"),
		PageParams: params,
	}
	if includeExpired != nil {
		in.IncludeExpired = *includeExpired
	}
	return in, nil
}

// ListTasks godoc
// @Summary List own tasks
// @Description Tasks the requester created or was assigned. Completed tasks drop out 10 hours after completion unless include_expired is set.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, in_progress, completed or cancelled"
// @Param priority query string false "low, medium, high or urgent"
// @Param category_id query int false "Category ID"
// @Param search query string false "Title or description contains"
// @Param include_expired query bool false "Include completed tasks past their visibility window"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} service.Page[model.Task]
// @Failure 400 {object} errors.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	in, err := listInput(c)
	if err != nil {
		return err
	}
	page, err := h.svc.List(c.Request().Context(), Requester(c), in)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, page)
}

// History godoc
// @Summary Completed task history
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} service.Page[model.Task]
// @Failure 400 {object} errors.ErrorResponse
// @Router /tasks/history [get]
func (h *TaskHandler) History(c echo.Context) error {
	params, err := pageParams(c)
	if err != nil {
		return err
	}
	page, err := h.svc.List(c.Request().Context(), Requester(c), service.ListTasksInput{
		Status:         string(model.TaskStatusCompleted),
		IncludeExpired: true,
		PageParams:     params,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, page)
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTaskRequest true "Task data"
// @Success 201 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	task, err := h.svc.Create(c.Request().Context(), req.input(), Requester(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, task)
}

// GetTask godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	task, err := h.svc.Get(c.Request().Context(), id, Requester(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTask godoc
// @Summary Update a task
// @Description Setting status to completed (or is_completed to true) stamps the completion time; moving away from completed clears it.
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body UpdateTaskRequest true "Fields to change"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	task, err := h.svc.Update(c.Request().Context(), id, req.input(), Requester(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id, Requester(c)); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignTask godoc
// @Summary Assign a task to a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AssignTaskRequest true "Task data and assignee"
// @Success 201 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/tasks/assign [post]
func (h *TaskHandler) AssignTask(c echo.Context) error {
	var req AssignTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	task, err := h.svc.Assign(c.Request().Context(), service.AssignTaskInput{
		CreateTaskInput:  req.CreateTaskRequest.input(),
		AssignedToUserID: req.AssignedToUserID,
	}, Requester(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, task)
}

// ListAllTasks godoc
// @Summary List every user's tasks
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param priority query string false "Priority filter"
// @Param category_id query int false "Category ID"
// @Param search query string false "Title or description contains"
// @Param include_expired query bool false "Include expired completed tasks"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} service.Page[model.Task]
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/tasks [get]
func (h *TaskHandler) ListAllTasks(c echo.Context) error {
	in, err := listInput(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListAll(c.Request().Context(), Requester(c), in)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, page)
}
