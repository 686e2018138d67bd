package service

import (
	"context"

	"taskflow/internal/model"
)

// Task event types pushed to connected clients.
const (
	EventTaskCreated   = "task.created"
	EventTaskAssigned  = "task.assigned"
	EventTaskUpdated   = "task.updated"
	EventTaskCompleted = "task.completed"
	EventTaskDeleted   = "task.deleted"
)

// TaskEvents delivers task changes to the users involved.
type TaskEvents interface {
	Publish(userIDs []uint, eventType string, data interface{})
}

// TaskDeleted is the payload of EventTaskDeleted.
type TaskDeleted struct {
	ID uint `json:"id"`
}

type publishingTaskService struct {
	TaskService
	events TaskEvents
}

// WithTaskEvents publishes every successful task change to the task's creator
// and assignee. Reads and the overdue sweep pass straight through.
func WithTaskEvents(inner TaskService, events TaskEvents) TaskService {
	if events == nil {
		return inner
	}
	return &publishingTaskService{TaskService: inner, events: events}
}

func (s *publishingTaskService) Create(ctx context.Context, input CreateTaskInput, requester *model.User) (*model.Task, error) {
	task, err := s.TaskService.Create(ctx, input, requester)
	if err != nil {
		return nil, err
	}
	s.events.Publish(recipients(task), EventTaskCreated, task)
	return task, nil
}

func (s *publishingTaskService) Assign(ctx context.Context, input AssignTaskInput, requester *model.User) (*model.Task, error) {
	task, err := s.TaskService.Assign(ctx, input, requester)
	if err != nil {
		return nil, err
	}
	s.events.Publish(recipients(task), EventTaskAssigned, task)
	return task, nil
}

func (s *publishingTaskService) Update(ctx context.Context, id uint, patch UpdateTaskInput, requester *model.User) (*model.Task, error) {
	before, err := s.TaskService.Get(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	wasCompleted := before.IsCompleted

	task, err := s.TaskService.Update(ctx, id, patch, requester)
	if err != nil {
		return nil, err
	}
	eventType := EventTaskUpdated
	if task.IsCompleted && !wasCompleted {
		eventType = EventTaskCompleted
	}
	s.events.Publish(recipients(task), eventType, task)
	return task, nil
}

func (s *publishingTaskService) Delete(ctx context.Context, id uint, requester *model.User) error {
	task, err := s.TaskService.Get(ctx, id, requester)
	if err != nil {
		return err
	}
	if err := s.TaskService.Delete(ctx, id, requester); err != nil {
		return err
	}
	s.events.Publish(recipients(task), EventTaskDeleted, TaskDeleted{ID: id})
	return nil
}

func recipients(task *model.Task) []uint {
	ids := []uint{task.UserID}
	if task.AssignedToUserID != nil && *task.AssignedToUserID != task.UserID {
		ids = append(ids, *task.AssignedToUserID)
	}
	return ids
}
