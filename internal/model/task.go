package model

import "time"

// VisibilityWindow is how long a completed task stays in default listings.
const VisibilityWindow = 10 * time.Hour

// TaskStatus represents the status of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskPriority represents how urgent a task is.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is a unit of work owned jointly by its creator and its assignee.
type Task struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	Title        string       `json:"title" gorm:"size:255;not null"`
	Description  string       `json:"description,omitempty" gorm:"type:text"`
	Status       TaskStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Priority     TaskPriority `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	IsCompleted  bool         `json:"is_completed" gorm:"not null;default:false"`
	DueDate      *time.Time   `json:"due_date,omitempty" gorm:"index"`
	IsOverdue    bool         `json:"is_overdue" gorm:"not null;default:false;index"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	VisibleUntil *time.Time   `json:"visible_until,omitempty" gorm:"index"`
	IsHidden     bool         `json:"-" gorm:"not null;default:false;index"`

	UserID           uint       `json:"user_id" gorm:"not null;index"`
	AssignedToUserID *uint      `json:"assigned_to_user_id" gorm:"index"`
	AssignedAt       *time.Time `json:"assigned_at,omitempty"`
	AssignedByName   string     `json:"assigned_by_name,omitempty" gorm:"size:255"`

	CategoryID *uint `json:"category_id,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Creator    *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	AssignedTo *User     `json:"-" gorm:"foreignKey:AssignedToUserID;constraint:OnDelete:SET NULL"`
	Category   *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
}

// MarkCompleted stamps completion metadata at now.
func (t *Task) MarkCompleted(now time.Time) {
	visibleUntil := now.Add(VisibilityWindow)
	t.Status = TaskStatusCompleted
	t.IsCompleted = true
	t.CompletedAt = &now
	t.VisibleUntil = &visibleUntil
	t.IsOverdue = false
	t.IsHidden = false
}

// Reopen clears completion metadata and sets status.
func (t *Task) Reopen(status TaskStatus) {
	t.Status = status
	t.IsCompleted = false
	t.CompletedAt = nil
	t.VisibleUntil = nil
	t.IsHidden = false
}

// RefreshOverdue recomputes IsOverdue so that it only holds for pending
// tasks whose due date has passed.
func (t *Task) RefreshOverdue(now time.Time) {
	if t.Status != TaskStatusPending || t.DueDate == nil || !t.DueDate.Before(now) {
		t.IsOverdue = false
	}
}

// FinishedAt is the best known completion instant.
func (t *Task) FinishedAt() time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.UpdatedAt
}
