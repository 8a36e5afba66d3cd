package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskStatus represents the board column a task sits in
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "to-do"
	StatusInProgress TaskStatus = "in-progress"
	StatusInReview   TaskStatus = "in-review"
	StatusQA         TaskStatus = "qa"
	StatusCompleted  TaskStatus = "completed"
	StatusPostponed  TaskStatus = "postponed"
	StatusCanceled   TaskStatus = "canceled"
)

// TaskStatuses lists every status in board column order.
var TaskStatuses = []TaskStatus{
	StatusBacklog,
	StatusTodo,
	StatusInProgress,
	StatusInReview,
	StatusQA,
	StatusCompleted,
	StatusPostponed,
	StatusCanceled,
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Closed reports whether a task in this status no longer counts as open work.
func (s TaskStatus) Closed() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// TaskPriorities lists every priority from lowest to highest.
var TaskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	for _, known := range TaskPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// Tag is a colored label on a task
type Tag struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	TaskID string `json:"-" gorm:"index;not null"`
	Text   string `json:"text" gorm:"not null"`
	Color  string `json:"color"`
}

// Subtask is a checklist item inside a task
type Subtask struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TaskID    string    `json:"taskId" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"not null"`
	Completed bool      `json:"completed" gorm:"default:false"`
	Assignees []User    `json:"assignees" gorm:"many2many:subtask_assignees"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task represents a task in the system
type Task struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status" gorm:"not null;default:'to-do';index"`
	Priority    TaskPriority   `json:"priority" gorm:"not null;default:'medium'"`
	Position    int            `json:"position" gorm:"default:0"`
	StartDate   *time.Time     `json:"startDate"`
	DueDate     *time.Time     `json:"dueDate" gorm:"index"`
	ProjectID   *string        `json:"projectId" gorm:"column:project_id;index"`
	Project     *Project       `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	CreatorID   string         `json:"creatorId" gorm:"column:creator_id;index"`
	Creator     *User          `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Assignees   []User         `json:"assignees" gorm:"many2many:task_assignees"`
	Tags        []Tag          `json:"tags" gorm:"constraint:OnDelete:CASCADE"`
	Subtasks    []Subtask      `json:"subtasks,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Comments    []Comment      `json:"comments,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Attachments []Attachment   `json:"attachments,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}

// ProjectRef returns the id of the project the task belongs to, or "" for none.
// An id set on the task wins over a preloaded association.
func (t Task) ProjectRef() string {
	if t.ProjectID != nil && *t.ProjectID != "" {
		return *t.ProjectID
	}
	if t.Project != nil {
		return t.Project.ID
	}
	return ""
}

// Overdue reports whether the task is past its due date and still open.
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Status.Closed()
}
