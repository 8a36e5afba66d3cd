package models

import (
	"time"

	"gorm.io/gorm"
)

// ProjectStatus represents the lifecycle stage of a project
type ProjectStatus string

const (
	ProjectNotStarted ProjectStatus = "not-started"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectOnHold     ProjectStatus = "on-hold"
	ProjectCompleted  ProjectStatus = "completed"
)

// Valid reports whether s is one of the known project statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectNotStarted, ProjectInProgress, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

// Project groups tasks under a short key such as "WEB" or "OPS"
type Project struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"not null"`
	Key         string         `json:"key" gorm:"uniqueIndex;not null"`
	Description string         `json:"description"`
	Status      ProjectStatus  `json:"status" gorm:"not null;default:'not-started'"`
	StartDate   *time.Time     `json:"startDate"`
	EndDate     *time.Time     `json:"endDate"`
	Budget      float64        `json:"budget"`
	Spent       float64        `json:"spent"`
	OwnerID     string         `json:"ownerId" gorm:"index"`
	Members     []User         `json:"members" gorm:"many2many:project_members"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for Project Model
func (Project) TableName() string {
	return "projects"
}

// Team is a named group of members working on a set of projects
type Team struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	Members     []User         `json:"members" gorm:"many2many:team_members"`
	Projects    []Project      `json:"projects" gorm:"many2many:team_projects"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for Team Model
func (Team) TableName() string {
	return "teams"
}

// All returns every model that must be migrated.
func All() []any {
	return []any{
		&User{},
		&Project{},
		&Team{},
		&Task{},
		&Tag{},
		&Subtask{},
		&Comment{},
		&Attachment{},
	}
}
