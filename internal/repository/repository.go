// Package repository wraps gorm access to every persisted entity.
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// wrap annotates err with op and maps gorm's not-found error to ErrNotFound.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Page describes an offset window over a list.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to sane bounds: page >= 1, 1 <= limit <= 100.
func (p Page) Normalize(defaultLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Repositories bundles every repository over one database handle.
type Repositories struct {
	Tasks       *TaskRepository
	Projects    *ProjectRepository
	Teams       *TeamRepository
	Users       *UserRepository
	Comments    *CommentRepository
	Attachments *AttachmentRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Tasks:       NewTaskRepository(db),
		Projects:    NewProjectRepository(db),
		Teams:       NewTeamRepository(db),
		Users:       NewUserRepository(db),
		Comments:    NewCommentRepository(db),
		Attachments: NewAttachmentRepository(db),
	}
}
