package repository

import (
	"context"

	"gorm.io/gorm"

	"projectboard/internal/models"
)

// CommentRepository handles task comments.
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) ListByTask(ctx context.Context, taskID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("task_id = ?", taskID).
		Order("created_at").
		Find(&comments).Error
	return comments, wrap("list comments", err)
}

func (r *CommentRepository) Get(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&c, "id = ?", id).Error; err != nil {
		return nil, wrap("get comment", err)
	}
	return &c, nil
}

func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) error {
	return wrap("create comment", r.db.WithContext(ctx).Omit("Author").Create(c).Error)
}

func (r *CommentRepository) UpdateContent(ctx context.Context, c *models.Comment) error {
	return wrap("update comment", r.db.WithContext(ctx).Model(c).Update("content", c.Content).Error)
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id)
	if res.Error != nil {
		return wrap("delete comment", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("delete comment", gorm.ErrRecordNotFound)
	}
	return nil
}
