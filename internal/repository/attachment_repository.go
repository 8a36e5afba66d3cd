package repository

import (
	"context"

	"gorm.io/gorm"

	"projectboard/internal/models"
)

// AttachmentRepository handles attachment metadata; file bytes live in blob storage.
type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) ListByTask(ctx context.Context, taskID string) ([]models.Attachment, error) {
	var list []models.Attachment
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at").Find(&list).Error
	return list, wrap("list attachments", err)
}

func (r *AttachmentRepository) Get(ctx context.Context, id string) (*models.Attachment, error) {
	var a models.Attachment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, wrap("get attachment", err)
	}
	return &a, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	return wrap("create attachment", r.db.WithContext(ctx).Create(a).Error)
}

func (r *AttachmentRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Attachment{}, "id = ?", id)
	if res.Error != nil {
		return wrap("delete attachment", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("delete attachment", gorm.ErrRecordNotFound)
	}
	return nil
}
