package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"projectboard/internal/models"
)

// UserRepository handles user accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("name").Find(&users).Error
	return users, wrap("list users", err)
}

func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, wrap("get user", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, wrap("get user by email", err)
	}
	return &u, nil
}

// FindByIDs loads every user in ids and fails with ErrNotFound if any is missing.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, wrap("find users", err)
	}
	if len(users) != len(unique) {
		return nil, fmt.Errorf("find users: %w", ErrNotFound)
	}
	return users, nil
}

// Create inserts u; a duplicate email yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
		return wrap("check email", err)
	}
	if n > 0 {
		return fmt.Errorf("create user: %w", ErrConflict)
	}
	return wrap("create user", r.db.WithContext(ctx).Create(u).Error)
}

// UpdateProfile saves name, job title and avatar URL.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *models.User) error {
	err := r.db.WithContext(ctx).Model(u).Select("name", "job_title", "avatar_url").Updates(u).Error
	return wrap("update profile", err)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return wrap("update password", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("update password", gorm.ErrRecordNotFound)
	}
	return nil
}
