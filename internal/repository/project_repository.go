package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"projectboard/internal/models"
)

// ProjectRepository handles CRUD for projects.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.WithContext(ctx).Preload("Members").Order("created_at desc").Find(&projects).Error
	return projects, wrap("list projects", err)
}

func (r *ProjectRepository) Get(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).Preload("Members").First(&p, "id = ?", id).Error; err != nil {
		return nil, wrap("get project", err)
	}
	return &p, nil
}

// KeyTaken reports whether another project (not exceptID) already uses key.
func (r *ProjectRepository) KeyTaken(ctx context.Context, key, exceptID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Unscoped().Model(&models.Project{}).Where("UPPER(key) = ?", strings.ToUpper(key))
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, wrap("check project key", err)
	}
	return n > 0, nil
}

func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	return wrap("create project", r.db.WithContext(ctx).Omit("Members.*").Create(p).Error)
}

// Update saves the project's columns; non-nil members replace the member set.
func (r *ProjectRepository) Update(ctx context.Context, p *models.Project, members []models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(p).
			Select("name", "key", "description", "status", "start_date", "end_date", "budget", "spent").
			Updates(p).Error
		if err != nil {
			return wrap("update project", err)
		}
		if members != nil {
			if err := tx.Model(p).Association("Members").Replace(members); err != nil {
				return wrap("replace project members", err)
			}
			p.Members = members
		}
		return nil
	})
}

// Delete soft-deletes the project and detaches its tasks.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Project{}, "id = ?", id)
		if res.Error != nil {
			return wrap("delete project", res.Error)
		}
		if res.RowsAffected == 0 {
			return wrap("delete project", gorm.ErrRecordNotFound)
		}
		err := tx.Model(&models.Task{}).Where("project_id = ?", id).Update("project_id", nil).Error
		return wrap("detach project tasks", err)
	})
}

// BudgetTotals sums budget and spent over all projects.
func (r *ProjectRepository) BudgetTotals(ctx context.Context) (budget, spent float64, count int64, err error) {
	var row struct {
		Budget float64
		Spent  float64
		Count  int64
	}
	err = r.db.WithContext(ctx).Model(&models.Project{}).
		Select("COALESCE(SUM(budget), 0) as budget, COALESCE(SUM(spent), 0) as spent, COUNT(*) as count").
		Scan(&row).Error
	if err != nil {
		return 0, 0, 0, wrap("sum project budgets", err)
	}
	return row.Budget, row.Spent, row.Count, nil
}

// FindByIDs loads every project in ids and fails with ErrNotFound if any is missing.
func (r *ProjectRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Project, error) {
	if len(ids) == 0 {
		return []models.Project{}, nil
	}
	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	var projects []models.Project
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&projects).Error; err != nil {
		return nil, wrap("find projects", err)
	}
	if len(projects) != len(unique) {
		return nil, fmt.Errorf("find projects: %w", ErrNotFound)
	}
	return projects, nil
}
