package repository

import (
	"context"

	"gorm.io/gorm"

	"projectboard/internal/models"
)

// TeamRepository handles CRUD for teams.
type TeamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) List(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Projects").
		Order("name").
		Find(&teams).Error
	return teams, wrap("list teams", err)
}

func (r *TeamRepository) Get(ctx context.Context, id string) (*models.Team, error) {
	var t models.Team
	err := r.db.WithContext(ctx).Preload("Members").Preload("Projects").First(&t, "id = ?", id).Error
	if err != nil {
		return nil, wrap("get team", err)
	}
	return &t, nil
}

func (r *TeamRepository) Create(ctx context.Context, t *models.Team) error {
	return wrap("create team", r.db.WithContext(ctx).Omit("Members.*", "Projects.*").Create(t).Error)
}

// Update saves name and description; non-nil members or projects replace the current sets.
func (r *TeamRepository) Update(ctx context.Context, t *models.Team, members []models.User, projects []models.Project) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(t).Select("name", "description").Updates(t).Error; err != nil {
			return wrap("update team", err)
		}
		if members != nil {
			if err := tx.Model(t).Association("Members").Replace(members); err != nil {
				return wrap("replace team members", err)
			}
			t.Members = members
		}
		if projects != nil {
			if err := tx.Model(t).Association("Projects").Replace(projects); err != nil {
				return wrap("replace team projects", err)
			}
			t.Projects = projects
		}
		return nil
	})
}

func (r *TeamRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Team{}, "id = ?", id)
	if res.Error != nil {
		return wrap("delete team", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("delete team", gorm.ErrRecordNotFound)
	}
	return nil
}
