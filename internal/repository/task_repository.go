package repository

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"projectboard/internal/models"
)

// TaskFilter narrows a task listing. Empty fields are not applied.
type TaskFilter struct {
	Status     models.TaskStatus
	ProjectID  string
	CreatorID  string
	AssigneeID string
	Ascending  bool
	Page
}

// TaskRepository handles CRUD for tasks and their subtasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) filtered(ctx context.Context, f TaskFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Task{})
	if f.Status != "" {
		q = q.Where("tasks.status = ?", f.Status)
	}
	if f.ProjectID != "" {
		q = q.Where("tasks.project_id = ?", f.ProjectID)
	}
	if f.CreatorID != "" {
		q = q.Where("tasks.creator_id = ?", f.CreatorID)
	}
	if f.AssigneeID != "" {
		q = q.Where("tasks.id IN (?)",
			r.db.Table("task_assignees").Select("task_id").Where("user_id = ?", f.AssigneeID))
	}
	return q
}

// List returns one page of tasks matching f and the total match count.
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]models.Task, int64, error) {
	f.Page = f.Page.Normalize(20)

	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, wrap("count tasks", err)
	}

	order := "tasks.created_at desc"
	if f.Ascending {
		order = "tasks.created_at asc"
	}
	var tasks []models.Task
	err := r.filtered(ctx, f).
		Preload("Assignees").
		Preload("Tags").
		Order(order).
		Limit(f.Limit).
		Offset(f.Offset()).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, wrap("list tasks", err)
	}
	return tasks, total, nil
}

// All returns every task with the associations search and the board need.
func (r *TaskRepository) All(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Preload("Assignees").
		Preload("Tags").
		Preload("Project").
		Order("status, position, created_at").
		Find(&tasks).Error
	if err != nil {
		return nil, wrap("list all tasks", err)
	}
	return tasks, nil
}

// Get loads a task with all of its associations.
func (r *TaskRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Project").
		Preload("Assignees").
		Preload("Tags").
		Preload("Subtasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Subtasks.Assignees").
		Preload("Attachments").
		First(&task, "id = ?", id).Error
	if err != nil {
		return nil, wrap("get task", err)
	}
	return &task, nil
}

// NextPosition returns the position after the last task in status.
func (r *TaskRepository) NextPosition(ctx context.Context, status models.TaskStatus) (int, error) {
	var max sql.NullInt64
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("status = ?", status).
		Select("MAX(position)").
		Row().Scan(&max)
	if err != nil {
		return 0, wrap("next position", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// Create inserts task together with its tags and assignee links. Assignees
// must already exist; they are linked, not upserted.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	err := r.db.WithContext(ctx).Omit("Assignees.*", "Project", "Creator").Create(task).Error
	return wrap("create task", err)
}

// Update saves the task's own columns. When assignees or tags are non-nil
// they replace the current set.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task, assignees []models.User, tags []models.Tag) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(task).
			Select("title", "description", "status", "priority", "position", "start_date", "due_date", "project_id").
			Updates(task).Error
		if err != nil {
			return wrap("update task", err)
		}
		if assignees != nil {
			if err := tx.Model(task).Association("Assignees").Replace(assignees); err != nil {
				return wrap("replace assignees", err)
			}
			task.Assignees = assignees
		}
		if tags != nil {
			if err := tx.Where("task_id = ?", task.ID).Delete(&models.Tag{}).Error; err != nil {
				return wrap("clear tags", err)
			}
			for i := range tags {
				tags[i].ID = 0
				tags[i].TaskID = task.ID
			}
			if len(tags) > 0 {
				if err := tx.Create(&tags).Error; err != nil {
					return wrap("create tags", err)
				}
			}
			task.Tags = tags
		}
		return nil
	})
}

// UpdateStatus moves a task to status at position. Tasks already at or past
// position in that column shift down one, so the moved task sorts strictly
// before the one it lands on.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status models.TaskStatus, position int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": status, "position": position, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Task{}).
			Where("status = ? AND position >= ? AND id <> ?", status, position, id).
			UpdateColumn("position", gorm.Expr("position + 1")).Error
	})
	if err != nil {
		return wrap("update task status", err)
	}
	return nil
}

// Delete soft-deletes a task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if res.Error != nil {
		return wrap("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("delete task", gorm.ErrRecordNotFound)
	}
	return nil
}

// StatusCounts counts tasks per status, optionally only those assigned to assigneeID.
func (r *TaskRepository) StatusCounts(ctx context.Context, assigneeID string) (map[models.TaskStatus]int64, error) {
	type row struct {
		Status models.TaskStatus
		Count  int64
	}
	var rows []row
	err := r.filtered(ctx, TaskFilter{AssigneeID: assigneeID}).
		Select("tasks.status as status, COUNT(*) as count").
		Group("tasks.status").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("count tasks by status", err)
	}
	counts := make(map[models.TaskStatus]int64, len(models.TaskStatuses))
	for _, s := range models.TaskStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// PriorityCounts counts open tasks per priority.
func (r *TaskRepository) PriorityCounts(ctx context.Context) (map[models.TaskPriority]int64, error) {
	type row struct {
		Priority models.TaskPriority
		Count    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("status NOT IN ?", []models.TaskStatus{models.StatusCompleted, models.StatusCanceled}).
		Select("priority, COUNT(*) as count").
		Group("priority").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("count tasks by priority", err)
	}
	counts := make(map[models.TaskPriority]int64, len(models.TaskPriorities))
	for _, p := range models.TaskPriorities {
		counts[p] = 0
	}
	for _, row := range rows {
		counts[row.Priority] = row.Count
	}
	return counts, nil
}

// CountOverdue counts open tasks whose due date is before now.
func (r *TaskRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Where("status NOT IN ?", []models.TaskStatus{models.StatusCompleted, models.StatusCanceled}).
		Count(&n).Error
	return n, wrap("count overdue tasks", err)
}

// Subtasks

func (r *TaskRepository) ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error) {
	var subtasks []models.Subtask
	err := r.db.WithContext(ctx).
		Preload("Assignees").
		Where("task_id = ?", taskID).
		Order("created_at").
		Find(&subtasks).Error
	return subtasks, wrap("list subtasks", err)
}

func (r *TaskRepository) GetSubtask(ctx context.Context, taskID, id string) (*models.Subtask, error) {
	var s models.Subtask
	err := r.db.WithContext(ctx).Preload("Assignees").
		First(&s, "id = ? AND task_id = ?", id, taskID).Error
	if err != nil {
		return nil, wrap("get subtask", err)
	}
	return &s, nil
}

func (r *TaskRepository) CreateSubtask(ctx context.Context, s *models.Subtask) error {
	return wrap("create subtask", r.db.WithContext(ctx).Omit("Assignees.*").Create(s).Error)
}

// SaveSubtask updates title and completion; non-nil assignees replace the set.
func (r *TaskRepository) SaveSubtask(ctx context.Context, s *models.Subtask, assignees []models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(s).Select("title", "completed").Updates(s).Error; err != nil {
			return wrap("update subtask", err)
		}
		if assignees != nil {
			if err := tx.Model(s).Association("Assignees").Replace(assignees); err != nil {
				return wrap("replace subtask assignees", err)
			}
			s.Assignees = assignees
		}
		return nil
	})
}

func (r *TaskRepository) DeleteSubtask(ctx context.Context, taskID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND task_id = ?", id, taskID).Delete(&models.Subtask{})
	if res.Error != nil {
		return wrap("delete subtask", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("delete subtask", gorm.ErrRecordNotFound)
	}
	return nil
}
