package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"projectboard/internal/cache"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/repository"
)

// TagInput is a tag as sent by clients
type TagInput struct {
	Text  string `json:"text" binding:"required"`
	Color string `json:"color"`
}

func toTags(in []TagInput) []models.Tag {
	tags := make([]models.Tag, 0, len(in))
	for _, t := range in {
		tags = append(tags, models.Tag{Text: strings.TrimSpace(t.Text), Color: t.Color})
	}
	return tags
}

// CreateTaskRequest represents the request payload for creating a task
type CreateTaskRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status" binding:"omitempty,taskstatus"`
	Priority    models.TaskPriority `json:"priority" binding:"omitempty,taskpriority"`
	ProjectID   string              `json:"projectId"`
	AssigneeIDs []string            `json:"assigneeIds"`
	StartDate   string              `json:"startDate"`
	DueDate     string              `json:"dueDate"`
	Tags        []TagInput          `json:"tags" binding:"omitempty,dive"`
}

// UpdateTaskRequest represents the request payload for updating a task
type UpdateTaskRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *models.TaskStatus   `json:"status" binding:"omitempty,taskstatus"`
	Priority    *models.TaskPriority `json:"priority" binding:"omitempty,taskpriority"`
	ProjectID   *string              `json:"projectId"`
	AssigneeIDs []string             `json:"assigneeIds"`
	StartDate   *string              `json:"startDate"`
	DueDate     *string              `json:"dueDate"`
	Tags        []TagInput           `json:"tags" binding:"omitempty,dive"`
}

// UpdateTaskStatusRequest moves a task to another board column. Without a
// position the task goes to the end of the column.
type UpdateTaskStatusRequest struct {
	Status   models.TaskStatus `json:"status" binding:"required,taskstatus"`
	Position *int              `json:"position" binding:"omitempty,gte=0"`
}

// TaskListResponse is one page of tasks
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks"`
	Count int           `json:"count"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Sort  string        `json:"sort"`
}

func intQuery(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return n
}

// projectExists writes a 400 when id does not name a project.
func (h *Handler) projectExists(c *gin.Context, id string) bool {
	if _, err := h.repos.Projects.Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid projectId: project not found"})
		} else {
			h.fail(c, err, "", "Failed to validate projectId")
		}
		return false
	}
	return true
}

func (h *Handler) listTasks(c *gin.Context, projectID string) {
	sortParam := strings.ToLower(c.DefaultQuery("sort", "desc"))
	f := repository.TaskFilter{
		Status:     models.TaskStatus(c.Query("status")),
		ProjectID:  projectID,
		CreatorID:  c.Query("creatorId"),
		AssigneeID: c.Query("assigneeId"),
		Ascending:  sortParam == "asc",
		Page:       repository.Page{Page: intQuery(c, "page", 1), Limit: intQuery(c, "limit", 20)},
	}
	if f.Status != "" && !f.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task status"})
		return
	}
	f.Page = f.Page.Normalize(20)

	tasks, total, err := h.repos.Tasks.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err, "", "Failed to fetch tasks")
		return
	}
	c.JSON(http.StatusOK, TaskListResponse{
		Tasks: tasks,
		Count: len(tasks),
		Total: total,
		Page:  f.Page.Page,
		Limit: f.Page.Limit,
		Sort:  sortParam,
	})
}

// GetTasks handles GET /api/tasks
// Query params: page, limit, sort (asc|desc on created_at), status,
// projectId, creatorId, assigneeId.
func (h *Handler) GetTasks(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	h.listTasks(c, c.Query("projectId"))
}

// GetTaskByID handles GET /api/tasks/:id
func (h *Handler) GetTaskByID(c *gin.Context) {
	task, err := h.repos.Tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Task not found", "Failed to fetch task")
		return
	}
	c.JSON(http.StatusOK, task)
}

// CreateTask handles POST /api/tasks
func (h *Handler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateTaskRequest
	if !bind(c, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	status := req.Status
	if status == "" {
		status = models.StatusTodo
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	start, ok := optionalDate(c, "startDate", req.StartDate)
	if !ok {
		return
	}
	due, ok := optionalDate(c, "dueDate", req.DueDate)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var projectID *string
	if id := strings.TrimSpace(req.ProjectID); id != "" {
		if !h.projectExists(c, id) {
			return
		}
		projectID = &id
	}
	assignees, ok := h.loadUsers(c, req.AssigneeIDs)
	if !ok {
		return
	}
	position, err := h.repos.Tasks.NextPosition(ctx, status)
	if err != nil {
		h.fail(c, err, "", "Failed to create task")
		return
	}

	task := models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		Position:    position,
		StartDate:   start,
		DueDate:     due,
		ProjectID:   projectID,
		CreatorID:   userID,
		Assignees:   assignees,
		Tags:        toTags(req.Tags),
	}
	if err := h.repos.Tasks.Create(ctx, &task); err != nil {
		h.fail(c, err, "", "Failed to create task")
		return
	}

	h.changed(c, "task", realtime.Created, task.ID, cache.TagTasks)
	c.JSON(http.StatusCreated, task)
}

// UpdateTask handles PUT /api/tasks/:id
func (h *Handler) UpdateTask(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	ctx := c.Request.Context()
	task, err := h.repos.Tasks.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Task not found", "Failed to fetch task")
		return
	}

	var ok bool
	var req UpdateTaskRequest
	if !bind(c, &req) {
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil && *req.Status != task.Status {
		position, err := h.repos.Tasks.NextPosition(ctx, *req.Status)
		if err != nil {
			h.fail(c, err, "", "Failed to update task")
			return
		}
		task.Status, task.Position = *req.Status, position
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.StartDate != nil {
		if task.StartDate, ok = optionalDate(c, "startDate", *req.StartDate); !ok {
			return
		}
	}
	if req.DueDate != nil {
		if task.DueDate, ok = optionalDate(c, "dueDate", *req.DueDate); !ok {
			return
		}
	}
	if req.ProjectID != nil {
		id := strings.TrimSpace(*req.ProjectID)
		if id == "" {
			task.ProjectID = nil
		} else {
			if !h.projectExists(c, id) {
				return
			}
			task.ProjectID = &id
		}
		task.Project = nil
	}

	var assignees []models.User
	if req.AssigneeIDs != nil {
		if assignees, ok = h.loadUsers(c, req.AssigneeIDs); !ok {
			return
		}
	}
	var tags []models.Tag
	if req.Tags != nil {
		tags = toTags(req.Tags)
	}

	if err := h.repos.Tasks.Update(ctx, task, assignees, tags); err != nil {
		h.fail(c, err, "Task not found", "Failed to update task")
		return
	}

	h.changed(c, "task", realtime.Updated, task.ID, cache.TagTasks, cache.TaskTag(task.ID))
	c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus handles PATCH /api/tasks/:id/status
// This is the endpoint behind drag and drop on the board.
func (h *Handler) UpdateTaskStatus(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	var req UpdateTaskStatusRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	task, err := h.repos.Tasks.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Task not found", "Failed to fetch task")
		return
	}

	from := task.Status
	position := task.Position
	switch {
	case req.Position != nil:
		position = *req.Position
	case from != req.Status:
		if position, err = h.repos.Tasks.NextPosition(ctx, req.Status); err != nil {
			h.fail(c, err, "", "Failed to update status")
			return
		}
	}

	if err := h.repos.Tasks.UpdateStatus(ctx, task.ID, req.Status, position); err != nil {
		h.fail(c, err, "Task not found", "Failed to update status")
		return
	}
	task.Status, task.Position = req.Status, position

	if from != req.Status {
		h.metrics.StatusTransitions.WithLabelValues(string(from), string(req.Status)).Inc()
	}
	h.changed(c, "task", realtime.StatusChanged, task.ID, cache.TagTasks, cache.TaskTag(task.ID))
	c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *Handler) DeleteTask(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	taskID := c.Param("id")
	if err := h.repos.Tasks.Delete(c.Request.Context(), taskID); err != nil {
		h.fail(c, err, "Task not found", "Failed to delete task")
		return
	}

	h.changed(c, "task", realtime.Deleted, taskID, cache.TagTasks, cache.TaskTag(taskID))
	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
		"id":      taskID,
	})
}
