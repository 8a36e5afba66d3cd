package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"projectboard/internal/cache"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
)

type CreateSubtaskRequest struct {
	Title       string   `json:"title" binding:"required"`
	AssigneeIDs []string `json:"assigneeIds"`
}

type UpdateSubtaskRequest struct {
	Title       *string  `json:"title"`
	Completed   *bool    `json:"completed"`
	AssigneeIDs []string `json:"assigneeIds"`
}

// ListSubtasks handles GET /api/tasks/:id/subtasks
func (h *Handler) ListSubtasks(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("id")
	if _, err := h.repos.Tasks.Get(ctx, taskID); err != nil {
		h.fail(c, err, "Task not found", "Failed to fetch task")
		return
	}
	subtasks, err := h.repos.Tasks.ListSubtasks(ctx, taskID)
	if err != nil {
		h.fail(c, err, "", "Failed to fetch subtasks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subtasks": subtasks, "count": len(subtasks)})
}

// CreateSubtask handles POST /api/tasks/:id/subtasks
func (h *Handler) CreateSubtask(c *gin.Context) {
	var req CreateSubtaskRequest
	if !bind(c, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	ctx := c.Request.Context()
	taskID := c.Param("id")
	if _, err := h.repos.Tasks.Get(ctx, taskID); err != nil {
		h.fail(c, err, "Task not found", "Failed to fetch task")
		return
	}
	assignees, ok := h.loadUsers(c, req.AssigneeIDs)
	if !ok {
		return
	}

	s := models.Subtask{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Title:     title,
		Assignees: assignees,
	}
	if err := h.repos.Tasks.CreateSubtask(ctx, &s); err != nil {
		h.fail(c, err, "", "Failed to create subtask")
		return
	}
	h.changed(c, "subtask", realtime.Created, s.ID, cache.TagTasks, cache.TaskTag(taskID))
	c.JSON(http.StatusCreated, s)
}

// UpdateSubtask handles PUT /api/tasks/:id/subtasks/:subtaskId
func (h *Handler) UpdateSubtask(c *gin.Context) {
	var req UpdateSubtaskRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	taskID := c.Param("id")
	s, err := h.repos.Tasks.GetSubtask(ctx, taskID, c.Param("subtaskId"))
	if err != nil {
		h.fail(c, err, "Subtask not found", "Failed to fetch subtask")
		return
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		s.Title = title
	}
	if req.Completed != nil {
		s.Completed = *req.Completed
	}
	var assignees []models.User
	if req.AssigneeIDs != nil {
		var ok bool
		if assignees, ok = h.loadUsers(c, req.AssigneeIDs); !ok {
			return
		}
	}

	if err := h.repos.Tasks.SaveSubtask(ctx, s, assignees); err != nil {
		h.fail(c, err, "Subtask not found", "Failed to update subtask")
		return
	}
	h.changed(c, "subtask", realtime.Updated, s.ID, cache.TagTasks, cache.TaskTag(taskID))
	c.JSON(http.StatusOK, s)
}

// DeleteSubtask handles DELETE /api/tasks/:id/subtasks/:subtaskId
func (h *Handler) DeleteSubtask(c *gin.Context) {
	taskID, id := c.Param("id"), c.Param("subtaskId")
	if err := h.repos.Tasks.DeleteSubtask(c.Request.Context(), taskID, id); err != nil {
		h.fail(c, err, "Subtask not found", "Failed to delete subtask")
		return
	}
	h.changed(c, "subtask", realtime.Deleted, id, cache.TagTasks, cache.TaskTag(taskID))
	c.JSON(http.StatusOK, gin.H{"message": "Subtask deleted", "id": id})
}
