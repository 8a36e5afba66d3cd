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

type CreateCommentRequest struct {
	TaskID  string `json:"taskId" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListComments handles GET /api/comments?taskId=
func (h *Handler) ListComments(c *gin.Context) {
	taskID := c.Query("taskId")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "taskId is required"})
		return
	}
	comments, err := h.repos.Comments.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		h.fail(c, err, "", "Failed to fetch comments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments, "count": len(comments)})
}

// CreateComment handles POST /api/comments
func (h *Handler) CreateComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateCommentRequest
	if !bind(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.repos.Tasks.Get(ctx, req.TaskID); err != nil {
		h.fail(c, err, "Task not found", "Failed to fetch task")
		return
	}
	comment := models.Comment{
		ID:       uuid.NewString(),
		TaskID:   req.TaskID,
		AuthorID: userID,
		Content:  content,
	}
	if err := h.repos.Comments.Create(ctx, &comment); err != nil {
		h.fail(c, err, "", "Failed to create comment")
		return
	}
	if author, err := h.repos.Users.Get(ctx, userID); err == nil {
		comment.Author = author
	}

	h.changed(c, "comment", realtime.Created, comment.ID, cache.TaskTag(req.TaskID))
	c.JSON(http.StatusCreated, comment)
}

// ownComment loads the comment and checks the caller wrote it.
func (h *Handler) ownComment(c *gin.Context) (*models.Comment, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	comment, err := h.repos.Comments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Comment not found", "Failed to fetch comment")
		return nil, false
	}
	if comment.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the author can change this comment"})
		return nil, false
	}
	return comment, true
}

// UpdateComment handles PUT /api/comments/:id
func (h *Handler) UpdateComment(c *gin.Context) {
	comment, ok := h.ownComment(c)
	if !ok {
		return
	}
	var req UpdateCommentRequest
	if !bind(c, &req) {
		return
	}
	comment.Content = strings.TrimSpace(req.Content)
	if comment.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	if err := h.repos.Comments.UpdateContent(c.Request.Context(), comment); err != nil {
		h.fail(c, err, "Comment not found", "Failed to update comment")
		return
	}
	h.changed(c, "comment", realtime.Updated, comment.ID, cache.TaskTag(comment.TaskID))
	c.JSON(http.StatusOK, comment)
}

// DeleteComment handles DELETE /api/comments/:id
func (h *Handler) DeleteComment(c *gin.Context) {
	comment, ok := h.ownComment(c)
	if !ok {
		return
	}
	if err := h.repos.Comments.Delete(c.Request.Context(), comment.ID); err != nil {
		h.fail(c, err, "Comment not found", "Failed to delete comment")
		return
	}
	h.changed(c, "comment", realtime.Deleted, comment.ID, cache.TaskTag(comment.TaskID))
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted", "id": comment.ID})
}
