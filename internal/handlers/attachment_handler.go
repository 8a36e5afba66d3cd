package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"projectboard/internal/cache"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/storage"
)

func (h *Handler) storageReady(c *gin.Context) bool {
	if h.blobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "File storage is not configured"})
		return false
	}
	return true
}

// formFile reads the named multipart file, enforcing the upload limit.
func (h *Handler) formFile(c *gin.Context, field string) (*multipart.FileHeader, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+64<<10)
	fh, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return nil, false
	}
	if fh.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
		return nil, false
	}
	return fh, true
}

// putUpload stores the uploaded file under key.
func (h *Handler) putUpload(c *gin.Context, key string, fh *multipart.FileHeader) (storage.Object, bool) {
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable upload"})
		return storage.Object{}, false
	}
	defer f.Close()

	obj, err := h.blobs.Put(c.Request.Context(), key, f)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
			return storage.Object{}, false
		}
		h.log(c).Error("store upload", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return storage.Object{}, false
	}
	return obj, true
}

// serveBlob streams the blob at key with its detected content type.
func (h *Handler) serveBlob(c *gin.Context, key, filename string) {
	rc, obj, err := h.blobs.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		h.log(c).Error("open blob", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer rc.Close()

	headers := map[string]string{}
	if filename != "" {
		headers["Content-Disposition"] = `attachment; filename="` + strings.ReplaceAll(filename, `"`, "") + `"`
	}
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, rc, headers)
}

// ListAttachments handles GET /api/attachments?taskId=
func (h *Handler) ListAttachments(c *gin.Context) {
	taskID := c.Query("taskId")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "taskId is required"})
		return
	}
	list, err := h.repos.Attachments.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		h.fail(c, err, "", "Failed to fetch attachments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": list, "count": len(list)})
}

// UploadAttachment handles POST /api/attachments (multipart: taskId, file)
func (h *Handler) UploadAttachment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok || !h.storageReady(c) {
		return
	}
	fh, ok := h.formFile(c, "file")
	if !ok {
		return
	}
	taskID := c.PostForm("taskId")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "taskId is required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.repos.Tasks.Get(ctx, taskID); err != nil {
		h.fail(c, err, "Task not found", "Failed to fetch task")
		return
	}

	id := uuid.NewString()
	obj, ok := h.putUpload(c, path.Join("attachments", taskID, id), fh)
	if !ok {
		return
	}
	a := models.Attachment{
		ID:          id,
		TaskID:      taskID,
		UploaderID:  userID,
		Name:        path.Base(strings.ReplaceAll(fh.Filename, `\`, "/")),
		Path:        obj.Key,
		Size:        obj.Size,
		ContentType: obj.ContentType,
	}
	if err := h.repos.Attachments.Create(ctx, &a); err != nil {
		_ = h.blobs.Delete(ctx, obj.Key)
		h.fail(c, err, "", "Failed to save attachment")
		return
	}

	h.changed(c, "attachment", realtime.Created, a.ID, cache.TaskTag(taskID))
	c.JSON(http.StatusCreated, a)
}

// GetAttachment handles GET /api/attachments/:id
func (h *Handler) GetAttachment(c *gin.Context) {
	a, err := h.repos.Attachments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Attachment not found", "Failed to fetch attachment")
		return
	}
	c.JSON(http.StatusOK, a)
}

// DownloadAttachment handles GET /api/attachments/:id/download
func (h *Handler) DownloadAttachment(c *gin.Context) {
	if !h.storageReady(c) {
		return
	}
	a, err := h.repos.Attachments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Attachment not found", "Failed to fetch attachment")
		return
	}
	h.serveBlob(c, a.Path, a.Name)
}

// DeleteAttachment handles DELETE /api/attachments/:id. Only the uploader may delete.
func (h *Handler) DeleteAttachment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok || !h.storageReady(c) {
		return
	}
	ctx := c.Request.Context()
	a, err := h.repos.Attachments.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Attachment not found", "Failed to fetch attachment")
		return
	}
	if a.UploaderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the uploader can delete this attachment"})
		return
	}
	if err := h.repos.Attachments.Delete(ctx, a.ID); err != nil {
		h.fail(c, err, "Attachment not found", "Failed to delete attachment")
		return
	}
	if err := h.blobs.Delete(ctx, a.Path); err != nil {
		h.log(c).Warn("delete attachment blob", zap.String("key", a.Path), zap.Error(err))
	}

	h.changed(c, "attachment", realtime.Deleted, a.ID, cache.TaskTag(a.TaskID))
	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted", "id": a.ID})
}
