package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"projectboard/internal/cache"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
)

type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	JobTitle *string `json:"jobTitle"`
}

func avatarKey(userID string) string { return "avatars/" + userID }

// GetAllUsers returns all users (protected)
// GET /api/users
func (h *Handler) GetAllUsers(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := cachedRead(h, "users:list", []string{cache.TagUsers}, func() ([]models.User, error) {
		return h.repos.Users.List(ctx)
	})
	if err != nil {
		h.fail(c, err, "", "Failed to fetch users")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// GetUser handles GET /api/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.repos.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "User not found", "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe handles PUT /api/users/me
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	user, err := h.repos.Users.Get(ctx, userID)
	if err != nil {
		h.fail(c, err, "User not found", "Failed to fetch user")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		user.Name = name
	}
	if req.JobTitle != nil {
		user.JobTitle = strings.TrimSpace(*req.JobTitle)
	}
	if err := h.repos.Users.UpdateProfile(ctx, user); err != nil {
		h.fail(c, err, "User not found", "Failed to update profile")
		return
	}

	h.changed(c, "user", realtime.Updated, user.ID, profileTags(user.ID)...)
	c.JSON(http.StatusOK, user)
}

// profileTags labels every read that embeds a user's profile: names and
// avatars are preloaded into task, project and team reads.
func profileTags(userID string) []string {
	return []string{cache.TagUsers, cache.UserTag(userID), cache.TagTasks, cache.TagProjects, cache.TagTeams}
}

// UploadAvatar handles POST /api/users/me/avatar (multipart: avatar)
func (h *Handler) UploadAvatar(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok || !h.storageReady(c) {
		return
	}
	fh, ok := h.formFile(c, "avatar")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.repos.Users.Get(ctx, userID)
	if err != nil {
		h.fail(c, err, "User not found", "Failed to fetch user")
		return
	}

	obj, ok := h.putUpload(c, avatarKey(userID), fh)
	if !ok {
		return
	}
	if !strings.HasPrefix(obj.ContentType, "image/") {
		_ = h.blobs.Delete(ctx, obj.Key)
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Avatar must be an image"})
		return
	}

	user.AvatarURL = "/api/users/" + userID + "/avatar"
	if err := h.repos.Users.UpdateProfile(ctx, user); err != nil {
		h.fail(c, err, "User not found", "Failed to update profile")
		return
	}
	h.changed(c, "user", realtime.Updated, user.ID, profileTags(user.ID)...)
	c.JSON(http.StatusOK, user)
}

// GetAvatar handles GET /api/users/:id/avatar
func (h *Handler) GetAvatar(c *gin.Context) {
	if !h.storageReady(c) {
		return
	}
	h.serveBlob(c, avatarKey(c.Param("id")), "")
}
