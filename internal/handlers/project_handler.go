package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"projectboard/internal/cache"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
)

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// CreateProjectRequest represents the request payload for creating a project
type CreateProjectRequest struct {
	Name        string               `json:"name" binding:"required"`
	Key         string               `json:"key" binding:"required"`
	Description string               `json:"description"`
	Status      models.ProjectStatus `json:"status" binding:"omitempty,projectstatus"`
	StartDate   string               `json:"startDate"`
	EndDate     string               `json:"endDate"`
	Budget      float64              `json:"budget" binding:"gte=0"`
	Spent       float64              `json:"spent" binding:"gte=0"`
	MemberIDs   []string             `json:"memberIds"`
}

// UpdateProjectRequest represents the request payload for updating a project
type UpdateProjectRequest struct {
	Name        *string               `json:"name"`
	Key         *string               `json:"key"`
	Description *string               `json:"description"`
	Status      *models.ProjectStatus `json:"status" binding:"omitempty,projectstatus"`
	StartDate   *string               `json:"startDate"`
	EndDate     *string               `json:"endDate"`
	Budget      *float64              `json:"budget" binding:"omitempty,gte=0"`
	Spent       *float64              `json:"spent" binding:"omitempty,gte=0"`
	MemberIDs   []string              `json:"memberIds"`
}

// normalizeKey upper-cases key and writes a 400 if it is not a short code.
func normalizeKey(c *gin.Context, key string) (string, bool) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if !projectKeyPattern.MatchString(key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key must be 2-10 letters or digits, starting with a letter"})
		return "", false
	}
	return key, true
}

// keyAvailable writes a 409 when key is used by a project other than exceptID.
func (h *Handler) keyAvailable(c *gin.Context, key, exceptID string) bool {
	taken, err := h.repos.Projects.KeyTaken(c.Request.Context(), key, exceptID)
	if err != nil {
		h.fail(c, err, "", "Failed to validate project key")
		return false
	}
	if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "Project key already exists"})
		return false
	}
	return true
}

// GetProjects handles GET /api/projects
func (h *Handler) GetProjects(c *gin.Context) {
	ctx := c.Request.Context()
	projects, err := cachedRead(h, "projects:list", []string{cache.TagProjects}, func() ([]models.Project, error) {
		return h.repos.Projects.List(ctx)
	})
	if err != nil {
		h.fail(c, err, "", "Failed to fetch projects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects, "count": len(projects)})
}

// GetProjectByID handles GET /api/projects/:id
func (h *Handler) GetProjectByID(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	project, err := cachedRead(h, "project:"+id, []string{cache.ProjectTag(id)}, func() (*models.Project, error) {
		return h.repos.Projects.Get(ctx, id)
	})
	if err != nil {
		h.fail(c, err, "Project not found", "Failed to fetch project")
		return
	}
	c.JSON(http.StatusOK, project)
}

// GetProjectTasks handles GET /api/projects/:id/tasks
func (h *Handler) GetProjectTasks(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.repos.Projects.Get(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Project not found", "Failed to fetch project")
		return
	}
	h.listTasks(c, id)
}

// CreateProject handles POST /api/projects
func (h *Handler) CreateProject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if !bind(c, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	key, ok := normalizeKey(c, req.Key)
	if !ok {
		return
	}
	start, ok := optionalDate(c, "startDate", req.StartDate)
	if !ok {
		return
	}
	end, ok := optionalDate(c, "endDate", req.EndDate)
	if !ok {
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endDate must not be before startDate"})
		return
	}
	status := req.Status
	if status == "" {
		status = models.ProjectNotStarted
	}

	if !h.keyAvailable(c, key, "") {
		return
	}
	members, ok := h.loadUsers(c, req.MemberIDs)
	if !ok {
		return
	}

	project := models.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Key:         key,
		Description: req.Description,
		Status:      status,
		StartDate:   start,
		EndDate:     end,
		Budget:      req.Budget,
		Spent:       req.Spent,
		OwnerID:     userID,
		Members:     members,
	}
	if err := h.repos.Projects.Create(c.Request.Context(), &project); err != nil {
		h.fail(c, err, "", "Failed to create project")
		return
	}

	h.changed(c, "project", realtime.Created, project.ID, cache.TagProjects)
	c.JSON(http.StatusCreated, project)
}

// UpdateProject handles PUT /api/projects/:id
func (h *Handler) UpdateProject(c *gin.Context) {
	ctx := c.Request.Context()
	project, err := h.repos.Projects.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Project not found", "Failed to fetch project")
		return
	}
	var req UpdateProjectRequest
	if !bind(c, &req) {
		return
	}

	var ok bool
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		project.Name = name
	}
	if req.Key != nil {
		key, ok := normalizeKey(c, *req.Key)
		if !ok || !h.keyAvailable(c, key, project.ID) {
			return
		}
		project.Key = key
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		project.Status = *req.Status
	}
	if req.StartDate != nil {
		if project.StartDate, ok = optionalDate(c, "startDate", *req.StartDate); !ok {
			return
		}
	}
	if req.EndDate != nil {
		if project.EndDate, ok = optionalDate(c, "endDate", *req.EndDate); !ok {
			return
		}
	}
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endDate must not be before startDate"})
		return
	}
	if req.Budget != nil {
		project.Budget = *req.Budget
	}
	if req.Spent != nil {
		project.Spent = *req.Spent
	}
	var members []models.User
	if req.MemberIDs != nil {
		if members, ok = h.loadUsers(c, req.MemberIDs); !ok {
			return
		}
	}

	if err := h.repos.Projects.Update(ctx, project, members); err != nil {
		h.fail(c, err, "Project not found", "Failed to update project")
		return
	}

	// tasks embed their project in reads
	h.changed(c, "project", realtime.Updated, project.ID, cache.TagProjects, cache.ProjectTag(project.ID), cache.TagTasks)
	c.JSON(http.StatusOK, project)
}

// DeleteProject handles DELETE /api/projects/:id. Tasks of the project are kept without a project.
func (h *Handler) DeleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := h.repos.Projects.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Project not found", "Failed to delete project")
		return
	}
	h.changed(c, "project", realtime.Deleted, id, cache.TagProjects, cache.ProjectTag(id), cache.TagTasks, cache.TagTeams)
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully", "id": id})
}
