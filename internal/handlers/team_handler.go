package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"projectboard/internal/cache"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/repository"
)

// TeamRequest is the payload for creating or updating a team. On update,
// nil member or project lists leave the current sets untouched.
type TeamRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	MemberIDs   []string `json:"memberIds"`
	ProjectIDs  []string `json:"projectIds"`
}

func (h *Handler) loadProjects(c *gin.Context, ids []string) ([]models.Project, bool) {
	projects, err := h.repos.Projects.FindByIDs(c.Request.Context(), ids)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown project id"})
		return nil, false
	}
	if err != nil {
		h.fail(c, err, "", "Failed to load projects")
		return nil, false
	}
	return projects, true
}

// teamName writes a 400 for a missing or blank name.
func teamName(c *gin.Context, name *string) (string, bool) {
	if name == nil || strings.TrimSpace(*name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Team name is required"})
		return "", false
	}
	return strings.TrimSpace(*name), true
}

// GetTeams handles GET /api/teams
func (h *Handler) GetTeams(c *gin.Context) {
	ctx := c.Request.Context()
	teams, err := cachedRead(h, "teams:list", []string{cache.TagTeams, cache.TagProjects}, func() ([]models.Team, error) {
		return h.repos.Teams.List(ctx)
	})
	if err != nil {
		h.fail(c, err, "", "Failed to fetch teams")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams, "count": len(teams)})
}

// GetTeamByID handles GET /api/teams/:id
func (h *Handler) GetTeamByID(c *gin.Context) {
	team, err := h.repos.Teams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Team not found", "Failed to fetch team")
		return
	}
	c.JSON(http.StatusOK, team)
}

// CreateTeam handles POST /api/teams
func (h *Handler) CreateTeam(c *gin.Context) {
	var req TeamRequest
	if !bind(c, &req) {
		return
	}
	name, ok := teamName(c, req.Name)
	if !ok {
		return
	}
	members, ok := h.loadUsers(c, req.MemberIDs)
	if !ok {
		return
	}
	projects, ok := h.loadProjects(c, req.ProjectIDs)
	if !ok {
		return
	}

	team := models.Team{
		ID:       uuid.NewString(),
		Name:     name,
		Members:  members,
		Projects: projects,
	}
	if req.Description != nil {
		team.Description = *req.Description
	}
	if err := h.repos.Teams.Create(c.Request.Context(), &team); err != nil {
		h.fail(c, err, "", "Failed to create team")
		return
	}

	h.changed(c, "team", realtime.Created, team.ID, cache.TagTeams)
	c.JSON(http.StatusCreated, team)
}

// UpdateTeam handles PUT /api/teams/:id
func (h *Handler) UpdateTeam(c *gin.Context) {
	var req TeamRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	team, err := h.repos.Teams.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "Team not found", "Failed to fetch team")
		return
	}

	var ok bool
	if req.Name != nil {
		if team.Name, ok = teamName(c, req.Name); !ok {
			return
		}
	}
	if req.Description != nil {
		team.Description = *req.Description
	}
	var members []models.User
	if req.MemberIDs != nil {
		if members, ok = h.loadUsers(c, req.MemberIDs); !ok {
			return
		}
	}
	var projects []models.Project
	if req.ProjectIDs != nil {
		if projects, ok = h.loadProjects(c, req.ProjectIDs); !ok {
			return
		}
	}

	if err := h.repos.Teams.Update(ctx, team, members, projects); err != nil {
		h.fail(c, err, "Team not found", "Failed to update team")
		return
	}
	h.changed(c, "team", realtime.Updated, team.ID, cache.TagTeams, cache.TeamTag(team.ID))
	c.JSON(http.StatusOK, team)
}

// DeleteTeam handles DELETE /api/teams/:id
func (h *Handler) DeleteTeam(c *gin.Context) {
	id := c.Param("id")
	if err := h.repos.Teams.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Team not found", "Failed to delete team")
		return
	}
	h.changed(c, "team", realtime.Deleted, id, cache.TagTeams, cache.TeamTag(id))
	c.JSON(http.StatusOK, gin.H{"message": "Team deleted successfully", "id": id})
}
