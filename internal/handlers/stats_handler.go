package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"projectboard/internal/cache"
	"projectboard/internal/models"
)

// DashboardStats is the payload of GET /api/stats
type DashboardStats struct {
	TotalTasks int64                         `json:"totalTasks"`
	ByStatus   map[models.TaskStatus]int64   `json:"byStatus"`
	ByPriority map[models.TaskPriority]int64 `json:"byPriority"`
	Overdue    int64                         `json:"overdue"`
	Projects   ProjectTotals                 `json:"projects"`
}

type ProjectTotals struct {
	Count  int64   `json:"count"`
	Budget float64 `json:"budget"`
	Spent  float64 `json:"spent"`
}

// UserStats is the payload of GET /api/stats/:userid
type UserStats struct {
	UserID     string                      `json:"userId"`
	ByStatus   map[models.TaskStatus]int64 `json:"byStatus"`
	Todo       int64                       `json:"todo"`
	InProgress int64                       `json:"inProgress"`
	Done       int64                       `json:"done"`
	Total      int64                       `json:"total"`
}

// GetDashboardStats handles GET /api/stats
func (h *Handler) GetDashboardStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := cachedRead(h, "stats:dashboard", []string{cache.TagTasks, cache.TagProjects}, func() (DashboardStats, error) {
		var s DashboardStats
		var err error
		if s.ByStatus, err = h.repos.Tasks.StatusCounts(ctx, ""); err != nil {
			return s, err
		}
		for _, n := range s.ByStatus {
			s.TotalTasks += n
		}
		if s.ByPriority, err = h.repos.Tasks.PriorityCounts(ctx); err != nil {
			return s, err
		}
		if s.Overdue, err = h.repos.Tasks.CountOverdue(ctx, h.now()); err != nil {
			return s, err
		}
		s.Projects.Budget, s.Projects.Spent, s.Projects.Count, err = h.repos.Projects.BudgetTotals(ctx)
		return s, err
	})
	if err != nil {
		h.fail(c, err, "", "Failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetStatsByUser handles GET /api/stats/:userid
// Returns counts of tasks by status where :userid is an assignee.
func (h *Handler) GetStatsByUser(c *gin.Context) {
	targetUserID := c.Param("userid")
	if strings.TrimSpace(targetUserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userid is required"})
		return
	}

	counts, err := h.repos.Tasks.StatusCounts(c.Request.Context(), targetUserID)
	if err != nil {
		h.fail(c, err, "", "Failed to compute stats")
		return
	}

	stats := UserStats{
		UserID:     targetUserID,
		ByStatus:   counts,
		Todo:       counts[models.StatusBacklog] + counts[models.StatusTodo],
		InProgress: counts[models.StatusInProgress] + counts[models.StatusInReview] + counts[models.StatusQA],
		Done:       counts[models.StatusCompleted],
	}
	for _, n := range counts {
		stats.Total += n
	}
	c.JSON(http.StatusOK, stats)
}
