package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"projectboard/internal/cache"
	"projectboard/internal/models"
	"projectboard/internal/search"
)

type searchCorpus struct {
	Tasks    []models.Task    `json:"tasks"`
	Projects []models.Project `json:"projects"`
}

// Search handles GET /api/search
// Query params: q, creator, project, date (today|7d|30d|all),
// includeProjects (bool), sort (newest|oldest|alphabetical).
func (h *Handler) Search(c *gin.Context) {
	includeProjects, _ := strconv.ParseBool(c.DefaultQuery("includeProjects", "false"))
	req := search.Request{
		Query: c.Query("q"),
		Filters: search.Filters{
			Creator:         c.Query("creator"),
			Project:         c.Query("project"),
			Date:            search.ParseDateWindow(c.Query("date")),
			IncludeProjects: includeProjects,
		},
		Sort: search.ParseSortKey(c.Query("sort")),
	}

	ctx := c.Request.Context()
	corpus, err := cachedRead(h, "search:corpus", []string{cache.TagTasks, cache.TagProjects}, func() (searchCorpus, error) {
		var sc searchCorpus
		var err error
		if sc.Tasks, err = h.repos.Tasks.All(ctx); err != nil {
			return sc, err
		}
		sc.Projects, err = h.repos.Projects.List(ctx)
		return sc, err
	})
	if err != nil {
		h.fail(c, err, "", "Failed to search")
		return
	}

	results := search.Run(req, h.now(), corpus.Tasks, corpus.Projects)
	h.metrics.ObserveSearch(includeProjects, len(results))
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
		"sort":    req.Sort,
	})
}
