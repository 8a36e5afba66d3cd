package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"projectboard/internal/search"
)

func TestSearchEndpoint(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token("u-1")
	bob := e.token("u-2")

	w := e.do(http.MethodPost, "/api/projects", alice, map[string]any{"name": "Deploy pipeline", "key": "OPS"})
	require.Equal(t, http.StatusCreated, w.Code)
	createTask(e, alice, map[string]any{"title": "Deploy staging"})
	createTask(e, bob, map[string]any{"title": "Deploy production"})
	createTask(e, bob, map[string]any{"title": "Write docs"})

	type response struct {
		Results []search.Result `json:"results"`
		Count   int             `json:"count"`
		Sort    string          `json:"sort"`
	}

	w = e.do(http.MethodGet, "/api/search?q=deploy", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[response](t, w)
	require.Equal(t, 2, res.Count)
	require.Equal(t, "newest", res.Sort)

	w = e.do(http.MethodGet, "/api/search?q=deploy&includeProjects=true&sort=alphabetical", alice, nil)
	res = decode[response](t, w)
	require.Equal(t, 3, res.Count)
	require.Equal(t, []string{"Deploy pipeline", "Deploy production", "Deploy staging"},
		[]string{res.Results[0].Title, res.Results[1].Title, res.Results[2].Title})
	require.Equal(t, search.KindProject, res.Results[0].Kind)

	// a creator filter hides projects
	w = e.do(http.MethodGet, "/api/search?q=deploy&includeProjects=true&creator=u-2", alice, nil)
	res = decode[response](t, w)
	require.Equal(t, 1, res.Count)
	require.Equal(t, "Deploy production", res.Results[0].Title)

	// the cached corpus is dropped when tasks change
	createTask(e, alice, map[string]any{"title": "Deploy hotfix"})
	w = e.do(http.MethodGet, "/api/search?q=deploy", alice, nil)
	require.Equal(t, 3, decode[response](t, w).Count)
}
