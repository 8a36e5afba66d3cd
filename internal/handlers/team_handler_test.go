package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"projectboard/internal/models"
)

func TestTeams(t *testing.T) {
	e := newTestEnv(t)
	token := e.token("u-1")
	e.token("u-2")

	w := e.do(http.MethodPost, "/api/teams", token, map[string]any{"name": "  "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Team name is required", errorOf(t, w))

	w = e.do(http.MethodPost, "/api/teams", token, map[string]any{"name": "Core", "memberIds": []string{"u-1", "nobody"}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/teams", token, map[string]any{"name": "Core", "memberIds": []string{"u-1"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	team := decode[models.Team](t, w)

	w = e.do(http.MethodPut, "/api/teams/"+team.ID, token, map[string]any{"memberIds": []string{"u-1", "u-2"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, decode[models.Team](t, w).Members, 2)

	w = e.do(http.MethodGet, "/api/teams", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Core")
}
