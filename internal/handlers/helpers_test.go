package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"projectboard/internal/auth"
	"projectboard/internal/config"
	"projectboard/internal/middleware"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/storage"
	"projectboard/internal/testutil"
)

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	h      *Handler
	r      *gin.Engine
	tokens *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustDB(t)
	tokens := auth.NewManager(config.Default().Auth)
	blobs, err := storage.NewLocal(t.TempDir(), 1<<20)
	require.NoError(t, err)

	h := New(Deps{DB: db, Tokens: tokens, Storage: blobs, MaxUploadBytes: 1 << 20})

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/password/forgot", h.ForgotPassword)
	api.POST("/auth/password/verify", h.VerifyResetCode)
	api.POST("/auth/password/reset", h.ResetPassword)

	p := api.Group("", middleware.JWTAuthMiddleware(tokens))
	p.GET("/auth/session", h.Session)
	p.GET("/tasks", h.GetTasks)
	p.GET("/tasks/:id", h.GetTaskByID)
	p.POST("/tasks", h.CreateTask)
	p.PUT("/tasks/:id", h.UpdateTask)
	p.PATCH("/tasks/:id/status", h.UpdateTaskStatus)
	p.DELETE("/tasks/:id", h.DeleteTask)
	p.GET("/tasks/:id/subtasks", h.ListSubtasks)
	p.POST("/tasks/:id/subtasks", h.CreateSubtask)
	p.PUT("/tasks/:id/subtasks/:subtaskId", h.UpdateSubtask)
	p.GET("/projects", h.GetProjects)
	p.GET("/projects/:id", h.GetProjectByID)
	p.POST("/projects", h.CreateProject)
	p.PUT("/projects/:id", h.UpdateProject)
	p.DELETE("/projects/:id", h.DeleteProject)
	p.GET("/teams", h.GetTeams)
	p.POST("/teams", h.CreateTeam)
	p.PUT("/teams/:id", h.UpdateTeam)
	p.GET("/users", h.GetAllUsers)
	p.PUT("/users/me", h.UpdateMe)
	p.POST("/users/me/avatar", h.UploadAvatar)
	p.GET("/users/:id/avatar", h.GetAvatar)
	p.GET("/comments", h.ListComments)
	p.POST("/comments", h.CreateComment)
	p.PUT("/comments/:id", h.UpdateComment)
	p.DELETE("/comments/:id", h.DeleteComment)
	p.GET("/attachments", h.ListAttachments)
	p.POST("/attachments", h.UploadAttachment)
	p.GET("/attachments/:id/download", h.DownloadAttachment)
	p.DELETE("/attachments/:id", h.DeleteAttachment)
	p.GET("/search", h.Search)
	p.GET("/stats", h.GetDashboardStats)
	p.GET("/stats/:userid", h.GetStatsByUser)

	return &testEnv{t: t, db: db, h: h, r: r, tokens: tokens}
}

// token signs in userID, creating the user row when needed.
func (e *testEnv) token(userID string) string {
	e.t.Helper()
	u := models.User{ID: userID, Name: userID, Email: userID + "@example.com"}
	require.NoError(e.t, e.db.FirstOrCreate(&u, "id = ?", userID).Error)
	tok, err := e.tokens.GenerateToken(userID, userID, userID+"@example.com")
	require.NoError(e.t, err)
	return tok
}

// do sends body as JSON when it is not nil.
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(path, token, field, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(e.t, err)
	_, err = fw.Write(content)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}

// recordingClient is a realtime.Client that keeps every message.
type recordingClient struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (r *recordingClient) Send(b []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, b)
	return true
}

func (r *recordingClient) Close() {}

func (r *recordingClient) events(t *testing.T) []realtime.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.Event, 0, len(r.msgs))
	for _, b := range r.msgs {
		var evt realtime.Event
		require.NoError(t, json.Unmarshal(b, &evt))
		out = append(out, evt)
	}
	return out
}
