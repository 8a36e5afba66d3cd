// Package client is the data-access layer used by board clients: a typed
// REST client for the API plus a tag-invalidated query cache in front of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"projectboard/internal/models"
	"projectboard/internal/search"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

const genericFailure = "Something went wrong, please try again"

// FailureMessage renders err for a user notification about action, e.g.
// "failed to update task status. Task not found".
func FailureMessage(action string, err error) string {
	msg := genericFailure
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return fmt.Sprintf("failed to %s. %s", action, msg)
}

// Client talks JSON to the API with a bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) buildURL(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do sends in as JSON (when non-nil) and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, q), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(slurp, &payload) == nil {
		apiErr.Message = payload.Error
	}
	return apiErr
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Login signs in and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, in, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, name, email, password, confirm string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"name": name, "email": email, "password": password, "confirmPassword": confirm}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, in, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Session returns the signed-in user.
func (c *Client) Session(ctx context.Context) (*models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// TaskQuery filters the task list; zero fields are not sent.
type TaskQuery struct {
	Status     models.TaskStatus
	ProjectID  string
	CreatorID  string
	AssigneeID string
	Page       int
	Limit      int
	Ascending  bool
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.ProjectID != "" {
		v.Set("projectId", q.ProjectID)
	}
	if q.CreatorID != "" {
		v.Set("creatorId", q.CreatorID)
	}
	if q.AssigneeID != "" {
		v.Set("assigneeId", q.AssigneeID)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Ascending {
		v.Set("sort", "asc")
	}
	return v
}

// key identifies the query in the query cache.
func (q TaskQuery) key() string {
	return "tasks?" + q.values().Encode()
}

// TaskPage is one page of the task list.
type TaskPage struct {
	Tasks []models.Task `json:"tasks"`
	Count int           `json:"count"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (c *Client) ListTasks(ctx context.Context, q TaskQuery) (*TaskPage, error) {
	var out TaskPage
	if err := c.do(ctx, http.MethodGet, "/api/tasks", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var out models.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewTask is the create payload. Dates use YYYY-MM-DD.
type NewTask struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Status      models.TaskStatus   `json:"status,omitempty"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
	ProjectID   string              `json:"projectId,omitempty"`
	AssigneeIDs []string            `json:"assigneeIds,omitempty"`
	StartDate   string              `json:"startDate,omitempty"`
	DueDate     string              `json:"dueDate,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, t NewTask) (*models.Task, error) {
	var out models.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", nil, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTaskStatus moves a task to status at position.
func (c *Client) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus, position int) (*models.Task, error) {
	var out models.Task
	in := map[string]any{"status": status, "position": position}
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id)+"/status", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out struct {
		Projects []models.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	var out struct {
		Teams []models.Team `json:"teams"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/teams", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Teams, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out struct {
		Users []models.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	var out struct {
		Comments []models.Comment `json:"comments"`
	}
	q := url.Values{"taskId": {taskID}}
	if err := c.do(ctx, http.MethodGet, "/api/comments", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

func (c *Client) AddComment(ctx context.Context, taskID, content string) (*models.Comment, error) {
	var out models.Comment
	in := map[string]string{"taskId": taskID, "content": content}
	if err := c.do(ctx, http.MethodPost, "/api/comments", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
	Sort    search.SortKey  `json:"sort"`
}

func searchValues(req search.Request) url.Values {
	v := url.Values{}
	if req.Query != "" {
		v.Set("q", req.Query)
	}
	if req.Filters.Creator != "" {
		v.Set("creator", req.Filters.Creator)
	}
	if req.Filters.Project != "" {
		v.Set("project", req.Filters.Project)
	}
	if req.Filters.Date != search.DateAny {
		v.Set("date", string(req.Filters.Date))
	}
	if req.Filters.IncludeProjects {
		v.Set("includeProjects", "true")
	}
	if req.Sort != "" {
		v.Set("sort", string(req.Sort))
	}
	return v
}

func (c *Client) Search(ctx context.Context, req search.Request) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/search", searchValues(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
