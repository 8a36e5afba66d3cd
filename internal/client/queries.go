package client

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"projectboard/internal/cache"
	"projectboard/internal/models"
	"projectboard/internal/search"
)

// TagComments labels every comment list held by the query cache.
const TagComments = "comments"

// Queries caches reads from the API under tags and drops them when a
// mutation or a realtime event touches one of the tags. Concurrent reads of
// one key share a single request.
type Queries struct {
	api   *Client
	cache *cache.SimpleCache[string, any]
	ttl   time.Duration
	group singleflight.Group
	// gen moves on every invalidation; a fetch that started under an older
	// generation returns its result without caching it.
	mu  sync.Mutex
	gen uint64
}

// NewQueries wraps api. Entries live for ttl; zero keeps them until invalidated.
func NewQueries(api *Client, ttl time.Duration) *Queries {
	return &Queries{
		api:   api,
		cache: cache.NewSimpleCache[string, any](cache.Options{ConcurrencySafe: true}),
		ttl:   ttl,
	}
}

// API returns the underlying client.
func (q *Queries) API() *Client { return q.api }

func query[T any](ctx context.Context, q *Queries, key string, tags []string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := q.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	q.mu.Lock()
	gen := q.gen
	q.mu.Unlock()
	v, err, _ := q.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		res, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		q.mu.Lock()
		if q.gen == gen {
			q.cache.Set(key, res, q.ttl, tags...)
		}
		q.mu.Unlock()
		return res, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every cached query labeled with one of tags.
func (q *Queries) Invalidate(tags ...string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gen++
	return q.cache.Invalidate(tags...)
}

// Cached reports whether the exact task query is cached.
func (q *Queries) Cached(tq TaskQuery) bool {
	return q.cache.Has(tq.key())
}

// Tasks returns the page of tasks for tq.
func (q *Queries) Tasks(ctx context.Context, tq TaskQuery) (*TaskPage, error) {
	tags := []string{cache.TagTasks}
	if tq.ProjectID != "" {
		tags = append(tags, cache.ProjectTag(tq.ProjectID))
	}
	return query(ctx, q, tq.key(), tags, func(ctx context.Context) (*TaskPage, error) {
		return q.api.ListTasks(ctx, tq)
	})
}

func (q *Queries) Task(ctx context.Context, id string) (*models.Task, error) {
	return query(ctx, q, "task:"+id, []string{cache.TaskTag(id)}, func(ctx context.Context) (*models.Task, error) {
		return q.api.GetTask(ctx, id)
	})
}

func (q *Queries) Projects(ctx context.Context) ([]models.Project, error) {
	return query(ctx, q, "projects", []string{cache.TagProjects}, q.api.ListProjects)
}

func (q *Queries) Project(ctx context.Context, id string) (*models.Project, error) {
	return query(ctx, q, "project:"+id, []string{cache.ProjectTag(id)}, func(ctx context.Context) (*models.Project, error) {
		return q.api.GetProject(ctx, id)
	})
}

func (q *Queries) Teams(ctx context.Context) ([]models.Team, error) {
	return query(ctx, q, "teams", []string{cache.TagTeams}, q.api.ListTeams)
}

func (q *Queries) Users(ctx context.Context) ([]models.User, error) {
	return query(ctx, q, "users", []string{cache.TagUsers}, q.api.ListUsers)
}

func (q *Queries) Comments(ctx context.Context, taskID string) ([]models.Comment, error) {
	tags := []string{TagComments, cache.TaskTag(taskID)}
	return query(ctx, q, "comments:"+taskID, tags, func(ctx context.Context) ([]models.Comment, error) {
		return q.api.ListComments(ctx, taskID)
	})
}

// Search results depend on tasks and projects alike.
func (q *Queries) Search(ctx context.Context, req search.Request) (*SearchResponse, error) {
	key := "search?" + searchValues(req).Encode()
	return query(ctx, q, key, []string{cache.TagTasks, cache.TagProjects}, func(ctx context.Context) (*SearchResponse, error) {
		return q.api.Search(ctx, req)
	})
}

// CreateTask creates a task and drops cached task lists.
func (q *Queries) CreateTask(ctx context.Context, t NewTask) (*models.Task, error) {
	task, err := q.api.CreateTask(ctx, t)
	if err != nil {
		return nil, err
	}
	q.Invalidate(cache.TagTasks)
	return task, nil
}

// UpdateTaskStatus patches the task without touching the cache; callers
// invalidate once the move is settled.
func (q *Queries) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus, position int) (*models.Task, error) {
	return q.api.UpdateTaskStatus(ctx, id, status, position)
}

func (q *Queries) DeleteTask(ctx context.Context, id string) error {
	if err := q.api.DeleteTask(ctx, id); err != nil {
		return err
	}
	q.Invalidate(cache.TagTasks, cache.TaskTag(id))
	return nil
}

func (q *Queries) AddComment(ctx context.Context, taskID, content string) (*models.Comment, error) {
	c, err := q.api.AddComment(ctx, taskID, content)
	if err != nil {
		return nil, err
	}
	q.Invalidate(cache.TaskTag(taskID))
	return c, nil
}
