package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"projectboard/internal/cache"
	"projectboard/internal/realtime"
)

// TagsForEvent returns the query tags a realtime event makes stale.
func TagsForEvent(evt realtime.Event) []string {
	switch evt.Entity {
	case "task":
		return []string{cache.TagTasks, cache.TaskTag(evt.ID)}
	case "project":
		// deleting a project detaches its tasks
		return []string{cache.TagProjects, cache.ProjectTag(evt.ID), cache.TagTasks, cache.TagTeams}
	case "team":
		return []string{cache.TagTeams, cache.TeamTag(evt.ID)}
	case "user":
		return []string{cache.TagUsers, cache.UserTag(evt.ID), cache.TagTasks, cache.TagProjects, cache.TagTeams}
	case "comment":
		return []string{TagComments}
	case "attachment", "subtask":
		return []string{cache.TagTasks}
	}
	return nil
}

// Apply invalidates the queries evt affects.
func (q *Queries) Apply(evt realtime.Event) int {
	return q.Invalidate(TagsForEvent(evt)...)
}

// wsURL turns the API base URL into the websocket endpoint.
func (c *Client) wsURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Subscribe streams realtime events to fn until ctx ends or the connection
// drops. It returns nil when ctx was cancelled.
func (c *Client) Subscribe(ctx context.Context, fn func(realtime.Event)) error {
	header := http.Header{}
	if tok := c.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial realtime: %w", &APIError{Status: resp.StatusCode})
		}
		return fmt.Errorf("dial realtime: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read realtime: %w", err)
		}
		var evt realtime.Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			c.logger.Debug("skip realtime message", zap.Error(err))
			continue
		}
		fn(evt)
	}
}
