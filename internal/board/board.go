// Package board keeps a local kanban read model and moves tasks between
// columns optimistically.
package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"projectboard/internal/cache"
	"projectboard/internal/client"
	"projectboard/internal/models"
	"projectboard/internal/optimistic"
)

var (
	ErrInvalidStatus = errors.New("invalid task status")
	ErrUnknownTask   = errors.New("task is not on the board")
)

// Remote persists a status change.
type Remote interface {
	UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus, position int) (*models.Task, error)
}

// Notifier shows the outcome of a move to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Invalidator drops cached queries by tag.
type Invalidator interface {
	Invalidate(tags ...string) int
}

type placement struct {
	status   models.TaskStatus
	position int
}

// moveSnapshot is what a failed move needs to undo itself.
type moveSnapshot struct {
	prev    placement
	shifted []string
}

// settled is the last placement the server is known to hold.
type settled struct {
	at      placement
	version uint64
}

// Board is safe for concurrent use.
type Board struct {
	remote Remote
	notify Notifier
	inv    Invalidator

	mu    sync.RWMutex
	tasks map[string]*models.Task
	// versions survive Load so a reload cannot revive a stale revert.
	versions map[string]uint64
	settled  map[string]settled
	inflight map[string]int
}

// New builds an empty board. notify and inv may be nil.
func New(remote Remote, notify Notifier, inv Invalidator) *Board {
	return &Board{
		remote:   remote,
		notify:   notify,
		inv:      inv,
		tasks:    make(map[string]*models.Task),
		versions: make(map[string]uint64),
		settled:  make(map[string]settled),
		inflight: make(map[string]int),
	}
}

// Load replaces the board contents with tasks.
func (b *Board) Load(tasks []models.Task) {
	m := make(map[string]*models.Task, len(tasks))
	for i := range tasks {
		t := tasks[i]
		m[t.ID] = &t
	}
	b.mu.Lock()
	b.tasks = m
	b.settled = make(map[string]settled, len(m))
	for id, t := range m {
		b.settled[id] = settled{placement{t.Status, t.Position}, b.versions[id]}
	}
	b.mu.Unlock()
}

// Task returns a copy of the task with id.
func (b *Board) Task(id string) (models.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *t, true
}

// Version returns how many moves of task id have been applied locally.
func (b *Board) Version(id string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.versions[id]
}

// Column returns the tasks in status ordered by position.
func (b *Board) Column(status models.TaskStatus) []models.Task {
	b.mu.RLock()
	out := make([]models.Task, 0)
	for _, t := range b.tasks {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of tasks on the board.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tasks)
}

// Move puts task id into status at position, shows it there at once and
// persists it through the remote. Tasks at or past position in that column
// move down one, as they do on the server. If the remote fails the task goes
// back to the last placement the server accepted, unless a newer move of the
// same task is still pending. Once no move of a task is in flight the task
// shows its last accepted placement.
func (b *Board) Move(ctx context.Context, id string, status models.TaskStatus, position int) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if position < 0 {
		position = 0
	}

	b.mu.RLock()
	t, ok := b.tasks[id]
	noop := ok && t.Status == status && t.Position == position
	b.mu.RUnlock()
	if !ok {
		return ErrUnknownTask
	}
	if noop {
		return nil
	}

	var (
		version uint64
		shifted []string
	)
	return optimistic.Do(ctx, optimistic.Mutation[moveSnapshot]{
		Apply: func() moveSnapshot {
			b.mu.Lock()
			defer b.mu.Unlock()
			var snap moveSnapshot
			if t, ok := b.tasks[id]; ok {
				snap.prev = placement{t.Status, t.Position}
				t.Status, t.Position = status, position
			}
			snap.shifted = b.shift(id, status, position)
			shifted = snap.shifted
			b.versions[id]++
			b.inflight[id]++
			version = b.versions[id]
			return snap
		},
		Remote: func(ctx context.Context) error {
			_, err := b.remote.UpdateTaskStatus(ctx, id, status, position)
			return err
		},
		Revert: func(snap moveSnapshot) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.inflight[id]--
			if b.versions[id] != version && b.inflight[id] > 0 {
				return
			}
			for _, other := range snap.shifted {
				if t, ok := b.tasks[other]; ok && t.Status == status {
					t.Position--
				}
			}
			at := snap.prev
			if s, ok := b.settled[id]; ok {
				at = s.at
			}
			b.place(id, at)
		},
		OnSuccess: func() {
			b.mu.Lock()
			b.inflight[id]--
			if s, ok := b.settled[id]; !ok || version >= s.version {
				b.settled[id] = settled{placement{status, position}, version}
			}
			for _, other := range shifted {
				if s, ok := b.settled[other]; ok && s.at.status == status && s.at.position >= position {
					s.at.position++
					b.settled[other] = s
				}
			}
			if b.inflight[id] == 0 {
				b.place(id, b.settled[id].at)
			}
			b.mu.Unlock()

			if b.inv != nil {
				b.inv.Invalidate(cache.TaskTag(id), cache.TagTasks)
			}
			if b.notify != nil {
				b.notify.Success("task status updated")
			}
		},
		OnFailure: func(err error) {
			if b.notify != nil {
				b.notify.Error(client.FailureMessage("update task status", err))
			}
		},
	})
}

// place moves task id to at. Callers hold b.mu.
func (b *Board) place(id string, at placement) {
	if t, ok := b.tasks[id]; ok {
		t.Status, t.Position = at.status, at.position
	}
}

// shift moves every other task in status at or past position down one and
// returns their ids, mirroring the server's column reorder. Callers hold b.mu.
func (b *Board) shift(id string, status models.TaskStatus, position int) []string {
	var ids []string
	for other, t := range b.tasks {
		if other != id && t.Status == status && t.Position >= position {
			t.Position++
			ids = append(ids, other)
		}
	}
	return ids
}
