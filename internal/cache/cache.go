package cache

import "time"

// Cache is a key-value cache with per-entry TTL and tag-based invalidation.
// Entries may carry any number of tags; Invalidate drops every entry labeled
// with one of the given tags.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key K) (V, bool)

	// Set stores the value with an optional TTL and tags. If ttl <= 0, the entry does not expire.
	Set(key K, value V, ttl time.Duration, tags ...string)

	// Delete removes a key if present.
	Delete(key K)

	// Has reports whether a key is present and not expired.
	Has(key K) bool

	// Len returns the number of non-expired items currently stored.
	Len() int

	// Clear removes all entries.
	Clear()

	// PurgeExpired scans and removes expired entries.
	PurgeExpired()

	// Invalidate removes every entry carrying at least one of tags and
	// returns how many entries were dropped.
	Invalidate(tags ...string) int
}

// Tag helpers shared by the server read cache and the client query cache.
const (
	TagTasks    = "tasks"
	TagProjects = "projects"
	TagTeams    = "teams"
	TagUsers    = "users"
)

// TaskTag labels reads of a single task.
func TaskTag(id string) string { return "task:" + id }

// ProjectTag labels reads of a single project.
func ProjectTag(id string) string { return "project:" + id }

// TeamTag labels reads of a single team.
func TeamTag(id string) string { return "team:" + id }

// UserTag labels reads of a single user.
func UserTag(id string) string { return "user:" + id }
