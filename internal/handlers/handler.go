// Package handlers implements the REST API on top of gin.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"projectboard/internal/auth"
	"projectboard/internal/cache"
	"projectboard/internal/logging"
	"projectboard/internal/metrics"
	"projectboard/internal/middleware"
	"projectboard/internal/models"
	"projectboard/internal/realtime"
	"projectboard/internal/repository"
	"projectboard/internal/storage"
)

// Deps lists what the handlers need. Nil optional fields get working defaults.
type Deps struct {
	DB      *gorm.DB
	Tokens  *auth.Manager
	OTPs    *auth.OTPStore
	OAuth   *auth.OAuth
	Cache   cache.Cache[string, []byte]
	// CacheTTL bounds how long cached reads live; zero keeps them until invalidated.
	CacheTTL       time.Duration
	Hub            *realtime.Hub
	Storage        storage.Store
	MaxUploadBytes int64
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// Handler serves every API endpoint.
type Handler struct {
	repos         *repository.Repositories
	tokens        *auth.Manager
	otps          *auth.OTPStore
	oauth         *auth.OAuth
	reads         cache.Cache[string, []byte]
	ttl           time.Duration
	readsMu       sync.Mutex
	readsGen      uint64 // bumped by every invalidation
	hub           *realtime.Hub
	blobs         storage.Store
	maxUpload     int64
	metrics       *metrics.Metrics
	logger        *zap.Logger
	secureCookies bool
	now           func() time.Time
}

func New(d Deps) *Handler {
	registerValidators()

	h := &Handler{
		repos:         repository.New(d.DB),
		tokens:        d.Tokens,
		otps:          d.OTPs,
		oauth:         d.OAuth,
		reads:         d.Cache,
		ttl:           d.CacheTTL,
		hub:           d.Hub,
		blobs:         d.Storage,
		maxUpload:     d.MaxUploadBytes,
		metrics:       d.Metrics,
		logger:        d.Logger,
		secureCookies: d.SecureCookies,
		now:           time.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.otps == nil {
		h.otps = auth.NewOTPStore(10 * time.Minute)
	}
	if h.reads == nil {
		h.reads = cache.NewSimpleCache[string, []byte](cache.Options{ConcurrencySafe: true})
	}
	if h.hub == nil {
		h.hub = realtime.NewHub(h.logger)
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 10 << 20
	}
	return h
}

// Hub exposes the realtime hub the handler publishes to.
func (h *Handler) Hub() *realtime.Hub { return h.hub }

// Metrics exposes the collectors the handler records to.
func (h *Handler) Metrics() *metrics.Metrics { return h.metrics }

func (h *Handler) log(c *gin.Context) *zap.Logger {
	return logging.FromContext(c.Request.Context(), h.logger)
}

// currentUser returns the authenticated caller or writes a 401.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return "", false
	}
	return userID, true
}

// fail maps repository errors to HTTP responses.
func (h *Handler) fail(c *gin.Context, err error, notFound, internal string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Resource already exists"})
	default:
		h.log(c).Error(internal, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": internal})
	}
}

// bind decodes the JSON body into req and writes a 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return false
	}
	return true
}

// changed drops cached reads labeled with tags and tells connected clients.
func (h *Handler) changed(c *gin.Context, entity, eventType, id string, tags ...string) {
	h.readsMu.Lock()
	h.readsGen++
	dropped := h.reads.Invalidate(tags...)
	h.readsMu.Unlock()
	h.metrics.ObserveInvalidation(dropped, tags...)
	h.hub.Publish(realtime.Event{
		Type:    eventType,
		Entity:  entity,
		ID:      id,
		ActorID: c.GetString(middleware.UserIDKey),
	})
}

// cachedRead returns the cached value under key or loads, stores and returns it.
// A load that overlaps an invalidation is returned but not stored.
func cachedRead[T any](h *Handler, key string, tags []string, load func() (T, error)) (T, error) {
	if b, ok := h.reads.Get(key); ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		h.reads.Delete(key)
	}
	h.readsMu.Lock()
	gen := h.readsGen
	h.readsMu.Unlock()

	v, err := load()
	if err != nil {
		return v, err
	}
	if b, err := json.Marshal(v); err == nil {
		h.readsMu.Lock()
		if h.readsGen == gen {
			h.reads.Set(key, b, h.ttl, tags...)
		}
		h.readsMu.Unlock()
	}
	return v, nil
}

// parseDateFlexible accepts the date layouts the web client sends.
func parseDateFlexible(dateStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, false
	}
	layouts := []string{
		"2006-01-02",  // ISO date
		"2 Jan 2006",  // e.g., 30 Oct 2025
		time.RFC3339,  // full RFC3339
		"02 Jan 2006", // zero-padded day
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// optionalDate parses s into a date pointer; "" clears the date.
func optionalDate(c *gin.Context, field, s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	t, ok := parseDateFlexible(s)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + field})
		return nil, false
	}
	return &t, true
}

// loadUsers resolves ids to users, writing a 400 when one is unknown.
func (h *Handler) loadUsers(c *gin.Context, ids []string) ([]models.User, bool) {
	users, err := h.repos.Users.FindByIDs(c.Request.Context(), ids)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown user id"})
		return nil, false
	}
	if err != nil {
		h.fail(c, err, "", "Failed to load users")
		return nil, false
	}
	return users, true
}
