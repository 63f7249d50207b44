// Package stats provides read-only REST API handlers for user statistics
// and medals. The pipeline itself is driven by the queue collaborator; this
// surface exists for operators and dashboards.
package stats

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/internal/repository"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// StatsProvider interface for aggregate row lookups.
type StatsProvider interface {
	Get(userID, rulesetID uint) (*models.UserStats, error)
}

// MedalProvider interface for granted medal lookups.
type MedalProvider interface {
	UserMedals(userID uint) ([]models.UserMedal, error)
}

// HealthChecker interface for storage health probes.
type HealthChecker interface {
	Health() error
}

// Handler handles stats API requests.
type Handler struct {
	stats  StatsProvider
	medals MedalProvider
	db     HealthChecker
	log    *logger.Logger
}

// NewHandler creates a new stats handler.
func NewHandler(statsRepo *repository.StatsRepository, medalRepo *repository.MedalRepository, db *repository.DB, log *logger.Logger) *Handler {
	return &Handler{
		stats:  statsRepo,
		medals: medalRepo,
		db:     db,
		log:    log,
	}
}

// NewHandlerWithInterfaces creates a new stats handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(stats StatsProvider, medals MedalProvider, db HealthChecker, log *logger.Logger) *Handler {
	return &Handler{
		stats:  stats,
		medals: medals,
		db:     db,
		log:    log,
	}
}

// RegisterRoutes registers the stats API routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.GET("/users/:id/stats", h.GetUserStats)
		api.GET("/users/:id/medals", h.GetUserMedals)
	}
}

// Health reports storage health.
// GET /health.
func (h *Handler) Health(c *gin.Context) {
	if err := h.db.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetUserStats returns the aggregate row for a user and ruleset.
// GET /api/v1/users/:id/stats?ruleset=0.
func (h *Handler) GetUserStats(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rulesetID, err := strconv.ParseUint(c.DefaultQuery("ruleset", "0"), 10, 32)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid ruleset parameter")
		return
	}

	stats, err := h.stats.Get(userID, uint(rulesetID))
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user stats")
		return
	}
	if stats == nil {
		h.errorResponse(c, http.StatusNotFound, "no statistics for user in ruleset")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserMedals returns the medals granted to a user.
// GET /api/v1/users/:id/medals.
func (h *Handler) GetUserMedals(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	medals, err := h.medals.UserMedals(userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user medals")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user medals")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"medals":       medals,
		"total":        len(medals),
		"generated_at": time.Now().UTC(),
	})
}

func (h *Handler) parseUserID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, errInvalidUserID
	}
	return uint(id), nil
}

func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

var errInvalidUserID = errors.New("invalid user id")
