package stats

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmloop/score-stats/internal/models"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

type fakeStatsProvider struct {
	stats map[uint]*models.UserStats
	err   error
}

func (f *fakeStatsProvider) Get(userID, _ uint) (*models.UserStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stats[userID], nil
}

type fakeMedalProvider struct {
	medals []models.UserMedal
	err    error
}

func (f *fakeMedalProvider) UserMedals(_ uint) ([]models.UserMedal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.medals, nil
}

type fakeHealthChecker struct {
	err error
}

func (f *fakeHealthChecker) Health() error { return f.err }

func setupRouter(stats StatsProvider, medals MedalProvider, health HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandlerWithInterfaces(stats, medals, health, logger.Nop())
	handler.RegisterRoutes(router)
	return router
}

func TestGetUserStats(t *testing.T) {
	provider := &fakeStatsProvider{
		stats: map[uint]*models.UserStats{
			5: {UserID: 5, RulesetID: 0, PP: 1234.5, Accuracy: 98.76, RankIndex: 42, PlayCount: 100},
		},
	}
	router := setupRouter(provider, &fakeMedalProvider{}, &fakeHealthChecker{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/5/stats?ruleset=0", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body models.UserStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint(5), body.UserID)
	assert.InDelta(t, 1234.5, body.PP, 0.001)
	assert.Equal(t, 42, body.RankIndex)
}

func TestGetUserStats_NotFound(t *testing.T) {
	router := setupRouter(&fakeStatsProvider{}, &fakeMedalProvider{}, &fakeHealthChecker{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/5/stats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUserStats_InvalidParams(t *testing.T) {
	router := setupRouter(&fakeStatsProvider{}, &fakeMedalProvider{}, &fakeHealthChecker{})

	tests := []struct {
		name string
		url  string
	}{
		{"non-numeric user id", "/api/v1/users/abc/stats"},
		{"non-numeric ruleset", "/api/v1/users/5/stats?ruleset=standard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetUserStats_ProviderError(t *testing.T) {
	provider := &fakeStatsProvider{err: errors.New("db gone")}
	router := setupRouter(provider, &fakeMedalProvider{}, &fakeHealthChecker{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/5/stats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetUserMedals(t *testing.T) {
	provider := &fakeMedalProvider{
		medals: []models.UserMedal{
			{ID: 1, UserID: 5, MedalID: 1, Medal: models.Medal{ID: 1, Slug: "first-steps"}, AwardedAt: time.Now()},
			{ID: 2, UserID: 5, MedalID: 2, Medal: models.Medal{ID: 2, Slug: "combo-500"}, AwardedAt: time.Now()},
		},
	}
	router := setupRouter(&fakeStatsProvider{}, provider, &fakeHealthChecker{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/5/medals", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Medals []models.UserMedal `json:"medals"`
		Total  int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Medals, 2)
	assert.Equal(t, "first-steps", body.Medals[0].Medal.Slug)
}

func TestHealth(t *testing.T) {
	router := setupRouter(&fakeStatsProvider{}, &fakeMedalProvider{}, &fakeHealthChecker{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_Unavailable(t *testing.T) {
	router := setupRouter(&fakeStatsProvider{}, &fakeMedalProvider{}, &fakeHealthChecker{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
