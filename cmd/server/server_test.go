package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrack/github-activity-tracker/internal/analysis"
	"github.com/devtrack/github-activity-tracker/internal/cache"
	"github.com/devtrack/github-activity-tracker/internal/config"
	"github.com/devtrack/github-activity-tracker/internal/github"
	"github.com/devtrack/github-activity-tracker/internal/monitoring"
	"github.com/devtrack/github-activity-tracker/internal/ratelimit"
)

const upstreamEvents = `[
	{
		"id": 101,
		"type": "PushEvent",
		"actor": {"login": "octocat", "id": 1},
		"repo": {"id": 10, "name": "octocat/hello-world", "url": "https://api.github.com/repos/octocat/hello-world"},
		"created_at": "2024-05-01T10:00:00Z"
	},
	{
		"id": 102,
		"type": "IssuesEvent",
		"actor": {"login": "octocat", "id": 1},
		"repo": {"id": 20, "name": "other/project", "url": "https://api.github.com/repos/other/project"},
		"created_at": "2024-05-01T11:00:00Z"
	}
]`

// newTestRouter builds the full router backed by a stub GitHub API.
func newTestRouter(t *testing.T, upstream http.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Port:            "8080",
		LogLevel:        "error",
		GitHubBaseURL:   srv.URL,
		RequestTimeout:  5 * time.Second,
		CacheTTL:        time.Minute,
		CacheMaxSize:    100,
		IPRateLimit:     1000,
		RateLimitBurst:  2,
		AllowedOrigins:  []string{"http://localhost:3000"},
		ShutdownTimeout: time.Second,
	}

	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger(cfg.LogLevel)

	eventCache, err := cache.New[[]github.Event](cfg.CacheTTL, cfg.CacheMaxSize)
	require.NoError(t, err)

	githubClient := github.NewClient(srv.URL, cfg.RequestTimeout, eventCache, appMetrics)

	redisClient, err := ratelimit.NewRedisClient("", "", 0)
	require.NoError(t, err)

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   cfg.IPRateLimit,
		BurstMultiplier: cfg.RateLimitBurst,
	}, appMetrics)
	t.Cleanup(func() { _ = limiter.Close() })

	return setupRouter(cfg, appMetrics, appLogger, eventCache, githubClient, limiter)
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestActivityEndpointSuccess(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/users/octocat/events", req.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(upstreamEvents))
	})

	w := doRequest(r, "GET", "/api/v1/users/octocat/activity")
	require.Equal(t, http.StatusOK, w.Code)

	var report analysis.UserActivityReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	assert.Equal(t, "octocat", report.Username)
	assert.Equal(t, 2, report.TotalEvents)
	assert.Equal(t, 2, report.TotalRepositories)
	require.Len(t, report.Repositories, 2)

	assert.Equal(t, "octocat/hello-world", report.Repositories[0].RepositoryName)
	assert.True(t, report.Repositories[0].IsOwner)
	require.Len(t, report.Repositories[0].TopActivityTypes, 1)
	assert.Equal(t, "PushEvent", report.Repositories[0].TopActivityTypes[0].Type)
	assert.Equal(t, 1, report.Repositories[0].TopActivityTypes[0].Count)

	assert.Equal(t, "other/project", report.Repositories[1].RepositoryName)
	assert.False(t, report.Repositories[1].IsOwner)
}

func TestActivityEndpointEmptyEvents(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	w := doRequest(r, "GET", "/api/v1/users/octocat/activity")
	require.Equal(t, http.StatusOK, w.Code)

	var report analysis.UserActivityReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	assert.Equal(t, 0, report.TotalEvents)
	assert.Equal(t, 0, report.TotalRepositories)
	assert.NotNil(t, report.Repositories)
	assert.Empty(t, report.Repositories)
}

func TestActivityEndpointInvalidUsername(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("upstream should not be called for invalid usernames")
	})

	tests := []struct {
		name string
		path string
	}{
		{name: "leading hyphen", path: "/api/v1/users/-octocat/activity"},
		{name: "double hyphen", path: "/api/v1/users/oct--cat/activity"},
		{name: "too long", path: "/api/v1/users/" + strings.Repeat("a", 40) + "/activity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, "GET", tt.path)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "validation", body["category"])
		})
	}
}

func TestActivityEndpointUserNotFound(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := doRequest(r, "GET", "/api/v1/users/ghostuser/activity")
	require.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["category"])
}

func TestActivityEndpointUpstreamRateLimited(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	w := doRequest(r, "GET", "/api/v1/users/octocat/activity")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit", body["category"])
	assert.Equal(t, float64(30), body["retry_after"])
}

func TestActivityEndpointUpstreamFailure(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := doRequest(r, "GET", "/api/v1/users/octocat/activity")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "upstream", body["category"])
}

func TestActivityEndpointCachesUpstreamCalls(t *testing.T) {
	var calls int64
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(upstreamEvents))
	})

	for i := 0; i < 3; i++ {
		w := doRequest(r, "GET", "/api/v1/users/octocat/activity")
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestActivityEndpointFailuresAreRetried(t *testing.T) {
	var calls int64
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(upstreamEvents))
	})

	w := doRequest(r, "GET", "/api/v1/users/octocat/activity")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	// The failed fetch must not be cached, so the next request hits upstream
	// again and succeeds.
	w = doRequest(r, "GET", "/api/v1/users/octocat/activity")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {})

	w := doRequest(r, "GET", "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestStatsEndpoints(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {})

	for _, path := range []string{"/metrics", "/cache/stats", "/ratelimit/stats"} {
		w := doRequest(r, "GET", path)
		assert.Equal(t, http.StatusOK, w.Code, path)

		var body map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), path)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {})

	w := doRequest(r, "GET", "/health")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRateLimitHeadersOnAPIRoutes(t *testing.T) {
	r := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	w := doRequest(r, "GET", "/api/v1/users/octocat/activity")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
}
