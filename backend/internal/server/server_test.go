package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainvibe/backend/internal/adapter"
	"brainvibe/backend/internal/brain"
	"brainvibe/backend/internal/store"
	"brainvibe/backend/internal/topic"
	apperrors "brainvibe/backend/pkg/errors"
)

type fakeExtractor struct {
	topics []topic.ProposedTopic
	err    error
	last   adapter.DiffRequest
}

func (f *fakeExtractor) ExtractTopics(ctx context.Context, req adapter.DiffRequest) (*adapter.Extraction, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &adapter.Extraction{Topics: f.topics, Stats: adapter.DiffStats{Files: 1}}, nil
}

func newTestServer(t *testing.T, extractor Extractor) (*Server, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.New()
	return New(brain.NewPipeline(s), extractor, Options{}), s
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["llm_configured"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_OriginListWithSpaces(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var srv *Server
	require.NotPanics(t, func() {
		srv = New(brain.NewPipeline(store.New()), nil, Options{CORSAllowOrigin: "http://a.example, http://b.example,"})
	})

	for origin, allowed := range map[string]string{
		"http://b.example": "http://b.example",
		"http://c.example": "",
	} {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, allowed, w.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, splitOrigins(" http://a.example/ ,, http://b.example "))
	assert.Empty(t, splitOrigins(" , "))
}

func TestUnversionedAPIPrefix(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/projects", map[string]string{"project_id": "legacy"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/projects/legacy", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, srv, http.MethodGet, "/api/master-graph", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCreateProject(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/projects", map[string]string{"project_id": "web-app-1", "name": "Web App"})
	require.Equal(t, http.StatusCreated, w.Code)
	var p topic.Project
	decode(t, w, &p)
	assert.Equal(t, "web-app-1", p.ID)
	assert.Equal(t, "Web App", p.Name)

	w = do(t, srv, http.MethodPost, "/api/v1/projects", map[string]string{"project_id": "web-app-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/projects", map[string]string{"name": "no id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/projects/web-app-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/projects", nil)
	var list struct {
		Projects []topic.Project `json:"projects"`
	}
	decode(t, w, &list)
	assert.Len(t, list.Projects, 1)
}

func TestIngestAndGraphs(t *testing.T) {
	srv, s := newTestServer(t, nil)
	_, err := s.CreateProject(context.Background(), "web", "Web", "")
	require.NoError(t, err)

	w := do(t, srv, http.MethodPost, "/api/v1/projects/web/ingest", map[string]any{
		"new_topics": []map[string]any{
			{"topic_id": "react_hooks", "display_name": "React Hooks", "prerequisites": []string{"react_basics"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		NewTopics    []topic.Topic `json:"new_topics"`
		Created      []string      `json:"created"`
		Placeholders []string      `json:"placeholders"`
		ProjectGraph brain.Graph   `json:"project_graph"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.NewTopics, 1)
	assert.Equal(t, "react_hooks", resp.NewTopics[0].ID)
	assert.Equal(t, []string{"react_hooks"}, resp.Created)
	assert.Equal(t, []string{"react_basics"}, resp.Placeholders)
	assert.Len(t, resp.ProjectGraph.Nodes, 2)
	assert.True(t, resp.ProjectGraph.HasEdge("react_basics", "react_hooks"))

	w = do(t, srv, http.MethodGet, "/api/v1/projects/web/topics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/projects/web/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var g brain.Graph
	decode(t, w, &g)
	assert.Equal(t, "web", g.ProjectID)
	assert.Len(t, g.Edges, 1)

	w = do(t, srv, http.MethodGet, "/api/v1/master-graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &g)
	assert.Len(t, g.Nodes, 2)

	w = do(t, srv, http.MethodGet, "/api/v1/topics/react_hooks/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"project_id":"web"`)
}

func TestIngestUnknownProject(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/projects/nope/ingest", map[string]any{
		"topics": []map[string]any{{"title": "Go Channels"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/projects/nope/graph", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTopicStatusRoutes(t *testing.T) {
	srv, s := newTestServer(t, nil)
	ctx := context.Background()
	_, err := s.CreateProject(ctx, "ml", "ML", "")
	require.NoError(t, err)
	_, err = brain.NewPipeline(s).Ingest(ctx, "ml", []topic.ProposedTopic{{TopicID: "python_numpy"}})
	require.NoError(t, err)

	w := do(t, srv, http.MethodPost, "/api/v1/topics/python_numpy/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got topic.Topic
	decode(t, w, &got)
	assert.Equal(t, topic.Learned, got.Status)

	w = do(t, srv, http.MethodPost, "/api/v1/topics/python_numpy/complete", map[string]string{"status": "in-progress"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &got)
	assert.Equal(t, topic.InProgress, got.Status)

	w = do(t, srv, http.MethodPost, "/api/v1/topics/python_numpy/complete", map[string]string{"status": "mastered"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/topics/missing/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/projects/ml/topics/python_numpy/status", map[string]string{"status": "LEARNED"})
	require.Equal(t, http.StatusOK, w.Code)
	p, ok := s.Project("ml")
	require.True(t, ok)
	assert.Equal(t, topic.Learned, p.Progress["python_numpy"])

	w = do(t, srv, http.MethodPost, "/api/v1/projects/ml/topics/python_numpy/status", map[string]string{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/projects/ml/topics/unknown/status", map[string]string{"status": "LEARNED"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/topics/python_numpy", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, srv, http.MethodGet, "/api/v1/topics/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeDiff(t *testing.T) {
	extractor := &fakeExtractor{topics: []topic.ProposedTopic{
		{TopicID: "go_channels", DisplayName: "Go Channels", Prerequisites: []string{"goroutines"}},
	}}
	srv, s := newTestServer(t, extractor)
	ctx := context.Background()
	_, err := s.CreateProject(ctx, "svc", "Service", "")
	require.NoError(t, err)
	_, err = brain.NewPipeline(s).Ingest(ctx, "svc", []topic.ProposedTopic{{TopicID: "goroutines"}})
	require.NoError(t, err)

	w := do(t, srv, http.MethodPost, "/api/v1/projects/svc/analyze-diff", map[string]string{
		"git_diff": "diff --git a/main.go b/main.go",
		"prompt":   "add a worker",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		ProjectID string            `json:"project_id"`
		NewTopics []topic.Topic     `json:"new_topics"`
		Diff      adapter.DiffStats `json:"diff"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "svc", resp.ProjectID)
	require.Len(t, resp.NewTopics, 1)
	assert.Equal(t, []string{"goroutines"}, resp.NewTopics[0].Prerequisites)
	assert.Equal(t, 1, resp.Diff.Files)

	assert.Equal(t, "add a worker", extractor.last.Prompt)
	require.Len(t, extractor.last.KnownTopics, 1)
	assert.Equal(t, "goroutines", extractor.last.KnownTopics[0].ID)

	w = do(t, srv, http.MethodPost, "/api/v1/projects/svc/analyze-diff", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/projects/other/analyze-diff", map[string]string{"git_diff": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeDiff_Errors(t *testing.T) {
	srv, s := newTestServer(t, nil)
	_, err := s.CreateProject(context.Background(), "svc", "Service", "")
	require.NoError(t, err)

	w := do(t, srv, http.MethodPost, "/api/v1/projects/svc/analyze-diff", map[string]string{"git_diff": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	failing := &fakeExtractor{err: apperrors.NewLLMFailed("gemini", 3, true, assert.AnError)}
	srv = New(brain.NewPipeline(s), failing, Options{})
	w = do(t, srv, http.MethodPost, "/api/v1/projects/svc/analyze-diff", map[string]string{"git_diff": "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	p, _ := s.Project("svc")
	assert.Empty(t, p.TopicIDs)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"project not found", apperrors.NewProjectNotFound("p"), http.StatusNotFound},
		{"topic not found", apperrors.NewTopicNotFound("t"), http.StatusNotFound},
		{"project exists", apperrors.NewProjectExists("p"), http.StatusConflict},
		{"invalid status", apperrors.NewInvalidStatus("x"), http.StatusBadRequest},
		{"invalid identifier", apperrors.NewInvalidIdentifier("!!"), http.StatusBadRequest},
		{"llm unavailable", apperrors.ErrLLMUnavailable, http.StatusServiceUnavailable},
		{"llm parse", apperrors.NewLLMParseFailed("nope", assert.AnError), http.StatusBadGateway},
		{"cancelled", apperrors.NewContextCancelled("ingest", context.Canceled), http.StatusServiceUnavailable},
		{"other", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
