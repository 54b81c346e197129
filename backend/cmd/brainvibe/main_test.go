package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainvibe/backend/internal/adapter"
	"brainvibe/backend/internal/brain"
	"brainvibe/backend/internal/server"
	"brainvibe/backend/internal/store"
	"brainvibe/backend/internal/topic"
)

type stubExtractor struct {
	topics []topic.ProposedTopic
}

func (s stubExtractor) ExtractTopics(ctx context.Context, req adapter.DiffRequest) (*adapter.Extraction, error) {
	return &adapter.Extraction{Topics: s.topics, Stats: adapter.DiffStats{Files: 1, LinesAdded: 3}}, nil
}

const channelDiff = `diff --git a/worker.go b/worker.go
--- a/worker.go
+++ b/worker.go
@@ -1,1 +1,3 @@
+ch := make(chan int)
+go produce(ch)
+consume(ch)
`

func newBackend(t *testing.T) (string, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.New()
	srv := server.New(brain.NewPipeline(s), stubExtractor{topics: []topic.ProposedTopic{
		{TopicID: "go_channels", DisplayName: "Go Channels", Prerequisites: []string{"goroutines"}},
	}}, server.Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, s
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInitWritesConfig(t *testing.T) {
	url, s := newBackend(t)
	dir := t.TempDir()

	out, err := runCLI(t, "init", "-C", dir, "--server", url, "--name", "Demo App")
	require.NoError(t, err)
	assert.Contains(t, out, "Created project demo_app")

	p, ok := s.Project("demo_app")
	require.True(t, ok)
	assert.Equal(t, "Demo App", p.Name)

	v := viper.New()
	v.SetConfigFile(configPath(dir))
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "demo_app", v.GetString("project"))
	assert.Equal(t, url, v.GetString("server"))

	_, err = runCLI(t, "init", "-C", dir, "--server", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInitLinksExistingProject(t *testing.T) {
	url, s := newBackend(t)
	_, err := s.CreateProject(context.Background(), "shared", "Shared", "")
	require.NoError(t, err)

	out, err := runCLI(t, "init", "-C", t.TempDir(), "--server", url, "--project", "shared")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestTrackGraphAndComplete(t *testing.T) {
	url, s := newBackend(t)
	dir := t.TempDir()
	_, err := runCLI(t, "init", "-C", dir, "--server", url, "--name", "worker")
	require.NoError(t, err)

	diffFile := filepath.Join(dir, "change.diff")
	require.NoError(t, os.WriteFile(diffFile, []byte(channelDiff), 0o644))

	out, err := runCLI(t, "track", "-C", dir, "--diff-file", diffFile, "--prompt", "add a worker")
	require.NoError(t, err)
	assert.Contains(t, out, "Go Channels")
	assert.Contains(t, out, "requires goroutines")
	assert.Contains(t, out, "Added prerequisites: goroutines")

	tracked, err := s.ProjectTopics("worker")
	require.NoError(t, err)
	assert.Len(t, tracked, 2)

	out, err = runCLI(t, "graph", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Project worker: 2 topics, 1 prerequisites")
	assert.Less(t, strings.Index(out, "Goroutines"), strings.Index(out, "Go Channels"))

	out, err = runCLI(t, "complete", "go_channels", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "go_channels is learned")
	got, _ := s.Topic("go_channels")
	assert.Equal(t, topic.Learned, got.Status)

	_, err = runCLI(t, "complete", "goroutines", "-C", dir, "--local", "--status", "in-progress")
	require.NoError(t, err)
	p, _ := s.Project("worker")
	assert.Equal(t, topic.InProgress, p.Progress["goroutines"])

	out, err = runCLI(t, "graph", "-C", dir, "--master")
	require.NoError(t, err)
	assert.Contains(t, out, "All projects: 2 topics")
}

func TestTrackWithoutProject(t *testing.T) {
	_, err := runCLI(t, "track", "-C", t.TempDir(), "--diff-file", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no project configured")
}

func TestTrackEmptyDiff(t *testing.T) {
	url, s := newBackend(t)
	_, err := s.CreateProject(context.Background(), "quiet", "Quiet", "")
	require.NoError(t, err)

	cmd := newRootCmd()
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"track", "-C", t.TempDir(), "--server", url, "--project", "quiet", "--diff-file", "-"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "No changes to analyze")
}

func TestCompleteUnknownTopic(t *testing.T) {
	url, _ := newBackend(t)

	_, err := runCLI(t, "complete", "nope", "--server", url, "-C", t.TempDir())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "topic not found")
}

func TestTrackWatchSendsSettledChanges(t *testing.T) {
	url, s := newBackend(t)
	dir := t.TempDir()
	_, err := runCLI(t, "init", "-C", dir, "--server", url, "--name", "watched")
	require.NoError(t, err)

	diffFile := filepath.Join(t.TempDir(), "change.diff")
	require.NoError(t, os.WriteFile(diffFile, []byte(channelDiff), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := newRootCmd()
	out := &lockedBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"track", "-C", dir, "--watch", "--debounce", "20ms", "--diff-file", diffFile})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = os.WriteFile(filepath.Join(dir, "worker.go"), []byte(strings.Repeat("x", n)), 0o644)
		return strings.Contains(out.String(), "Go Channels (")
	}, 5*time.Second, 50*time.Millisecond)

	tracked, err := s.ProjectTopics("watched")
	require.NoError(t, err)
	assert.NotEmpty(t, tracked)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("track --watch did not stop")
	}
	assert.Contains(t, out.String(), "Watching")
	assert.Contains(t, out.String(), "Go Channels")
	assert.Equal(t, 1, strings.Count(out.String(), "Go Channels ("), "an unchanged diff is sent once")
}

func TestTrackWatchRejectsStdin(t *testing.T) {
	_, err := runCLI(t, "track", "-C", t.TempDir(), "--project", "p", "--watch", "--diff-file", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
