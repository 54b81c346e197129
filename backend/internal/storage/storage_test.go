package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainvibe/backend/internal/store"
	"brainvibe/backend/pkg/config"
	apperrors "brainvibe/backend/pkg/errors"
)

func TestOpen_Memory(t *testing.T) {
	p, err := Open(context.Background(), &config.Config{StoreBackend: config.StoreMemory})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreBackend: "sqlite"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestOpenStore_BadgerReload(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StoreBackend: config.StoreBadger,
		BadgerPath:   filepath.Join(t.TempDir(), "brain"),
	}

	s, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, "web", "Web", "")
	require.NoError(t, err)
	_, err = s.UpsertTopic(ctx, "react_hooks", store.TopicFields{Title: "React Hooks", Projects: []string{"web"}})
	require.NoError(t, err)
	require.True(t, s.AttachToProject(ctx, "web", "react_hooks"))
	require.NoError(t, s.Close(ctx))

	reopened, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	p, ok := reopened.Project("web")
	require.True(t, ok)
	assert.Equal(t, []string{"react_hooks"}, p.TopicIDs)
	got, ok := reopened.Topic("react_hooks")
	require.True(t, ok)
	assert.Equal(t, "React Hooks", got.Title)
}
