package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidamed/backend/internal/domain/document"
	infraconfig "github.com/vidamed/backend/internal/infrastructure/config"
)

func newTestLocalStore(t *testing.T) *LocalFileStore {
	t.Helper()
	store, err := NewLocalFileStore(&infraconfig.LocalStorageConfig{
		RootPath:     t.TempDir(),
		PublicPrefix: "/media",
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestLocalFileStore_StoreAndDelete(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	ref, err := store.Store(ctx, "certificates", "42", []byte("%PDF-1.4 fake"))
	require.NoError(t, err)

	assert.Equal(t, document.BackendLocal, ref.Backend)
	assert.Equal(t, "/media/certificates/42.pdf", ref.Value)

	path := filepath.Join(store.Root(), "certificates", "42.pdf")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), data)

	require.NoError(t, store.Delete(ctx, ref.Value))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLocalFileStore_DeleteIdempotent(t *testing.T) {
	store := newTestLocalStore(t)

	assert.NoError(t, store.Delete(context.Background(), "/media/certificates/404.pdf"))
}

func TestLocalFileStore_DeleteIgnoresForeignPaths(t *testing.T) {
	store := newTestLocalStore(t)

	assert.NoError(t, store.Delete(context.Background(), "https://cdn.example.com/docs/certificates/1.pdf"))
	assert.NoError(t, store.Delete(context.Background(), "/uploads/certificates/1.pdf"))
}

func TestLocalFileStore_RejectsTraversal(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, "../escape", "42", []byte("x"))
	assert.Error(t, err)

	err = store.Delete(ctx, "/media/../../etc/passwd")
	assert.Error(t, err)
}

func TestLocalFileStore_CleanupOlderThan(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, "certificates", "1", []byte("x"))
	require.NoError(t, err)
	_, err = store.Store(ctx, "certificates", "2", []byte("y"))
	require.NoError(t, err)

	oldPath := filepath.Join(store.Root(), "certificates", "1.pdf")
	stale := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	removed, err := store.CleanupOlderThan(ctx, 24*time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(store.Root(), "certificates", "2.pdf"))
	assert.NoError(t, err)
}

func TestLocalFileStore_CleanupKeepsReferencedArtifacts(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	storedRef, err := store.Store(ctx, "certificates", "42", []byte("stored"))
	require.NoError(t, err)
	_, err = store.Store(ctx, "certificates", "43", []byte("orphan"))
	require.NoError(t, err)

	stale := time.Now().Add(-40 * 24 * time.Hour)
	storedPath := filepath.Join(store.Root(), "certificates", "42.pdf")
	orphanPath := filepath.Join(store.Root(), "certificates", "43.pdf")
	require.NoError(t, os.Chtimes(storedPath, stale, stale))
	require.NoError(t, os.Chtimes(orphanPath, stale, stale))

	keep := func(_ context.Context, id uint, ref document.ArtifactRef) (bool, error) {
		if id == 42 {
			assert.Equal(t, storedRef, ref)
			return true, nil
		}
		return false, nil
	}

	removed, err := store.CleanupOlderThan(ctx, 30*24*time.Hour, keep)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(storedPath)
	assert.NoError(t, err)
	_, err = os.Stat(orphanPath)
	assert.True(t, os.IsNotExist(err))
}

func TestLocalFileStore_CleanupSkipsOnKeepError(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, "certificates", "7", []byte("x"))
	require.NoError(t, err)

	path := filepath.Join(store.Root(), "certificates", "7.pdf")
	stale := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	keep := func(context.Context, uint, document.ArtifactRef) (bool, error) {
		return false, errors.New("db unavailable")
	}

	removed, err := store.CleanupOlderThan(ctx, 24*time.Hour, keep)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
