package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidamed/backend/internal/domain/document"
	"github.com/vidamed/backend/internal/domain/shared"
)

// stubBackend is a scriptable Backend for policy tests
type stubBackend struct {
	available bool
	storeRef  document.ArtifactRef
	storeErr  error
	deleteErr error

	storeCalls  int
	deleteCalls []string
}

func (s *stubBackend) Available() bool { return s.available }

func (s *stubBackend) Store(_ context.Context, _, _ string, _ []byte) (document.ArtifactRef, error) {
	s.storeCalls++
	return s.storeRef, s.storeErr
}

func (s *stubBackend) Delete(_ context.Context, value string) error {
	s.deleteCalls = append(s.deleteCalls, value)
	return s.deleteErr
}

func TestPolicy_PersistPrefersRemote(t *testing.T) {
	remoteRef := document.ArtifactRef{Backend: document.BackendRemote, Value: "https://cdn.example.com/docs/certificates/1.pdf"}
	remote := &stubBackend{available: true, storeRef: remoteRef}
	local := &stubBackend{available: true}

	policy := NewPolicy(remote, local, zap.NewNop())

	ref, err := policy.Persist(context.Background(), "certificates", "1", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, remoteRef, ref)
	assert.Equal(t, 1, remote.storeCalls)
	assert.Equal(t, 0, local.storeCalls)
}

func TestPolicy_PersistFallsBackToLocal(t *testing.T) {
	localRef := document.ArtifactRef{Backend: document.BackendLocal, Value: "/media/certificates/1.pdf"}
	remote := &stubBackend{available: true, storeErr: errors.New("bucket gone")}
	local := &stubBackend{available: true, storeRef: localRef}

	policy := NewPolicy(remote, local, zap.NewNop())

	ref, err := policy.Persist(context.Background(), "certificates", "1", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, localRef, ref)
	assert.Equal(t, 1, remote.storeCalls)
	assert.Equal(t, 1, local.storeCalls)
}

func TestPolicy_PersistSkipsUnavailableRemote(t *testing.T) {
	localRef := document.ArtifactRef{Backend: document.BackendLocal, Value: "/media/certificates/1.pdf"}
	remote := &stubBackend{available: false}
	local := &stubBackend{available: true, storeRef: localRef}

	policy := NewPolicy(remote, local, zap.NewNop())

	ref, err := policy.Persist(context.Background(), "certificates", "1", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, localRef, ref)
	assert.Equal(t, 0, remote.storeCalls)
}

func TestPolicy_PersistExhausted(t *testing.T) {
	remote := &stubBackend{available: true, storeErr: errors.New("bucket gone")}
	local := &stubBackend{available: true, storeErr: errors.New("disk full")}

	policy := NewPolicy(remote, local, zap.NewNop())

	_, err := policy.Persist(context.Background(), "certificates", "1", []byte("pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStorageExhausted)
	assert.Contains(t, err.Error(), "bucket gone")
	assert.Contains(t, err.Error(), "disk full")
}

func TestPolicy_RemoveDispatchesOnBackend(t *testing.T) {
	remote := &stubBackend{available: true}
	local := &stubBackend{available: true}
	policy := NewPolicy(remote, local, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, policy.Remove(ctx, document.ArtifactRef{
		Backend: document.BackendRemote,
		Value:   "https://cdn.example.com/docs/certificates/1.pdf",
	}))
	require.NoError(t, policy.Remove(ctx, document.ArtifactRef{
		Backend: document.BackendLocal,
		Value:   "/media/certificates/2.pdf",
	}))

	assert.Equal(t, []string{"https://cdn.example.com/docs/certificates/1.pdf"}, remote.deleteCalls)
	assert.Equal(t, []string{"/media/certificates/2.pdf"}, local.deleteCalls)
}

func TestPolicy_RemoveZeroRefIsNoop(t *testing.T) {
	remote := &stubBackend{available: true}
	local := &stubBackend{available: true}
	policy := NewPolicy(remote, local, zap.NewNop())

	require.NoError(t, policy.Remove(context.Background(), document.ArtifactRef{}))
	assert.Empty(t, remote.deleteCalls)
	assert.Empty(t, local.deleteCalls)
}

func TestPolicy_RemoveRemoteUnavailableLeavesArtifact(t *testing.T) {
	remote := &stubBackend{available: false}
	local := &stubBackend{available: true}
	policy := NewPolicy(remote, local, zap.NewNop())

	require.NoError(t, policy.Remove(context.Background(), document.ArtifactRef{
		Backend: document.BackendRemote,
		Value:   "https://cdn.example.com/docs/certificates/1.pdf",
	}))
	assert.Empty(t, remote.deleteCalls)
}
