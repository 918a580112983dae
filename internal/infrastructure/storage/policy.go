package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vidamed/backend/internal/domain/document"
	"github.com/vidamed/backend/internal/domain/shared"
)

// Backend is one artifact storage target
type Backend interface {
	// Available reports whether the backend can accept work right now
	Available() bool
	// Store persists the PDF under the category/id pair and returns its reference
	Store(ctx context.Context, category, id string, data []byte) (document.ArtifactRef, error)
	// Delete removes the artifact a reference value points at, idempotently
	Delete(ctx context.Context, value string) error
}

// Policy persists artifacts on the remote backend when it is available
// and falls back to the local one, and routes deletes to whichever
// backend a reference was issued by.
type Policy struct {
	remote Backend
	local  Backend
	logger *zap.Logger
}

// NewPolicy wires the two backends together
func NewPolicy(remote, local Backend, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		remote: remote,
		local:  local,
		logger: logger,
	}
}

// Persist stores the PDF, preferring the remote backend. A remote
// failure is logged and the local backend tried next; only when every
// backend has failed does the whole operation fail.
func (p *Policy) Persist(ctx context.Context, category, id string, data []byte) (document.ArtifactRef, error) {
	var remoteErr error

	if p.remote != nil && p.remote.Available() {
		ref, err := p.remote.Store(ctx, category, id, data)
		if err == nil {
			return ref, nil
		}
		remoteErr = err
		p.logger.Warn("remote artifact store failed, falling back to local",
			zap.String("category", category),
			zap.String("id", id),
			zap.Error(err))
	}

	if p.local != nil && p.local.Available() {
		ref, err := p.local.Store(ctx, category, id, data)
		if err == nil {
			return ref, nil
		}
		p.logger.Error("local artifact store failed",
			zap.String("category", category),
			zap.String("id", id),
			zap.Error(err))
		if remoteErr != nil {
			return document.ArtifactRef{}, fmt.Errorf("%w: remote: %v, local: %v", shared.ErrStorageExhausted, remoteErr, err)
		}
		return document.ArtifactRef{}, fmt.Errorf("%w: local: %v", shared.ErrStorageExhausted, err)
	}

	if remoteErr != nil {
		return document.ArtifactRef{}, fmt.Errorf("%w: remote: %v", shared.ErrStorageExhausted, remoteErr)
	}
	return document.ArtifactRef{}, shared.ErrStorageExhausted
}

// Remove dispatches a delete to the backend that issued the reference.
// A zero reference and an unknown backend are both treated as nothing
// to do.
func (p *Policy) Remove(ctx context.Context, ref document.ArtifactRef) error {
	if ref.IsZero() {
		return nil
	}

	switch ref.Backend {
	case document.BackendRemote:
		if p.remote == nil || !p.remote.Available() {
			p.logger.Warn("remote backend unavailable, leaving artifact behind",
				zap.String("value", ref.Value))
			return nil
		}
		return p.remote.Delete(ctx, ref.Value)
	case document.BackendLocal:
		if p.local == nil {
			return nil
		}
		return p.local.Delete(ctx, ref.Value)
	default:
		p.logger.Warn("artifact reference with unknown backend",
			zap.String("backend", string(ref.Backend)),
			zap.String("value", ref.Value))
		return nil
	}
}
