package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vidamed/backend/internal/domain/document"
	infraconfig "github.com/vidamed/backend/internal/infrastructure/config"
)

// LocalFileStore stores PDF artifacts on the local filesystem under a
// root directory, addressed through a public URL prefix the HTTP layer
// serves the directory at.
type LocalFileStore struct {
	root         string
	publicPrefix string
	logger       *zap.Logger
}

// NewLocalFileStore creates the filesystem backend and ensures the root
// directory exists.
func NewLocalFileStore(cfg *infraconfig.LocalStorageConfig, logger *zap.Logger) (*LocalFileStore, error) {
	if cfg == nil || cfg.RootPath == "" {
		return nil, errors.New("local storage root path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("invalid local storage root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage root: %w", err)
	}

	prefix := cfg.PublicPrefix
	if prefix == "" {
		prefix = "/media"
	}
	prefix = "/" + strings.Trim(prefix, "/")

	return &LocalFileStore{
		root:         root,
		publicPrefix: prefix,
		logger:       logger,
	}, nil
}

// Available always reports true, the local disk is the backend of last resort
func (l *LocalFileStore) Available() bool {
	return true
}

// Root returns the absolute directory artifacts are written under
func (l *LocalFileStore) Root() string {
	return l.root
}

// PublicPrefix returns the URL prefix local references are issued under
func (l *LocalFileStore) PublicPrefix() string {
	return l.publicPrefix
}

// Store writes the PDF to "<root>/<category>/<id>.pdf" and returns a
// local reference carrying the public path.
func (l *LocalFileStore) Store(ctx context.Context, category, id string, data []byte) (document.ArtifactRef, error) {
	if category == "" || id == "" {
		return document.ArtifactRef{}, errors.New("category and id are required")
	}
	if err := ctx.Err(); err != nil {
		return document.ArtifactRef{}, err
	}

	path, err := l.resolve(category, id+".pdf")
	if err != nil {
		return document.ArtifactRef{}, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return document.ArtifactRef{}, fmt.Errorf("failed to create category directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return document.ArtifactRef{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	ref := l.publicPrefix + "/" + category + "/" + id + ".pdf"

	l.logger.Info("artifact written",
		zap.String("path", path),
		zap.Int("bytes", len(data)))

	return document.ArtifactRef{Backend: document.BackendLocal, Value: ref}, nil
}

// Delete removes the file a public path points at. Paths outside this
// store's prefix are ignored, and deleting a file that is already gone
// is not an error.
func (l *LocalFileStore) Delete(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, ok := strings.CutPrefix(value, l.publicPrefix+"/")
	if !ok || rel == "" {
		l.logger.Warn("skipping delete of unrecognized artifact path", zap.String("path", value))
		return nil
	}

	path, err := l.resolve(rel)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// KeepArtifact decides whether a stale candidate must survive a
// retention sweep. id is parsed from the file name, ref is the public
// reference the file was issued under.
type KeepArtifact func(ctx context.Context, id uint, ref document.ArtifactRef) (bool, error)

// CleanupOlderThan removes artifacts not modified within the retention
// window and returns how many files were deleted. keep is consulted per
// candidate so files still referenced by a stored row survive the sweep;
// when the check errors the file is skipped, never removed. Files
// outside the "<category>/<id>.pdf" layout and empty category
// directories are left in place.
func (l *LocalFileStore) CleanupOlderThan(ctx context.Context, retention time.Duration, keep KeepArtifact) (int, error) {
	cutoff := time.Now().Add(-retention)
	removed := 0

	err := filepath.WalkDir(l.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		id, ref, ok := l.describe(path)
		if !ok {
			return nil
		}
		if keep != nil {
			mustKeep, err := keep(ctx, id, ref)
			if err != nil {
				l.logger.Warn("skipping artifact, liveness check failed",
					zap.String("path", path),
					zap.Error(err))
				return nil
			}
			if mustKeep {
				return nil
			}
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleanup walk failed: %w", err)
	}

	if removed > 0 {
		l.logger.Info("stale artifacts removed", zap.Int("count", removed))
	}
	return removed, nil
}

// describe maps an on-disk artifact back to its document id and public
// reference. Files outside the "<category>/<id>.pdf" layout report ok
// false.
func (l *LocalFileStore) describe(path string) (uint, document.ArtifactRef, bool) {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return 0, document.ArtifactRef{}, false
	}
	rel = filepath.ToSlash(rel)

	parts := strings.Split(rel, "/")
	if len(parts) != 2 || !strings.HasSuffix(parts[1], ".pdf") {
		return 0, document.ArtifactRef{}, false
	}
	id, err := strconv.ParseUint(strings.TrimSuffix(parts[1], ".pdf"), 10, 32)
	if err != nil {
		return 0, document.ArtifactRef{}, false
	}

	ref := document.ArtifactRef{
		Backend: document.BackendLocal,
		Value:   l.publicPrefix + "/" + rel,
	}
	return uint(id), ref, true
}

// resolve joins path elements under the root, rejecting anything that
// escapes it.
func (l *LocalFileStore) resolve(elems ...string) (string, error) {
	path := filepath.Join(append([]string{l.root}, elems...)...)
	path = filepath.Clean(path)
	if path != l.root && !strings.HasPrefix(path, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path escapes storage root: %s", filepath.Join(elems...))
	}
	return path, nil
}
