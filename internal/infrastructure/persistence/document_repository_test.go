package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidamed/backend/internal/application/issuance"
	"github.com/vidamed/backend/internal/domain/document"
	"github.com/vidamed/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupDocumentTestDB creates an in-memory SQLite database for testing
func setupDocumentTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE issued_documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			doctor_id INTEGER NOT NULL,
			patient_id INTEGER NOT NULL,
			purpose TEXT,
			rest_days INTEGER NOT NULL DEFAULT 0,
			cid TEXT,
			medications TEXT,
			instructions TEXT,
			artifact_value TEXT,
			artifact_backend TEXT,
			issued_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error
	require.NoError(t, err)

	return db
}

func newTestDocument(code string) *document.Document {
	return &document.Document{
		Code:      code,
		Kind:      document.KindCertificate,
		Status:    document.StatusPending,
		DoctorID:  1,
		PatientID: 2,
		Purpose:   "consulta",
		RestDays:  3,
		IssuedAt:  time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestGormDocumentRepository_Insert(t *testing.T) {
	db := setupDocumentTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	doc := newTestDocument("AB23CD45")
	err := repo.Insert(ctx, doc)
	require.NoError(t, err)
	assert.NotZero(t, doc.ID)

	t.Run("duplicate code reports already exists", func(t *testing.T) {
		dup := newTestDocument("AB23CD45")
		err := repo.Insert(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestGormDocumentRepository_FindByCode(t *testing.T) {
	db := setupDocumentTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	doc := newTestDocument("XY78ZW23")
	require.NoError(t, repo.Insert(ctx, doc))

	found, err := repo.FindByCode(ctx, "XY78ZW23")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)
	assert.Equal(t, document.StatusPending, found.Status)
	assert.Nil(t, found.Artifact)

	_, err = repo.FindByCode(ctx, "MISSING9")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormDocumentRepository_ExistsByCode(t *testing.T) {
	db := setupDocumentTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTestDocument("TAKEN234")))

	exists, err := repo.ExistsByCode(ctx, "TAKEN234")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByCode(ctx, "FREE2345")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormDocumentRepository_SetArtifact(t *testing.T) {
	db := setupDocumentTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	doc := newTestDocument("ST99AB23")
	require.NoError(t, repo.Insert(ctx, doc))

	ref := document.ArtifactRef{Backend: document.BackendLocal, Value: "/media/certificates/1.pdf"}
	require.NoError(t, repo.SetArtifact(ctx, doc.ID, ref))

	found, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusStored, found.Status)
	require.NotNil(t, found.Artifact)
	assert.Equal(t, document.BackendLocal, found.Artifact.Backend)
	assert.Equal(t, "/media/certificates/1.pdf", found.Artifact.Value)
	assert.True(t, found.HasArtifact())

	t.Run("missing row reports not found", func(t *testing.T) {
		err := repo.SetArtifact(ctx, 99999, ref)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormDocumentRepository_DeleteByIDs(t *testing.T) {
	db := setupDocumentTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	first := newTestDocument("DEL23456")
	second := newTestDocument("DEL78923")
	require.NoError(t, repo.Insert(ctx, first))
	require.NoError(t, repo.Insert(ctx, second))

	// One present id, one absent: only the present row counts
	count, err := repo.DeleteByIDs(ctx, []uint{first.ID, 99999})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = repo.FindByID(ctx, first.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	remaining, err := repo.FindByIDs(ctx, []uint{second.ID})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	count, err = repo.DeleteByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGormDocumentRepository_ConcurrentCodesAreDistinct(t *testing.T) {
	db := setupDocumentTestDB(t)

	// A single pooled connection keeps every goroutine on the same
	// in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewGormDocumentRepository(db)
	codegen := issuance.NewCodeGenerator(repo, zap.NewNop())
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := codegen.ReserveUnique(ctx, issuance.DefaultCodeLength, 5)
			if err != nil {
				errs <- err
				return
			}
			if err := repo.Insert(ctx, newTestDocument(code)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var codes []string
	require.NoError(t, db.Table("issued_documents").Pluck("code", &codes).Error)
	require.Len(t, codes, workers)

	seen := make(map[string]bool, workers)
	for _, code := range codes {
		assert.False(t, seen[code], "code %s issued twice", code)
		assert.Len(t, code, issuance.DefaultCodeLength)
		seen[code] = true
	}
}

func TestDocumentModelLegacyArtifactShape(t *testing.T) {
	db := setupDocumentTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	// Rows written before the backend column existed carry only the value;
	// the backend kind is re-derived once, at load time.
	require.NoError(t, db.Exec(`
		INSERT INTO issued_documents
			(code, kind, status, doctor_id, patient_id, rest_days, artifact_value, issued_at, updated_at)
		VALUES
			('LEGACY23', 'CERTIFICATE', 'STORED', 1, 2, 0, 'https://cdn.example.com/docs/certificates/7.pdf', ?, ?)
	`, time.Now(), time.Now()).Error)

	found, err := repo.FindByCode(ctx, "LEGACY23")
	require.NoError(t, err)
	require.NotNil(t, found.Artifact)
	assert.Equal(t, document.BackendRemote, found.Artifact.Backend)
}
