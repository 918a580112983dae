package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/vidamed/backend/internal/domain/document"
	"github.com/vidamed/backend/internal/domain/shared"
	"github.com/vidamed/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// Ensure GormDocumentRepository implements document.Repository
var _ document.Repository = (*GormDocumentRepository)(nil)

// GormDocumentRepository implements document.Repository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// Insert persists a new document row. A duplicate verification code is
// reported as shared.ErrAlreadyExists so the issuer can retry with a fresh
// code instead of surfacing the constraint violation to the caller.
func (r *GormDocumentRepository) Insert(ctx context.Context, doc *document.Document) error {
	model := models.DocumentModelFromDomain(doc)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	doc.ID = model.ID
	doc.IssuedAt = model.IssuedAt
	doc.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID finds a document by its numeric identity
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uint) (*document.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a document by its verification code
func (r *GormDocumentRepository) FindByCode(ctx context.Context, code string) (*document.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByCode checks whether a code is already taken
func (r *GormDocumentRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetArtifact records the stored artifact reference and marks the row STORED
func (r *GormDocumentRepository) SetArtifact(ctx context.Context, id uint, ref document.ArtifactRef) error {
	result := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"artifact_value":   ref.Value,
			"artifact_backend": string(ref.Backend),
			"status":           string(document.StatusStored),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByIDs retrieves the documents matching the given ids
func (r *GormDocumentRepository) FindByIDs(ctx context.Context, ids []uint) ([]document.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var documentModels []models.DocumentModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&documentModels).Error; err != nil {
		return nil, err
	}
	docs := make([]document.Document, len(documentModels))
	for i, model := range documentModels {
		docs[i] = *model.ToDomain()
	}
	return docs, nil
}

// DeleteByIDs removes the matching rows and returns the count actually deleted
func (r *GormDocumentRepository) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.DocumentModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
