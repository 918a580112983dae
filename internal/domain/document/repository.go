package document

import "context"

// Repository defines persistence operations for issued documents.
// The store enforces a uniqueness constraint on Code; Insert returns
// shared.ErrAlreadyExists when two concurrent issuances race on the same
// freshly generated code.
type Repository interface {
	// Insert persists a new document row and assigns its ID
	Insert(ctx context.Context, doc *Document) error
	// FindByID retrieves a document by its numeric identity
	FindByID(ctx context.Context, id uint) (*Document, error)
	// FindByCode retrieves a document by its verification code
	FindByCode(ctx context.Context, code string) (*Document, error)
	// ExistsByCode checks whether a code is already taken
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// SetArtifact records the stored artifact reference and marks the row STORED
	SetArtifact(ctx context.Context, id uint, ref ArtifactRef) error
	// FindByIDs retrieves the documents matching the given ids
	FindByIDs(ctx context.Context, ids []uint) ([]Document, error)
	// DeleteByIDs removes the matching rows and returns the count actually deleted
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
}
