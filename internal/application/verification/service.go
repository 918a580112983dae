// Package verification resolves user-supplied identifiers back to issued
// documents and projects them into public or authenticated views.
package verification

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/vidamed/backend/internal/domain/document"
	"github.com/vidamed/backend/internal/domain/profile"
	"github.com/vidamed/backend/internal/domain/shared"
	"github.com/vidamed/backend/internal/infrastructure/telemetry"
)

// ViewKind selects how much of the record a resolution exposes
type ViewKind string

const (
	// ViewPublic is the anonymous verification view with a redacted subject name
	ViewPublic ViewKind = "public"
	// ViewAuthenticated is the view for callers already authorized to see the record
	ViewAuthenticated ViewKind = "authenticated"
)

// Service resolves verification codes and numeric ids to document views
type Service struct {
	docs     document.Repository
	doctors  profile.DoctorRepository
	patients profile.PatientRepository
	logger   *zap.Logger
}

// NewService creates the resolver
func NewService(
	docs document.Repository,
	doctors profile.DoctorRepository,
	patients profile.PatientRepository,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		docs:     docs,
		doctors:  doctors,
		patients: patients,
		logger:   logger,
	}
}

// Resolve looks up a document by verification code, falling back to a
// numeric id lookup when the raw identifier is all digits. Every miss
// surfaces as the same not-found error so callers cannot probe which
// codes exist.
func (s *Service) Resolve(ctx context.Context, identifier string, view ViewKind) (*DocumentView, error) {
	ctx, span := telemetry.StartSpan(ctx, "verification.resolve")
	defer span.End()

	doc, err := s.lookup(ctx, identifier)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			telemetry.RecordError(span, err)
		}
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentID, int(doc.ID))

	doctor, err := s.doctors.FindByID(ctx, doc.DoctorID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	patient, err := s.patients.FindByID(ctx, doc.PatientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return NewDocumentView(doc, doctor, patient, view), nil
}

// lookup tries the code first, then the numeric id for all-digit input
func (s *Service) lookup(ctx context.Context, identifier string) (*document.Document, error) {
	code := document.NormalizeCode(identifier)
	if code == "" {
		return nil, shared.ErrNotFound
	}

	doc, err := s.docs.FindByCode(ctx, code)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if id, ok := parseNumericID(identifier); ok {
		doc, err := s.docs.FindByID(ctx, id)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}

	return nil, shared.ErrNotFound
}

// parseNumericID accepts only identifiers composed entirely of digits
func parseNumericID(raw string) (uint, bool) {
	if raw == "" {
		return 0, false
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
