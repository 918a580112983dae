package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vidamed/backend/internal/domain/document"
	"github.com/vidamed/backend/internal/domain/profile"
	"github.com/vidamed/backend/internal/domain/shared"
	"github.com/vidamed/backend/internal/infrastructure/render"
	"github.com/vidamed/backend/internal/infrastructure/telemetry"
)

// insertRetries bounds how many times a constraint violation at insert
// time restarts the reserve+insert step.
const insertRetries = 3

// ArtifactPolicy is the storage policy consumed by the issuer
type ArtifactPolicy interface {
	Persist(ctx context.Context, category, id string, data []byte) (document.ArtifactRef, error)
	Remove(ctx context.Context, ref document.ArtifactRef) error
}

// HTMLRenderer builds the HTML for a named document layout
type HTMLRenderer interface {
	Render(name string, data interface{}) (string, error)
}

// Service runs the issuance pipeline for certificates and prescriptions
type Service struct {
	docs     document.Repository
	doctors  profile.DoctorRepository
	patients profile.PatientRepository
	codegen  *CodeGenerator
	renderer render.PDFRenderer
	html     HTMLRenderer
	storage  ArtifactPolicy
	logger   *zap.Logger

	// verifyBaseURL is printed on documents so readers can validate them
	verifyBaseURL string
}

// NewService wires the issuance pipeline together
func NewService(
	docs document.Repository,
	doctors profile.DoctorRepository,
	patients profile.PatientRepository,
	codegen *CodeGenerator,
	renderer render.PDFRenderer,
	html HTMLRenderer,
	storage ArtifactPolicy,
	verifyBaseURL string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		docs:          docs,
		doctors:       doctors,
		patients:      patients,
		codegen:       codegen,
		renderer:      renderer,
		html:          html,
		storage:       storage,
		verifyBaseURL: verifyBaseURL,
		logger:        logger,
	}
}

// IssueCertificate issues a medical certificate and returns the finalized record
func (s *Service) IssueCertificate(ctx context.Context, input *IssueCertificateInput) (*document.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "issuance.certificate",
		attribute.Int64(telemetry.SpanAttrDoctorID, int64(input.DoctorID)),
		attribute.Int64(telemetry.SpanAttrPatientID, int64(input.PatientID)))
	defer span.End()

	doctor, patient, err := s.loadParticipants(ctx, input.DoctorID, input.PatientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	doc := &document.Document{
		Kind:      document.KindCertificate,
		Status:    document.StatusPending,
		DoctorID:  input.DoctorID,
		PatientID: input.PatientID,
		Purpose:   input.Purpose,
		RestDays:  input.RestDays,
		CID:       input.CID,
	}

	if err := s.insertWithFreshCode(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentID, int(doc.ID))
	telemetry.SetAttribute(span, telemetry.SpanAttrCode, doc.Code)

	html, err := s.html.Render(render.TemplateCertificate, &render.CertificateData{
		Code:          doc.Code,
		DoctorName:    doctor.Name,
		DoctorCRM:     doctor.CRM,
		Specialty:     doctor.Specialty,
		ClinicName:    doctor.ClinicName,
		ClinicPhone:   doctor.ClinicPhone,
		SignatureURL:  doctor.SignatureURL,
		PatientName:   patient.Name,
		PatientDoc:    patient.DocumentNumber,
		Purpose:       input.Purpose,
		RestDays:      input.RestDays,
		CID:           input.CID,
		IssuedAt:      doc.IssuedAt,
		VerifyBaseURL: s.verifyBaseURL,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", shared.ErrRenderFailed, err)
	}

	if err := s.finalize(ctx, doc, html, "Atestado Médico"); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return doc, nil
}

// IssuePrescription issues a prescription and returns the finalized record
func (s *Service) IssuePrescription(ctx context.Context, input *IssuePrescriptionInput) (*document.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "issuance.prescription",
		attribute.Int64(telemetry.SpanAttrDoctorID, int64(input.DoctorID)),
		attribute.Int64(telemetry.SpanAttrPatientID, int64(input.PatientID)))
	defer span.End()

	doctor, patient, err := s.loadParticipants(ctx, input.DoctorID, input.PatientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	medsJSON, err := json.Marshal(input.Medications)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: invalid medications payload", shared.ErrInvalidInput)
	}

	doc := &document.Document{
		Kind:         document.KindPrescription,
		Status:       document.StatusPending,
		DoctorID:     input.DoctorID,
		PatientID:    input.PatientID,
		Medications:  string(medsJSON),
		Instructions: input.Instructions,
	}

	if err := s.insertWithFreshCode(ctx, doc); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentID, int(doc.ID))
	telemetry.SetAttribute(span, telemetry.SpanAttrCode, doc.Code)

	lines := make([]render.MedicationLine, len(input.Medications))
	for i, m := range input.Medications {
		lines[i] = render.MedicationLine{
			Name:     m.Name,
			Dosage:   m.Dosage,
			Quantity: m.Quantity,
			Notes:    m.Notes,
		}
	}

	html, err := s.html.Render(render.TemplatePrescription, &render.PrescriptionData{
		Code:          doc.Code,
		DoctorName:    doctor.Name,
		DoctorCRM:     doctor.CRM,
		Specialty:     doctor.Specialty,
		ClinicName:    doctor.ClinicName,
		ClinicPhone:   doctor.ClinicPhone,
		SignatureURL:  doctor.SignatureURL,
		PatientName:   patient.Name,
		PatientDoc:    patient.DocumentNumber,
		Medications:   lines,
		Instructions:  input.Instructions,
		IssuedAt:      doc.IssuedAt,
		VerifyBaseURL: s.verifyBaseURL,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", shared.ErrRenderFailed, err)
	}

	if err := s.finalize(ctx, doc, html, "Receituário"); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return doc, nil
}

// Get returns a single issued document by id
func (s *Service) Get(ctx context.Context, id uint) (*document.Document, error) {
	return s.docs.FindByID(ctx, id)
}

// Remove deletes the given documents and their artifacts. Artifact
// deletion is best-effort per item; a failed artifact delete is recorded
// in the result but never blocks the row delete.
func (s *Service) Remove(ctx context.Context, ids []uint) (*RemoveResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "issuance.remove")
	defer span.End()

	result := &RemoveResult{Requested: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	docs, err := s.docs.FindByIDs(ctx, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	found := make(map[uint]bool, len(docs))
	for i := range docs {
		doc := &docs[i]
		found[doc.ID] = true
		if doc.Artifact == nil || doc.Artifact.IsZero() {
			continue
		}
		if err := s.storage.Remove(ctx, *doc.Artifact); err != nil {
			s.logger.Warn("failed to delete artifact, row will still be removed",
				zap.Uint("document_id", doc.ID),
				zap.String("artifact", doc.Artifact.Value),
				zap.Error(err))
			result.ArtifactFailed = append(result.ArtifactFailed, doc.ID)
		}
	}

	for _, id := range ids {
		if !found[id] {
			result.Missing = append(result.Missing, id)
		}
	}

	deleted, err := s.docs.DeleteByIDs(ctx, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.Deleted = deleted

	s.logger.Info("documents removed",
		zap.Int("requested", result.Requested),
		zap.Int64("deleted", deleted),
		zap.Int("missing", len(result.Missing)),
		zap.Int("artifact_failures", len(result.ArtifactFailed)))

	return result, nil
}

// loadParticipants fetches the issuing doctor and the subject patient
func (s *Service) loadParticipants(ctx context.Context, doctorID, patientID uint) (*profile.Doctor, *profile.Patient, error) {
	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		return nil, nil, fmt.Errorf("doctor %d: %w", doctorID, err)
	}
	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return nil, nil, fmt.Errorf("patient %d: %w", patientID, err)
	}
	return doctor, patient, nil
}

// insertWithFreshCode reserves a code and inserts the row, restarting the
// whole reserve+insert step on a unique-constraint violation. The
// pre-check in ReserveUnique only makes this loop rarely spin; the
// constraint is the actual guarantee.
func (s *Service) insertWithFreshCode(ctx context.Context, doc *document.Document) error {
	for attempt := 0; attempt < insertRetries; attempt++ {
		code, err := s.codegen.ReserveUnique(ctx, DefaultCodeLength, defaultMaxAttempts)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrIssuanceFailed, err)
		}

		now := time.Now()
		doc.Code = code
		doc.IssuedAt = now
		doc.UpdatedAt = now

		err = s.docs.Insert(ctx, doc)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrAlreadyExists) {
			return fmt.Errorf("%w: %v", shared.ErrIssuanceFailed, err)
		}

		s.logger.Warn("verification code collided at insert, retrying",
			zap.String("code", code),
			zap.Int("attempt", attempt+1))
	}
	return shared.ErrCodeExhausted
}

// finalize renders the PDF, stores it, and flips the row to STORED.
// Failures leave the row PENDING; there is deliberately no compensating
// delete, a reconciliation job can find orphans by their status.
func (s *Service) finalize(ctx context.Context, doc *document.Document, html, title string) error {
	result, err := s.renderer.Render(ctx, &render.RenderRequest{
		HTML:  html,
		Title: title,
	})
	if err != nil {
		var renderErr *render.RenderError
		if errors.As(err, &renderErr) && renderErr.Code == render.ErrCodeRendererUnavailable {
			return fmt.Errorf("%w: %v", shared.ErrRendererUnavailable, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrRenderFailed, err)
	}

	id := strconv.FormatUint(uint64(doc.ID), 10)
	ref, err := s.storage.Persist(ctx, doc.Kind.Category(), id, result.PDFData)
	if err != nil {
		s.logger.Error("artifact persistence failed, row left pending",
			zap.Uint("document_id", doc.ID),
			zap.String("code", doc.Code),
			zap.Error(err))
		return err
	}

	if err := s.docs.SetArtifact(ctx, doc.ID, ref); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrIssuanceFailed, err)
	}
	doc.MarkStored(ref)

	s.logger.Info("document issued",
		zap.Uint("document_id", doc.ID),
		zap.String("code", doc.Code),
		zap.String("kind", string(doc.Kind)),
		zap.String("backend", string(ref.Backend)))

	return nil
}
