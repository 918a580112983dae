package issuance

import (
	"time"

	"github.com/vidamed/backend/internal/domain/document"
)

// IssueCertificateInput carries the fields needed to issue a medical certificate
type IssueCertificateInput struct {
	DoctorID  uint   `json:"doctor_id" binding:"required"`
	PatientID uint   `json:"patient_id" binding:"required"`
	Purpose   string `json:"purpose"`
	RestDays  int    `json:"rest_days" binding:"gte=0,lte=365"`
	CID       string `json:"cid" binding:"max=10"`
}

// MedicationInput is one prescribed item
type MedicationInput struct {
	Name     string `json:"name" binding:"required,max=200"`
	Dosage   string `json:"dosage" binding:"max=200"`
	Quantity string `json:"quantity" binding:"max=100"`
	Notes    string `json:"notes" binding:"max=500"`
}

// IssuePrescriptionInput carries the fields needed to issue a prescription
type IssuePrescriptionInput struct {
	DoctorID     uint              `json:"doctor_id" binding:"required"`
	PatientID    uint              `json:"patient_id" binding:"required"`
	Medications  []MedicationInput `json:"medications" binding:"required,min=1,dive"`
	Instructions string            `json:"instructions" binding:"max=2000"`
}

// IssuedDocumentOutput is the finalized record returned after issuance
type IssuedDocumentOutput struct {
	ID          uint      `json:"id"`
	Code        string    `json:"code"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	ArtifactURL string    `json:"artifact_url,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// NewIssuedDocumentOutput projects a domain document into the issuance response
func NewIssuedDocumentOutput(doc *document.Document) *IssuedDocumentOutput {
	out := &IssuedDocumentOutput{
		ID:       doc.ID,
		Code:     doc.Code,
		Kind:     string(doc.Kind),
		Status:   string(doc.Status),
		IssuedAt: doc.IssuedAt,
	}
	if doc.HasArtifact() {
		out.ArtifactURL = doc.Artifact.Value
	}
	return out
}

// RemoveResult reports the outcome of a batch delete
type RemoveResult struct {
	Requested      int    `json:"requested"`
	Deleted        int64  `json:"deleted"`
	Missing        []uint `json:"missing,omitempty"`
	ArtifactFailed []uint `json:"artifact_failed,omitempty"`
}
