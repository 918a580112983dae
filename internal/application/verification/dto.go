package verification

import (
	"encoding/json"
	"time"

	"github.com/vidamed/backend/internal/domain/document"
	"github.com/vidamed/backend/internal/domain/profile"
)

// MedicationView is one prescribed item in an authenticated view
type MedicationView struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage,omitempty"`
	Quantity string `json:"quantity,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// DocumentView is the projection returned by a resolution. The public
// view redacts the subject name and leaves the clinical fields empty;
// the authenticated view fills everything.
type DocumentView struct {
	Code        string    `json:"code"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	DoctorCRM   string    `json:"doctor_crm"`
	RestDays    int       `json:"rest_days,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ArtifactURL string    `json:"artifact_url,omitempty"`

	// Clinical payload, authenticated view only
	Purpose      string           `json:"purpose,omitempty"`
	CID          string           `json:"cid,omitempty"`
	Medications  []MedicationView `json:"medications,omitempty"`
	Instructions string           `json:"instructions,omitempty"`
}

// NewDocumentView projects a document and its participants into the
// requested view
func NewDocumentView(doc *document.Document, doctor *profile.Doctor, patient *profile.Patient, view ViewKind) *DocumentView {
	v := &DocumentView{
		Code:        doc.Code,
		Kind:        string(doc.Kind),
		Status:      string(doc.Status),
		PatientName: patient.Name,
		DoctorName:  doctor.Name,
		DoctorCRM:   doctor.CRM,
		RestDays:    doc.RestDays,
		IssuedAt:    doc.IssuedAt,
	}

	// Never present a pending row as downloadable
	if doc.HasArtifact() {
		v.ArtifactURL = doc.Artifact.Value
	}

	if view == ViewPublic {
		v.PatientName = document.RedactName(patient.Name)
		return v
	}

	v.Purpose = doc.Purpose
	v.CID = doc.CID
	v.Instructions = doc.Instructions
	if doc.Medications != "" {
		var meds []MedicationView
		if err := json.Unmarshal([]byte(doc.Medications), &meds); err == nil {
			v.Medications = meds
		}
	}
	return v
}
