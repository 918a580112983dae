// Package document contains the core entity of the issuance pipeline:
// an issued medical document identified by a short public verification code,
// backed by an immutable PDF artifact stored in one of two backends.
package document

import (
	"strings"
	"time"
)

// Kind identifies the type of issued document.
type Kind string

const (
	KindCertificate  Kind = "CERTIFICATE"
	KindPrescription Kind = "PRESCRIPTION"
)

// IsValid checks if the kind is a known document kind
func (k Kind) IsValid() bool {
	return k == KindCertificate || k == KindPrescription
}

// Category returns the storage category used to key artifacts of this kind
func (k Kind) Category() string {
	switch k {
	case KindCertificate:
		return "certificates"
	case KindPrescription:
		return "prescriptions"
	default:
		return "documents"
	}
}

// Status tracks the issuance state machine. A document stays PENDING from the
// moment its row is inserted until its artifact is durably stored; a failure
// anywhere in between leaves it PENDING permanently so a reconciliation job
// can find it later.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStored  Status = "STORED"
)

// Document is one issued certificate or prescription. The two kinds share the
// same record shape and differ only in which payload fields are populated.
type Document struct {
	ID        uint
	Code      string
	Kind      Kind
	Status    Status
	DoctorID  uint
	PatientID uint

	// Certificate payload
	Purpose  string
	RestDays int
	CID      string

	// Prescription payload
	Medications  string
	Instructions string

	// Artifact is nil until the rendered PDF has been durably stored.
	Artifact *ArtifactRef

	IssuedAt  time.Time
	UpdatedAt time.Time
}

// HasArtifact reports whether the document's PDF is available for download
func (d *Document) HasArtifact() bool {
	return d.Status == StatusStored && d.Artifact != nil && d.Artifact.Value != ""
}

// MarkStored transitions the document to its terminal success state
func (d *Document) MarkStored(ref ArtifactRef) {
	d.Artifact = &ref
	d.Status = StatusStored
}

// RedactName reduces a subject name to its first token plus initials, e.g.
// "Maria Eduarda Santos" becomes "Maria E. S.". Single-token names are
// returned unchanged. Used for the public verification view.
func RedactName(full string) string {
	tokens := strings.Fields(full)
	if len(tokens) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tokens))
	parts = append(parts, tokens[0])
	for _, tok := range tokens[1:] {
		r := []rune(tok)
		parts = append(parts, string(r[0])+".")
	}
	return strings.Join(parts, " ")
}

// NormalizeCode canonicalizes a user-supplied verification code for lookup
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
