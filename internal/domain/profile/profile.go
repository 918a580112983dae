// Package profile holds the read-only collaborator entities referenced by
// issued documents. Profile management itself lives elsewhere; the issuance
// pipeline only needs names and registration data for the rendered payload.
package profile

import "context"

// Doctor is the issuing professional referenced by a document
type Doctor struct {
	ID           uint
	Name         string
	CRM          string
	Specialty    string
	ClinicName   string
	ClinicPhone  string
	SignatureURL string
}

// Patient is the subject of an issued document
type Patient struct {
	ID             uint
	Name           string
	DocumentNumber string
}

// DoctorRepository provides read access to doctor profiles
type DoctorRepository interface {
	FindByID(ctx context.Context, id uint) (*Doctor, error)
}

// PatientRepository provides read access to patient profiles
type PatientRepository interface {
	FindByID(ctx context.Context, id uint) (*Patient, error)
}
