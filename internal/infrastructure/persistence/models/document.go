// Package models contains the GORM persistence models and their domain mappers.
package models

import (
	"time"

	"github.com/vidamed/backend/internal/domain/document"
)

// DocumentModel is the GORM model for the issued_documents table.
// The verification code carries a unique index; that constraint, not the
// in-process pre-check, is what guarantees code uniqueness under concurrency.
type DocumentModel struct {
	ID              uint      `gorm:"primaryKey"`
	Code            string    `gorm:"type:varchar(14);not null;uniqueIndex"`
	Kind            string    `gorm:"type:varchar(20);not null"`
	Status          string    `gorm:"type:varchar(20);not null;default:'PENDING'"`
	DoctorID        uint      `gorm:"column:doctor_id;not null;index"`
	PatientID       uint      `gorm:"column:patient_id;not null;index"`
	Purpose         string    `gorm:"type:text"`
	RestDays        int       `gorm:"column:rest_days;not null;default:0"`
	CID             string    `gorm:"column:cid;type:varchar(10)"`
	Medications     string    `gorm:"type:text"`
	Instructions    string    `gorm:"type:text"`
	ArtifactValue   *string   `gorm:"column:artifact_value;type:text"`
	ArtifactBackend *string   `gorm:"column:artifact_backend;type:varchar(10)"`
	IssuedAt        time.Time `gorm:"column:issued_at;not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for DocumentModel
func (DocumentModel) TableName() string {
	return "issued_documents"
}

// ToDomain converts DocumentModel to a domain Document
func (m *DocumentModel) ToDomain() *document.Document {
	doc := &document.Document{
		ID:           m.ID,
		Code:         m.Code,
		Kind:         document.Kind(m.Kind),
		Status:       document.Status(m.Status),
		DoctorID:     m.DoctorID,
		PatientID:    m.PatientID,
		Purpose:      m.Purpose,
		RestDays:     m.RestDays,
		CID:          m.CID,
		Medications:  m.Medications,
		Instructions: m.Instructions,
		IssuedAt:     m.IssuedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.ArtifactValue != nil && *m.ArtifactValue != "" {
		if m.ArtifactBackend != nil && *m.ArtifactBackend != "" {
			doc.Artifact = &document.ArtifactRef{
				Backend: document.Backend(*m.ArtifactBackend),
				Value:   *m.ArtifactValue,
			}
		} else if ref, ok := document.ParseArtifactRef(*m.ArtifactValue); ok {
			// Rows written before the backend column existed
			doc.Artifact = &ref
		}
	}
	return doc
}

// DocumentModelFromDomain creates a DocumentModel from a domain Document
func DocumentModelFromDomain(d *document.Document) *DocumentModel {
	m := &DocumentModel{
		ID:           d.ID,
		Code:         d.Code,
		Kind:         string(d.Kind),
		Status:       string(d.Status),
		DoctorID:     d.DoctorID,
		PatientID:    d.PatientID,
		Purpose:      d.Purpose,
		RestDays:     d.RestDays,
		CID:          d.CID,
		Medications:  d.Medications,
		Instructions: d.Instructions,
		IssuedAt:     d.IssuedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Artifact != nil && !d.Artifact.IsZero() {
		value := d.Artifact.Value
		backend := string(d.Artifact.Backend)
		m.ArtifactValue = &value
		m.ArtifactBackend = &backend
	}
	return m
}

// DoctorModel is the GORM model for the doctors table, consumed read-only
// by the issuance payload assembly
type DoctorModel struct {
	ID           uint      `gorm:"primaryKey"`
	Name         string    `gorm:"type:varchar(200);not null"`
	CRM          string    `gorm:"column:crm;type:varchar(20);not null"`
	Specialty    string    `gorm:"type:varchar(100)"`
	ClinicName   string    `gorm:"column:clinic_name;type:varchar(200)"`
	ClinicPhone  string    `gorm:"column:clinic_phone;type:varchar(30)"`
	SignatureURL string    `gorm:"column:signature_url;type:text"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for DoctorModel
func (DoctorModel) TableName() string {
	return "doctors"
}

// PatientModel is the GORM model for the patients table
type PatientModel struct {
	ID             uint      `gorm:"primaryKey"`
	Name           string    `gorm:"type:varchar(200);not null"`
	DocumentNumber string    `gorm:"column:document_number;type:varchar(20)"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for PatientModel
func (PatientModel) TableName() string {
	return "patients"
}
