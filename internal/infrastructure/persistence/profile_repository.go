package persistence

import (
	"context"
	"errors"

	"github.com/vidamed/backend/internal/domain/profile"
	"github.com/vidamed/backend/internal/domain/shared"
	"github.com/vidamed/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

var (
	_ profile.DoctorRepository  = (*GormDoctorRepository)(nil)
	_ profile.PatientRepository = (*GormPatientRepository)(nil)
)

// GormDoctorRepository implements profile.DoctorRepository using GORM
type GormDoctorRepository struct {
	db *gorm.DB
}

// NewGormDoctorRepository creates a new GormDoctorRepository
func NewGormDoctorRepository(db *gorm.DB) *GormDoctorRepository {
	return &GormDoctorRepository{db: db}
}

// FindByID finds a doctor by ID
func (r *GormDoctorRepository) FindByID(ctx context.Context, id uint) (*profile.Doctor, error) {
	var model models.DoctorModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &profile.Doctor{
		ID:           model.ID,
		Name:         model.Name,
		CRM:          model.CRM,
		Specialty:    model.Specialty,
		ClinicName:   model.ClinicName,
		ClinicPhone:  model.ClinicPhone,
		SignatureURL: model.SignatureURL,
	}, nil
}

// GormPatientRepository implements profile.PatientRepository using GORM
type GormPatientRepository struct {
	db *gorm.DB
}

// NewGormPatientRepository creates a new GormPatientRepository
func NewGormPatientRepository(db *gorm.DB) *GormPatientRepository {
	return &GormPatientRepository{db: db}
}

// FindByID finds a patient by ID
func (r *GormPatientRepository) FindByID(ctx context.Context, id uint) (*profile.Patient, error) {
	var model models.PatientModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &profile.Patient{
		ID:             model.ID,
		Name:           model.Name,
		DocumentNumber: model.DocumentNumber,
	}, nil
}
