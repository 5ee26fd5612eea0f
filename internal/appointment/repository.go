// File: internal/appointment/repository.go
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medibook_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for appointment data operations.
type Repository interface {
	Create(ctx context.Context, appointment *Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListForUser(ctx context.Context, userID string, query ListQuery) ([]Appointment, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error
	FindStalePending(ctx context.Context, beforeDate string) ([]Appointment, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM appointment repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, appointment *Appointment) error {
	if err := r.db.WithContext(ctx).Create(appointment).Error; err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Appointment not found.")
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &a, nil
}

// ListForUser returns the appointments where userID is the patient or the
// doctor, newest date first.
func (r *gormRepository) ListForUser(ctx context.Context, userID string, query ListQuery) ([]Appointment, int64, error) {
	dbQuery := r.db.WithContext(ctx).Model(&Appointment{}).
		Where("patient_id = ? OR doctor_user_id = ?", userID, userID)
	if query.Status != "" {
		dbQuery = dbQuery.Where("status = ?", query.Status)
	}
	dbQuery = dbQuery.Session(&gorm.Session{})

	var total int64
	if err := dbQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	var appointments []Appointment
	err := dbQuery.Order("appointment_date DESC").Order("created_at DESC").
		Offset(query.Offset()).
		Limit(query.Limit()).
		Find(&appointments).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

// UpdateStatus moves the appointment from one status to another. The update
// only applies while the stored status still equals from; otherwise another
// writer got there first and ErrInvalidTransition is returned. at becomes
// the row's updated_at.
func (r *gormRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&Appointment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": at})
	if result.Error != nil {
		return fmt.Errorf("failed to update appointment status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.ErrInvalidTransition.WithDetails("The appointment status changed concurrently.")
	}
	return nil
}

// FindStalePending returns pending appointments dated strictly before beforeDate.
func (r *gormRepository) FindStalePending(ctx context.Context, beforeDate string) ([]Appointment, error) {
	var appointments []Appointment
	err := r.db.WithContext(ctx).
		Where("status = ? AND appointment_date < ?", StatusPending, beforeDate).
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale appointments: %w", err)
	}
	return appointments, nil
}
