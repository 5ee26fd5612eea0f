// File: internal/appointment/service.go
package appointment

import (
	"context"
	"strings"
	"time"

	"medibook_backend/internal/common"
	"medibook_backend/internal/doctor"
	"medibook_backend/internal/identity"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DoctorDirectory resolves doctor profiles for booking.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

// Service defines the interface for appointment business logic.
type Service interface {
	CreateAppointment(ctx context.Context, user *identity.User, req CreateAppointmentRequest) (*Appointment, error)
	GetAppointment(ctx context.Context, user *identity.User, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, user *identity.User, query ListQuery) ([]Appointment, *common.Pagination, error)
	ChangeStatus(ctx context.Context, user *identity.User, id uuid.UUID, req UpdateStatusRequest) (*Appointment, error)
	ExpireStalePending(ctx context.Context) (int, error)
}

// ServiceImplementation implements the appointment Service interface.
type ServiceImplementation struct {
	repo     Repository
	doctors  DoctorDirectory
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new appointment service.
func NewService(repo Repository, doctors DoctorDirectory, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:     repo,
		doctors:  doctors,
		validate: common.NewValidator(),
		logger:   logger.Named("appointment_service"),
		now:      time.Now,
	}
}

func (s *ServiceImplementation) today() string {
	return s.now().Format(DateLayout)
}

// CreateAppointment books a pending appointment for the calling user.
func (s *ServiceImplementation) CreateAppointment(ctx context.Context, user *identity.User, req CreateAppointmentRequest) (*Appointment, error) {
	if err := common.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	if req.AppointmentDate < s.today() {
		return nil, common.NewValidationAPIError("The appointmentDate field must not be in the past.",
			map[string]string{"appointmentDate": "The appointmentDate field must not be in the past."})
	}

	doctorID, _ := uuid.Parse(req.DoctorID)
	doc, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doc.UserID == user.ID {
		return nil, common.ErrBadRequest.WithDetails("You cannot book an appointment with yourself.")
	}

	appointment := &Appointment{
		PatientID:       user.ID,
		PatientName:     user.Name,
		DoctorID:        doc.ID,
		DoctorUserID:    doc.UserID,
		DoctorName:      doc.Name,
		AppointmentDate: req.AppointmentDate,
		TimeSlot:        strings.TrimSpace(req.TimeSlot),
		Status:          StatusPending,
		ReasonForVisit:  req.ReasonForVisit,
		Notes:           req.Notes,
	}
	if err := s.repo.Create(ctx, appointment); err != nil {
		s.logger.Error("Failed to create appointment", zap.String("doctorID", doc.ID.String()), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Appointment booked",
		zap.String("appointmentID", appointment.ID.String()),
		zap.String("doctorID", doc.ID.String()),
		zap.String("date", appointment.AppointmentDate),
	)
	return appointment, nil
}

// GetAppointment returns the appointment when user takes part in it.
// Appointments of other users are reported as not found.
func (s *ServiceImplementation) GetAppointment(ctx context.Context, user *identity.User, id uuid.UUID) (*Appointment, error) {
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appointment.IsParticipant(user.ID) {
		return nil, common.ErrNotFound.WithDetails("Appointment not found.")
	}
	return appointment, nil
}

func (s *ServiceImplementation) ListAppointments(ctx context.Context, user *identity.User, query ListQuery) ([]Appointment, *common.Pagination, error) {
	if query.Status != "" && !query.Status.IsValid() {
		return nil, nil, common.NewValidationAPIError("The status field is invalid.", map[string]string{"status": "The status field is invalid."})
	}
	appointments, total, err := s.repo.ListForUser(ctx, user.ID, query)
	if err != nil {
		return nil, nil, err
	}
	return appointments, common.NewPagination(total, query.Page, query.Limit()), nil
}

// ChangeStatus applies an action to an appointment. Confirm and complete are
// reserved to the doctor; either participant may cancel.
func (s *ServiceImplementation) ChangeStatus(ctx context.Context, user *identity.User, id uuid.UUID, req UpdateStatusRequest) (*Appointment, error) {
	if err := common.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}

	appointment, err := s.GetAppointment(ctx, user, id)
	if err != nil {
		return nil, err
	}

	action := Action(req.Action)
	if action != ActionCancel && appointment.DoctorUserID != user.ID {
		return nil, common.ErrForbidden.WithDetails("Only the doctor can " + req.Action + " this appointment.")
	}

	next, err := Transition(appointment.Status, action)
	if err != nil {
		return nil, err
	}
	updatedAt := s.now()
	if err := s.repo.UpdateStatus(ctx, appointment.ID, appointment.Status, next, updatedAt); err != nil {
		return nil, err
	}

	s.logger.Info("Appointment status changed",
		zap.String("appointmentID", appointment.ID.String()),
		zap.String("from", string(appointment.Status)),
		zap.String("to", string(next)),
	)
	appointment.Status = next
	appointment.UpdatedAt = updatedAt
	return appointment, nil
}

// ExpireStalePending cancels pending appointments whose date has passed.
func (s *ServiceImplementation) ExpireStalePending(ctx context.Context) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, s.today())
	if err != nil {
		s.logger.Error("Failed to find stale appointments", zap.Error(err))
		return 0, err
	}

	count := 0
	for _, a := range stale {
		next, err := Transition(a.Status, ActionCancel)
		if err == nil {
			err = s.repo.UpdateStatus(ctx, a.ID, a.Status, next, s.now())
		}
		if err != nil {
			if apiErr, ok := common.IsAPIError(err); ok && apiErr.Code == common.ErrInvalidTransition.Code {
				s.logger.Debug("Appointment changed before expiry", zap.String("appointmentID", a.ID.String()))
				continue
			}
			s.logger.Error("Failed to expire appointment", zap.String("appointmentID", a.ID.String()), zap.Error(err))
			continue
		}
		count++
	}
	s.logger.Info("Stale appointments expired", zap.Int("expired_count", count), zap.Int("found_to_expire", len(stale)))
	return count, nil
}
