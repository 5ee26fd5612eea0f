// File: internal/appointment/model.go
package appointment

import (
	"medibook_backend/internal/common"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of AppointmentDate.
const DateLayout = "2006-01-02"

// Appointment is a booking between a patient and a doctor. Patient and
// doctor names are copied at creation time.
type Appointment struct {
	common.BaseModel
	PatientID       string    `gorm:"type:varchar(128);index;not null" json:"patientId"`
	PatientName     string    `gorm:"type:varchar(255);not null" json:"patientName"`
	DoctorID        uuid.UUID `gorm:"type:uuid;index;not null" json:"doctorId"`
	DoctorUserID    string    `gorm:"type:varchar(128);index;not null" json:"-"`
	DoctorName      string    `gorm:"type:varchar(255);not null" json:"doctorName"`
	AppointmentDate string    `gorm:"type:varchar(10);index;not null" json:"appointmentDate"`
	TimeSlot        string    `gorm:"type:varchar(50);not null" json:"timeSlot"`
	Status          Status    `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	ReasonForVisit  *string   `gorm:"type:text" json:"reasonForVisit,omitempty"`
	Notes           *string   `gorm:"type:text" json:"notes,omitempty"`
}

// TableName specifies the table name for the Appointment model.
func (Appointment) TableName() string {
	return "appointments"
}

// IsParticipant reports whether the identity user id is the patient or the
// doctor of a.
func (a *Appointment) IsParticipant(userID string) bool {
	return userID != "" && (a.PatientID == userID || a.DoctorUserID == userID)
}

// CreateAppointmentRequest is the body of POST /api/appointments.
type CreateAppointmentRequest struct {
	DoctorID        string  `json:"doctorId" validate:"required,uuid"`
	AppointmentDate string  `json:"appointmentDate" validate:"required,datetime=2006-01-02"`
	TimeSlot        string  `json:"timeSlot" validate:"required,max=50"`
	ReasonForVisit  *string `json:"reasonForVisit" validate:"omitempty,max=1000"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateStatusRequest is the body of PATCH /api/appointments/:id/status.
type UpdateStatusRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm cancel complete"`
}

// ListQuery filters the caller's appointments.
type ListQuery struct {
	Status Status
	common.PaginationQuery
}
