// File: internal/doctor/model.go
package doctor

import (
	"strings"

	"medibook_backend/internal/common"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
)

// TimeSlot is a weekly availability window advertised by a doctor.
type TimeSlot struct {
	Day         string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime   string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime     string `json:"endTime" validate:"required,datetime=15:04"`
	IsAvailable bool   `json:"isAvailable"`
}

// Doctor is the public profile of a user with the doctor role.
type Doctor struct {
	common.BaseModel
	UserID          string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"userId"`
	Slug            string         `gorm:"type:varchar(255);index" json:"slug"`
	Name            string         `gorm:"type:varchar(255);not null" json:"name"`
	Email           string         `gorm:"type:varchar(255);not null" json:"email"`
	Specialization  string         `gorm:"type:varchar(255);index;not null" json:"specialization"`
	Qualifications  pq.StringArray `gorm:"type:text" json:"qualifications"`
	Experience      int            `gorm:"not null;default:0" json:"experience"`
	ConsultationFee float64        `gorm:"not null;default:0" json:"consultationFee"`
	AvailableSlots  []TimeSlot     `gorm:"type:text;serializer:json" json:"availableSlots"`
	Rating          *float64       `json:"rating,omitempty"`
	Bio             *string        `gorm:"type:text" json:"bio,omitempty"`
	ProfileImage    *string        `gorm:"type:varchar(1024)" json:"profileImage,omitempty"`
}

// TableName specifies the table name for the Doctor model.
func (Doctor) TableName() string {
	return "doctors"
}

// UpsertProfileRequest is the body of PUT /api/doctors/me.
type UpsertProfileRequest struct {
	Name            string     `json:"name" validate:"required,max=255"`
	Specialization  string     `json:"specialization" validate:"required,max=255"`
	Qualifications  []string   `json:"qualifications" validate:"omitempty,dive,required"`
	Experience      int        `json:"experience" validate:"min=0,max=80"`
	ConsultationFee float64    `json:"consultationFee" validate:"min=0"`
	AvailableSlots  []TimeSlot `json:"availableSlots" validate:"omitempty,dive"`
	Bio             *string    `json:"bio" validate:"omitempty,max=2000"`
	ProfileImage    *string    `json:"profileImage" validate:"omitempty,uri,max=1024"`
}

// SearchQuery holds the filters of GET /api/doctors.
type SearchQuery struct {
	Query          string
	Specialization string
	common.PaginationQuery
}

// apply copies the request onto d and recomputes the slug.
func (r UpsertProfileRequest) apply(d *Doctor) {
	d.Name = strings.TrimSpace(r.Name)
	d.Specialization = strings.TrimSpace(r.Specialization)
	d.Qualifications = pq.StringArray(r.Qualifications)
	d.Experience = r.Experience
	d.ConsultationFee = r.ConsultationFee
	d.AvailableSlots = r.AvailableSlots
	d.Bio = r.Bio
	// An omitted image keeps the uploaded one.
	if r.ProfileImage != nil {
		d.ProfileImage = r.ProfileImage
	}
	d.Slug = MakeSlug(d.Name, d.ID)
}

// MakeSlug builds the URL slug for a doctor. The id suffix keeps slugs unique
// between doctors sharing a name.
func MakeSlug(name string, id uuid.UUID) string {
	base := slug.Make(name)
	if id == uuid.Nil {
		return base
	}
	return base + "-" + id.String()[:8]
}
