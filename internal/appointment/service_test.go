package appointment

import (
	"context"
	"testing"
	"time"

	"medibook_backend/internal/common"
	"medibook_backend/internal/config"
	"medibook_backend/internal/doctor"
	"medibook_backend/internal/identity"
	"medibook_backend/internal/platform/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	patient    = &identity.User{ID: "patient-1", Email: "pat@b.com", Name: "Pat", Role: identity.RolePatient}
	stranger   = &identity.User{ID: "patient-2", Email: "eve@b.com", Name: "Eve", Role: identity.RolePatient}
	doctorUser = &identity.User{ID: "doctor-1", Email: "doc@b.com", Name: "Dr Who", Role: identity.RoleDoctor}
)

// ServiceTestSuite runs the appointment service against SQLite.
type ServiceTestSuite struct {
	suite.Suite
	DB      *gorm.DB
	Repo    Repository
	Service *ServiceImplementation
	Doctor  *doctor.Doctor
	Today   time.Time
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{DBDriver: config.DriverSQLite, DBSQLitePath: ":memory:", LogLevel: "silent"}
	db, err := database.NewGORM(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &doctor.Doctor{}, &Appointment{}))
	t.Cleanup(func() { database.CloseGORMDB(db, zap.NewNop()) })
	return db
}

func (s *ServiceTestSuite) SetupTest() {
	s.DB = newTestDB(s.T())
	s.Repo = NewGORMRepository(s.DB)

	doctors := doctor.NewService(doctor.NewGORMRepository(s.DB), nil, zap.NewNop())
	d, err := doctors.UpsertProfile(context.Background(), doctorUser, doctor.UpsertProfileRequest{
		Name:           "Dr Who",
		Specialization: "General Practice",
	})
	s.Require().NoError(err)
	s.Doctor = d

	s.Today = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.Service = NewService(s.Repo, doctors, zap.NewNop())
	s.Service.now = func() time.Time { return s.Today }
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) book(date string) *Appointment {
	a, err := s.Service.CreateAppointment(context.Background(), patient, CreateAppointmentRequest{
		DoctorID:        s.Doctor.ID.String(),
		AppointmentDate: date,
		TimeSlot:        "10:00-10:30",
	})
	s.Require().NoError(err)
	return a
}

func (s *ServiceTestSuite) requireCode(err error, code string) {
	apiErr, ok := common.IsAPIError(err)
	s.Require().True(ok, "expected APIError, got %v", err)
	s.Equal(code, apiErr.Code)
}

func (s *ServiceTestSuite) TestCreate() {
	a := s.book("2026-03-12")

	s.Equal(StatusPending, a.Status)
	s.Equal(patient.ID, a.PatientID)
	s.Equal("Pat", a.PatientName)
	s.Equal(s.Doctor.ID, a.DoctorID)
	s.Equal("Dr Who", a.DoctorName)
	s.NotEqual(uuid.Nil, a.ID)
}

func (s *ServiceTestSuite) TestCreate_TodayIsAllowed() {
	s.book("2026-03-10")
}

func (s *ServiceTestSuite) TestCreate_Rejections() {
	ctx := context.Background()

	_, err := s.Service.CreateAppointment(ctx, patient, CreateAppointmentRequest{DoctorID: s.Doctor.ID.String(), AppointmentDate: "2026-03-09", TimeSlot: "10:00"})
	s.requireCode(err, "VALIDATION_ERROR")

	_, err = s.Service.CreateAppointment(ctx, patient, CreateAppointmentRequest{DoctorID: s.Doctor.ID.String(), AppointmentDate: "12/03/2026", TimeSlot: "10:00"})
	s.requireCode(err, "VALIDATION_ERROR")

	_, err = s.Service.CreateAppointment(ctx, patient, CreateAppointmentRequest{DoctorID: s.Doctor.ID.String(), AppointmentDate: "2026-03-12"})
	s.requireCode(err, "VALIDATION_ERROR")

	_, err = s.Service.CreateAppointment(ctx, patient, CreateAppointmentRequest{DoctorID: uuid.NewString(), AppointmentDate: "2026-03-12", TimeSlot: "10:00"})
	s.requireCode(err, common.ErrNotFound.Code)

	_, err = s.Service.CreateAppointment(ctx, doctorUser, CreateAppointmentRequest{DoctorID: s.Doctor.ID.String(), AppointmentDate: "2026-03-12", TimeSlot: "10:00"})
	s.requireCode(err, common.ErrBadRequest.Code)
}

func (s *ServiceTestSuite) TestVisibility() {
	a := s.book("2026-03-12")
	ctx := context.Background()

	_, err := s.Service.GetAppointment(ctx, patient, a.ID)
	s.NoError(err)
	_, err = s.Service.GetAppointment(ctx, doctorUser, a.ID)
	s.NoError(err)
	_, err = s.Service.GetAppointment(ctx, stranger, a.ID)
	s.requireCode(err, common.ErrNotFound.Code)

	list, pagination, err := s.Service.ListAppointments(ctx, doctorUser, ListQuery{})
	s.Require().NoError(err)
	s.Len(list, 1)
	s.Equal(int64(1), pagination.TotalItems)

	list, _, err = s.Service.ListAppointments(ctx, stranger, ListQuery{})
	s.Require().NoError(err)
	s.Empty(list)

	_, _, err = s.Service.ListAppointments(ctx, patient, ListQuery{Status: "archived"})
	s.requireCode(err, "VALIDATION_ERROR")
}

func (s *ServiceTestSuite) TestLifecycle() {
	a := s.book("2026-03-12")
	ctx := context.Background()

	_, err := s.Service.ChangeStatus(ctx, patient, a.ID, UpdateStatusRequest{Action: "confirm"})
	s.requireCode(err, common.ErrForbidden.Code)

	_, err = s.Service.ChangeStatus(ctx, stranger, a.ID, UpdateStatusRequest{Action: "cancel"})
	s.requireCode(err, common.ErrNotFound.Code)

	updated, err := s.Service.ChangeStatus(ctx, doctorUser, a.ID, UpdateStatusRequest{Action: "confirm"})
	s.Require().NoError(err)
	s.Equal(StatusConfirmed, updated.Status)

	updated, err = s.Service.ChangeStatus(ctx, doctorUser, a.ID, UpdateStatusRequest{Action: "complete"})
	s.Require().NoError(err)
	s.Equal(StatusCompleted, updated.Status)

	_, err = s.Service.ChangeStatus(ctx, patient, a.ID, UpdateStatusRequest{Action: "cancel"})
	s.requireCode(err, common.ErrInvalidTransition.Code)

	stored, err := s.Repo.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, stored.Status)
}

func (s *ServiceTestSuite) TestChangeStatus_UnknownAction() {
	a := s.book("2026-03-12")
	_, err := s.Service.ChangeStatus(context.Background(), doctorUser, a.ID, UpdateStatusRequest{Action: "archive"})
	s.requireCode(err, "VALIDATION_ERROR")
}

func (s *ServiceTestSuite) TestChangeStatus_ReturnsStoredUpdatedAt() {
	a := s.book("2026-03-12")
	ctx := context.Background()

	s.Today = time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	updated, err := s.Service.ChangeStatus(ctx, doctorUser, a.ID, UpdateStatusRequest{Action: "confirm"})
	s.Require().NoError(err)
	s.True(updated.UpdatedAt.Equal(s.Today))
	s.True(updated.UpdatedAt.After(a.UpdatedAt))

	stored, err := s.Repo.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.WithinDuration(updated.UpdatedAt, stored.UpdatedAt, time.Second)
}

func (s *ServiceTestSuite) TestUpdateStatus_LostRace() {
	a := s.book("2026-03-12")
	ctx := context.Background()

	s.Require().NoError(s.Repo.UpdateStatus(ctx, a.ID, StatusPending, StatusCancelled, s.Today))
	err := s.Repo.UpdateStatus(ctx, a.ID, StatusPending, StatusConfirmed, s.Today)
	s.requireCode(err, common.ErrInvalidTransition.Code)
}

func (s *ServiceTestSuite) TestExpireStalePending() {
	past := s.book("2026-03-10")
	confirmed := s.book("2026-03-10")
	future := s.book("2026-03-15")
	ctx := context.Background()

	_, err := s.Service.ChangeStatus(ctx, doctorUser, confirmed.ID, UpdateStatusRequest{Action: "confirm"})
	s.Require().NoError(err)

	s.Today = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	n, err := s.Service.ExpireStalePending(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	for id, want := range map[uuid.UUID]Status{past.ID: StatusCancelled, confirmed.ID: StatusConfirmed, future.ID: StatusPending} {
		got, err := s.Repo.FindByID(ctx, id)
		s.Require().NoError(err)
		s.Equal(want, got.Status)
	}
}

func TestAppointment_IsParticipant(t *testing.T) {
	a := &Appointment{PatientID: "p", DoctorUserID: "d"}
	assert.True(t, a.IsParticipant("p"))
	assert.True(t, a.IsParticipant("d"))
	assert.False(t, a.IsParticipant("x"))
	assert.False(t, a.IsParticipant(""))
}
