package doctor

import (
	"context"
	"errors"
	"testing"

	"medibook_backend/internal/common"
	"medibook_backend/internal/identity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSearchIndex is a mock type for doctor.SearchIndex
type MockSearchIndex struct {
	mock.Mock
}

func (m *MockSearchIndex) Index(ctx context.Context, d *Doctor) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockSearchIndex) Search(ctx context.Context, query SearchQuery) ([]uuid.UUID, int64, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]uuid.UUID), args.Get(1).(int64), args.Error(2)
}

func (m *MockSearchIndex) BulkIndex(ctx context.Context, doctors []Doctor, refresh string) (int, error) {
	args := m.Called(ctx, doctors, refresh)
	if fn, ok := args.Get(0).(func(context.Context, []Doctor, string) int); ok {
		return fn(ctx, doctors, refresh), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

var doctorUser = &identity.User{ID: "doc-1", Email: "house@clinic.test", Name: "Gregory House", Role: identity.RoleDoctor}

func validProfile() UpsertProfileRequest {
	return UpsertProfileRequest{
		Name:            "Gregory House",
		Specialization:  "Diagnostics",
		Experience:      20,
		ConsultationFee: 150,
		AvailableSlots:  []TimeSlot{{Day: "monday", StartTime: "09:00", EndTime: "17:00", IsAvailable: true}},
	}
}

func TestUpsertProfile_CreatesThenUpdates(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	index := new(MockSearchIndex)
	index.On("Index", mock.Anything, mock.AnythingOfType("*doctor.Doctor")).Return(nil)
	svc := NewService(repo, index, zap.NewNop())
	ctx := context.Background()

	created, err := svc.UpsertProfile(ctx, doctorUser, validProfile())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "doc-1", created.UserID)
	assert.Equal(t, "house@clinic.test", created.Email)
	assert.Contains(t, created.Slug, "gregory-house-")

	req := validProfile()
	req.ConsultationFee = 200
	updated, err := svc.UpsertProfile(ctx, doctorUser, req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, float64(200), updated.ConsultationFee)

	index.AssertNumberOfCalls(t, "Index", 2)
}

func TestUpsertProfile_PatientForbidden(t *testing.T) {
	svc := NewService(NewGORMRepository(newTestDB(t)), nil, zap.NewNop())
	patient := &identity.User{ID: "p-1", Role: identity.RolePatient}

	_, err := svc.UpsertProfile(context.Background(), patient, validProfile())
	var apiErr *common.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ErrForbidden.Code, apiErr.Code)
}

func TestUpsertProfile_Validation(t *testing.T) {
	svc := NewService(NewGORMRepository(newTestDB(t)), nil, zap.NewNop())
	req := validProfile()
	req.AvailableSlots[0].StartTime = "9am"

	_, err := svc.UpsertProfile(context.Background(), doctorUser, req)
	var apiErr *common.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

func TestUpsertProfile_IndexFailureIsNotFatal(t *testing.T) {
	index := new(MockSearchIndex)
	index.On("Index", mock.Anything, mock.Anything).Return(errors.New("es down"))
	svc := NewService(NewGORMRepository(newTestDB(t)), index, zap.NewNop())

	_, err := svc.UpsertProfile(context.Background(), doctorUser, validProfile())
	assert.NoError(t, err)
}

func TestSearchDoctors_UsesIndexOrder(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	a := seedDoctor(t, repo, "u1", "Alice", "Cardiology")
	b := seedDoctor(t, repo, "u2", "Bob", "Cardiology")

	query := SearchQuery{Query: "card"}
	index := new(MockSearchIndex)
	index.On("Search", mock.Anything, query).Return([]uuid.UUID{b.ID, a.ID}, int64(2), nil)
	svc := NewService(repo, index, zap.NewNop())

	doctors, pagination, err := svc.SearchDoctors(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, "Bob", doctors[0].Name)
	assert.Equal(t, int64(2), pagination.TotalItems)
}

func TestSearchDoctors_FallsBackToDatabase(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	seedDoctor(t, repo, "u1", "Alice", "Cardiology")
	seedDoctor(t, repo, "u2", "Bob", "Dermatology")

	index := new(MockSearchIndex)
	index.On("Search", mock.Anything, mock.Anything).Return(nil, int64(0), errors.New("connection refused"))
	svc := NewService(repo, index, zap.NewNop())

	doctors, pagination, err := svc.SearchDoctors(context.Background(), SearchQuery{Specialization: "Dermatology"})
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Bob", doctors[0].Name)
	assert.Equal(t, 1, pagination.TotalPages)
}

func TestSyncSearchIndex(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	for _, name := range []string{"A", "B", "C"} {
		seedDoctor(t, repo, "user-"+name, name, "General")
	}

	index := new(MockSearchIndex)
	index.On("BulkIndex", mock.Anything, mock.Anything, "true").Return(func(_ context.Context, docs []Doctor, _ string) int {
		return len(docs)
	}, nil)
	svc := NewService(repo, index, zap.NewNop())

	n, err := svc.SyncSearchIndex(context.Background(), 2, "true")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	index.AssertNumberOfCalls(t, "BulkIndex", 2)

	_, err = NewService(repo, nil, zap.NewNop()).SyncSearchIndex(context.Background(), 2, "")
	assert.Error(t, err)
}
