package doctor

import (
	"context"
	"testing"

	"medibook_backend/internal/common"
	"medibook_backend/internal/config"
	"medibook_backend/internal/platform/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{DBDriver: config.DriverSQLite, DBSQLitePath: ":memory:", LogLevel: "silent"}
	db, err := database.NewGORM(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &Doctor{}))
	t.Cleanup(func() { database.CloseGORMDB(db, zap.NewNop()) })
	return db
}

func seedDoctor(t *testing.T, repo Repository, userID, name, specialization string) *Doctor {
	t.Helper()
	d := &Doctor{UserID: userID, Email: userID + "@clinic.test"}
	d.ID = uuid.New()
	UpsertProfileRequest{
		Name:           name,
		Specialization: specialization,
		Qualifications: []string{"MBBS", "MD"},
		AvailableSlots: []TimeSlot{{Day: "monday", StartTime: "09:00", EndTime: "12:00", IsAvailable: true}},
	}.apply(d)
	require.NoError(t, repo.Create(context.Background(), d))
	return d
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	ctx := context.Background()
	d := seedDoctor(t, repo, "user-1", "Gregory House", "Diagnostics")

	got, err := repo.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gregory House", got.Name)
	assert.Equal(t, []string{"MBBS", "MD"}, []string(got.Qualifications))
	require.Len(t, got.AvailableSlots, 1)
	assert.Equal(t, "monday", got.AvailableSlots[0].Day)

	got, err = repo.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	var apiErr *common.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ErrNotFound.Code, apiErr.Code)
}

func TestRepository_CreateDuplicateUserIsConflict(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	seedDoctor(t, repo, "user-1", "Gregory House", "Diagnostics")

	dup := &Doctor{UserID: "user-1", Name: "Other", Email: "x@clinic.test", Specialization: "Oncology"}
	dup.ID = uuid.New()
	err := repo.Create(context.Background(), dup)

	var apiErr *common.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ErrConflict.Code, apiErr.Code)
}

func TestRepository_FindByIDsKeepsOrder(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	a := seedDoctor(t, repo, "user-a", "Alice", "Cardiology")
	b := seedDoctor(t, repo, "user-b", "Bob", "Dermatology")

	got, err := repo.FindByIDs(context.Background(), []uuid.UUID{b.ID, uuid.New(), a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
}

func TestRepository_Search(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	ctx := context.Background()
	seedDoctor(t, repo, "u1", "Alice Heart", "Cardiology")
	seedDoctor(t, repo, "u2", "Bob Skin", "Dermatology")
	seedDoctor(t, repo, "u3", "Carol Pulse", "Cardiology")

	doctors, total, err := repo.Search(ctx, SearchQuery{Specialization: "cardiology"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, doctors, 2)
	assert.Equal(t, "Alice Heart", doctors[0].Name)

	doctors, total, err = repo.Search(ctx, SearchQuery{Query: "skin"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Bob Skin", doctors[0].Name)

	doctors, total, err = repo.Search(ctx, SearchQuery{PaginationQuery: common.PaginationQuery{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Carol Pulse", doctors[0].Name)
}

func TestMakeSlug(t *testing.T) {
	id := uuid.MustParse("0a1b2c3d-0000-0000-0000-000000000000")
	assert.Equal(t, "jane-doe-0a1b2c3d", MakeSlug("Jane Doe", id))
	assert.Equal(t, "jane", MakeSlug("Jane", uuid.Nil))
}
