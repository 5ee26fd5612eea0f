// File: internal/doctor/repository.go
package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medibook_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for doctor data operations.
type Repository interface {
	Create(ctx context.Context, doctor *Doctor) error
	Update(ctx context.Context, doctor *Doctor) error
	FindByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	FindByUserID(ctx context.Context, userID string) (*Doctor, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Doctor, error)
	Search(ctx context.Context, query SearchQuery) ([]Doctor, int64, error)
	FindAllForSync(ctx context.Context, offset, limit int) ([]Doctor, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM doctor repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, doctor *Doctor) error {
	if err := r.db.WithContext(ctx).Create(doctor).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return common.ErrConflict.WithDetails("A doctor profile already exists for this user.")
		}
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *gormRepository) Update(ctx context.Context, doctor *Doctor) error {
	if err := r.db.WithContext(ctx).Save(doctor).Error; err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	return nil
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Doctor not found.")
		}
		return nil, fmt.Errorf("failed to find doctor: %w", err)
	}
	return &d, nil
}

func (r *gormRepository) FindByUserID(ctx context.Context, userID string) (*Doctor, error) {
	var d Doctor
	if err := r.db.WithContext(ctx).First(&d, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Doctor not found.")
		}
		return nil, fmt.Errorf("failed to find doctor by user: %w", err)
	}
	return &d, nil
}

// FindByIDs returns the doctors with the given ids in the order of ids.
// Unknown ids are skipped.
func (r *gormRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Doctor, error) {
	if len(ids) == 0 {
		return []Doctor{}, nil
	}
	var found []Doctor
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to find doctors: %w", err)
	}
	byID := make(map[uuid.UUID]Doctor, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	ordered := make([]Doctor, 0, len(found))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

func (r *gormRepository) Search(ctx context.Context, query SearchQuery) ([]Doctor, int64, error) {
	dbQuery := r.db.WithContext(ctx).Model(&Doctor{})

	if q := strings.TrimSpace(query.Query); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		dbQuery = dbQuery.Where("LOWER(name) LIKE ? OR LOWER(specialization) LIKE ?", term, term)
	}
	if spec := strings.TrimSpace(query.Specialization); spec != "" {
		dbQuery = dbQuery.Where("LOWER(specialization) = ?", strings.ToLower(spec))
	}

	dbQuery = dbQuery.Session(&gorm.Session{})

	var total int64
	if err := dbQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count doctors: %w", err)
	}

	var doctors []Doctor
	err := dbQuery.Order("name ASC").
		Offset(query.Offset()).
		Limit(query.Limit()).
		Find(&doctors).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search doctors: %w", err)
	}
	return doctors, total, nil
}

func (r *gormRepository) FindAllForSync(ctx context.Context, offset, limit int) ([]Doctor, error) {
	var doctors []Doctor
	err := r.db.WithContext(ctx).Order("created_at ASC").Offset(offset).Limit(limit).Find(&doctors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch doctors for sync: %w", err)
	}
	return doctors, nil
}
