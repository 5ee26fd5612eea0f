// File: internal/doctor/service.go
package doctor

import (
	"context"
	"errors"
	"fmt"

	"medibook_backend/internal/common"
	"medibook_backend/internal/identity"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service defines the interface for doctor-related business logic.
type Service interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID string) (*Doctor, error)
	SearchDoctors(ctx context.Context, query SearchQuery) ([]Doctor, *common.Pagination, error)
	UpsertProfile(ctx context.Context, user *identity.User, req UpsertProfileRequest) (*Doctor, error)
	SetProfileImage(ctx context.Context, user *identity.User, imageURL string) (d *Doctor, previous *string, err error)
	SyncSearchIndex(ctx context.Context, batchSize int, refresh string) (int, error)
}

// ServiceImplementation implements the doctor Service interface.
type ServiceImplementation struct {
	repo     Repository
	index    SearchIndex
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a new doctor service. index may be nil.
func NewService(repo Repository, index SearchIndex, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:     repo,
		index:    index,
		validate: common.NewValidator(),
		logger:   logger.Named("doctor_service"),
	}
}

func (s *ServiceImplementation) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ServiceImplementation) GetDoctorByUserID(ctx context.Context, userID string) (*Doctor, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// SearchDoctors queries the search index when one is configured and falls
// back to the database when it is not or when the index fails.
func (s *ServiceImplementation) SearchDoctors(ctx context.Context, query SearchQuery) ([]Doctor, *common.Pagination, error) {
	if s.index != nil {
		ids, total, err := s.index.Search(ctx, query)
		if err == nil {
			doctors, err := s.repo.FindByIDs(ctx, ids)
			if err != nil {
				return nil, nil, err
			}
			return doctors, common.NewPagination(total, query.Page, query.Limit()), nil
		}
		s.logger.Warn("Doctor search index failed, falling back to database", zap.Error(err))
	}

	doctors, total, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	return doctors, common.NewPagination(total, query.Page, query.Limit()), nil
}

// UpsertProfile creates or updates the profile owned by user. Only users
// with the doctor role may own one.
func (s *ServiceImplementation) UpsertProfile(ctx context.Context, user *identity.User, req UpsertProfileRequest) (*Doctor, error) {
	if user.Role != identity.RoleDoctor {
		return nil, common.ErrForbidden.WithDetails("Only doctors can maintain a doctor profile.")
	}
	if err := common.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByUserID(ctx, user.ID)
	var apiErr *common.APIError
	switch {
	case err == nil:
		existing.Email = user.Email
		req.apply(existing)
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
	case errors.As(err, &apiErr) && apiErr.Code == common.ErrNotFound.Code:
		existing = &Doctor{UserID: user.ID, Email: user.Email}
		existing.ID = uuid.New()
		req.apply(existing)
		if err := s.repo.Create(ctx, existing); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if s.index != nil {
		if err := s.index.Index(ctx, existing); err != nil {
			s.logger.Warn("Failed to index doctor profile", zap.String("doctorID", existing.ID.String()), zap.Error(err))
		}
	}
	return existing, nil
}

// SetProfileImage points the caller's profile at imageURL and returns the
// URL it replaced.
func (s *ServiceImplementation) SetProfileImage(ctx context.Context, user *identity.User, imageURL string) (*Doctor, *string, error) {
	d, err := s.repo.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	previous := d.ProfileImage
	d.ProfileImage = &imageURL
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, nil, err
	}
	return d, previous, nil
}

// SyncSearchIndex pushes every doctor into the search index in batches.
func (s *ServiceImplementation) SyncSearchIndex(ctx context.Context, batchSize int, refresh string) (int, error) {
	if s.index == nil {
		return 0, fmt.Errorf("search index is not configured")
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	total := 0
	for offset := 0; ; offset += batchSize {
		batch, err := s.repo.FindAllForSync(ctx, offset, batchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}
		indexed, err := s.index.BulkIndex(ctx, batch, refresh)
		if err != nil {
			return total, err
		}
		if indexed < len(batch) {
			s.logger.Warn("Some doctors were not indexed", zap.Int("batchSize", len(batch)), zap.Int("indexed", indexed))
		}
		total += indexed
	}
	s.logger.Info("Doctor search index synchronized", zap.Int("indexed", total))
	return total, nil
}
