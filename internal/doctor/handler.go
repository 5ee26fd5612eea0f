// File: internal/doctor/handler.go
package doctor

import (
	"errors"
	"io"
	"mime/multipart"

	"medibook_backend/internal/common"
	"medibook_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageStore persists uploaded profile images.
type ImageStore interface {
	SaveImage(fileHeader *multipart.FileHeader, subDir string) (string, error)
	DeleteFile(relativePath string) error
	PublicURL(relativePath string) string
	RelativePath(publicURL string) (string, bool)
}

// Handler struct holds dependencies for doctor handlers.
type Handler struct {
	service Service
	images  ImageStore
	logger  *zap.Logger
}

// NewHandler creates a new doctor handler.
func NewHandler(service Service, images ImageStore, logger *zap.Logger) *Handler {
	return &Handler{service: service, images: images, logger: logger.Named("doctor_handler")}
}

// RegisterRoutes sets up the routes for doctor operations.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, sessionGate gin.HandlerFunc, doctorRoleMW gin.HandlerFunc) {
	doctorGroup := router.Group("/doctors")
	{
		doctorGroup.GET("", h.searchDoctors)
		doctorGroup.GET("/:id", h.getDoctor)
		doctorGroup.PUT("/me", sessionGate, doctorRoleMW, h.upsertMyProfile)
		doctorGroup.POST("/me/image", sessionGate, doctorRoleMW, h.uploadMyProfileImage)
	}
}

func (h *Handler) searchDoctors(c *gin.Context) {
	query := SearchQuery{
		Query:           c.Query("q"),
		Specialization:  c.Query("specialization"),
		PaginationQuery: common.GetPaginationParams(c),
	}

	doctors, pagination, err := h.service.SearchDoctors(c.Request.Context(), query)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Doctors retrieved successfully.", doctors, pagination)
}

func (h *Handler) getDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid doctor ID format."))
		return
	}

	d, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Doctor retrieved successfully.", d)
}

func (h *Handler) upsertMyProfile(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthenticated)
		return
	}

	var req UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Request body must be valid JSON."))
		return
	}

	d, err := h.service.UpsertProfile(c.Request.Context(), user, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Doctor profile saved successfully.", d)
}

func (h *Handler) uploadMyProfileImage(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthenticated)
		return
	}
	if _, err := h.service.GetDoctorByUserID(c.Request.Context(), user.ID); err != nil {
		common.RespondWithError(c, err)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("An image file is required in the 'image' form field."))
		return
	}
	relativePath, err := h.images.SaveImage(fileHeader, "doctors")
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	d, previous, err := h.service.SetProfileImage(c.Request.Context(), user, h.images.PublicURL(relativePath))
	if err != nil {
		if delErr := h.images.DeleteFile(relativePath); delErr != nil {
			h.logger.Warn("Failed to remove orphaned upload", zap.String("path", relativePath), zap.Error(delErr))
		}
		common.RespondWithError(c, err)
		return
	}
	if previous != nil {
		if old, ok := h.images.RelativePath(*previous); ok {
			if err := h.images.DeleteFile(old); err != nil {
				h.logger.Warn("Failed to remove replaced profile image", zap.String("path", old), zap.Error(err))
			}
		}
	}
	common.RespondOK(c, "Profile image updated successfully.", d)
}
