// File: internal/appointment/handler.go
package appointment

import (
	"errors"
	"io"

	"medibook_backend/internal/common"
	"medibook_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for appointment handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new appointment handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger.Named("appointment_handler")}
}

// RegisterRoutes sets up the routes for appointment operations. Every route
// requires a session.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, sessionGate gin.HandlerFunc) {
	appointmentGroup := router.Group("/appointments", sessionGate)
	{
		appointmentGroup.POST("", h.createAppointment)
		appointmentGroup.GET("", h.listAppointments)
		appointmentGroup.GET("/:id", h.getAppointment)
		appointmentGroup.PATCH("/:id/status", h.updateStatus)
	}
}

func (h *Handler) createAppointment(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthenticated)
		return
	}

	var req CreateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	appointment, err := h.service.CreateAppointment(c.Request.Context(), user, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Appointment booked successfully.", appointment)
}

func (h *Handler) listAppointments(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthenticated)
		return
	}

	query := ListQuery{
		Status:          Status(c.Query("status")),
		PaginationQuery: common.GetPaginationParams(c),
	}
	appointments, pagination, err := h.service.ListAppointments(c.Request.Context(), user, query)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Appointments retrieved successfully.", appointments, pagination)
}

func (h *Handler) getAppointment(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthenticated)
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	appointment, err := h.service.GetAppointment(c.Request.Context(), user, id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Appointment retrieved successfully.", appointment)
}

func (h *Handler) updateStatus(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		common.RespondWithError(c, common.ErrUnauthenticated)
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	appointment, err := h.service.ChangeStatus(c.Request.Context(), user, id, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Appointment status updated successfully.", appointment)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid appointment ID format."))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into dst. An empty body leaves dst zero so that
// validation names the missing fields.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Request body must be valid JSON."))
		return false
	}
	return true
}
