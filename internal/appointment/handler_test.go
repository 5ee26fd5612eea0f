package appointment

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"medibook_backend/internal/common"
	"medibook_backend/internal/identity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *ServiceTestSuite) router(user *identity.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	gate := func(c *gin.Context) {
		if user == nil {
			common.RespondWithError(c, common.ErrUnauthenticated)
			return
		}
		c.Set(common.UserKey, user)
		c.Next()
	}
	router := gin.New()
	NewHandler(s.Service, zap.NewNop()).RegisterRoutes(router.Group("/api"), gate)
	return router
}

func (s *ServiceTestSuite) call(user *identity.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router(user).ServeHTTP(w, req)
	return w
}

type appointmentEnvelope struct {
	Data Appointment `json:"data"`
}

func (s *ServiceTestSuite) TestHandler_Flow() {
	w := s.call(patient, http.MethodPost, "/api/appointments", map[string]string{
		"doctorId":        s.Doctor.ID.String(),
		"appointmentDate": s.Today.Add(48 * time.Hour).Format(DateLayout),
		"timeSlot":        "14:00-14:30",
		"reasonForVisit":  "Headache",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created appointmentEnvelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &created))
	s.Equal(StatusPending, created.Data.Status)
	s.NotContains(w.Body.String(), doctorUser.ID)
	path := "/api/appointments/" + created.Data.ID.String()

	w = s.call(stranger, http.MethodGet, path, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.call(doctorUser, http.MethodPatch, path+"/status", map[string]string{"action": "confirm"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.call(patient, http.MethodPatch, path+"/status", map[string]string{"action": "cancel"})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.call(doctorUser, http.MethodPatch, path+"/status", map[string]string{"action": "confirm"})
	s.Equal(http.StatusConflict, w.Code)
	s.Contains(w.Body.String(), "INVALID_TRANSITION")

	w = s.call(patient, http.MethodGet, "/api/appointments?status=cancelled", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"total_items":1`)
}

func (s *ServiceTestSuite) TestHandler_Errors() {
	w := s.call(nil, http.MethodGet, "/api/appointments", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.call(patient, http.MethodGet, "/api/appointments/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.call(patient, http.MethodPost, "/api/appointments", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "VALIDATION_ERROR")

	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router(patient).ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}
