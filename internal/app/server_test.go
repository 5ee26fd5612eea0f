package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medibook_backend/internal/appointment"
	"medibook_backend/internal/auth"
	"medibook_backend/internal/config"
	"medibook_backend/internal/doctor"
	"medibook_backend/internal/filestorage"
	"medibook_backend/internal/identity"
	"medibook_backend/internal/identity/identitytest"
	"medibook_backend/internal/jobs"
	"medibook_backend/internal/platform/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// ServerTestSuite exercises the assembled router against a fake GoTrue
// server and an in-memory database.
type ServerTestSuite struct {
	suite.Suite
	Provider *identitytest.GoTrueServer
	Handler  http.Handler
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.Provider = identitytest.NewGoTrueServer()
	logger := zap.NewNop()
	cfg := &config.Config{
		AppEnv:                  config.EnvDevelopment,
		FrontendOrigins:         []string{"http://localhost:5173"},
		IdentityProvider:        config.ProviderGoTrue,
		IdentityProviderURL:     s.Provider.URL,
		IdentityProviderKey:     identitytest.APIKey,
		IdentityProviderTimeout: 5 * time.Second,
		SessionCookieMaxAge:     24 * time.Hour,
		DBDriver:                config.DriverSQLite,
		DBSQLitePath:            ":memory:",
		LogLevel:                "silent",
		AuthRateLimitRPS:        0.01,
		AuthRateLimitBurst:      5,
		MediaStoragePath:        s.T().TempDir(),
		MediaURLPrefix:          "/media",
	}

	db, err := database.NewGORM(cfg, logger)
	s.Require().NoError(err)
	s.Require().NoError(database.AutoMigrate(db, &doctor.Doctor{}, &appointment.Appointment{}))
	s.T().Cleanup(func() { database.CloseGORMDB(db, logger) })

	provider := identity.NewGoTrueProvider(cfg, logger)
	blocklist := auth.NewInMemoryBlocklistService(auth.InMemoryBlocklistConfig{DefaultExpiration: time.Hour, CleanupInterval: time.Minute})
	authService := auth.NewSessionService(provider, blocklist, cfg, logger)
	doctorService := doctor.NewService(doctor.NewGORMRepository(db), nil, logger)
	images, err := filestorage.NewFileStorageService(cfg, logger)
	s.Require().NoError(err)
	appointmentService := appointment.NewService(appointment.NewGORMRepository(db), doctorService, logger)

	server, err := NewServer(cfg, logger,
		authService,
		auth.NewHandler(authService, cfg, logger),
		doctor.NewHandler(doctorService, images, logger),
		appointment.NewHandler(appointmentService, logger),
		jobs.NewAppointmentExpiryJob(appointmentService, logger, cfg),
		images,
	)
	s.Require().NoError(err)
	s.Handler = server.Handler()
}

func (s *ServerTestSuite) TearDownTest() {
	s.Provider.Close()
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) do(method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, req)
	return w
}

func (s *ServerTestSuite) registerAndLogin(email, name, role string) []*http.Cookie {
	w := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": "secret1", "name": name, "role": role,
	}, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	s.Require().Len(cookies, 2)
	return cookies
}

func (s *ServerTestSuite) dataID(w *httptest.ResponseRecorder) string {
	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data.ID
}

func (s *ServerTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"OK"`)
	s.Contains(w.Body.String(), `"timestamp"`)
	s.NotEmpty(w.Header().Get("X-Request-ID"))
}

func (s *ServerTestSuite) TestCORSAllowsFrontendWithCredentials() {
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, req)

	s.Equal("http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	s.Handler.ServeHTTP(w, req)
	s.Empty(w.Header().Get("Access-Control-Allow-Origin"))
}

func (s *ServerTestSuite) TestUnknownRouteAndMethod() {
	w := s.do(http.MethodGet, "/api/nope", nil, nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Contains(w.Body.String(), "NOT_FOUND")

	w = s.do(http.MethodDelete, "/health", nil, nil)
	s.Equal(http.StatusMethodNotAllowed, w.Code)
}

func (s *ServerTestSuite) TestRegisterWithoutSessionSetsNoCookies() {
	s.Provider.RequireConfirmation = true
	w := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "secret1", "name": "Ada",
	}, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Empty(w.Result().Cookies())
}

func (s *ServerTestSuite) TestRegisterWithSession() {
	w := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "secret1", "name": "Ada",
	}, nil)
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Len(w.Result().Cookies(), 2)

	var body struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("a@b.com", body.User.Email)
}

func (s *ServerTestSuite) TestCredentialRateLimit() {
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "x@b.com", "password": "nope"}, nil)
	}
	s.Equal(http.StatusTooManyRequests, last.Code)
	s.NotEmpty(last.Header().Get("Retry-After"))

	// Other routes are not limited.
	w := s.do(http.MethodGet, "/api/doctors", nil, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *ServerTestSuite) TestCredentialRateLimitIgnoresForwardedFor() {
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"email":"x@b.com","password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		last = httptest.NewRecorder()
		s.Handler.ServeHTTP(last, req)
	}
	s.Equal(http.StatusTooManyRequests, last.Code)
}

func (s *ServerTestSuite) TestBookingFlow() {
	doctorCookies := s.registerAndLogin("doc@b.com", "Dr Strange", identity.RoleDoctor)
	patientCookies := s.registerAndLogin("pat@b.com", "Pat", identity.RolePatient)

	w := s.do(http.MethodPut, "/api/doctors/me", map[string]interface{}{
		"name": "Dr Strange", "specialization": "Neurology", "consultationFee": 120,
	}, patientCookies)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/doctors/me", map[string]interface{}{
		"name": "Dr Strange", "specialization": "Neurology", "consultationFee": 120,
	}, doctorCookies)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	doctorID := s.dataID(w)

	w = s.do(http.MethodGet, "/api/doctors?q=neuro", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), doctorID)

	w = s.do(http.MethodPost, "/api/appointments", map[string]string{
		"doctorId":        doctorID,
		"appointmentDate": time.Now().AddDate(0, 0, 3).Format(appointment.DateLayout),
		"timeSlot":        "09:00-09:30",
	}, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/appointments", map[string]string{
		"doctorId":        doctorID,
		"appointmentDate": time.Now().AddDate(0, 0, 3).Format(appointment.DateLayout),
		"timeSlot":        "09:00-09:30",
	}, patientCookies)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	appointmentPath := "/api/appointments/" + s.dataID(w)

	w = s.do(http.MethodPatch, appointmentPath+"/status", map[string]string{"action": "confirm"}, doctorCookies)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Contains(w.Body.String(), `"status":"confirmed"`)

	w = s.do(http.MethodPatch, appointmentPath+"/status", map[string]string{"action": "complete"}, doctorCookies)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPatch, appointmentPath+"/status", map[string]string{"action": "cancel"}, patientCookies)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/logout", nil, patientCookies)
	s.Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodGet, appointmentPath, nil, patientCookies)
	s.Equal(http.StatusUnauthorized, w.Code)
}
