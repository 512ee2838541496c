package handlers

import (
	"context"
	"net/http"

	"smart_irrigation/internal/models"
	"smart_irrigation/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpEmail string
	lastGenEmail    string
	lastGenPassword string
	lastParseToken  string
}

func (m *mockAuth) SignUp(_ context.Context, email, password string) (int, error) {
	m.lastSignUpEmail = email
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, email, password string) (string, error) {
	m.lastGenEmail = email
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) EnsureUser(context.Context, string, string) (bool, error) {
	return false, nil
}

type mockTelemetry struct {
	latest     models.DeviceSnapshot
	latestErr  error
	history    []models.DeviceSnapshot
	historyErr error
	lastFilter service.HistoryFilter
}

func (m *mockTelemetry) Latest(context.Context) (models.DeviceSnapshot, error) {
	return m.latest, m.latestErr
}
func (m *mockTelemetry) History(_ context.Context, f service.HistoryFilter) ([]models.DeviceSnapshot, error) {
	m.lastFilter = f
	return m.history, m.historyErr
}

type mockCommand struct {
	res        models.CommandResult
	err        error
	lastAction models.CommandAction
	calls      int
}

func (m *mockCommand) Execute(_ context.Context, a models.CommandAction) (models.CommandResult, error) {
	m.calls++
	m.lastAction = a
	return m.res, m.err
}

type mockWeather struct {
	w   models.WeatherSnapshot
	err error
}

func (m *mockWeather) Current(context.Context) (models.WeatherSnapshot, error) {
	return m.w, m.err
}

type mockEventLog struct {
	resp       []models.PumpEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.PumpEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
