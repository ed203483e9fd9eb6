package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
	"github.com/cmlabs-hris/attendance-engine-go/internal/engine"
	"github.com/cmlabs-hris/attendance-engine-go/internal/location"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine-go/internal/spoof"
	"github.com/cmlabs-hris/attendance-engine-go/internal/timesync"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

var (
	handlerBranchLat = -6.2
	handlerBranchLng = 106.8
)

// memoryGateway is an in-memory session.Gateway for handler tests.
type memoryGateway struct {
	bundle session.Bundle
	record *attendance.Record
}

func (g *memoryGateway) ResolveEmployeeByCode(ctx context.Context, code string) (session.Bundle, error) {
	if code != g.bundle.Employee.Code {
		return session.Bundle{}, session.ErrEmployeeNotFound
	}
	return g.bundle, nil
}

func (g *memoryGateway) FetchOpenRecord(ctx context.Context, employeeID string, day time.Time) (*attendance.Record, error) {
	if g.record == nil {
		return nil, nil
	}
	rec := *g.record
	return &rec, nil
}

func (g *memoryGateway) SubmitCheckIn(ctx context.Context, sub attendance.CheckInSubmission) (attendance.Record, error) {
	if g.record != nil && g.record.Open() {
		return attendance.Record{}, attendance.ErrAlreadyCheckedIn
	}
	now := time.Now()
	rec := attendance.Record{
		ID:         uuid.NewString(),
		EmployeeID: sub.EmployeeID,
		CompanyID:  sub.CompanyID,
		Date:       now,
		CheckIn:    &now,
		Timezone:   sub.DeviceTimezone,
	}
	g.record = &rec
	return rec, nil
}

func (g *memoryGateway) SubmitCheckOut(ctx context.Context, sub attendance.CheckOutSubmission) (attendance.Record, error) {
	if g.record == nil || !g.record.Open() {
		return attendance.Record{}, attendance.ErrAlreadyCheckedOut
	}
	rec := *g.record
	ts := sub.Timestamp
	rec.CheckOut = &ts
	g.record = &rec
	return rec, nil
}

func (g *memoryGateway) ReportFraudEvent(ctx context.Context, event session.FraudEvent) error {
	return nil
}

func (g *memoryGateway) ResolveTimezone(ctx context.Context, lat, lng float64, deviceTimezone string) (string, error) {
	return "UTC", nil
}

func (g *memoryGateway) SubscribeBranchUpdates(ctx context.Context, branchID, companyID string, onChange func(session.BranchUpdate)) (func(), error) {
	return func() {}, nil
}

func (g *memoryGateway) Ping(ctx context.Context) error { return nil }

func testGateway() *memoryGateway {
	lat, lng := handlerBranchLat, handlerBranchLng
	return &memoryGateway{
		bundle: session.Bundle{
			Employee: session.Employee{
				ID:        "emp-1",
				Code:      "emp-001",
				Name:      "Handler Test",
				BranchID:  "branch-1",
				CompanyID: "company-1",
				Active:    true,
			},
			Branch: &session.Branch{
				ID:           "branch-1",
				CompanyID:    "company-1",
				Name:         "HQ",
				Latitude:     &lat,
				Longitude:    &lng,
				RadiusMeters: 150,
			},
			Shift: &session.Shift{ID: "shift-1", Name: "All Day", Start: 0, End: 1439},
		},
	}
}

func newTestRouter(t *testing.T) (*chi.Mux, jwt.Service) {
	t.Helper()

	gw := testGateway()
	provider := location.NewPushProvider()
	hub := sse.NewHub()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	timeClient := timesync.NewClient("http://127.0.0.1:1", 50*time.Millisecond)

	eng := engine.New(
		engine.Config{TickInterval: 10 * time.Millisecond, PingTimeout: 200 * time.Millisecond},
		gw,
		location.NewWatcher(provider),
		spoof.NewDetector(spoof.DefaultConfig()),
		timeClient,
		hub,
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	t.Cleanup(cancel)

	jwtSvc := jwt.NewJWTService(handlerTestSecret, "1h")
	sessionHandler := NewSessionHandler(eng, jwtSvc)
	attendanceHandler := NewAttendanceHandler(eng, provider, hub, jwtSvc)

	return NewRouter(jwtSvc, "http://localhost:3000", sessionHandler, attendanceHandler), jwtSvc
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func identifySession(t *testing.T, router http.Handler) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/session", "", map[string]string{
		"employee_code":   "EMP-001",
		"device_timezone": "UTC",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			Token    string `json:"token"`
			Employee struct {
				ID string `json:"id"`
			} `json:"employee"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)
	assert.Equal(t, "emp-1", body.Data.Employee.ID)
	return body.Data.Token
}

func waitForState(t *testing.T, router http.Handler, token string, want attendance.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/attendance/state", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data struct {
				State attendance.State `json:"state"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		if body.Data.State == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state never became %s", want)
}

func TestIdentifyEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("unknown code returns 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/session", "", map[string]string{
			"employee_code": "nope",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty code fails validation", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/session", "", map[string]string{
			"employee_code": "  ",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("valid code issues a session token", func(t *testing.T) {
		identifySession(t, router)
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/api/v1/attendance/state", "/api/v1/attendance/check-in"} {
		method := http.MethodGet
		if path == "/api/v1/attendance/check-in" {
			method = http.MethodPost
		}
		rec := doJSON(t, router, method, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestCaptureFlowOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)
	token := identifySession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/location", token, map[string]interface{}{
		"latitude":        handlerBranchLat,
		"longitude":       handlerBranchLng,
		"accuracy_meters": 20,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	waitForState(t, router, token, attendance.StateReady)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/attendance/check-in", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	waitForState(t, router, token, attendance.StateCheckedIn)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/attendance/check-out", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	waitForState(t, router, token, attendance.StateCheckedOut)
}

func TestCheckInDeniedBeforeFix(t *testing.T) {
	router, _ := newTestRouter(t)
	token := identifySession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/attendance/check-in", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no location fix yet")
}

func TestMockedSampleForbidsCheckIn(t *testing.T) {
	router, _ := newTestRouter(t)
	token := identifySession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/location", token, map[string]interface{}{
		"latitude":        handlerBranchLat,
		"longitude":       handlerBranchLng,
		"accuracy_meters": 20,
		"mocked":          true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec = doJSON(t, router, http.MethodPost, "/api/v1/attendance/check-in", token, nil)
		if rec.Code == http.StatusForbidden {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("check-in never rejected as mocked, last status %d", rec.Code)
}

func TestSensorErrorEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	token := identifySession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/location/error", token, map[string]string{
		"kind": "timeout",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/location/error", token, map[string]string{
		"kind": "bogus",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSSETokenEndpoint(t *testing.T) {
	router, jwtSvc := newTestRouter(t)
	token := identifySession(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/attendance/events/token", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data sseTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)

	employeeID, err := jwtSvc.ValidateSSEToken(body.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", employeeID)
}

func TestStreamRejectsMissingToken(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	router, jwtSvc := newTestRouter(t)
	token := identifySession(t, router)

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, jwtSvc.IsTokenRevoked(token))

	rec = doJSON(t, router, http.MethodGet, "/api/v1/attendance/state", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a revoked token must not reach handlers")
}
