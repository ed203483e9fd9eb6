package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/engine"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine-go/internal/location"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/sse"
	"github.com/go-chi/jwtauth/v5"
)

type AttendanceHandler interface {
	PushSample(w http.ResponseWriter, r *http.Request)
	PushSensorError(w http.ResponseWriter, r *http.Request)
	State(w http.ResponseWriter, r *http.Request)
	CheckIn(w http.ResponseWriter, r *http.Request)
	CheckOut(w http.ResponseWriter, r *http.Request)
	GetSSEToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	engine     *engine.Engine
	provider   *location.PushProvider
	hub        *sse.Hub
	jwtService jwt.Service
}

func NewAttendanceHandler(engine *engine.Engine, provider *location.PushProvider, hub *sse.Hub, jwtService jwt.Service) AttendanceHandler {
	return &attendanceHandlerImpl{
		engine:     engine,
		provider:   provider,
		hub:        hub,
		jwtService: jwtService,
	}
}

// getEmployeeIDFromContext extracts employee_id from JWT context
func getEmployeeIDFromContext(r *http.Request) string {
	_, claims, _ := jwtauth.FromContext(r.Context())
	if employeeID, ok := claims["employee_id"].(string); ok {
		return employeeID
	}
	return ""
}

// PushSample implements AttendanceHandler. The sample goes through the
// provider, not straight into the engine, so the engine sees the same
// delivery path as any other positioning source.
func (h *attendanceHandlerImpl) PushSample(w http.ResponseWriter, r *http.Request) {
	var req attendance.SampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	h.provider.Publish(req.ToSample(time.Now()))
	response.Accepted(w, "Sample accepted")
}

// PushSensorError implements AttendanceHandler.
func (h *attendanceHandlerImpl) PushSensorError(w http.ResponseWriter, r *http.Request) {
	var req attendance.SensorErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	kind, ok := location.ParseKind(req.Kind)
	if !ok {
		response.BadRequest(w, "Unknown sensor error kind", nil)
		return
	}

	h.provider.PublishError(&location.Error{Kind: kind})
	response.Accepted(w, "Sensor error accepted")
}

// State implements AttendanceHandler.
func (h *attendanceHandlerImpl) State(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.State(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, view)
}

// CheckIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckIn(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.CheckIn(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if result.Reconciled {
		response.SuccessWithMessage(w, "Already checked in, state reconciled", result)
		return
	}
	response.Created(w, "Check-in recorded", result)
}

// CheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckOut(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.CheckOut(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Check-out recorded", result)
}

type sseTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// GetSSEToken generates a short-lived token for the state stream
func (h *attendanceHandlerImpl) GetSSEToken(w http.ResponseWriter, r *http.Request) {
	employeeID := getEmployeeIDFromContext(r)
	if employeeID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	token, expiresIn, err := h.jwtService.GenerateSSEToken(employeeID)
	if err != nil {
		response.InternalServerError(w, "Failed to generate SSE token")
		return
	}

	response.Success(w, sseTokenResponse{Token: token, ExpiresIn: expiresIn})
}

// Stream handles the SSE connection pushing state snapshots
func (h *attendanceHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter (EventSource cannot send headers)
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	if _, err := h.jwtService.ValidateSSEToken(tokenStr); err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(engine.StreamTopic)
	defer cleanup()

	// Send the current state up front so a reconnecting client does not
	// wait for the next change.
	if view, err := h.engine.State(r.Context()); err == nil {
		if data, err := json.Marshal(view); err == nil {
			fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
