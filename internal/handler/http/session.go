package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
	"github.com/cmlabs-hris/attendance-engine-go/internal/engine"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type SessionHandler interface {
	Identify(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
}

type sessionHandlerImpl struct {
	engine     *engine.Engine
	jwtService jwt.Service
}

func NewSessionHandler(engine *engine.Engine, jwtService jwt.Service) SessionHandler {
	return &sessionHandlerImpl{
		engine:     engine,
		jwtService: jwtService,
	}
}

type identifyResponse struct {
	Token     string                   `json:"token"`
	ExpiresAt int64                    `json:"expires_at"`
	Employee  session.EmployeeResponse `json:"employee"`
}

// Identify implements SessionHandler. A successful identify replaces any
// previous session on the device.
func (h *sessionHandlerImpl) Identify(w http.ResponseWriter, r *http.Request) {
	var req session.IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	emp, err := h.engine.Identify(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var branchID *string
	if emp.BranchID != "" {
		branchID = &emp.BranchID
	}
	token, expiresAt, err := h.jwtService.GenerateSessionToken(emp.ID, emp.CompanyID, branchID)
	if err != nil {
		response.InternalServerError(w, "Failed to issue session token")
		return
	}

	response.Success(w, identifyResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Employee:  emp,
	})
}

// Logout implements SessionHandler. The token is revoked and the engine
// session torn down; both are safe to repeat.
func (h *sessionHandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	if token := jwtauth.TokenFromHeader(r); token != "" {
		h.jwtService.RevokeToken(token)
	}

	if err := h.engine.Logout(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Logged out", nil)
}
