package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
	"github.com/cmlabs-hris/attendance-engine-go/internal/engine"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Session domain errors
	case errors.Is(err, session.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, session.ErrEmployeeInactive):
		Forbidden(w, "Employee is inactive")
	case errors.Is(err, session.ErrCompanyMismatch):
		Forbidden(w, "Employee and branch belong to different companies")
	case errors.Is(err, session.ErrNotIdentified):
		Unauthorized(w, "No identified session")

	// Capture policy denials. The state endpoint carries the measured
	// distance and accuracy alongside these.
	case errors.Is(err, attendance.ErrNoLocationFix),
		errors.Is(err, attendance.ErrPoorAccuracy),
		errors.Is(err, attendance.ErrOutsideGeofence),
		errors.Is(err, attendance.ErrOutsideShiftWindow),
		errors.Is(err, attendance.ErrNoShiftAssigned),
		errors.Is(err, attendance.ErrBranchUnavailable):
		BadRequest(w, err.Error(), nil)

	case errors.Is(err, attendance.ErrMockedLocation):
		Forbidden(w, err.Error())

	// Record lifecycle conflicts
	case errors.Is(err, attendance.ErrAlreadyCheckedIn),
		errors.Is(err, attendance.ErrAlreadyCheckedOut),
		errors.Is(err, attendance.ErrNotCheckedIn),
		errors.Is(err, attendance.ErrSubmissionInFlight):
		Conflict(w, err.Error())

	case errors.Is(err, engine.ErrSuperseded):
		Conflict(w, "Session was replaced by a newer identity")

	// Reachability
	case errors.Is(err, attendance.ErrOffline):
		ServiceUnavailable(w, "Backend unreachable, try again")
	case errors.Is(err, engine.ErrEngineStopped):
		ServiceUnavailable(w, "Attendance engine is not running")
	case errors.Is(err, attendance.ErrSubmissionFailed):
		InternalServerError(w, "Submission failed, state reconciled from backend")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
