package attendance

import "errors"

// Attendance domain errors
var (
	// Policy errors: user-facing denials, cleared once the condition changes
	ErrNoLocationFix      = errors.New("no location fix available yet")
	ErrPoorAccuracy       = errors.New("location accuracy is above the allowed ceiling")
	ErrOutsideGeofence    = errors.New("you are outside the allowed branch radius")
	ErrOutsideShiftWindow = errors.New("outside the allowed shift time window")
	ErrNoShiftAssigned    = errors.New("no shift assigned for this employee")
	ErrBranchUnavailable  = errors.New("branch location data is unavailable")

	// Trust errors: fatal to the current attempt, always reported
	ErrMockedLocation = errors.New("location appears to be mocked")

	// Conflict errors: reconciliation signals, not hard failures
	ErrAlreadyCheckedIn  = errors.New("you have already checked in today")
	ErrNotCheckedIn      = errors.New("you have not checked in yet")
	ErrAlreadyCheckedOut = errors.New("you have already checked out today")

	// Submission errors
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrOffline            = errors.New("backend is unreachable, try again when online")
	ErrSubmissionFailed   = errors.New("submission failed, attendance state was re-fetched")
)
