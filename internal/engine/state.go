package engine

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
	"github.com/cmlabs-hris/attendance-engine-go/internal/geo"
	"github.com/cmlabs-hris/attendance-engine-go/internal/location"
	"github.com/cmlabs-hris/attendance-engine-go/internal/shiftwindow"
)

// Snapshot is the full input set of the state machine. The derived state is
// never stored as independently mutated fields; it is recomputed from a
// snapshot whenever any input changes.
type Snapshot struct {
	Identified   bool
	Submitting   bool
	Record       *attendance.Record
	BranchLoaded bool
	GPSError     *location.Error
	Sample       *attendance.LocationSample
	Geofence     geo.Evaluation
}

// Reduce maps a snapshot onto exactly one state. The precedence is fixed
// and load-bearing: a closed day beats any concurrent GPS error, and an
// unresolved branch load is reported distinctly from a GPS failure.
func Reduce(s Snapshot) attendance.State {
	// An in-flight submission overrides everything until it resolves.
	if s.Submitting {
		return attendance.StateCheckingIn
	}
	if !s.Identified {
		return attendance.StateLoading
	}
	if s.Record != nil && s.Record.CheckOut != nil {
		return attendance.StateCheckedOut
	}
	if s.Record != nil && s.Record.CheckIn != nil {
		return attendance.StateCheckedIn
	}
	if !s.BranchLoaded {
		return attendance.StateBranchError
	}
	if s.GPSError != nil {
		return attendance.StateGPSError
	}
	if s.Sample == nil {
		return attendance.StateLoading
	}
	if !s.Geofence.Known {
		return attendance.StateLoading
	}
	if !s.Geofence.Inside {
		return attendance.StateOutOfBranch
	}
	return attendance.StateReady
}

// Gate is the outcome of an action precondition check. Err carries the
// domain sentinel for the first failing condition, with the measured values
// available for user-facing messages.
type Gate struct {
	Allowed        bool
	Err            error
	DistanceMeters *float64
	AccuracyMeters *float64
}

func locationGate(s Snapshot, accuracyCeiling float64) Gate {
	if s.Sample == nil {
		return Gate{Err: attendance.ErrNoLocationFix}
	}

	g := Gate{AccuracyMeters: &s.Sample.AccuracyMeters}
	if s.Geofence.Known {
		d := s.Geofence.DistanceMeters
		g.DistanceMeters = &d
	}

	// Ceiling is inclusive: accuracy exactly at the ceiling passes.
	if accuracyCeiling > 0 && s.Sample.AccuracyMeters > accuracyCeiling {
		g.Err = attendance.ErrPoorAccuracy
		return g
	}
	if !s.Geofence.Known {
		g.Err = attendance.ErrBranchUnavailable
		return g
	}
	if !s.Geofence.Inside {
		g.Err = attendance.ErrOutsideGeofence
		return g
	}

	g.Allowed = true
	return g
}

// CanCheckIn re-validates every check-in precondition: fix present,
// accuracy at or below the ceiling, inside the geofence, shift assigned,
// and current time within the shift window. A closed record does not block
// re-check-in; an open one does.
func CanCheckIn(s Snapshot, shift *session.Shift, now time.Time, accuracyCeiling float64) Gate {
	if s.Record != nil && s.Record.Open() {
		return Gate{Err: attendance.ErrAlreadyCheckedIn}
	}

	g := locationGate(s, accuracyCeiling)
	if !g.Allowed {
		return g
	}

	if shift == nil {
		g.Allowed = false
		g.Err = attendance.ErrNoShiftAssigned
		return g
	}

	window := shiftwindow.Window{
		Start:        shift.Start,
		End:          shift.End,
		GraceMinutes: shift.GraceMinutes,
	}
	if !window.ContainsTime(now) {
		g.Allowed = false
		g.Err = attendance.ErrOutsideShiftWindow
		return g
	}

	return g
}

// CanCheckOut requires an open record plus the location checks. The shift
// window is deliberately not required: a late checkout is still a checkout.
func CanCheckOut(s Snapshot, accuracyCeiling float64) Gate {
	if s.Record == nil || s.Record.CheckIn == nil {
		return Gate{Err: attendance.ErrNotCheckedIn}
	}
	if s.Record.CheckOut != nil {
		return Gate{Err: attendance.ErrAlreadyCheckedOut}
	}

	return locationGate(s, accuracyCeiling)
}
