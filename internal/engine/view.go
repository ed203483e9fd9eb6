package engine

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
)

// ActionResult is the outcome of a check-in/check-out action.
type ActionResult struct {
	Record     *attendance.RecordResponse `json:"record,omitempty"`
	State      attendance.State           `json:"state"`
	Reconciled bool                       `json:"reconciled,omitempty"`
}

// StateView is the UI-facing projection of the engine state: the current
// state, the action gates with their measured values, and the advisory
// clock trust flag.
type StateView struct {
	State          attendance.State          `json:"state"`
	Identified     bool                      `json:"identified"`
	Employee       *session.EmployeeResponse `json:"employee,omitempty"`
	Record         *attendance.RecordResponse `json:"record,omitempty"`
	CanCheckIn     bool                      `json:"can_check_in"`
	CanCheckOut    bool                      `json:"can_check_out"`
	CheckInDenial  string                    `json:"check_in_denial,omitempty"`
	CheckOutDenial string                    `json:"check_out_denial,omitempty"`
	DistanceMeters *float64                  `json:"distance_meters,omitempty"`
	AccuracyMeters *float64                  `json:"accuracy_meters,omitempty"`
	TrustBlocked   bool                      `json:"trust_blocked,omitempty"`
	TrustReason    string                    `json:"trust_reason,omitempty"`
	GPSError       string                    `json:"gps_error,omitempty"`
	ClockDegraded  bool                      `json:"clock_degraded,omitempty"`
	Timezone       string                    `json:"timezone,omitempty"`
	ServerTime     string                    `json:"server_time,omitempty"`
}

// Equal ignores ServerTime so the 1Hz tick only publishes when something
// meaningful changed.
func (v StateView) Equal(o StateView) bool {
	return v.State == o.State &&
		v.Identified == o.Identified &&
		v.CanCheckIn == o.CanCheckIn &&
		v.CanCheckOut == o.CanCheckOut &&
		v.CheckInDenial == o.CheckInDenial &&
		v.CheckOutDenial == o.CheckOutDenial &&
		floatPtrEqual(v.DistanceMeters, o.DistanceMeters) &&
		floatPtrEqual(v.AccuracyMeters, o.AccuracyMeters) &&
		v.TrustBlocked == o.TrustBlocked &&
		v.TrustReason == o.TrustReason &&
		v.GPSError == o.GPSError &&
		v.ClockDegraded == o.ClockDegraded &&
		v.Timezone == o.Timezone &&
		recordIDEqual(v.Record, o.Record) &&
		employeeIDEqual(v.Employee, o.Employee)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func recordIDEqual(a, b *attendance.RecordResponse) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && stringPtrEqual(a.CheckOutTime, b.CheckOutTime)
}

func employeeIDEqual(a, b *session.EmployeeResponse) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// denialMessage renders a gate failure with its measured value, per the
// policy-error contract: the user sees what was measured, not just that it
// failed.
func denialMessage(gate Gate) string {
	if gate.Err == nil {
		return ""
	}
	switch gate.Err {
	case attendance.ErrOutsideGeofence:
		if gate.DistanceMeters != nil {
			return fmt.Sprintf("%s (distance %.0fm)", gate.Err.Error(), *gate.DistanceMeters)
		}
	case attendance.ErrPoorAccuracy:
		if gate.AccuracyMeters != nil {
			return fmt.Sprintf("%s (accuracy %.0fm)", gate.Err.Error(), *gate.AccuracyMeters)
		}
	}
	return gate.Err.Error()
}

func (e *Engine) view() StateView {
	snap := e.snapshot()

	v := StateView{
		State:         Reduce(snap),
		Identified:    snap.Identified,
		ClockDegraded: e.s.clockSynced && e.s.clock.Degraded,
		Timezone:      e.s.timezone,
	}

	if e.s.bundle != nil {
		emp := session.NewEmployeeResponse(*e.s.bundle)
		v.Employee = &emp
		v.ServerTime = e.s.clock.Now().Format(time.RFC3339)
	}
	if e.s.record != nil {
		rec := attendance.NewRecordResponse(*e.s.record)
		v.Record = &rec
	}
	if snap.Sample != nil {
		v.AccuracyMeters = &snap.Sample.AccuracyMeters
	}
	if snap.Geofence.Known {
		d := snap.Geofence.DistanceMeters
		v.DistanceMeters = &d
	}
	if e.s.gpsErr != nil {
		v.GPSError = string(e.s.gpsErr.Kind)
	}

	if e.s.trustReason != "" {
		v.TrustBlocked = true
		v.TrustReason = e.s.trustReason
		v.CheckInDenial = attendance.ErrMockedLocation.Error()
		v.CheckOutDenial = attendance.ErrMockedLocation.Error()
		return v
	}

	if e.s.bundle != nil && !e.s.submitting {
		inGate := CanCheckIn(snap, e.s.bundle.Shift, e.s.clock.Now(), e.cfg.AccuracyCeilingMeters)
		v.CanCheckIn = inGate.Allowed
		if !inGate.Allowed {
			v.CheckInDenial = denialMessage(inGate)
		}

		outGate := CanCheckOut(snap, e.cfg.AccuracyCeilingMeters)
		v.CanCheckOut = outGate.Allowed
		if !outGate.Allowed {
			v.CheckOutDenial = denialMessage(outGate)
		}
	}

	return v
}
