package attendance

import (
	"time"
)

// State is the single authoritative UI/action state of the capture engine.
// Exactly one state is active at any time; states are recomputed from an
// input snapshot, never mutated field by field.
type State string

const (
	StateLoading     State = "loading"
	StateBranchError State = "branch_error"
	StateGPSError    State = "gps_error"
	StateOutOfBranch State = "out_of_branch"
	StateReady       State = "ready"
	StateCheckingIn  State = "checking_in"
	StateCheckedIn   State = "checked_in"
	StateCheckedOut  State = "checked_out"
)

// Record is one attendance row in the backend of record. A record is open
// while CheckOut is nil; at most one open record exists per employee per day.
type Record struct {
	ID                string
	EmployeeID        string
	CompanyID         string
	Date              time.Time
	CheckIn           *time.Time
	CheckOut          *time.Time
	CheckInLatitude   *float64
	CheckInLongitude  *float64
	CheckOutLatitude  *float64
	CheckOutLongitude *float64
	Timezone          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Open reports whether the record has a check-in but no check-out yet.
func (r Record) Open() bool {
	return r.CheckIn != nil && r.CheckOut == nil
}

// LocationSample is a single positioning fix as delivered by a provider.
type LocationSample struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	CapturedAt     time.Time
	// ProviderMocked is the platform "is-mock" signal. The spoof detector
	// may flag a sample even when this is false.
	ProviderMocked bool
}
