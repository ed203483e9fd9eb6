package session

import "time"

// Employee is the identity resolved from a user-entered employee code.
type Employee struct {
	ID         string
	Code       string
	Name       string
	JobTitle   string
	Department string
	BranchID   string
	CompanyID  string
	Active     bool
}

// Branch carries the geofence parameters for an employee's work zone.
// Latitude/Longitude are pointers because a branch may exist without
// coordinates yet; a geofence cannot be evaluated in that case.
type Branch struct {
	ID           string
	CompanyID    string
	Name         string
	Latitude     *float64
	Longitude    *float64
	RadiusMeters float64
	Timezone     string
}

// DefaultRadiusMeters applies when a branch has no radius configured.
const DefaultRadiusMeters = 150

// DefaultGraceMinutes applies when a shift has no grace period configured.
const DefaultGraceMinutes = 15

// Shift is a local wall-clock work window. Start and End are minutes since
// midnight; Start > End means the shift wraps past midnight.
type Shift struct {
	ID           string
	Name         string
	Start        int
	End          int
	GraceMinutes int
}

// Bundle is the employee + branch + shift aggregate fetched at identity
// entry. It is always applied atomically; partial updates of branch fields
// with stale shift data are never allowed.
type Bundle struct {
	Employee Employee
	Branch   *Branch
	Shift    *Shift
}

// FraudEvent describes a suspected spoofing attempt reported to the backend.
type FraudEvent struct {
	ID             string
	Type           string
	Description    string
	Severity       string
	EmployeeID     string
	CompanyID      string
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	OccurredAt     time.Time
	Metadata       map[string]string
}

// BranchUpdate is a realtime notification that branch data changed.
type BranchUpdate struct {
	BranchID  string
	CompanyID string
}
