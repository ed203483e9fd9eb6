package session

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
)

// Gateway is the backend of record. The engine treats it as an opaque,
// authoritative collaborator: every submission outcome and every record
// re-fetch comes from here, never from local assumptions.
type Gateway interface {
	// ResolveEmployeeByCode resolves a trimmed, case-insensitive employee
	// code into the full employee+branch+shift bundle.
	// Returns ErrEmployeeNotFound or ErrEmployeeInactive.
	ResolveEmployeeByCode(ctx context.Context, code string) (Bundle, error)

	// FetchOpenRecord returns the employee's open record (null check-out,
	// any day) or, failing that, the given local day's closed record, so a
	// finished day still resolves to checked-out after re-identify and a
	// forgotten checkout from a previous day surfaces instead of being
	// shadowed by a fresh check-in. Returns nil, nil when neither exists.
	FetchOpenRecord(ctx context.Context, employeeID string, day time.Time) (*attendance.Record, error)

	// SubmitCheckIn creates the attendance record. The backend enforces the
	// one-open-record-per-day rule; attendance.ErrAlreadyCheckedIn signals a
	// conflict the caller must reconcile by re-fetching, not a hard failure.
	SubmitCheckIn(ctx context.Context, sub attendance.CheckInSubmission) (attendance.Record, error)

	// SubmitCheckOut closes an open record.
	SubmitCheckOut(ctx context.Context, sub attendance.CheckOutSubmission) (attendance.Record, error)

	// ReportFraudEvent is fire-and-forget from the engine's perspective; a
	// reporting failure must not alter the user-facing denial.
	ReportFraudEvent(ctx context.Context, event FraudEvent) error

	// ResolveTimezone maps coordinates to an IANA timezone, falling back to
	// the device timezone. Best effort; cached by the caller per session.
	ResolveTimezone(ctx context.Context, lat, lng float64, deviceTimezone string) (string, error)

	// SubscribeBranchUpdates delivers change notifications for the given
	// branch until the returned cancel function is called.
	SubscribeBranchUpdates(ctx context.Context, branchID, companyID string, onChange func(BranchUpdate)) (cancel func(), err error)

	// Ping probes connectivity so actions can fail locally while offline.
	Ping(ctx context.Context) error
}
