package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `
	id, employee_id, company_id, date, check_in, check_out,
	check_in_latitude, check_in_longitude,
	check_out_latitude, check_out_longitude,
	timezone, created_at, updated_at
`

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var rec attendance.Record
	err := row.Scan(
		&rec.ID, &rec.EmployeeID, &rec.CompanyID, &rec.Date, &rec.CheckIn, &rec.CheckOut,
		&rec.CheckInLatitude, &rec.CheckInLongitude,
		&rec.CheckOutLatitude, &rec.CheckOutLongitude,
		&rec.Timezone, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

// FetchOpenRecord implements session.Gateway. It prefers an open record over
// today's closed one, so a same-day closed record still resolves to the
// checked-out state.
func (g *Gateway) FetchOpenRecord(ctx context.Context, employeeID string, day time.Time) (*attendance.Record, error) {
	q := GetQuerier(ctx, g.db)

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE employee_id = $1
		  AND (check_out IS NULL OR date = $2)
		ORDER BY (check_out IS NULL) DESC, check_in DESC
		LIMIT 1
	`

	rec, err := scanRecord(q.QueryRow(ctx, query, employeeID, dateOf(day)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch open record: %w", err)
	}
	return &rec, nil
}

// SubmitCheckIn implements session.Gateway. The existence check and the
// insert run in one transaction so two concurrent submissions cannot both
// open a record.
func (g *Gateway) SubmitCheckIn(ctx context.Context, sub attendance.CheckInSubmission) (attendance.Record, error) {
	var rec attendance.Record

	err := WithTransaction(ctx, g.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, g.db)

		var existingID string
		err := q.QueryRow(ctx, `
			SELECT id FROM attendance_records
			WHERE employee_id = $1 AND check_out IS NULL
			FOR UPDATE
		`, sub.EmployeeID).Scan(&existingID)
		if err == nil {
			return attendance.ErrAlreadyCheckedIn
		}
		if err != pgx.ErrNoRows {
			return fmt.Errorf("failed to check open record: %w", err)
		}

		now := sub.Sample.CapturedAt
		if now.IsZero() {
			now = time.Now()
		}

		query := `
			INSERT INTO attendance_records (
				id, employee_id, company_id, date, check_in,
				check_in_latitude, check_in_longitude, timezone
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + recordColumns + `
		`

		rec, err = scanRecord(q.QueryRow(ctx, query,
			uuid.NewString(),
			sub.EmployeeID,
			sub.CompanyID,
			dateOf(now),
			now,
			sub.Sample.Latitude,
			sub.Sample.Longitude,
			sub.DeviceTimezone,
		))
		if err != nil {
			return fmt.Errorf("failed to create attendance record: %w", err)
		}
		return nil
	})
	if err != nil {
		return attendance.Record{}, err
	}
	return rec, nil
}

// SubmitCheckOut implements session.Gateway. The check_out IS NULL predicate
// makes the close idempotent-safe: a second close finds no row.
func (g *Gateway) SubmitCheckOut(ctx context.Context, sub attendance.CheckOutSubmission) (attendance.Record, error) {
	q := GetQuerier(ctx, g.db)

	query := `
		UPDATE attendance_records
		SET check_out = $2,
			check_out_latitude = $3,
			check_out_longitude = $4,
			updated_at = NOW()
		WHERE id = $1
		  AND company_id = $5
		  AND check_out IS NULL
		RETURNING ` + recordColumns + `
	`

	rec, err := scanRecord(q.QueryRow(ctx, query,
		sub.RecordID,
		sub.Timestamp,
		sub.Sample.Latitude,
		sub.Sample.Longitude,
		sub.CompanyID,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return attendance.Record{}, attendance.ErrAlreadyCheckedOut
		}
		return attendance.Record{}, fmt.Errorf("failed to close attendance record: %w", err)
	}
	return rec, nil
}
