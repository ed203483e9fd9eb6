package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
	"github.com/jackc/pgx/v5"
)

// ResolveEmployeeByCode implements session.Gateway. Employee, branch, and
// shift come back in one query so the engine always applies them as a unit.
func (g *Gateway) ResolveEmployeeByCode(ctx context.Context, code string) (session.Bundle, error) {
	q := GetQuerier(ctx, g.db)

	query := `
		SELECT e.id, e.code, e.name, e.job_title, e.department, e.branch_id, e.company_id, e.is_active,
			   b.id, b.company_id, b.name, b.latitude, b.longitude,
			   COALESCE(NULLIF(b.radius_meters, 0), $2), COALESCE(b.timezone, ''),
			   s.id, s.name, s.start_minute, s.end_minute, COALESCE(s.grace_minutes, $3)
		FROM employees e
		LEFT JOIN branches b ON b.id = e.branch_id
		LEFT JOIN shifts s ON s.id = e.shift_id
		WHERE LOWER(e.code) = LOWER($1)
		LIMIT 1
	`

	var (
		emp session.Employee

		branchID, branchCompanyID, branchName *string
		branchLat, branchLng                  *float64
		branchRadius                          *float64
		branchTimezone                        *string

		shiftID, shiftName   *string
		shiftStart, shiftEnd *int
		shiftGrace           *int
	)

	err := q.QueryRow(ctx, query, code, float64(session.DefaultRadiusMeters), session.DefaultGraceMinutes).Scan(
		&emp.ID, &emp.Code, &emp.Name, &emp.JobTitle, &emp.Department, &emp.BranchID, &emp.CompanyID, &emp.Active,
		&branchID, &branchCompanyID, &branchName, &branchLat, &branchLng,
		&branchRadius, &branchTimezone,
		&shiftID, &shiftName, &shiftStart, &shiftEnd, &shiftGrace,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return session.Bundle{}, session.ErrEmployeeNotFound
		}
		return session.Bundle{}, fmt.Errorf("failed to resolve employee by code: %w", err)
	}

	if !emp.Active {
		return session.Bundle{}, session.ErrEmployeeInactive
	}

	bundle := session.Bundle{Employee: emp}

	if branchID != nil {
		branch := session.Branch{
			ID:        *branchID,
			CompanyID: deref(branchCompanyID),
			Name:      deref(branchName),
			Latitude:  branchLat,
			Longitude: branchLng,
			Timezone:  deref(branchTimezone),
		}
		branch.RadiusMeters = session.DefaultRadiusMeters
		if branchRadius != nil {
			branch.RadiusMeters = *branchRadius
		}
		bundle.Branch = &branch
	}

	if shiftID != nil && shiftStart != nil && shiftEnd != nil {
		shift := session.Shift{
			ID:           *shiftID,
			Name:         deref(shiftName),
			Start:        *shiftStart,
			End:          *shiftEnd,
			GraceMinutes: session.DefaultGraceMinutes,
		}
		if shiftGrace != nil {
			shift.GraceMinutes = *shiftGrace
		}
		bundle.Shift = &shift
	}

	return bundle, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
