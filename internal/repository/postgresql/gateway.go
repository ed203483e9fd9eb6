// Package postgresql implements the session gateway against the backend of
// record. All queries go through GetQuerier so they run either on the pool
// or inside an enclosing transaction.
package postgresql

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// Gateway implements session.Gateway on PostgreSQL.
type Gateway struct {
	db               *database.DB
	logger           *slog.Logger
	fallbackTimezone string
}

func NewGateway(db *database.DB, logger *slog.Logger, fallbackTimezone string) *Gateway {
	if fallbackTimezone == "" {
		fallbackTimezone = "UTC"
	}
	return &Gateway{db: db, logger: logger, fallbackTimezone: fallbackTimezone}
}

var _ session.Gateway = (*Gateway)(nil)

// Ping implements session.Gateway. It is the pre-submission reachability
// probe, so it must stay cheap.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.Pool.Ping(ctx)
}

// ResolveTimezone implements session.Gateway. The coordinates pick the
// nearest branch that declares a timezone; the device timezone wins when no
// branch does.
func (g *Gateway) ResolveTimezone(ctx context.Context, lat, lng float64, deviceTimezone string) (string, error) {
	q := GetQuerier(ctx, g.db)

	// A degree box of ~1 is far wider than any geofence; exact distance
	// does not matter for timezone resolution.
	query := `
		SELECT timezone
		FROM branches
		WHERE timezone <> ''
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN $1 - 1 AND $1 + 1
		  AND longitude BETWEEN $2 - 1 AND $2 + 1
		ORDER BY (latitude - $1) * (latitude - $1) + (longitude - $2) * (longitude - $2)
		LIMIT 1
	`

	var tz string
	err := q.QueryRow(ctx, query, lat, lng).Scan(&tz)
	if err != nil {
		if err == pgx.ErrNoRows {
			if deviceTimezone != "" {
				return deviceTimezone, nil
			}
			return g.fallbackTimezone, nil
		}
		return "", err
	}
	return tz, nil
}

// dateOf truncates to the calendar day in the timestamp's own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
