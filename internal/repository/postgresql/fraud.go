package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
)

// ReportFraudEvent implements session.Gateway.
func (g *Gateway) ReportFraudEvent(ctx context.Context, event session.FraudEvent) error {
	q := GetQuerier(ctx, g.db)

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode fraud metadata: %w", err)
	}

	query := `
		INSERT INTO fraud_events (
			id, type, description, severity, employee_id, company_id,
			latitude, longitude, accuracy_meters, occurred_at, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = q.Exec(ctx, query,
		event.ID,
		event.Type,
		event.Description,
		event.Severity,
		event.EmployeeID,
		event.CompanyID,
		event.Latitude,
		event.Longitude,
		event.AccuracyMeters,
		event.OccurredAt,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to report fraud event: %w", err)
	}
	return nil
}
