package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/session"
)

// branchChannel is the NOTIFY channel branch mutations are published on.
// The payload is JSON: {"branch_id": "...", "company_id": "..."}.
const branchChannel = "branch_changes"

// SubscribeBranchUpdates implements session.Gateway. It holds a dedicated
// connection on LISTEN and forwards matching notifications to onChange. The
// returned cancel releases the connection.
func (g *Gateway) SubscribeBranchUpdates(ctx context.Context, branchID, companyID string, onChange func(session.BranchUpdate)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	conn, err := g.db.Pool.Acquire(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(subCtx, "LISTEN "+branchChannel); err != nil {
		conn.Release()
		cancel()
		return nil, fmt.Errorf("listen on %s: %w", branchChannel, err)
	}

	go func() {
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					g.logger.Error("branch listener stopped", "error", err, "branch_id", branchID)
				}
				return
			}

			var payload struct {
				BranchID  string `json:"branch_id"`
				CompanyID string `json:"company_id"`
			}
			if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
				g.logger.Warn("discarding malformed branch notification", "payload", notification.Payload)
				continue
			}
			if payload.BranchID != branchID {
				continue
			}

			onChange(session.BranchUpdate{BranchID: payload.BranchID, CompanyID: payload.CompanyID})
		}
	}()

	return cancel, nil
}
