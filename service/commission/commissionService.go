// Package commission chains wallet moves to the two milestones that earn
// money: admission letter approval (credit upcoming) and JW02 approval
// (release upcoming to balance). Both run inside the caller's transaction,
// so a commission move commits together with the status transition that
// triggered it. A retried approval loses the status compare-and-swap and
// never reaches the ledger twice.
package commission

import (
	"context"
	"database/sql"
	"fmt"

	"scholarhub/model"
	"scholarhub/service/ledger"

	"github.com/shopspring/decimal"
)

type Controller struct {
	ledger ledger.Service
}

func New(l ledger.Service) *Controller { return &Controller{ledger: l} }

// OnAdmissionLetterApproved credits each assigned party whose commission is
// positive. The two wallets are touched one after the other inside tx;
// returns role → credited amount, parties without a credit omitted.
func (c *Controller) OnAdmissionLetterApproved(ctx context.Context, tx *sql.Tx, app *model.Application, sch *model.Scholarship) (map[string]decimal.Decimal, error) {
	results := make(map[string]decimal.Decimal)
	desc := fmt.Sprintf("Upcoming: Admission letter approved for %s (App #%d)", sch.Name, app.ID)

	if app.AssignedAgentID != nil && sch.AgentCommission.IsPositive() {
		if err := c.ledger.CreditUpcoming(ctx, tx, *app.AssignedAgentID, sch.AgentCommission, app.ID, desc); err != nil {
			return nil, fmt.Errorf("credit agent wallet: %w", err)
		}
		results["agent"] = sch.AgentCommission
	}

	if app.AssignedHQID != nil && sch.HQCommission.IsPositive() {
		if err := c.ledger.CreditUpcoming(ctx, tx, *app.AssignedHQID, sch.HQCommission, app.ID, desc); err != nil {
			return nil, fmt.Errorf("credit hq wallet: %w", err)
		}
		results["hq"] = sch.HQCommission
	}

	return results, nil
}

// OnJW02Approved releases the previously credited commissions into the
// withdrawable balance. Invoked once per application, chained to the
// terminal complete transition.
func (c *Controller) OnJW02Approved(ctx context.Context, tx *sql.Tx, app *model.Application, sch *model.Scholarship) (map[string]decimal.Decimal, error) {
	results := make(map[string]decimal.Decimal)

	if app.AssignedAgentID != nil && sch.AgentCommission.IsPositive() {
		desc := fmt.Sprintf("JW02 approved: $%s moved to balance for %s (App #%d)",
			sch.AgentCommission.StringFixed(2), sch.Name, app.ID)
		if err := c.ledger.ReleaseUpcomingToBalance(ctx, tx, *app.AssignedAgentID, sch.AgentCommission, app.ID, desc); err != nil {
			return nil, fmt.Errorf("release agent wallet: %w", err)
		}
		results["agent"] = sch.AgentCommission
	}

	if app.AssignedHQID != nil && sch.HQCommission.IsPositive() {
		desc := fmt.Sprintf("JW02 approved: $%s moved to balance for %s (App #%d)",
			sch.HQCommission.StringFixed(2), sch.Name, app.ID)
		if err := c.ledger.ReleaseUpcomingToBalance(ctx, tx, *app.AssignedHQID, sch.HQCommission, app.ID, desc); err != nil {
			return nil, fmt.Errorf("release hq wallet: %w", err)
		}
		results["hq"] = sch.HQCommission
	}

	return results, nil
}
