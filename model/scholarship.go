// model/scholarship.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scholarship is read-only from the workflow's perspective: the commission
// amounts are admin-configured and only ever looked up by the ledger flow.
type Scholarship struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	City            string          `json:"city"`
	Major           string          `json:"major"`
	Degree          string          `json:"degree"`
	Language        string          `json:"language"`
	Semester        string          `json:"semester"`
	Eligibility     string          `json:"eligibility"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
	Price           decimal.Decimal `json:"price"`
	AgentCommission decimal.Decimal `json:"agent_commission"`
	HQCommission    decimal.Decimal `json:"hq_commission"`
	CreatedAt       time.Time       `json:"created_at"`
}
