// model/wallet.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxnType string

const (
	TxnEarning         TxnType = "earning"
	TxnWithdrawal      TxnType = "withdrawal"
	TxnBalanceTransfer TxnType = "balance_transfer"
)

type TxnStatus string

const (
	TxnPending   TxnStatus = "pending"
	TxnCompleted TxnStatus = "completed"
	TxnCancelled TxnStatus = "cancelled"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Wallet buckets are always >= 0; total_earned and total_withdrawn only
// ever grow. One wallet per commission-earning user (agent or HQ).
type Wallet struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"user_id"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	UpcomingPayments   decimal.Decimal `json:"upcoming_payments"`
	PendingWithdrawals decimal.Decimal `json:"pending_withdrawals"`
	TotalEarned        decimal.Decimal `json:"total_earned"`
	TotalWithdrawn     decimal.Decimal `json:"total_withdrawn"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// WalletTransaction is an append-only ledger entry. RequestID ties a
// withdrawal transaction to its withdrawal request.
type WalletTransaction struct {
	ID          int64           `json:"id"`
	WalletID    int64           `json:"wallet_id"`
	AppID       *int64          `json:"app_id,omitempty"`
	RequestID   *int64          `json:"request_id,omitempty"`
	Type        TxnType         `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Status      TxnStatus       `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

type WithdrawalRequest struct {
	ID              int64            `json:"id"`
	WalletID        int64            `json:"wallet_id"`
	Amount          decimal.Decimal  `json:"amount"`
	Status          WithdrawalStatus `json:"status"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	RequestedAt     time.Time        `json:"requested_at"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
	ProcessedBy     *int64           `json:"processed_by,omitempty"`
}
