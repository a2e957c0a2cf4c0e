// Package ledger owns the wallet bookkeeping: commission buckets, the
// append-only transaction log and withdrawal requests. Every mutating call
// is one transaction with the wallet row locked for its duration.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	walletrepo "scholarhub/repository/wallet"
	"time"

	"scholarhub/model"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient balance")
	ErrBelowMinimum         = errors.New("amount below minimum withdrawal")
	ErrInsufficientUpcoming = errors.New("insufficient upcoming payments")
	ErrInvalidState         = errors.New("withdrawal request is not pending")
	ErrRequestNotFound      = errors.New("withdrawal request not found")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrWalletNotFound       = errors.New("wallet not found")
)

type Service interface {
	GetOrCreateWallet(ctx context.Context, userID int64) (*model.Wallet, error)

	// CreditUpcoming and ReleaseUpcomingToBalance run inside the caller's
	// transaction; they are invoked only by the commission flow so the
	// wallet move commits together with the status transition it follows.
	CreditUpcoming(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, appID int64, description string) error
	ReleaseUpcomingToBalance(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, appID int64, description string) error

	RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal) (*model.WithdrawalRequest, error)
	ApproveWithdrawal(ctx context.Context, requestID, adminID int64) (*model.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, requestID, adminID int64, reason string) (*model.WithdrawalRequest, error)

	Transactions(ctx context.Context, userID int64, limit int) ([]model.WalletTransaction, error)
	Withdrawals(ctx context.Context, userID int64) ([]model.WithdrawalRequest, error)
	PendingWithdrawals(ctx context.Context) ([]model.WithdrawalRequest, error)
}

type service struct {
	db            *sql.DB
	r             walletrepo.Repo
	minWithdrawal decimal.Decimal
}

func New(db *sql.DB, r walletrepo.Repo, minWithdrawal decimal.Decimal) Service {
	return &service{db: db, r: r, minWithdrawal: minWithdrawal}
}

func (s *service) GetOrCreateWallet(ctx context.Context, userID int64) (w *model.Wallet, err error) {
	w, err = s.r.GetByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.r.CreateIfAbsent(ctx, tx, userID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return s.r.GetByUser(ctx, userID)
}

// lockWallet creates the wallet if needed and returns it locked for the
// rest of the transaction.
func (s *service) lockWallet(ctx context.Context, tx *sql.Tx, userID int64) (*model.Wallet, error) {
	if err := s.r.CreateIfAbsent(ctx, tx, userID); err != nil {
		return nil, err
	}
	w, err := s.r.GetByUserForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

func (s *service) CreditUpcoming(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, appID int64, description string) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	w, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}

	w.UpcomingPayments = w.UpcomingPayments.Add(amount)
	if err := s.r.UpdateBuckets(ctx, tx, w); err != nil {
		return err
	}
	return s.r.InsertTransaction(ctx, tx, &model.WalletTransaction{
		WalletID:    w.ID,
		AppID:       &appID,
		Type:        model.TxnEarning,
		Amount:      amount,
		Description: description,
		Status:      model.TxnPending,
	})
}

func (s *service) ReleaseUpcomingToBalance(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, appID int64, description string) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	w, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}
	if w.UpcomingPayments.LessThan(amount) {
		return ErrInsufficientUpcoming
	}

	w.UpcomingPayments = w.UpcomingPayments.Sub(amount)
	w.CurrentBalance = w.CurrentBalance.Add(amount)
	w.TotalEarned = w.TotalEarned.Add(amount)
	if err := s.r.UpdateBuckets(ctx, tx, w); err != nil {
		return err
	}

	if err := s.r.CompletePendingEarnings(ctx, tx, w.ID, appID); err != nil {
		return err
	}
	return s.r.InsertTransaction(ctx, tx, &model.WalletTransaction{
		WalletID:    w.ID,
		AppID:       &appID,
		Type:        model.TxnBalanceTransfer,
		Amount:      amount,
		Description: description,
		Status:      model.TxnCompleted,
	})
}

func (s *service) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal) (req *model.WithdrawalRequest, err error) {
	if amount.LessThan(s.minWithdrawal) {
		return nil, ErrBelowMinimum
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	w, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if w.CurrentBalance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	w.CurrentBalance = w.CurrentBalance.Sub(amount)
	w.PendingWithdrawals = w.PendingWithdrawals.Add(amount)
	if err = s.r.UpdateBuckets(ctx, tx, w); err != nil {
		return nil, err
	}

	req, err = s.r.InsertWithdrawal(ctx, tx, w.ID, amount)
	if err != nil {
		return nil, err
	}
	err = s.r.InsertTransaction(ctx, tx, &model.WalletTransaction{
		WalletID:    w.ID,
		RequestID:   &req.ID,
		Type:        model.TxnWithdrawal,
		Amount:      amount,
		Description: fmt.Sprintf("Withdrawal request #%d - $%s", req.ID, amount.StringFixed(2)),
		Status:      model.TxnPending,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *service) ApproveWithdrawal(ctx context.Context, requestID, adminID int64) (*model.WithdrawalRequest, error) {
	return s.settle(ctx, requestID, adminID, model.WithdrawalApproved, "")
}

func (s *service) RejectWithdrawal(ctx context.Context, requestID, adminID int64, reason string) (*model.WithdrawalRequest, error) {
	return s.settle(ctx, requestID, adminID, model.WithdrawalRejected, reason)
}

func (s *service) settle(ctx context.Context, requestID, adminID int64, outcome model.WithdrawalStatus, reason string) (req *model.WithdrawalRequest, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	req, err = s.r.GetWithdrawalForUpdate(ctx, tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if req.Status != model.WithdrawalPending {
		return nil, ErrInvalidState
	}

	w, err := s.r.GetByIDForUpdate(ctx, tx, req.WalletID)
	if err != nil {
		return nil, err
	}

	w.PendingWithdrawals = w.PendingWithdrawals.Sub(req.Amount)
	txnStatus := model.TxnCompleted
	if outcome == model.WithdrawalApproved {
		w.TotalWithdrawn = w.TotalWithdrawn.Add(req.Amount)
	} else {
		// rejection returns the funds
		w.CurrentBalance = w.CurrentBalance.Add(req.Amount)
		txnStatus = model.TxnCancelled
	}
	if err = s.r.UpdateBuckets(ctx, tx, w); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req.Status = outcome
	req.ProcessedAt = &now
	req.ProcessedBy = &adminID
	if reason != "" {
		req.RejectionReason = &reason
	}
	if err = s.r.SettleWithdrawal(ctx, tx, req); err != nil {
		return nil, err
	}
	if err = s.r.SettleWithdrawalTxn(ctx, tx, w.ID, req.ID, txnStatus); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *service) Transactions(ctx context.Context, userID int64, limit int) ([]model.WalletTransaction, error) {
	w, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.r.ListTransactions(ctx, w.ID, limit)
}

func (s *service) Withdrawals(ctx context.Context, userID int64) ([]model.WithdrawalRequest, error) {
	w, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.r.ListWithdrawals(ctx, w.ID)
}

func (s *service) PendingWithdrawals(ctx context.Context) ([]model.WithdrawalRequest, error) {
	return s.r.ListPendingWithdrawals(ctx)
}
