package walletrepo

import (
	"context"
	"database/sql"

	"scholarhub/model"

	"github.com/shopspring/decimal"
)

type Repo interface {
	// CreateIfAbsent makes wallet creation lazy: the first ledger touch for a
	// user inserts the row, later calls are no-ops.
	CreateIfAbsent(ctx context.Context, tx *sql.Tx, userID int64) error
	GetByUser(ctx context.Context, userID int64) (*model.Wallet, error)
	GetByUserForUpdate(ctx context.Context, tx *sql.Tx, userID int64) (*model.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx *sql.Tx, walletID int64) (*model.Wallet, error)
	UpdateBuckets(ctx context.Context, tx *sql.Tx, w *model.Wallet) error

	InsertTransaction(ctx context.Context, tx *sql.Tx, t *model.WalletTransaction) error
	// CompletePendingEarnings flips the pending earning rows for a given
	// application to completed when the commission is released.
	CompletePendingEarnings(ctx context.Context, tx *sql.Tx, walletID, appID int64) error
	// SettleWithdrawalTxn resolves the pending withdrawal transaction created
	// alongside a withdrawal request, matched by its request_id.
	SettleWithdrawalTxn(ctx context.Context, tx *sql.Tx, walletID, requestID int64, status model.TxnStatus) error
	ListTransactions(ctx context.Context, walletID int64, limit int) ([]model.WalletTransaction, error)

	InsertWithdrawal(ctx context.Context, tx *sql.Tx, walletID int64, amount decimal.Decimal) (*model.WithdrawalRequest, error)
	GetWithdrawalForUpdate(ctx context.Context, tx *sql.Tx, requestID int64) (*model.WithdrawalRequest, error)
	SettleWithdrawal(ctx context.Context, tx *sql.Tx, w *model.WithdrawalRequest) error
	ListWithdrawals(ctx context.Context, walletID int64) ([]model.WithdrawalRequest, error)
	ListPendingWithdrawals(ctx context.Context) ([]model.WithdrawalRequest, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const walletCols = `id, user_id, current_balance, upcoming_payments, pending_withdrawals,
total_earned, total_withdrawn, created_at, updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanWallet(row scanner, w *model.Wallet) error {
	return row.Scan(
		&w.ID, &w.UserID, &w.CurrentBalance, &w.UpcomingPayments, &w.PendingWithdrawals,
		&w.TotalEarned, &w.TotalWithdrawn, &w.CreatedAt, &w.UpdatedAt,
	)
}

func (r *repo) CreateIfAbsent(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

func (r *repo) GetByUser(ctx context.Context, userID int64) (*model.Wallet, error) {
	w := &model.Wallet{}
	row := r.db.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallets WHERE user_id=$1`, userID)
	if err := scanWallet(row, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repo) GetByUserForUpdate(ctx context.Context, tx *sql.Tx, userID int64) (*model.Wallet, error) {
	w := &model.Wallet{}
	row := tx.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallets WHERE user_id=$1 FOR UPDATE`, userID)
	if err := scanWallet(row, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repo) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, walletID int64) (*model.Wallet, error) {
	w := &model.Wallet{}
	row := tx.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallets WHERE id=$1 FOR UPDATE`, walletID)
	if err := scanWallet(row, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repo) UpdateBuckets(ctx context.Context, tx *sql.Tx, w *model.Wallet) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET current_balance=$2, upcoming_payments=$3, pending_withdrawals=$4,
		    total_earned=$5, total_withdrawn=$6, updated_at=now()
		WHERE id=$1`,
		w.ID, w.CurrentBalance, w.UpcomingPayments, w.PendingWithdrawals,
		w.TotalEarned, w.TotalWithdrawn)
	return err
}

func (r *repo) InsertTransaction(ctx context.Context, tx *sql.Tx, t *model.WalletTransaction) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO wallet_transactions (wallet_id, app_id, request_id, type, amount, description, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at`,
		t.WalletID, t.AppID, t.RequestID, t.Type, t.Amount, t.Description, t.Status,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *repo) CompletePendingEarnings(ctx context.Context, tx *sql.Tx, walletID, appID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET status='completed'
		WHERE wallet_id=$1 AND app_id=$2 AND type='earning' AND status='pending'`,
		walletID, appID)
	return err
}

func (r *repo) SettleWithdrawalTxn(ctx context.Context, tx *sql.Tx, walletID, requestID int64, status model.TxnStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET status=$3
		WHERE wallet_id=$1 AND request_id=$2 AND type='withdrawal' AND status='pending'`,
		walletID, requestID, status)
	return err
}

func (r *repo) ListTransactions(ctx context.Context, walletID int64, limit int) ([]model.WalletTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, wallet_id, app_id, request_id, type, amount, description, status, created_at
		FROM wallet_transactions
		WHERE wallet_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WalletTransaction
	for rows.Next() {
		var t model.WalletTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.AppID, &t.RequestID, &t.Type, &t.Amount, &t.Description, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const withdrawalCols = `id, wallet_id, amount, status, rejection_reason, requested_at, processed_at, processed_by`

func scanWithdrawal(row scanner, w *model.WithdrawalRequest) error {
	return row.Scan(&w.ID, &w.WalletID, &w.Amount, &w.Status, &w.RejectionReason,
		&w.RequestedAt, &w.ProcessedAt, &w.ProcessedBy)
}

func (r *repo) InsertWithdrawal(ctx context.Context, tx *sql.Tx, walletID int64, amount decimal.Decimal) (*model.WithdrawalRequest, error) {
	w := &model.WithdrawalRequest{WalletID: walletID, Amount: amount, Status: model.WithdrawalPending}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO withdrawal_requests (wallet_id, amount)
		VALUES ($1,$2)
		RETURNING id, requested_at`,
		walletID, amount,
	).Scan(&w.ID, &w.RequestedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repo) GetWithdrawalForUpdate(ctx context.Context, tx *sql.Tx, requestID int64) (*model.WithdrawalRequest, error) {
	w := &model.WithdrawalRequest{}
	row := tx.QueryRowContext(ctx, `
		SELECT `+withdrawalCols+` FROM withdrawal_requests WHERE id=$1 FOR UPDATE`, requestID)
	if err := scanWithdrawal(row, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repo) SettleWithdrawal(ctx context.Context, tx *sql.Tx, w *model.WithdrawalRequest) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status=$2, rejection_reason=$3, processed_at=$4, processed_by=$5
		WHERE id=$1`,
		w.ID, w.Status, w.RejectionReason, w.ProcessedAt, w.ProcessedBy)
	return err
}

func (r *repo) ListWithdrawals(ctx context.Context, walletID int64) ([]model.WithdrawalRequest, error) {
	return r.listWithdrawals(ctx, `WHERE wallet_id=$1`, walletID)
}

func (r *repo) ListPendingWithdrawals(ctx context.Context) ([]model.WithdrawalRequest, error) {
	return r.listWithdrawals(ctx, `WHERE status='pending'`)
}

func (r *repo) listWithdrawals(ctx context.Context, where string, args ...any) ([]model.WithdrawalRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+withdrawalCols+` FROM withdrawal_requests `+where+`
		ORDER BY requested_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WithdrawalRequest
	for rows.Next() {
		var w model.WithdrawalRequest
		if err := scanWithdrawal(rows, &w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
