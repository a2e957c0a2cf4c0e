package paymentrepo

import (
	"context"
	"database/sql"

	"scholarhub/model"
)

type Repo interface {
	Insert(ctx context.Context, p *model.Payment) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, paymentID int64) (*model.Payment, error)
	// Review stores the outcome of an office review: status, note, reviewer.
	Review(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	ListByApplication(ctx context.Context, appID int64) ([]model.Payment, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const paymentCols = `id, app_id, amount, receipt_key, transaction_id, status,
review_note, reviewed_by, reviewed_at, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanPayment(row scanner, p *model.Payment) error {
	return row.Scan(&p.ID, &p.AppID, &p.Amount, &p.ReceiptKey, &p.TransactionID,
		&p.Status, &p.ReviewNote, &p.ReviewedBy, &p.ReviewedAt, &p.CreatedAt)
}

func (r *repo) Insert(ctx context.Context, p *model.Payment) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO application_payments (app_id, amount, receipt_key, transaction_id, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`,
		p.AppID, p.Amount, p.ReceiptKey, p.TransactionID, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, paymentID int64) (*model.Payment, error) {
	p := &model.Payment{}
	row := tx.QueryRowContext(ctx, `
		SELECT `+paymentCols+` FROM application_payments WHERE id=$1 FOR UPDATE`, paymentID)
	if err := scanPayment(row, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repo) Review(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE application_payments
		SET status=$2, review_note=$3, reviewed_by=$4, reviewed_at=$5
		WHERE id=$1`,
		p.ID, p.Status, p.ReviewNote, p.ReviewedBy, p.ReviewedAt)
	return err
}

func (r *repo) ListByApplication(ctx context.Context, appID int64) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentCols+` FROM application_payments
		WHERE app_id=$1
		ORDER BY created_at DESC, id DESC`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
