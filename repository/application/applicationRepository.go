package apprepo

import (
	"context"
	"database/sql"
	"time"

	"scholarhub/model"
)

type Repo interface {
	Insert(ctx context.Context, scholarshipID, applicantID int64) (*model.Application, error)
	Get(ctx context.Context, appID int64) (*model.Application, error)
	// GetForUpdate locks the application row for the duration of the caller's
	// transaction so two role actions cannot both win the same transition.
	GetForUpdate(ctx context.Context, tx *sql.Tx, appID int64) (*model.Application, error)
	// UpdateStatusCAS flips status only if the stored value still matches old.
	// Returns false when another writer got there first.
	UpdateStatusCAS(ctx context.Context, tx *sql.Tx, appID int64, old, new model.Status, approvedAt, completedAt *time.Time) (bool, error)
	InsertHistory(ctx context.Context, tx *sql.Tx, h *model.StatusHistoryEntry) error
	ListHistory(ctx context.Context, appID int64) ([]model.StatusHistoryEntry, error)
	ListByApplicant(ctx context.Context, applicantID int64) ([]model.Application, error)

	SetAssignedAgent(ctx context.Context, tx *sql.Tx, appID, agentID int64) error
	SetAssignedHQ(ctx context.Context, tx *sql.Tx, appID, hqID int64) error
	SetDeadline(ctx context.Context, tx *sql.Tx, appID int64, deadline time.Time) error
	SetRejectionReason(ctx context.Context, tx *sql.Tx, appID int64, reason string) error

	InsertLetter(ctx context.Context, tx *sql.Tx, appID, uploadedBy int64, fileKey string) (int64, error)
	LatestPendingLetter(ctx context.Context, tx *sql.Tx, appID int64) (*model.AdmissionLetter, error)
	SetLetterStatus(ctx context.Context, tx *sql.Tx, letterID int64, status model.DocumentStatus, revisionNote *string, approvedBy *int64) error

	InsertJW02(ctx context.Context, tx *sql.Tx, appID, uploadedBy int64, fileKey string) (int64, error)
	LatestPendingJW02(ctx context.Context, tx *sql.Tx, appID int64) (*model.JW02Form, error)
	SetJW02Status(ctx context.Context, tx *sql.Tx, jw02ID int64, status model.DocumentStatus, revisionNote *string, approvedBy *int64) error
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const appCols = `app_id, scholarship_id, applicant_id, status, rejection_reason,
assigned_agent, assigned_hq, deadline, approved_at, completed_at, applied_at`

type scanner interface{ Scan(dest ...any) error }

func scanApp(row scanner, a *model.Application) error {
	return row.Scan(
		&a.ID, &a.ScholarshipID, &a.ApplicantID, &a.Status, &a.RejectionReason,
		&a.AssignedAgentID, &a.AssignedHQID, &a.Deadline, &a.ApprovedAt,
		&a.CompletedAt, &a.AppliedAt,
	)
}

func (r *repo) Insert(ctx context.Context, scholarshipID, applicantID int64) (*model.Application, error) {
	a := &model.Application{ScholarshipID: scholarshipID, ApplicantID: applicantID, Status: model.StatusDraft}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO applications (scholarship_id, applicant_id, status)
		VALUES ($1,$2,'draft')
		RETURNING app_id, applied_at`,
		scholarshipID, applicantID,
	).Scan(&a.ID, &a.AppliedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repo) Get(ctx context.Context, appID int64) (*model.Application, error) {
	a := &model.Application{}
	row := r.db.QueryRowContext(ctx, `SELECT `+appCols+` FROM applications WHERE app_id=$1`, appID)
	if err := scanApp(row, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, appID int64) (*model.Application, error) {
	a := &model.Application{}
	row := tx.QueryRowContext(ctx, `SELECT `+appCols+` FROM applications WHERE app_id=$1 FOR UPDATE`, appID)
	if err := scanApp(row, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repo) UpdateStatusCAS(ctx context.Context, tx *sql.Tx, appID int64, old, new model.Status, approvedAt, completedAt *time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE applications
		SET status=$3,
		    approved_at=COALESCE($4, approved_at),
		    completed_at=COALESCE($5, completed_at)
		WHERE app_id=$1 AND status=$2`,
		appID, old, new, approvedAt, completedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repo) InsertHistory(ctx context.Context, tx *sql.Tx, h *model.StatusHistoryEntry) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO application_status_history (app_id, old_status, new_status, changed_by, note)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, changed_at`,
		h.AppID, h.OldStatus, h.NewStatus, h.ChangedBy, h.Note,
	).Scan(&h.ID, &h.ChangedAt)
}

func (r *repo) ListHistory(ctx context.Context, appID int64) ([]model.StatusHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, app_id, old_status, new_status, changed_by, note, changed_at
		FROM application_status_history
		WHERE app_id=$1
		ORDER BY changed_at DESC, id DESC`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StatusHistoryEntry
	for rows.Next() {
		var h model.StatusHistoryEntry
		if err := rows.Scan(&h.ID, &h.AppID, &h.OldStatus, &h.NewStatus, &h.ChangedBy, &h.Note, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *repo) ListByApplicant(ctx context.Context, applicantID int64) ([]model.Application, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+appCols+` FROM applications
		WHERE applicant_id=$1
		ORDER BY applied_at DESC`, applicantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		var a model.Application
		if err := scanApp(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repo) SetAssignedAgent(ctx context.Context, tx *sql.Tx, appID, agentID int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE applications SET assigned_agent=$2 WHERE app_id=$1`, appID, agentID)
	return err
}

func (r *repo) SetAssignedHQ(ctx context.Context, tx *sql.Tx, appID, hqID int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE applications SET assigned_hq=$2 WHERE app_id=$1`, appID, hqID)
	return err
}

func (r *repo) SetDeadline(ctx context.Context, tx *sql.Tx, appID int64, deadline time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE applications SET deadline=$2 WHERE app_id=$1`, appID, deadline)
	return err
}

func (r *repo) SetRejectionReason(ctx context.Context, tx *sql.Tx, appID int64, reason string) error {
	_, err := tx.ExecContext(ctx, `UPDATE applications SET rejection_reason=$2 WHERE app_id=$1`, appID, reason)
	return err
}

func (r *repo) InsertLetter(ctx context.Context, tx *sql.Tx, appID, uploadedBy int64, fileKey string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO admission_letters (app_id, uploaded_by, file_key)
		VALUES ($1,$2,$3)
		RETURNING id`,
		appID, uploadedBy, fileKey,
	).Scan(&id)
	return id, err
}

func (r *repo) LatestPendingLetter(ctx context.Context, tx *sql.Tx, appID int64) (*model.AdmissionLetter, error) {
	l := &model.AdmissionLetter{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, app_id, uploaded_by, file_key, status, revision_note, uploaded_at, approved_at, approved_by
		FROM admission_letters
		WHERE app_id=$1 AND status='pending_verification'
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1`, appID,
	).Scan(&l.ID, &l.AppID, &l.UploadedBy, &l.FileKey, &l.Status, &l.RevisionNote, &l.UploadedAt, &l.ApprovedAt, &l.ApprovedBy)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *repo) SetLetterStatus(ctx context.Context, tx *sql.Tx, letterID int64, status model.DocumentStatus, revisionNote *string, approvedBy *int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE admission_letters
		SET status=$2,
		    revision_note=COALESCE($3, revision_note),
		    approved_by=$4,
		    approved_at=CASE WHEN $2='approved' THEN now() ELSE approved_at END
		WHERE id=$1`,
		letterID, status, revisionNote, approvedBy)
	return err
}

func (r *repo) InsertJW02(ctx context.Context, tx *sql.Tx, appID, uploadedBy int64, fileKey string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO jw02_forms (app_id, uploaded_by, file_key)
		VALUES ($1,$2,$3)
		RETURNING id`,
		appID, uploadedBy, fileKey,
	).Scan(&id)
	return id, err
}

func (r *repo) LatestPendingJW02(ctx context.Context, tx *sql.Tx, appID int64) (*model.JW02Form, error) {
	f := &model.JW02Form{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, app_id, uploaded_by, file_key, status, revision_note, uploaded_at, approved_at, approved_by
		FROM jw02_forms
		WHERE app_id=$1 AND status='pending_verification'
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1`, appID,
	).Scan(&f.ID, &f.AppID, &f.UploadedBy, &f.FileKey, &f.Status, &f.RevisionNote, &f.UploadedAt, &f.ApprovedAt, &f.ApprovedBy)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *repo) SetJW02Status(ctx context.Context, tx *sql.Tx, jw02ID int64, status model.DocumentStatus, revisionNote *string, approvedBy *int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE jw02_forms
		SET status=$2,
		    revision_note=COALESCE($3, revision_note),
		    approved_by=$4,
		    approved_at=CASE WHEN $2='approved' THEN now() ELSE approved_at END
		WHERE id=$1`,
		jw02ID, status, revisionNote, approvedBy)
	return err
}
