// Package workflow is the application status transition engine: it owns the
// transition table, the compare-and-swap status write and the audit trail.
package workflow

import (
	"context"
	"database/sql"
	"errors"
	apprepo "scholarhub/repository/application"
	"time"

	"scholarhub/model"
)

var (
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrConflict means another writer changed the status between the
	// caller's read and this transition (lost compare-and-swap).
	ErrConflict = errors.New("application status changed concurrently")
	ErrNotFound = errors.New("application not found")
)

// transitions is the single source of truth for legal status moves.
// payment_verified allows a self-loop so forwarding to an agent can be
// recorded in the audit trail without changing state.
var transitions = map[model.Status][]model.Status{
	model.StatusDraft:             {model.StatusSubmitted},
	model.StatusSubmitted:         {model.StatusUnderReview, model.StatusApproved, model.StatusRejected},
	model.StatusUnderReview:       {model.StatusDocumentsVerified, model.StatusApproved, model.StatusRejected},
	model.StatusDocumentsVerified: {model.StatusPaymentVerified, model.StatusApproved, model.StatusRejected},
	model.StatusPaymentVerified:   {model.StatusPaymentVerified, model.StatusApproved, model.StatusRejected},
	model.StatusApproved:          {model.StatusInProgress},
	model.StatusInProgress:        {model.StatusLetterUploaded},
	model.StatusLetterUploaded:    {model.StatusLetterApproved, model.StatusLetterPending},
	model.StatusLetterPending:     {model.StatusLetterUploaded},
	model.StatusLetterApproved:    {model.StatusJW02Uploaded},
	model.StatusJW02Uploaded:      {model.StatusJW02Approved, model.StatusJW02Pending},
	model.StatusJW02Pending:       {model.StatusJW02Uploaded},
	model.StatusJW02Approved:      {model.StatusComplete},
	// rejected and complete are terminal
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Engine struct {
	db   *sql.DB
	repo apprepo.Repo
}

func New(db *sql.DB, repo apprepo.Repo) *Engine { return &Engine{db: db, repo: repo} }

// Transition moves an application to next within its own transaction.
func (e *Engine) Transition(ctx context.Context, appID int64, next model.Status, actorID int64, note string) (app *model.Application, err error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	app, err = e.repo.GetForUpdate(ctx, tx, appID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err = e.TransitionTx(ctx, tx, app, next, actorID, note); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return app, nil
}

// TransitionTx records a status change inside the caller's transaction:
// compare-and-swap on status, milestone timestamps, history append. The
// application row and its history entry commit together or not at all.
// app is mutated in place on success.
func (e *Engine) TransitionTx(ctx context.Context, tx *sql.Tx, app *model.Application, next model.Status, actorID int64, note string) error {
	if !CanTransition(app.Status, next) {
		return ErrIllegalTransition
	}

	now := time.Now().UTC()
	var approvedAt, completedAt *time.Time
	switch next {
	case model.StatusApproved:
		approvedAt = &now
	case model.StatusComplete:
		completedAt = &now
	}

	ok, err := e.repo.UpdateStatusCAS(ctx, tx, app.ID, app.Status, next, approvedAt, completedAt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}

	old := app.Status
	h := &model.StatusHistoryEntry{
		AppID:     app.ID,
		OldStatus: &old,
		NewStatus: next,
		ChangedBy: actorID,
	}
	if note != "" {
		h.Note = &note
	}
	if err := e.repo.InsertHistory(ctx, tx, h); err != nil {
		return err
	}

	app.Status = next
	if approvedAt != nil {
		app.ApprovedAt = approvedAt
	}
	if completedAt != nil {
		app.CompletedAt = completedAt
	}
	return nil
}

func (e *Engine) Get(ctx context.Context, appID int64) (*model.Application, error) {
	app, err := e.repo.Get(ctx, appID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return app, nil
}

// History returns the audit trail, newest first.
func (e *Engine) History(ctx context.Context, appID int64) ([]model.StatusHistoryEntry, error) {
	return e.repo.ListHistory(ctx, appID)
}

func (e *Engine) ListByApplicant(ctx context.Context, applicantID int64) ([]model.Application, error) {
	return e.repo.ListByApplicant(ctx, applicantID)
}
