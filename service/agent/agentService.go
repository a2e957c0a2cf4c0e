// Package agent drives the agent-side review actions: approving or
// rejecting an application, verifying the HQ-uploaded admission letter and
// JW02 form, and triggering the commission moves tied to those approvals.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	apprepo "scholarhub/repository/application"
	scholarshiprepo "scholarhub/repository/scholarship"
	userrepo "scholarhub/repository/user"
	"time"

	"scholarhub/model"
	"scholarhub/service/commission"
	"scholarhub/service/notify"
	"scholarhub/service/workflow"

	"github.com/shopspring/decimal"
)

// errors used by controllers

type ErrCode string

const (
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrNotAssigned    ErrCode = "NOT_ASSIGNED"
	ErrNoPendingDoc   ErrCode = "NO_PENDING_DOCUMENT"
	ErrReasonRequired ErrCode = "REASON_REQUIRED"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

const defaultDeadlineDays = 10

type Service interface {
	// Approve accepts an application, sets the HQ deadline and assigns the
	// first available headquarters user.
	Approve(ctx context.Context, appID, agentID int64, deadlineDays int, note string) (*model.Application, error)
	Reject(ctx context.Context, appID, agentID int64, reason string) (*model.Application, error)

	// ApproveAdmissionLetter verifies the pending letter and credits the
	// commissions to upcoming payments, all in one transaction.
	ApproveAdmissionLetter(ctx context.Context, appID, agentID int64) (map[string]decimal.Decimal, error)
	RequestLetterRevision(ctx context.Context, appID, agentID int64, note string) error

	// ApproveJW02 verifies the pending JW02 form, completes the application
	// and releases the commissions into the wallet balances.
	ApproveJW02(ctx context.Context, appID, agentID int64) (map[string]decimal.Decimal, error)
	RequestJW02Revision(ctx context.Context, appID, agentID int64, note string) error
}

type service struct {
	db          *sql.DB
	engine      *workflow.Engine
	apps        apprepo.Repo
	users       userrepo.Repo
	schols      scholarshiprepo.Repo
	commissions *commission.Controller
	notifier    notify.Service
	log         *slog.Logger
}

func New(db *sql.DB, engine *workflow.Engine, apps apprepo.Repo, users userrepo.Repo, schols scholarshiprepo.Repo, commissions *commission.Controller, notifier notify.Service, log *slog.Logger) Service {
	return &service{
		db: db, engine: engine, apps: apps, users: users, schols: schols,
		commissions: commissions, notifier: notifier, log: log,
	}
}

// lockOwned loads the application under lock and checks it belongs to the
// acting agent.
func (s *service) lockOwned(ctx context.Context, tx *sql.Tx, appID, agentID int64) (*model.Application, error) {
	app, err := s.apps.GetForUpdate(ctx, tx, appID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if app.AssignedAgentID == nil || *app.AssignedAgentID != agentID {
		return nil, makeErr(ErrNotAssigned)
	}
	return app, nil
}

func (s *service) Approve(ctx context.Context, appID, agentID int64, deadlineDays int, note string) (app *model.Application, err error) {
	if deadlineDays < 1 {
		deadlineDays = defaultDeadlineDays
	}

	// first available HQ user; assignment policy is deliberately simple
	hqUser, err := s.users.FirstActiveByRole(ctx, model.RoleHQ)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
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

	app, err = s.lockOwned(ctx, tx, appID, agentID)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().UTC().Add(time.Duration(deadlineDays) * 24 * time.Hour)
	if err = s.apps.SetDeadline(ctx, tx, app.ID, deadline); err != nil {
		return nil, err
	}
	if hqUser != nil {
		if err = s.apps.SetAssignedHQ(ctx, tx, app.ID, hqUser.ID); err != nil {
			return nil, err
		}
	}

	noteText := "Application approved by agent"
	if note != "" {
		noteText += " - Note: " + note
	}
	if err = s.engine.TransitionTx(ctx, tx, app, model.StatusApproved, agentID, noteText); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	app.Deadline = &deadline
	if hqUser != nil {
		app.AssignedHQID = &hqUser.ID
	}

	s.sendQuiet(ctx, app.ApplicantID, "Application Approved",
		fmt.Sprintf("Your application #%d has been approved.", app.ID),
		fmt.Sprintf("/applications/%d", app.ID))
	if hqUser != nil {
		s.sendQuiet(ctx, hqUser.ID, "New Application Assigned",
			fmt.Sprintf("Application #%d has been assigned to you. Deadline: %s.", app.ID, deadline.Format("Jan 02, 2006")),
			fmt.Sprintf("/hq/applications/%d", app.ID))
	}
	return app, nil
}

func (s *service) Reject(ctx context.Context, appID, agentID int64, reason string) (app *model.Application, err error) {
	if reason == "" {
		return nil, makeErr(ErrReasonRequired)
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

	app, err = s.lockOwned(ctx, tx, appID, agentID)
	if err != nil {
		return nil, err
	}
	if err = s.apps.SetRejectionReason(ctx, tx, app.ID, reason); err != nil {
		return nil, err
	}
	if err = s.engine.TransitionTx(ctx, tx, app, model.StatusRejected, agentID, "Rejected: "+reason); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	app.RejectionReason = &reason

	s.sendQuiet(ctx, app.ApplicantID, "Application Rejected",
		fmt.Sprintf("Your application #%d has been rejected. Reason: %s", app.ID, reason),
		fmt.Sprintf("/applications/%d", app.ID))
	return app, nil
}

func (s *service) ApproveAdmissionLetter(ctx context.Context, appID, agentID int64) (map[string]decimal.Decimal, error) {
	sch, app, credited, err := s.approveDocument(ctx, appID, agentID, model.StatusLetterApproved)
	if err != nil {
		return nil, err
	}

	if app.AssignedHQID != nil {
		s.sendQuiet(ctx, *app.AssignedHQID, "Admission Letter Approved - Upload JW02",
			fmt.Sprintf("The admission letter for App #%d (%s) has been approved. Please upload the JW02 form.", app.ID, sch.Name),
			fmt.Sprintf("/hq/applications/%d", app.ID))
	}
	s.sendQuiet(ctx, app.ApplicantID, "Admission Letter Available",
		fmt.Sprintf("The admission letter for your application to %s is now available.", sch.Name),
		fmt.Sprintf("/applications/%d", app.ID))

	return credited, nil
}

func (s *service) ApproveJW02(ctx context.Context, appID, agentID int64) (map[string]decimal.Decimal, error) {
	sch, app, released, err := s.approveDocument(ctx, appID, agentID, model.StatusJW02Approved)
	if err != nil {
		return nil, err
	}

	if app.AssignedHQID != nil {
		s.sendQuiet(ctx, *app.AssignedHQID, "JW02 Approved - Commission Earned",
			fmt.Sprintf("Your JW02 form for App #%d has been approved. Commission of $%s is now in your wallet balance.",
				app.ID, sch.HQCommission.StringFixed(2)),
			"/wallet")
	}
	s.sendQuiet(ctx, app.ApplicantID, "Application Processing Complete",
		fmt.Sprintf("All documents for your application to %s have been processed.", sch.Name),
		fmt.Sprintf("/applications/%d", app.ID))

	return released, nil
}

// approveDocument verifies the latest pending admission letter or JW02 form,
// advances the workflow and applies the matching commission move, all in a
// single transaction. target is StatusLetterApproved or StatusJW02Approved.
func (s *service) approveDocument(ctx context.Context, appID, agentID int64, target model.Status) (sch *model.Scholarship, app *model.Application, moved map[string]decimal.Decimal, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	app, err = s.lockOwned(ctx, tx, appID, agentID)
	if err != nil {
		return nil, nil, nil, err
	}

	sch, err = s.schols.ByID(ctx, app.ScholarshipID)
	if err != nil {
		return nil, nil, nil, err
	}

	if target == model.StatusLetterApproved {
		letter, lerr := s.apps.LatestPendingLetter(ctx, tx, app.ID)
		if lerr != nil {
			if errors.Is(lerr, sql.ErrNoRows) {
				err = makeErr(ErrNoPendingDoc)
				return nil, nil, nil, err
			}
			err = lerr
			return nil, nil, nil, err
		}
		if err = s.apps.SetLetterStatus(ctx, tx, letter.ID, model.DocApproved, nil, &agentID); err != nil {
			return nil, nil, nil, err
		}
		if err = s.engine.TransitionTx(ctx, tx, app, model.StatusLetterApproved, agentID, "Admission letter approved"); err != nil {
			return nil, nil, nil, err
		}
		moved, err = s.commissions.OnAdmissionLetterApproved(ctx, tx, app, sch)
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		form, ferr := s.apps.LatestPendingJW02(ctx, tx, app.ID)
		if ferr != nil {
			if errors.Is(ferr, sql.ErrNoRows) {
				err = makeErr(ErrNoPendingDoc)
				return nil, nil, nil, err
			}
			err = ferr
			return nil, nil, nil, err
		}
		if err = s.apps.SetJW02Status(ctx, tx, form.ID, model.DocApproved, nil, &agentID); err != nil {
			return nil, nil, nil, err
		}
		if err = s.engine.TransitionTx(ctx, tx, app, model.StatusJW02Approved, agentID, "JW02 form approved"); err != nil {
			return nil, nil, nil, err
		}
		if err = s.engine.TransitionTx(ctx, tx, app, model.StatusComplete, agentID, "All documents approved - application complete"); err != nil {
			return nil, nil, nil, err
		}
		moved, err = s.commissions.OnJW02Approved(ctx, tx, app, sch)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, nil, err
	}
	return sch, app, moved, nil
}

func (s *service) RequestLetterRevision(ctx context.Context, appID, agentID int64, note string) error {
	return s.requestRevision(ctx, appID, agentID, note, model.StatusLetterPending)
}

func (s *service) RequestJW02Revision(ctx context.Context, appID, agentID int64, note string) error {
	return s.requestRevision(ctx, appID, agentID, note, model.StatusJW02Pending)
}

func (s *service) requestRevision(ctx context.Context, appID, agentID int64, note string, target model.Status) (err error) {
	if note == "" {
		return makeErr(ErrReasonRequired)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	app, err := s.lockOwned(ctx, tx, appID, agentID)
	if err != nil {
		return err
	}

	var noteText string
	if target == model.StatusLetterPending {
		letter, lerr := s.apps.LatestPendingLetter(ctx, tx, app.ID)
		if lerr != nil && !errors.Is(lerr, sql.ErrNoRows) {
			err = lerr
			return err
		}
		if letter != nil {
			if err = s.apps.SetLetterStatus(ctx, tx, letter.ID, model.DocRevisionRequested, &note, nil); err != nil {
				return err
			}
		}
		noteText = "Revision requested: " + note
	} else {
		form, ferr := s.apps.LatestPendingJW02(ctx, tx, app.ID)
		if ferr != nil && !errors.Is(ferr, sql.ErrNoRows) {
			err = ferr
			return err
		}
		if form != nil {
			if err = s.apps.SetJW02Status(ctx, tx, form.ID, model.DocRevisionRequested, &note, nil); err != nil {
				return err
			}
		}
		noteText = "JW02 revision requested: " + note
	}

	if err = s.engine.TransitionTx(ctx, tx, app, target, agentID, noteText); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	if app.AssignedHQID != nil {
		doc := "admission letter"
		if target == model.StatusJW02Pending {
			doc = "JW02 form"
		}
		s.sendQuiet(ctx, *app.AssignedHQID, "Revision Required",
			fmt.Sprintf("App #%d: The %s needs revision. Note: %s", app.ID, doc, note),
			"/hq/revisions")
	}
	return nil
}

func (s *service) sendQuiet(ctx context.Context, userID int64, title, message, link string) {
	if err := s.notifier.Send(ctx, userID, title, message, link); err != nil {
		s.log.Warn("notify failed", "user_id", userID, "title", title, "err", err)
	}
}
