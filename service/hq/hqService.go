// Package hq drives the headquarters fulfillment steps: marking an approved
// application as applied to the university and uploading the admission
// letter and JW02 form (including revised re-uploads).
package hq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	apprepo "scholarhub/repository/application"
	"time"

	"scholarhub/model"
	"scholarhub/service/notify"
	"scholarhub/service/workflow"
)

var (
	ErrNotFound        = errors.New("application not found")
	ErrNotAssigned     = errors.New("application not assigned to this user")
	ErrFileKeyRequired = errors.New("file key is required")
)

const hqDeadlineDays = 10

type Service interface {
	// MarkApplied moves an approved application to in_progress and starts
	// the admission letter deadline.
	MarkApplied(ctx context.Context, appID, hqID int64) (*model.Application, error)
	// UploadAdmissionLetter covers both the first upload (from in_progress)
	// and a revised re-upload (from letter_pending).
	UploadAdmissionLetter(ctx context.Context, appID, hqID int64, fileKey string) (*model.Application, error)
	// UploadJW02 covers both the first upload (from admission_letter_approved)
	// and a revised re-upload (from jw02_pending).
	UploadJW02(ctx context.Context, appID, hqID int64, fileKey string) (*model.Application, error)
}

type service struct {
	db       *sql.DB
	engine   *workflow.Engine
	apps     apprepo.Repo
	notifier notify.Service
	log      *slog.Logger
}

func New(db *sql.DB, engine *workflow.Engine, apps apprepo.Repo, notifier notify.Service, log *slog.Logger) Service {
	return &service{db: db, engine: engine, apps: apps, notifier: notifier, log: log}
}

func (s *service) lockOwned(ctx context.Context, tx *sql.Tx, appID, hqID int64) (*model.Application, error) {
	app, err := s.apps.GetForUpdate(ctx, tx, appID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if app.AssignedHQID == nil || *app.AssignedHQID != hqID {
		return nil, ErrNotAssigned
	}
	return app, nil
}

func (s *service) MarkApplied(ctx context.Context, appID, hqID int64) (app *model.Application, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	app, err = s.lockOwned(ctx, tx, appID, hqID)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().UTC().Add(hqDeadlineDays * 24 * time.Hour)
	if err = s.apps.SetDeadline(ctx, tx, app.ID, deadline); err != nil {
		return nil, err
	}
	if err = s.engine.TransitionTx(ctx, tx, app, model.StatusInProgress, hqID, "Applied to university by HQ"); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	app.Deadline = &deadline

	if app.AssignedAgentID != nil {
		s.sendQuiet(ctx, *app.AssignedAgentID, "Application Applied to University",
			fmt.Sprintf("HQ has applied App #%d to the university. Deadline set for admission letter upload.", app.ID),
			fmt.Sprintf("/agent/applications/%d", app.ID))
	}
	return app, nil
}

func (s *service) UploadAdmissionLetter(ctx context.Context, appID, hqID int64, fileKey string) (*model.Application, error) {
	return s.upload(ctx, appID, hqID, fileKey, model.StatusLetterUploaded)
}

func (s *service) UploadJW02(ctx context.Context, appID, hqID int64, fileKey string) (*model.Application, error) {
	return s.upload(ctx, appID, hqID, fileKey, model.StatusJW02Uploaded)
}

func (s *service) upload(ctx context.Context, appID, hqID int64, fileKey string, target model.Status) (app *model.Application, err error) {
	if fileKey == "" {
		return nil, ErrFileKeyRequired
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

	app, err = s.lockOwned(ctx, tx, appID, hqID)
	if err != nil {
		return nil, err
	}

	var note, agentTitle, agentMsg string
	if target == model.StatusLetterUploaded {
		if _, err = s.apps.InsertLetter(ctx, tx, app.ID, hqID, fileKey); err != nil {
			return nil, err
		}
		note = "Admission letter uploaded by HQ"
		agentTitle = "Admission Letter Uploaded"
		agentMsg = fmt.Sprintf("HQ has uploaded the admission letter for App #%d. Please review.", app.ID)
		if app.Status == model.StatusLetterPending {
			note = "Revised admission letter uploaded by HQ"
			agentTitle = "Revised Admission Letter Uploaded"
			agentMsg = fmt.Sprintf("HQ has re-uploaded the admission letter for App #%d. Please review.", app.ID)
		}
	} else {
		if _, err = s.apps.InsertJW02(ctx, tx, app.ID, hqID, fileKey); err != nil {
			return nil, err
		}
		note = "JW02 form uploaded by HQ"
		agentTitle = "JW02 Form Uploaded"
		agentMsg = fmt.Sprintf("HQ has uploaded the JW02 form for App #%d. Please review.", app.ID)
		if app.Status == model.StatusJW02Pending {
			note = "Revised JW02 form uploaded by HQ"
			agentTitle = "Revised JW02 Form Uploaded"
			agentMsg = fmt.Sprintf("HQ has re-uploaded the JW02 form for App #%d. Please review.", app.ID)
		}
	}

	if err = s.engine.TransitionTx(ctx, tx, app, target, hqID, note); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	if app.AssignedAgentID != nil {
		s.sendQuiet(ctx, *app.AssignedAgentID, agentTitle, agentMsg,
			fmt.Sprintf("/agent/applications/%d", app.ID))
	}
	return app, nil
}

func (s *service) sendQuiet(ctx context.Context, userID int64, title, message, link string) {
	if err := s.notifier.Send(ctx, userID, title, message, link); err != nil {
		s.log.Warn("notify failed", "user_id", userID, "title", title, "err", err)
	}
}
