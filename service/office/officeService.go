// Package office drives the branch-office intake steps of the workflow:
// draft → submitted → under_review → documents_verified → payment_verified,
// plus forwarding a payment-verified application to an agent.
package office

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	apprepo "scholarhub/repository/application"
	paymentrepo "scholarhub/repository/payment"
	scholarshiprepo "scholarhub/repository/scholarship"
	userrepo "scholarhub/repository/user"
	"time"

	"scholarhub/model"
	"scholarhub/service/notify"
	"scholarhub/service/workflow"

	"github.com/shopspring/decimal"
)

var (
	ErrScholarshipNotFound = errors.New("scholarship not found")
	ErrInvalidAgent        = errors.New("invalid agent selected")
	ErrNotApplicant        = errors.New("application belongs to another student")
	ErrInvalidPayment      = errors.New("invalid payment")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentReviewed     = errors.New("payment already reviewed")
)

type Service interface {
	CreateApplication(ctx context.Context, scholarshipID, applicantID int64) (*model.Application, error)
	Submit(ctx context.Context, appID, actorID int64) (*model.Application, error)
	StartReview(ctx context.Context, appID, actorID int64) (*model.Application, error)
	VerifyDocuments(ctx context.Context, appID, actorID int64) (*model.Application, error)
	VerifyPayment(ctx context.Context, appID, actorID int64) (*model.Application, error)
	ForwardToAgent(ctx context.Context, appID, agentID, actorID int64) (*model.Application, error)

	RecordPayment(ctx context.Context, appID int64, amount decimal.Decimal, receiptKey string, transactionID *string) (*model.Payment, error)
	ApprovePayment(ctx context.Context, paymentID, actorID int64, note string) (*model.Payment, error)
	RejectPayment(ctx context.Context, paymentID, actorID int64, note string) (*model.Payment, error)
	Payments(ctx context.Context, appID int64) ([]model.Payment, error)
}

type service struct {
	db       *sql.DB
	engine   *workflow.Engine
	apps     apprepo.Repo
	users    userrepo.Repo
	schols   scholarshiprepo.Repo
	payments paymentrepo.Repo
	notifier notify.Service
	log      *slog.Logger
}

func New(db *sql.DB, engine *workflow.Engine, apps apprepo.Repo, users userrepo.Repo, schols scholarshiprepo.Repo, payments paymentrepo.Repo, notifier notify.Service, log *slog.Logger) Service {
	return &service{db: db, engine: engine, apps: apps, users: users, schols: schols, payments: payments, notifier: notifier, log: log}
}

func (s *service) CreateApplication(ctx context.Context, scholarshipID, applicantID int64) (*model.Application, error) {
	if _, err := s.schols.ByID(ctx, scholarshipID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScholarshipNotFound
		}
		return nil, err
	}
	return s.apps.Insert(ctx, scholarshipID, applicantID)
}

// Submit moves a draft into the intake queue. Office workers may submit on
// behalf of any applicant; a student may only submit their own application.
func (s *service) Submit(ctx context.Context, appID, actorID int64) (*model.Application, error) {
	actor, err := s.users.ByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RoleStudent {
		app, err := s.engine.Get(ctx, appID)
		if err != nil {
			return nil, err
		}
		if app.ApplicantID != actorID {
			return nil, ErrNotApplicant
		}
	}
	return s.engine.Transition(ctx, appID, model.StatusSubmitted, actorID, "Application submitted")
}

func (s *service) StartReview(ctx context.Context, appID, actorID int64) (*model.Application, error) {
	return s.engine.Transition(ctx, appID, model.StatusUnderReview, actorID, "Review started by office")
}

func (s *service) VerifyDocuments(ctx context.Context, appID, actorID int64) (*model.Application, error) {
	return s.engine.Transition(ctx, appID, model.StatusDocumentsVerified, actorID, "Documents verified by office")
}

func (s *service) VerifyPayment(ctx context.Context, appID, actorID int64) (*model.Application, error) {
	return s.engine.Transition(ctx, appID, model.StatusPaymentVerified, actorID, "Payment verified by office")
}

// ForwardToAgent assigns the agent and records a self-loop transition so the
// hand-off shows up in the audit trail.
func (s *service) ForwardToAgent(ctx context.Context, appID, agentID, actorID int64) (app *model.Application, err error) {
	agent, err := s.users.ByID(ctx, agentID)
	if err != nil || agent.Role != model.RoleAgent || agent.Status != "active" {
		return nil, ErrInvalidAgent
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

	app, err = s.apps.GetForUpdate(ctx, tx, appID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, err
	}
	if app.Status != model.StatusPaymentVerified {
		return nil, workflow.ErrIllegalTransition
	}

	if err = s.apps.SetAssignedAgent(ctx, tx, app.ID, agentID); err != nil {
		return nil, err
	}
	if err = s.engine.TransitionTx(ctx, tx, app, model.StatusPaymentVerified, actorID,
		fmt.Sprintf("Forwarded to agent %s", agent.Username)); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	app.AssignedAgentID = &agentID

	s.sendQuiet(ctx, agentID, "New Application Assigned",
		fmt.Sprintf("Application #%d has been forwarded to you for review.", app.ID),
		fmt.Sprintf("/agent/applications/%d", app.ID))
	s.sendQuiet(ctx, app.ApplicantID, "Application Forwarded",
		fmt.Sprintf("Your application #%d has been forwarded to an agent for approval.", app.ID),
		fmt.Sprintf("/applications/%d", app.ID))

	return app, nil
}

// RecordPayment files a student's payment receipt against an application.
// The payment sits in under_review until an office worker approves or rejects
// it; reviewing is independent of the payment_verified status transition.
func (s *service) RecordPayment(ctx context.Context, appID int64, amount decimal.Decimal, receiptKey string, transactionID *string) (*model.Payment, error) {
	if !amount.IsPositive() || receiptKey == "" {
		return nil, ErrInvalidPayment
	}
	app, err := s.engine.Get(ctx, appID)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{
		AppID:         app.ID,
		Amount:        amount,
		ReceiptKey:    receiptKey,
		TransactionID: transactionID,
		Status:        model.PaymentUnderReview,
	}
	if err := s.payments.Insert(ctx, p); err != nil {
		return nil, err
	}

	s.sendQuiet(ctx, app.ApplicantID, "Payment Received",
		fmt.Sprintf("Your payment for application #%d is under review.", app.ID),
		fmt.Sprintf("/applications/%d", app.ID))
	return p, nil
}

func (s *service) ApprovePayment(ctx context.Context, paymentID, actorID int64, note string) (*model.Payment, error) {
	if note == "" {
		note = "Approved by office"
	}
	p, err := s.reviewPayment(ctx, paymentID, actorID, model.PaymentCompleted, note)
	if err != nil {
		return nil, err
	}
	s.notifyPayment(ctx, p, "Payment Approved",
		fmt.Sprintf("Your payment for application #%d has been approved.", p.AppID))
	return p, nil
}

func (s *service) RejectPayment(ctx context.Context, paymentID, actorID int64, note string) (*model.Payment, error) {
	if note == "" {
		note = "Rejected by office"
	}
	p, err := s.reviewPayment(ctx, paymentID, actorID, model.PaymentFailed, note)
	if err != nil {
		return nil, err
	}
	s.notifyPayment(ctx, p, "Payment Rejected",
		fmt.Sprintf("Your payment for application #%d was rejected: %s", p.AppID, note))
	return p, nil
}

func (s *service) Payments(ctx context.Context, appID int64) ([]model.Payment, error) {
	if _, err := s.engine.Get(ctx, appID); err != nil {
		return nil, err
	}
	return s.payments.ListByApplication(ctx, appID)
}

// reviewPayment settles an under_review payment exactly once; a second review
// of the same payment fails with ErrPaymentReviewed.
func (s *service) reviewPayment(ctx context.Context, paymentID, actorID int64, status model.PaymentStatus, note string) (p *model.Payment, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p, err = s.payments.GetForUpdate(ctx, tx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Status != model.PaymentUnderReview {
		return nil, ErrPaymentReviewed
	}

	now := time.Now()
	p.Status = status
	p.ReviewNote = &note
	p.ReviewedBy = &actorID
	p.ReviewedAt = &now
	if err = s.payments.Review(ctx, tx, p); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) notifyPayment(ctx context.Context, p *model.Payment, title, message string) {
	app, err := s.engine.Get(ctx, p.AppID)
	if err != nil {
		s.log.Warn("payment notify lookup", "app_id", p.AppID, "err", err)
		return
	}
	s.sendQuiet(ctx, app.ApplicantID, title, message, fmt.Sprintf("/applications/%d", p.AppID))
}

func (s *service) sendQuiet(ctx context.Context, userID int64, title, message, link string) {
	if err := s.notifier.Send(ctx, userID, title, message, link); err != nil {
		s.log.Warn("notify failed", "user_id", userID, "title", title, "err", err)
	}
}
