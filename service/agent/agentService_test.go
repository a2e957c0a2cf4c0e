package agent_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	apprepo "scholarhub/repository/application"
	userrepo "scholarhub/repository/user"
	"testing"
	"time"

	"scholarhub/model"
	"scholarhub/service/agent"
	"scholarhub/service/commission"
	"scholarhub/service/ledger"
	"scholarhub/service/notify"
	"scholarhub/service/workflow"
	"scholarhub/util/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// appMock keeps a single application with its documents in memory; the
// workflow engine and the agent service both run against it.
type appMock struct {
	app     *model.Application
	letter  *model.AdmissionLetter
	jw02    *model.JW02Form
	history []model.StatusHistoryEntry
}

var _ apprepo.Repo = (*appMock)(nil)

func (m *appMock) Insert(ctx context.Context, scholarshipID, applicantID int64) (*model.Application, error) {
	return nil, nil
}
func (m *appMock) Get(ctx context.Context, appID int64) (*model.Application, error) {
	if m.app == nil || m.app.ID != appID {
		return nil, sql.ErrNoRows
	}
	return m.app, nil
}
func (m *appMock) GetForUpdate(ctx context.Context, tx *sql.Tx, appID int64) (*model.Application, error) {
	return m.Get(ctx, appID)
}
func (m *appMock) UpdateStatusCAS(ctx context.Context, tx *sql.Tx, appID int64, old, new model.Status, approvedAt, completedAt *time.Time) (bool, error) {
	if m.app.Status != old {
		return false, nil
	}
	m.app.Status = new
	return true, nil
}
func (m *appMock) InsertHistory(ctx context.Context, tx *sql.Tx, h *model.StatusHistoryEntry) error {
	m.history = append(m.history, *h)
	return nil
}
func (m *appMock) ListHistory(ctx context.Context, appID int64) ([]model.StatusHistoryEntry, error) {
	return m.history, nil
}
func (m *appMock) ListByApplicant(ctx context.Context, applicantID int64) ([]model.Application, error) {
	return nil, nil
}
func (m *appMock) SetAssignedAgent(ctx context.Context, tx *sql.Tx, appID, agentID int64) error {
	m.app.AssignedAgentID = &agentID
	return nil
}
func (m *appMock) SetAssignedHQ(ctx context.Context, tx *sql.Tx, appID, hqID int64) error {
	m.app.AssignedHQID = &hqID
	return nil
}
func (m *appMock) SetDeadline(ctx context.Context, tx *sql.Tx, appID int64, deadline time.Time) error {
	m.app.Deadline = &deadline
	return nil
}
func (m *appMock) SetRejectionReason(ctx context.Context, tx *sql.Tx, appID int64, reason string) error {
	m.app.RejectionReason = &reason
	return nil
}
func (m *appMock) InsertLetter(ctx context.Context, tx *sql.Tx, appID, uploadedBy int64, fileKey string) (int64, error) {
	m.letter = &model.AdmissionLetter{ID: 1, AppID: appID, UploadedBy: uploadedBy, FileKey: fileKey, Status: model.DocPendingVerification}
	return 1, nil
}
func (m *appMock) LatestPendingLetter(ctx context.Context, tx *sql.Tx, appID int64) (*model.AdmissionLetter, error) {
	if m.letter == nil || m.letter.Status != model.DocPendingVerification {
		return nil, sql.ErrNoRows
	}
	return m.letter, nil
}
func (m *appMock) SetLetterStatus(ctx context.Context, tx *sql.Tx, letterID int64, status model.DocumentStatus, revisionNote *string, approvedBy *int64) error {
	m.letter.Status = status
	return nil
}
func (m *appMock) InsertJW02(ctx context.Context, tx *sql.Tx, appID, uploadedBy int64, fileKey string) (int64, error) {
	m.jw02 = &model.JW02Form{ID: 1, AppID: appID, UploadedBy: uploadedBy, FileKey: fileKey, Status: model.DocPendingVerification}
	return 1, nil
}
func (m *appMock) LatestPendingJW02(ctx context.Context, tx *sql.Tx, appID int64) (*model.JW02Form, error) {
	if m.jw02 == nil || m.jw02.Status != model.DocPendingVerification {
		return nil, sql.ErrNoRows
	}
	return m.jw02, nil
}
func (m *appMock) SetJW02Status(ctx context.Context, tx *sql.Tx, jw02ID int64, status model.DocumentStatus, revisionNote *string, approvedBy *int64) error {
	m.jw02.Status = status
	return nil
}

type userMock struct {
	firstHQ *model.User
}

var _ userrepo.Repo = (*userMock)(nil)

func (m *userMock) Create(ctx context.Context, u *model.User) error { return nil }
func (m *userMock) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, sql.ErrNoRows
}
func (m *userMock) ByID(ctx context.Context, id int64) (*model.User, error) {
	return nil, sql.ErrNoRows
}
func (m *userMock) FirstActiveByRole(ctx context.Context, role model.Role) (*model.User, error) {
	if m.firstHQ == nil {
		return nil, sql.ErrNoRows
	}
	return m.firstHQ, nil
}

type scholMock struct{ sch *model.Scholarship }

func (m *scholMock) Create(ctx context.Context, s *model.Scholarship) error { return nil }
func (m *scholMock) List(ctx context.Context) ([]model.Scholarship, error)  { return nil, nil }
func (m *scholMock) ByID(ctx context.Context, id int64) (*model.Scholarship, error) {
	if m.sch == nil {
		return nil, sql.ErrNoRows
	}
	return m.sch, nil
}

type sent struct {
	userID int64
	title  string
}

type notifyMock struct {
	sent []sent
	fail error
}

var _ notify.Service = (*notifyMock)(nil)

func (m *notifyMock) Send(ctx context.Context, userID int64, title, message, link string) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sent{userID, title})
	return nil
}
func (m *notifyMock) List(ctx context.Context, userID int64) ([]model.Notification, error) {
	return nil, nil
}
func (m *notifyMock) MarkRead(ctx context.Context, userID, notificationID int64) error { return nil }
func (m *notifyMock) MarkAllRead(ctx context.Context, userID int64) (int64, error)     { return 0, nil }

// ledgerMock records the commission moves the document approvals trigger.
type ledgerMock struct {
	credits  []int64
	releases []int64
}

var _ ledger.Service = (*ledgerMock)(nil)

func (m *ledgerMock) GetOrCreateWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return nil, nil
}
func (m *ledgerMock) CreditUpcoming(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, appID int64, description string) error {
	m.credits = append(m.credits, userID)
	return nil
}
func (m *ledgerMock) ReleaseUpcomingToBalance(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, appID int64, description string) error {
	m.releases = append(m.releases, userID)
	return nil
}
func (m *ledgerMock) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal) (*model.WithdrawalRequest, error) {
	return nil, nil
}
func (m *ledgerMock) ApproveWithdrawal(ctx context.Context, requestID, adminID int64) (*model.WithdrawalRequest, error) {
	return nil, nil
}
func (m *ledgerMock) RejectWithdrawal(ctx context.Context, requestID, adminID int64, reason string) (*model.WithdrawalRequest, error) {
	return nil, nil
}
func (m *ledgerMock) Transactions(ctx context.Context, userID int64, limit int) ([]model.WalletTransaction, error) {
	return nil, nil
}
func (m *ledgerMock) Withdrawals(ctx context.Context, userID int64) ([]model.WithdrawalRequest, error) {
	return nil, nil
}
func (m *ledgerMock) PendingWithdrawals(ctx context.Context) ([]model.WithdrawalRequest, error) {
	return nil, nil
}

func i64(v int64) *int64 { return &v }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fixture struct {
	svc    agent.Service
	apps   *appMock
	users  *userMock
	notifs *notifyMock
	wallet *ledgerMock
}

func newFixture(t *testing.T, app *model.Application, sch *model.Scholarship) *fixture {
	t.Helper()
	db := dbtest.New(t)

	apps := &appMock{app: app}
	users := &userMock{firstHQ: &model.User{ID: 30, Role: model.RoleHQ, Status: "active", Username: "hq-one"}}
	schols := &scholMock{sch: sch}
	notifs := &notifyMock{}
	wallet := &ledgerMock{}

	engine := workflow.New(db, apps)
	svc := agent.New(db, engine, apps, users, schols, commission.New(wallet), notifs, testLogger())

	return &fixture{svc: svc, apps: apps, users: users, notifs: notifs, wallet: wallet}
}

func pendingApp() *model.Application {
	return &model.Application{
		ID: 9, ScholarshipID: 2, ApplicantID: 7,
		Status:          model.StatusPaymentVerified,
		AssignedAgentID: i64(20),
	}
}

func fullCommissionScholarship() *model.Scholarship {
	return &model.Scholarship{
		ID: 2, Name: "Tsinghua Full Ride",
		AgentCommission: decimal.RequireFromString("250.00"),
		HQCommission:    decimal.RequireFromString("150.00"),
	}
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, pendingApp(), fullCommissionScholarship())

	app, err := f.svc.Approve(ctx, 9, 20, 0, "solid file")
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, app.Status)
	require.NotNil(t, app.Deadline)
	require.NotNil(t, app.AssignedHQID)
	require.Equal(t, int64(30), *app.AssignedHQID)

	require.Len(t, f.apps.history, 1)
	require.Contains(t, *f.apps.history[0].Note, "approved by agent")
	require.Contains(t, *f.apps.history[0].Note, "solid file")

	// applicant and the assigned HQ user both hear about it
	require.Len(t, f.notifs.sent, 2)
	require.Equal(t, int64(7), f.notifs.sent[0].userID)
	require.Equal(t, int64(30), f.notifs.sent[1].userID)
}

func TestApprove_NotAssigned(t *testing.T) {
	f := newFixture(t, pendingApp(), fullCommissionScholarship())

	_, err := f.svc.Approve(context.Background(), 9, 99, 0, "")
	require.Equal(t, agent.ErrNotAssigned, agent.Code(err))
}

func TestApprove_NotFound(t *testing.T) {
	f := newFixture(t, pendingApp(), fullCommissionScholarship())

	_, err := f.svc.Approve(context.Background(), 404, 20, 0, "")
	require.Equal(t, agent.ErrNotFound, agent.Code(err))
}

func TestApprove_NotifyFailureDoesNotFailApproval(t *testing.T) {
	f := newFixture(t, pendingApp(), fullCommissionScholarship())
	f.notifs.fail = errors.New("smtp down")

	app, err := f.svc.Approve(context.Background(), 9, 20, 0, "")
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, app.Status)
}

func TestReject(t *testing.T) {
	f := newFixture(t, pendingApp(), fullCommissionScholarship())

	app, err := f.svc.Reject(context.Background(), 9, 20, "incomplete transcripts")
	require.NoError(t, err)
	require.Equal(t, model.StatusRejected, app.Status)
	require.NotNil(t, app.RejectionReason)
	require.Equal(t, "incomplete transcripts", *app.RejectionReason)
	require.Contains(t, *f.apps.history[0].Note, "incomplete transcripts")
}

func TestReject_ReasonRequired(t *testing.T) {
	f := newFixture(t, pendingApp(), fullCommissionScholarship())

	_, err := f.svc.Reject(context.Background(), 9, 20, "")
	require.Equal(t, agent.ErrReasonRequired, agent.Code(err))
}

func TestApproveAdmissionLetter(t *testing.T) {
	ctx := context.Background()
	app := pendingApp()
	app.Status = model.StatusLetterUploaded
	app.AssignedHQID = i64(30)
	f := newFixture(t, app, fullCommissionScholarship())
	f.apps.letter = &model.AdmissionLetter{ID: 1, AppID: 9, Status: model.DocPendingVerification}

	credited, err := f.svc.ApproveAdmissionLetter(ctx, 9, 20)
	require.NoError(t, err)

	require.Equal(t, model.StatusLetterApproved, f.apps.app.Status)
	require.Equal(t, model.DocApproved, f.apps.letter.Status)

	// agent and HQ both earn an upcoming payment
	require.Equal(t, []int64{20, 30}, f.wallet.credits)
	require.Len(t, credited, 2)
}

func TestApproveAdmissionLetter_NoPendingDoc(t *testing.T) {
	app := pendingApp()
	app.Status = model.StatusLetterUploaded
	f := newFixture(t, app, fullCommissionScholarship())

	_, err := f.svc.ApproveAdmissionLetter(context.Background(), 9, 20)
	require.Equal(t, agent.ErrNoPendingDoc, agent.Code(err))
}

func TestApproveAdmissionLetter_WrongStatus(t *testing.T) {
	app := pendingApp() // still payment_verified
	f := newFixture(t, app, fullCommissionScholarship())
	f.apps.letter = &model.AdmissionLetter{ID: 1, AppID: 9, Status: model.DocPendingVerification}

	_, err := f.svc.ApproveAdmissionLetter(context.Background(), 9, 20)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestApproveJW02(t *testing.T) {
	ctx := context.Background()
	app := pendingApp()
	app.Status = model.StatusJW02Uploaded
	app.AssignedHQID = i64(30)
	f := newFixture(t, app, fullCommissionScholarship())
	f.apps.jw02 = &model.JW02Form{ID: 1, AppID: 9, Status: model.DocPendingVerification}

	released, err := f.svc.ApproveJW02(ctx, 9, 20)
	require.NoError(t, err)

	// jw02_approved then complete, in one transaction
	require.Equal(t, model.StatusComplete, f.apps.app.Status)
	require.Len(t, f.apps.history, 2)
	require.Equal(t, model.StatusJW02Approved, f.apps.history[0].NewStatus)
	require.Equal(t, model.StatusComplete, f.apps.history[1].NewStatus)

	require.Equal(t, []int64{20, 30}, f.wallet.releases)
	require.Len(t, released, 2)
}

func TestRequestLetterRevision(t *testing.T) {
	app := pendingApp()
	app.Status = model.StatusLetterUploaded
	app.AssignedHQID = i64(30)
	f := newFixture(t, app, fullCommissionScholarship())
	f.apps.letter = &model.AdmissionLetter{ID: 1, AppID: 9, Status: model.DocPendingVerification}

	err := f.svc.RequestLetterRevision(context.Background(), 9, 20, "stamp missing")
	require.NoError(t, err)
	require.Equal(t, model.StatusLetterPending, f.apps.app.Status)
	require.Equal(t, model.DocRevisionRequested, f.apps.letter.Status)

	require.Len(t, f.notifs.sent, 1)
	require.Equal(t, int64(30), f.notifs.sent[0].userID)
	require.Equal(t, "Revision Required", f.notifs.sent[0].title)
}

func TestRequestJW02Revision_NoteRequired(t *testing.T) {
	app := pendingApp()
	app.Status = model.StatusJW02Uploaded
	f := newFixture(t, app, fullCommissionScholarship())

	err := f.svc.RequestJW02Revision(context.Background(), 9, 20, "")
	require.Equal(t, agent.ErrReasonRequired, agent.Code(err))
}
