package office_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	apprepo "scholarhub/repository/application"
	paymentrepo "scholarhub/repository/payment"
	userrepo "scholarhub/repository/user"
	"testing"
	"time"

	"scholarhub/model"
	"scholarhub/service/notify"
	"scholarhub/service/office"
	"scholarhub/service/workflow"
	"scholarhub/util/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type appMock struct {
	app      *model.Application
	history  []model.StatusHistoryEntry
	inserted bool
}

var _ apprepo.Repo = (*appMock)(nil)

func (m *appMock) Insert(ctx context.Context, scholarshipID, applicantID int64) (*model.Application, error) {
	m.inserted = true
	m.app = &model.Application{ID: 1, ScholarshipID: scholarshipID, ApplicantID: applicantID, Status: model.StatusDraft}
	return m.app, nil
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
	return 0, nil
}
func (m *appMock) LatestPendingLetter(ctx context.Context, tx *sql.Tx, appID int64) (*model.AdmissionLetter, error) {
	return nil, sql.ErrNoRows
}
func (m *appMock) SetLetterStatus(ctx context.Context, tx *sql.Tx, letterID int64, status model.DocumentStatus, revisionNote *string, approvedBy *int64) error {
	return nil
}
func (m *appMock) InsertJW02(ctx context.Context, tx *sql.Tx, appID, uploadedBy int64, fileKey string) (int64, error) {
	return 0, nil
}
func (m *appMock) LatestPendingJW02(ctx context.Context, tx *sql.Tx, appID int64) (*model.JW02Form, error) {
	return nil, sql.ErrNoRows
}
func (m *appMock) SetJW02Status(ctx context.Context, tx *sql.Tx, jw02ID int64, status model.DocumentStatus, revisionNote *string, approvedBy *int64) error {
	return nil
}

type userMock struct{ users map[int64]*model.User }

var _ userrepo.Repo = (*userMock)(nil)

func (m *userMock) Create(ctx context.Context, u *model.User) error { return nil }
func (m *userMock) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, sql.ErrNoRows
}
func (m *userMock) ByID(ctx context.Context, id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}
func (m *userMock) FirstActiveByRole(ctx context.Context, role model.Role) (*model.User, error) {
	return nil, sql.ErrNoRows
}

type scholMock struct{ sch *model.Scholarship }

func (m *scholMock) Create(ctx context.Context, s *model.Scholarship) error { return nil }
func (m *scholMock) List(ctx context.Context) ([]model.Scholarship, error)  { return nil, nil }
func (m *scholMock) ByID(ctx context.Context, id int64) (*model.Scholarship, error) {
	if m.sch == nil || m.sch.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.sch, nil
}

type paymentMock struct {
	payments map[int64]*model.Payment
	nextID   int64
}

var _ paymentrepo.Repo = (*paymentMock)(nil)

func (m *paymentMock) Insert(ctx context.Context, p *model.Payment) error {
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}
func (m *paymentMock) GetForUpdate(ctx context.Context, tx *sql.Tx, paymentID int64) (*model.Payment, error) {
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}
func (m *paymentMock) Review(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}
func (m *paymentMock) ListByApplication(ctx context.Context, appID int64) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range m.payments {
		if p.AppID == appID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type notifyMock struct{ sent []int64 }

var _ notify.Service = (*notifyMock)(nil)

func (m *notifyMock) Send(ctx context.Context, userID int64, title, message, link string) error {
	m.sent = append(m.sent, userID)
	return nil
}
func (m *notifyMock) List(ctx context.Context, userID int64) ([]model.Notification, error) {
	return nil, nil
}
func (m *notifyMock) MarkRead(ctx context.Context, userID, notificationID int64) error { return nil }
func (m *notifyMock) MarkAllRead(ctx context.Context, userID int64) (int64, error)     { return 0, nil }

func newFixture(t *testing.T, app *model.Application) (office.Service, *appMock, *notifyMock, *paymentMock) {
	t.Helper()
	db := dbtest.New(t)

	apps := &appMock{app: app}
	users := &userMock{users: map[int64]*model.User{
		3:  {ID: 3, Role: model.RoleOffice, Status: "active", Username: "clerk"},
		7:  {ID: 7, Role: model.RoleStudent, Status: "active", Username: "applicant"},
		8:  {ID: 8, Role: model.RoleStudent, Status: "active", Username: "someone-else"},
		20: {ID: 20, Role: model.RoleAgent, Status: "active", Username: "smith"},
		21: {ID: 21, Role: model.RoleStudent, Status: "active", Username: "not-an-agent"},
		22: {ID: 22, Role: model.RoleAgent, Status: "suspended", Username: "benched"},
	}}
	schols := &scholMock{sch: &model.Scholarship{ID: 2, Name: "Tsinghua Full Ride"}}
	notifs := &notifyMock{}
	payments := &paymentMock{payments: make(map[int64]*model.Payment)}

	engine := workflow.New(db, apps)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := office.New(db, engine, apps, users, schols, payments, notifs, log)
	return svc, apps, notifs, payments
}

func TestCreateApplication(t *testing.T) {
	svc, apps, _, _ := newFixture(t, nil)

	app, err := svc.CreateApplication(context.Background(), 2, 7)
	require.NoError(t, err)
	require.True(t, apps.inserted)
	require.Equal(t, model.StatusDraft, app.Status)
	require.Equal(t, int64(7), app.ApplicantID)
}

func TestCreateApplication_UnknownScholarship(t *testing.T) {
	svc, _, _, _ := newFixture(t, nil)

	_, err := svc.CreateApplication(context.Background(), 404, 7)
	require.ErrorIs(t, err, office.ErrScholarshipNotFound)
}

func TestIntakeSteps(t *testing.T) {
	ctx := context.Background()
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusDraft}
	svc, apps, _, _ := newFixture(t, app)

	steps := []struct {
		do   func() (*model.Application, error)
		want model.Status
	}{
		{func() (*model.Application, error) { return svc.Submit(ctx, 1, 3) }, model.StatusSubmitted},
		{func() (*model.Application, error) { return svc.StartReview(ctx, 1, 3) }, model.StatusUnderReview},
		{func() (*model.Application, error) { return svc.VerifyDocuments(ctx, 1, 3) }, model.StatusDocumentsVerified},
		{func() (*model.Application, error) { return svc.VerifyPayment(ctx, 1, 3) }, model.StatusPaymentVerified},
	}
	for _, step := range steps {
		got, err := step.do()
		require.NoError(t, err)
		require.Equal(t, step.want, got.Status)
	}
	require.Len(t, apps.history, 4)

	// running the same step twice is an illegal transition, not a silent repeat
	_, err := svc.Submit(ctx, 1, 3)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestForwardToAgent(t *testing.T) {
	ctx := context.Background()
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusPaymentVerified}
	svc, apps, notifs, _ := newFixture(t, app)

	got, err := svc.ForwardToAgent(ctx, 1, 20, 3)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedAgentID)
	require.Equal(t, int64(20), *got.AssignedAgentID)

	// status stays payment_verified but the hand-off is in the trail
	require.Equal(t, model.StatusPaymentVerified, got.Status)
	require.Len(t, apps.history, 1)
	require.Contains(t, *apps.history[0].Note, "smith")

	// agent and applicant both notified
	require.Equal(t, []int64{20, 7}, notifs.sent)
}

func TestForwardToAgent_InvalidAgent(t *testing.T) {
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusPaymentVerified}
	svc, _, _, _ := newFixture(t, app)

	// wrong role
	_, err := svc.ForwardToAgent(context.Background(), 1, 21, 3)
	require.ErrorIs(t, err, office.ErrInvalidAgent)

	// inactive agent
	_, err = svc.ForwardToAgent(context.Background(), 1, 22, 3)
	require.ErrorIs(t, err, office.ErrInvalidAgent)

	// unknown user
	_, err = svc.ForwardToAgent(context.Background(), 1, 404, 3)
	require.ErrorIs(t, err, office.ErrInvalidAgent)
}

func TestForwardToAgent_WrongStatus(t *testing.T) {
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusSubmitted}
	svc, _, _, _ := newFixture(t, app)

	_, err := svc.ForwardToAgent(context.Background(), 1, 20, 3)
	require.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestSubmit_StudentOwnership(t *testing.T) {
	ctx := context.Background()
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusDraft}
	svc, _, _, _ := newFixture(t, app)

	// a student cannot submit someone else's application
	_, err := svc.Submit(ctx, 1, 8)
	require.ErrorIs(t, err, office.ErrNotApplicant)
	require.Equal(t, model.StatusDraft, app.Status)

	// the applicant can
	got, err := svc.Submit(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, model.StatusSubmitted, got.Status)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusUnderReview}
	svc, _, notifs, payments := newFixture(t, app)

	txnID := "TXN-889"
	p, err := svc.RecordPayment(ctx, 1, d("1500.00"), "receipts/1/slip.pdf", &txnID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentUnderReview, p.Status)
	require.True(t, p.Amount.Equal(d("1500.00")))
	require.Len(t, payments.payments, 1)

	// applicant is told the payment is being reviewed
	require.Equal(t, []int64{7}, notifs.sent)
}

func TestRecordPayment_Invalid(t *testing.T) {
	ctx := context.Background()
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusUnderReview}
	svc, _, _, _ := newFixture(t, app)

	_, err := svc.RecordPayment(ctx, 1, d("0"), "receipts/1/slip.pdf", nil)
	require.ErrorIs(t, err, office.ErrInvalidPayment)

	_, err = svc.RecordPayment(ctx, 1, d("1500.00"), "", nil)
	require.ErrorIs(t, err, office.ErrInvalidPayment)

	_, err = svc.RecordPayment(ctx, 404, d("1500.00"), "receipts/404/slip.pdf", nil)
	require.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestApprovePayment(t *testing.T) {
	ctx := context.Background()
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusUnderReview}
	svc, _, notifs, payments := newFixture(t, app)

	p, err := svc.RecordPayment(ctx, 1, d("1500.00"), "receipts/1/slip.pdf", nil)
	require.NoError(t, err)

	got, err := svc.ApprovePayment(ctx, p.ID, 3, "")
	require.NoError(t, err)
	require.Equal(t, model.PaymentCompleted, got.Status)
	require.Equal(t, "Approved by office", *got.ReviewNote)
	require.Equal(t, int64(3), *got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	require.Equal(t, model.PaymentCompleted, payments.payments[p.ID].Status)

	// applicant notified on record and again on approval
	require.Equal(t, []int64{7, 7}, notifs.sent)
}

func TestRejectPayment(t *testing.T) {
	ctx := context.Background()
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusUnderReview}
	svc, _, _, payments := newFixture(t, app)

	p, err := svc.RecordPayment(ctx, 1, d("1500.00"), "receipts/1/slip.pdf", nil)
	require.NoError(t, err)

	got, err := svc.RejectPayment(ctx, p.ID, 3, "receipt unreadable")
	require.NoError(t, err)
	require.Equal(t, model.PaymentFailed, got.Status)
	require.Equal(t, "receipt unreadable", *got.ReviewNote)
	require.Equal(t, model.PaymentFailed, payments.payments[p.ID].Status)
}

func TestReviewPayment_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusUnderReview}
	svc, _, _, _ := newFixture(t, app)

	p, err := svc.RecordPayment(ctx, 1, d("1500.00"), "receipts/1/slip.pdf", nil)
	require.NoError(t, err)

	_, err = svc.ApprovePayment(ctx, p.ID, 3, "")
	require.NoError(t, err)

	_, err = svc.ApprovePayment(ctx, p.ID, 3, "")
	require.ErrorIs(t, err, office.ErrPaymentReviewed)
	_, err = svc.RejectPayment(ctx, p.ID, 3, "late")
	require.ErrorIs(t, err, office.ErrPaymentReviewed)
}

func TestReviewPayment_NotFound(t *testing.T) {
	app := &model.Application{ID: 1, ScholarshipID: 2, ApplicantID: 7, Status: model.StatusUnderReview}
	svc, _, _, _ := newFixture(t, app)

	_, err := svc.ApprovePayment(context.Background(), 999, 3, "")
	require.ErrorIs(t, err, office.ErrPaymentNotFound)
}
