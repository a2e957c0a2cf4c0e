package commission_test

import (
	"context"
	"database/sql"
	"testing"

	"scholarhub/model"
	"scholarhub/service/commission"
	"scholarhub/service/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type move struct {
	userID int64
	amount decimal.Decimal
	appID  int64
}

type ledgerMock struct {
	credits  []move
	releases []move
	fail     error
}

var _ ledger.Service = (*ledgerMock)(nil)

func (m *ledgerMock) GetOrCreateWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return nil, nil
}
func (m *ledgerMock) CreditUpcoming(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, appID int64, description string) error {
	if m.fail != nil {
		return m.fail
	}
	m.credits = append(m.credits, move{userID, amount, appID})
	return nil
}
func (m *ledgerMock) ReleaseUpcomingToBalance(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, appID int64, description string) error {
	if m.fail != nil {
		return m.fail
	}
	m.releases = append(m.releases, move{userID, amount, appID})
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

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func i64(v int64) *int64 { return &v }

func TestOnAdmissionLetterApproved(t *testing.T) {
	m := &ledgerMock{}
	c := commission.New(m)

	app := &model.Application{ID: 9, AssignedAgentID: i64(20), AssignedHQID: i64(30)}
	sch := &model.Scholarship{Name: "Tsinghua Full Ride", AgentCommission: d("250.00"), HQCommission: d("150.00")}

	credited, err := c.OnAdmissionLetterApproved(context.Background(), nil, app, sch)
	require.NoError(t, err)

	require.Len(t, m.credits, 2)
	require.Equal(t, int64(20), m.credits[0].userID)
	require.True(t, m.credits[0].amount.Equal(d("250.00")))
	require.Equal(t, int64(30), m.credits[1].userID)
	require.True(t, m.credits[1].amount.Equal(d("150.00")))

	require.True(t, credited["agent"].Equal(d("250.00")))
	require.True(t, credited["hq"].Equal(d("150.00")))
}

func TestOnAdmissionLetterApproved_SkipsUnassignedAndZero(t *testing.T) {
	m := &ledgerMock{}
	c := commission.New(m)

	// no HQ assigned, zero agent commission
	app := &model.Application{ID: 9, AssignedAgentID: i64(20)}
	sch := &model.Scholarship{Name: "X", AgentCommission: decimal.Zero, HQCommission: d("150.00")}

	credited, err := c.OnAdmissionLetterApproved(context.Background(), nil, app, sch)
	require.NoError(t, err)
	require.Empty(t, m.credits)
	require.Empty(t, credited)
}

func TestOnJW02Approved(t *testing.T) {
	m := &ledgerMock{}
	c := commission.New(m)

	app := &model.Application{ID: 9, AssignedAgentID: i64(20), AssignedHQID: i64(30)}
	sch := &model.Scholarship{Name: "X", AgentCommission: d("250.00"), HQCommission: d("150.00")}

	released, err := c.OnJW02Approved(context.Background(), nil, app, sch)
	require.NoError(t, err)
	require.Len(t, m.releases, 2)
	require.Equal(t, int64(9), m.releases[0].appID)
	require.True(t, released["agent"].Equal(d("250.00")))
	require.True(t, released["hq"].Equal(d("150.00")))
}

func TestOnJW02Approved_LedgerFailurePropagates(t *testing.T) {
	m := &ledgerMock{fail: ledger.ErrInsufficientUpcoming}
	c := commission.New(m)

	app := &model.Application{ID: 9, AssignedAgentID: i64(20)}
	sch := &model.Scholarship{Name: "X", AgentCommission: d("250.00")}

	_, err := c.OnJW02Approved(context.Background(), nil, app, sch)
	require.ErrorIs(t, err, ledger.ErrInsufficientUpcoming)
}
