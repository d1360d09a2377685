package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/sacco-portal/internal/domain"
	"github.com/segyhp/sacco-portal/internal/repository"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListByStatus(ctx context.Context, status string) ([]*domain.Loan, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) SaveSchedule(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Repayment), args.Error(1)
}

func (m *MockLoanRepository) UpdateRepaymentStatuses(ctx context.Context, repayments []*domain.Repayment) (int, error) {
	args := m.Called(ctx, repayments)
	return args.Int(0), args.Error(1)
}

func (m *MockLoanRepository) RecordPayment(ctx context.Context, loan *domain.Loan, repayment *domain.Repayment, txn *domain.Transaction) error {
	args := m.Called(ctx, loan, repayment, txn)
	return args.Error(0)
}

// RespondGuarantor passes the guarantors given to Return on to settle, standing
// in for the rows the database would hand back.
func (m *MockLoanRepository) RespondGuarantor(ctx context.Context, guarantor *domain.Guarantor, settle repository.SettleFunc) error {
	args := m.Called(ctx, guarantor, settle)
	if err := args.Error(1); err != nil {
		return err
	}
	current, _ := args.Get(0).([]*domain.Guarantor)
	_, err := settle(current)
	return err
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Transaction, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) ListAnnouncements(ctx context.Context) ([]*domain.Announcement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Announcement), args.Error(1)
}

func (m *MockMemberRepository) ListPerformance(ctx context.Context) ([]*domain.PerformanceSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PerformanceSnapshot), args.Error(1)
}
