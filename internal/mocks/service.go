package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/sacco-portal/internal/domain"
	"github.com/segyhp/sacco-portal/internal/session"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) ApplyForLoan(ctx context.Context, memberID string, request *domain.ApplyLoanRequest) (*domain.Loan, error) {
	args := m.Called(ctx, memberID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) RespondToGuarantee(ctx context.Context, loanID uuid.UUID, guarantorMemberID string, approve bool) (*domain.Loan, error) {
	args := m.Called(ctx, loanID, guarantorMemberID, approve)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) ActivateLoan(ctx context.Context, memberID string, loanID uuid.UUID) (*domain.LoanView, error) {
	args := m.Called(ctx, memberID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanView), args.Error(1)
}

func (m *MockLoanService) RecordRepayment(ctx context.Context, memberID string, loanID, repaymentID uuid.UUID, paidAt time.Time) (*domain.LoanView, error) {
	args := m.Called(ctx, memberID, loanID, repaymentID, paidAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanView), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, memberID string, loanID uuid.UUID) (*domain.LoanView, error) {
	args := m.Called(ctx, memberID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanView), args.Error(1)
}

func (m *MockLoanService) ListLoans(ctx context.Context, memberID string) (*domain.LoanListResponse, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanListResponse), args.Error(1)
}

type MockMemberService struct {
	mock.Mock
}

func (m *MockMemberService) GetDashboard(ctx context.Context, memberID string) (*domain.DashboardResponse, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DashboardResponse), args.Error(1)
}

func (m *MockMemberService) GetDeposits(ctx context.Context, memberID string) (*domain.DepositsResponse, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DepositsResponse), args.Error(1)
}

func (m *MockMemberService) ListAnnouncements(ctx context.Context, limit int) ([]*domain.Announcement, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Announcement), args.Error(1)
}

func (m *MockMemberService) GetPerformance(ctx context.Context) ([]*domain.PerformanceSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PerformanceSnapshot), args.Error(1)
}

type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) Restore(ctx context.Context, token string) (*session.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockSessionManager) Clear(ctx context.Context, s *session.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}
