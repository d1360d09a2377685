package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/segyhp/sacco-portal/internal/domain"
)

// SettleFunc decides the loan outcome from the current guarantor responses.
// It returns the loan to save, or nil when nothing changes.
type SettleFunc func(guarantors []*domain.Guarantor) (*domain.Loan, error)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create stores a new application together with its guarantors and documents
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan with guarantors, documents and schedule attached
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// ListByMember retrieves every loan a member applied for, newest first
	ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error)

	// ListByStatus retrieves loans in the given status with schedules attached
	ListByStatus(ctx context.Context, status string) ([]*domain.Loan, error)

	// Update persists status and lifecycle dates of a loan
	Update(ctx context.Context, loan *domain.Loan) error

	// SaveSchedule updates the loan row and inserts its repayment schedule in one transaction
	SaveSchedule(ctx context.Context, loan *domain.Loan) error

	// GetSchedule retrieves the installments of a loan ordered by installment number
	GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error)

	// UpdateRepaymentStatuses persists the derived status of unpaid installments.
	// Installments paid since they were read are left alone; it returns how many rows changed.
	UpdateRepaymentStatuses(ctx context.Context, repayments []*domain.Repayment) (int, error)

	// RecordPayment marks an installment paid, posts the ledger entry and, when the
	// loan has been completed, saves the loan in one transaction. It returns
	// ErrStaleRow if the installment was already paid.
	RecordPayment(ctx context.Context, loan *domain.Loan, repayment *domain.Repayment, txn *domain.Transaction) error

	// RespondGuarantor persists the response of a pending guarantor, then passes the
	// loan's guarantors as they now stand to settle. A loan returned by settle is
	// saved in the same transaction. It returns ErrStaleRow if the guarantor had
	// already responded.
	RespondGuarantor(ctx context.Context, guarantor *domain.Guarantor, settle SettleFunc) error
}

// TransactionRepository defines the interface for member ledger operations
type TransactionRepository interface {
	// ListByMember retrieves a member's ledger, newest first
	ListByMember(ctx context.Context, memberID string) ([]*domain.Transaction, error)
}

// MemberRepository defines read access to member profiles and SACCO-wide content
type MemberRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Member, error)
	ListAnnouncements(ctx context.Context) ([]*domain.Announcement, error)
	ListPerformance(ctx context.Context) ([]*domain.PerformanceSnapshot, error)
}
