package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusPending   = "pending"
	LoanStatusApproved  = "approved"
	LoanStatusActive    = "active"
	LoanStatusCompleted = "completed"
	LoanStatusRejected  = "rejected"
	LoanStatusDefaulted = "defaulted"
)

// Loan represents a member loan and the records it owns
type Loan struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	MemberID        string          `json:"member_id" db:"member_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Purpose         string          `json:"purpose" db:"purpose"`
	InterestRate    decimal.Decimal `json:"interest_rate" db:"interest_rate"` // annual, percent
	DurationMonths  int             `json:"duration_months" db:"duration_months"`
	StartDate       *time.Time      `json:"start_date,omitempty" db:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty" db:"end_date"`
	Status          string          `json:"status" db:"status"`
	ApplicationDate time.Time       `json:"application_date" db:"application_date"`
	ApprovalDate    *time.Time      `json:"approval_date,omitempty" db:"approval_date"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`

	RepaymentSchedule []*Repayment `json:"repayment_schedule" db:"-"`
	Guarantors        []*Guarantor `json:"guarantors" db:"-"`
	Documents         []*Document  `json:"documents" db:"-"`
}

// Document is a file attached to a loan application
type Document struct {
	ID         uuid.UUID `json:"id" db:"id"`
	LoanID     uuid.UUID `json:"loan_id" db:"loan_id"`
	Name       string    `json:"name" db:"name"`
	URL        string    `json:"url" db:"url"`
	Type       string    `json:"type" db:"type"`
	UploadDate time.Time `json:"upload_date" db:"upload_date"`
}

// HasSchedule reports whether the loan status implies a generated repayment schedule.
func (l *Loan) HasSchedule() bool {
	switch l.Status {
	case LoanStatusActive, LoanStatusCompleted, LoanStatusDefaulted:
		return true
	}
	return false
}

// DTOs for requests and responses

type GuarantorRequest struct {
	MemberID        string          `json:"member_id" validate:"required"`
	Name            string          `json:"name"`
	MembershipNo    string          `json:"membership_number"`
	GuaranteeAmount decimal.Decimal `json:"guarantee_amount" validate:"gt=0"`
}

type DocumentRequest struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type"`
}

type ApplyLoanRequest struct {
	Amount         decimal.Decimal    `json:"amount" validate:"gt=0"`
	Purpose        string             `json:"purpose" validate:"required"`
	InterestRate   *decimal.Decimal   `json:"interest_rate,omitempty"`
	DurationMonths int                `json:"duration_months" validate:"omitempty,gt=0"`
	Guarantors     []GuarantorRequest `json:"guarantors" validate:"required,min=1,dive"`
	Documents      []DocumentRequest  `json:"documents" validate:"dive"`
}

type GuaranteeResponseRequest struct {
	Approve bool `json:"approve"`
}

type RecordRepaymentRequest struct {
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// LoanView is a loan with every read-time derivation filled in
type LoanView struct {
	Loan          *Loan           `json:"loan"`
	Progress      float64         `json:"progress"`
	NextRepayment *Repayment      `json:"next_repayment,omitempty"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	PaidToDate    decimal.Decimal `json:"paid_to_date"`
}

type LoanListResponse struct {
	Loans  []*LoanView     `json:"loans"`
	Totals PortfolioTotals `json:"totals"`
}

// PortfolioTotals sums loan principal per status partition
type PortfolioTotals struct {
	Active         decimal.Decimal `json:"active"`
	Completed      decimal.Decimal `json:"completed"`
	Pending        decimal.Decimal `json:"pending"`
	TotalBorrowed  decimal.Decimal `json:"total_borrowed"`
	ActiveCount    int             `json:"active_count"`
	CompletedCount int             `json:"completed_count"`
	PendingCount   int             `json:"pending_count"`
}
