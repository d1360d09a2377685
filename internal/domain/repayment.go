package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repayment lifecycle statuses, derived from due date and paid flag
const (
	RepaymentStatusUpcoming = "upcoming"
	RepaymentStatusDue      = "due"
	RepaymentStatusOverdue  = "overdue"
	RepaymentStatusPaid     = "paid"
)

// Repayment represents one scheduled installment of a loan
type Repayment struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            uuid.UUID       `json:"loan_id" db:"loan_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Principal         decimal.Decimal `json:"principal" db:"principal"`
	Interest          decimal.Decimal `json:"interest" db:"interest"`
	IsPaid            bool            `json:"is_paid" db:"is_paid"`
	PaidDate          *time.Time      `json:"paid_date,omitempty" db:"paid_date"`
	Status            string          `json:"status" db:"status"` // upcoming, due, overdue, paid
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// MarkPaid records a payment event against the installment.
func (r *Repayment) MarkPaid(paidAt time.Time) {
	r.IsPaid = true
	r.PaidDate = &paidAt
	r.Status = RepaymentStatusPaid
}
