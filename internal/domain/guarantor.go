package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/sacco-portal/pkg/errors"
)

const (
	GuarantorStatusPending  = "pending"
	GuarantorStatusApproved = "approved"
	GuarantorStatusRejected = "rejected"
)

// Guarantor is a member vouching for part of a loan. MemberID is a weak reference.
type Guarantor struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	LoanID          uuid.UUID       `json:"loan_id" db:"loan_id"`
	MemberID        string          `json:"member_id" db:"member_id"`
	Name            string          `json:"name" db:"name"`
	MembershipNo    string          `json:"membership_number" db:"membership_number"`
	GuaranteeAmount decimal.Decimal `json:"guarantee_amount" db:"guarantee_amount"`
	Status          string          `json:"status" db:"status"`
	RequestedAt     time.Time       `json:"date_requested" db:"requested_at"`
	RespondedAt     *time.Time      `json:"date_responded,omitempty" db:"responded_at"`
}

// Respond moves a pending guarantor to approved or rejected.
func (g *Guarantor) Respond(approve bool, at time.Time) error {
	if g.Status != GuarantorStatusPending {
		next := GuarantorStatusRejected
		if approve {
			next = GuarantorStatusApproved
		}
		return customError.WrapInvalidStateTransition("guarantor", g.Status, next)
	}

	if approve {
		g.Status = GuarantorStatusApproved
	} else {
		g.Status = GuarantorStatusRejected
	}
	g.RespondedAt = &at
	return nil
}

// GuarantorsResolved reports whether every guarantor has approved.
// A loan without guarantors is never resolved.
func GuarantorsResolved(guarantors []*Guarantor) bool {
	if len(guarantors) == 0 {
		return false
	}
	for _, g := range guarantors {
		if g.Status != GuarantorStatusApproved {
			return false
		}
	}
	return true
}

// AnyGuarantorRejected reports whether at least one guarantor declined.
func AnyGuarantorRejected(guarantors []*Guarantor) bool {
	for _, g := range guarantors {
		if g.Status == GuarantorStatusRejected {
			return true
		}
	}
	return false
}
