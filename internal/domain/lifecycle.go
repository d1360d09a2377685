package domain

import (
	"time"

	customError "github.com/segyhp/sacco-portal/pkg/errors"
)

// loanTransitions lists the status changes a loan may go through
var loanTransitions = map[string][]string{
	LoanStatusPending:  {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved: {LoanStatusActive},
	LoanStatusActive:   {LoanStatusCompleted, LoanStatusDefaulted},
}

// CanTransition reports whether a loan in status from may move to status to.
func CanTransition(from, to string) bool {
	for _, next := range loanTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (l *Loan) transition(to string, at time.Time) error {
	if !CanTransition(l.Status, to) {
		return customError.WrapInvalidStateTransition("loan", l.Status, to)
	}
	l.Status = to
	l.UpdatedAt = at
	return nil
}

// Approve moves a pending loan to approved once every guarantor has signed off.
func (l *Loan) Approve(at time.Time) error {
	if l.Status == LoanStatusPending && !GuarantorsResolved(l.Guarantors) {
		return customError.WrapGuarantorsUnresolved(l.ID.String())
	}
	if err := l.transition(LoanStatusApproved, at); err != nil {
		return err
	}
	l.ApprovalDate = &at
	return nil
}

// Reject closes a pending application.
func (l *Loan) Reject(at time.Time) error {
	return l.transition(LoanStatusRejected, at)
}

// Activate attaches the generated schedule and starts the loan.
func (l *Loan) Activate(schedule []*Repayment, start time.Time) error {
	if err := l.transition(LoanStatusActive, start); err != nil {
		return err
	}
	l.StartDate = &start
	if len(schedule) > 0 {
		end := schedule[len(schedule)-1].DueDate
		l.EndDate = &end
	}
	l.RepaymentSchedule = schedule
	return nil
}

// Complete closes an active loan whose installments are all paid.
func (l *Loan) Complete(at time.Time) error {
	for _, r := range l.RepaymentSchedule {
		if !r.IsPaid {
			return customError.WrapInvalidStateTransition("loan", l.Status, LoanStatusCompleted)
		}
	}
	return l.transition(LoanStatusCompleted, at)
}

// MarkDefaulted flags an active loan as defaulted.
func (l *Loan) MarkDefaulted(at time.Time) error {
	return l.transition(LoanStatusDefaulted, at)
}

// AllPaid reports whether the loan has a schedule and every installment is paid.
func (l *Loan) AllPaid() bool {
	if len(l.RepaymentSchedule) == 0 {
		return false
	}
	for _, r := range l.RepaymentSchedule {
		if !r.IsPaid {
			return false
		}
	}
	return true
}
