package loancalc

import (
	"time"

	"github.com/segyhp/sacco-portal/internal/domain"
)

// DueWindow is how far ahead an unpaid installment counts as due
const DueWindow = 7 * 24 * time.Hour

// Classify derives the status of one installment at now.
// A repayment due exactly now is due, not overdue.
func Classify(dueDate time.Time, isPaid bool, now time.Time) string {
	if isPaid {
		return domain.RepaymentStatusPaid
	}

	untilDue := dueDate.Sub(now)
	switch {
	case untilDue < 0:
		return domain.RepaymentStatusOverdue
	case untilDue <= DueWindow:
		return domain.RepaymentStatusDue
	default:
		return domain.RepaymentStatusUpcoming
	}
}

// ClassifyAll refreshes Status on every installment and reports how many changed
func ClassifyAll(repayments []*domain.Repayment, now time.Time) int {
	changed := 0
	for _, r := range repayments {
		status := Classify(r.DueDate, r.IsPaid, now)
		if status != r.Status {
			r.Status = status
			changed++
		}
	}
	return changed
}
