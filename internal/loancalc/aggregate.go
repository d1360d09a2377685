package loancalc

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-portal/internal/domain"
	"github.com/segyhp/sacco-portal/pkg/utils"
)

// Progress is the share of paid installments as a percentage, 0 for an empty schedule
func Progress(repayments []*domain.Repayment) float64 {
	if len(repayments) == 0 {
		return 0
	}

	paid := 0
	for _, r := range repayments {
		if r.IsPaid {
			paid++
		}
	}
	return float64(paid) / float64(len(repayments)) * 100
}

// NextRepayment returns the unpaid installment with the earliest due date.
// Ties keep schedule order. Returns nil when everything is paid.
func NextRepayment(repayments []*domain.Repayment) *domain.Repayment {
	unpaid := make([]*domain.Repayment, 0, len(repayments))
	for _, r := range repayments {
		if !r.IsPaid {
			unpaid = append(unpaid, r)
		}
	}
	if len(unpaid) == 0 {
		return nil
	}

	slices.SortStableFunc(unpaid, func(a, b *domain.Repayment) int {
		return a.DueDate.Compare(b.DueDate)
	})
	return unpaid[0]
}

// Outstanding sums the amounts of unpaid installments
func Outstanding(repayments []*domain.Repayment) decimal.Decimal {
	return sumAmounts(repayments, false)
}

// PaidToDate sums the amounts of paid installments
func PaidToDate(repayments []*domain.Repayment) decimal.Decimal {
	return sumAmounts(repayments, true)
}

func sumAmounts(repayments []*domain.Repayment, paid bool) decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(repayments))
	for _, r := range repayments {
		if r.IsPaid == paid {
			amounts = append(amounts, r.Amount)
		}
	}
	return utils.SumDecimals(amounts...)
}

// ConsecutiveMissed counts the run of unpaid installments already past due,
// ending at the most recent one. A paid installment resets the run.
func ConsecutiveMissed(repayments []*domain.Repayment, now time.Time) int {
	missed := 0
	for _, r := range repayments {
		if !r.DueDate.Before(now) {
			break
		}
		if r.IsPaid {
			missed = 0
			continue
		}
		missed++
	}
	return missed
}

// PortfolioTotals partitions loans by status and sums principal per partition
func PortfolioTotals(loans []*domain.Loan) domain.PortfolioTotals {
	totals := domain.PortfolioTotals{
		Active:        decimal.Zero,
		Completed:     decimal.Zero,
		Pending:       decimal.Zero,
		TotalBorrowed: decimal.Zero,
	}

	for _, loan := range loans {
		totals.TotalBorrowed = totals.TotalBorrowed.Add(loan.Amount)

		switch loan.Status {
		case domain.LoanStatusActive:
			totals.Active = totals.Active.Add(loan.Amount)
			totals.ActiveCount++
		case domain.LoanStatusCompleted:
			totals.Completed = totals.Completed.Add(loan.Amount)
			totals.CompletedCount++
		case domain.LoanStatusPending:
			totals.Pending = totals.Pending.Add(loan.Amount)
			totals.PendingCount++
		}
	}

	return totals
}

// BuildView classifies the loan's schedule at now and fills in its derived values
func BuildView(loan *domain.Loan, now time.Time) *domain.LoanView {
	ClassifyAll(loan.RepaymentSchedule, now)

	return &domain.LoanView{
		Loan:          loan,
		Progress:      Progress(loan.RepaymentSchedule),
		NextRepayment: NextRepayment(loan.RepaymentSchedule),
		Outstanding:   Outstanding(loan.RepaymentSchedule),
		PaidToDate:    PaidToDate(loan.RepaymentSchedule),
	}
}
