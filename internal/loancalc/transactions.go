package loancalc

import (
	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-portal/internal/domain"
)

// SummarizeTransactions totals a member's transactions for the summary cards.
// MonthlyAverage is totalDeposits / (depositCount/12), 0 with no deposits.
func SummarizeTransactions(transactions []*domain.Transaction) domain.TransactionSummary {
	summary := domain.TransactionSummary{
		TotalDeposits:  decimal.Zero,
		TotalDividends: decimal.Zero,
		MonthlyAverage: decimal.Zero,
		TotalsByType:   make(map[string]decimal.Decimal),
	}

	for _, t := range transactions {
		summary.TotalsByType[t.Type] = summary.TotalsByType[t.Type].Add(t.Amount)

		switch t.Type {
		case domain.TransactionTypeDeposit:
			summary.TotalDeposits = summary.TotalDeposits.Add(t.Amount)
			summary.DepositCount++
		case domain.TransactionTypeDividend:
			summary.TotalDividends = summary.TotalDividends.Add(t.Amount)
		}
	}

	if summary.DepositCount > 0 {
		summary.MonthlyAverage = summary.TotalDeposits.
			Mul(monthsInYear).
			Div(decimal.NewFromInt(int64(summary.DepositCount))).
			Round(2)
	}

	return summary
}
