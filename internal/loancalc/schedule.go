// Package loancalc holds the pure loan computations: the amortization
// schedule, repayment status classification and the loan and transaction
// aggregates shown on the member dashboard. Nothing here reads the clock or
// touches storage; callers pass "now" explicitly.
package loancalc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-portal/internal/domain"
	customError "github.com/segyhp/sacco-portal/pkg/errors"
	"github.com/segyhp/sacco-portal/pkg/utils"
)

var (
	one          = decimal.NewFromInt(1)
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// ScheduleParams are the approved loan terms a schedule is generated from
type ScheduleParams struct {
	LoanID            uuid.UUID
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	TermMonths        int
	StartDate         time.Time
}

// Validate rejects terms the annuity formula cannot serve
func (p ScheduleParams) Validate() error {
	if !p.Principal.IsPositive() {
		return customError.WrapInvalidLoanParameters(fmt.Sprintf("principal must be positive, got %s", p.Principal))
	}
	if p.TermMonths <= 0 {
		return customError.WrapInvalidLoanParameters(fmt.Sprintf("term must be at least one month, got %d", p.TermMonths))
	}
	if p.AnnualRatePercent.IsNegative() {
		return customError.WrapInvalidLoanParameters(fmt.Sprintf("interest rate cannot be negative, got %s", p.AnnualRatePercent))
	}
	return nil
}

// MonthlyRate converts an annual percentage rate to a monthly fraction
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(hundred).Div(monthsInYear)
}

// MonthlyPayment returns the unrounded fixed installment.
// Formula: P * (i * (1+i)^n) / ((1+i)^n - 1), or P / n when i is zero
func MonthlyPayment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(termMonths))
	i := MonthlyRate(annualRatePercent)
	if i.IsZero() {
		return principal.Div(n)
	}

	// (1+i)^n stays in decimal; a float rounds 1+i to exactly 1 for tiny rates
	factor, err := one.Add(i).PowInt32(int32(termMonths))
	if err != nil || factor.Sub(one).IsZero() {
		return principal.Div(n)
	}
	return principal.Mul(i).Mul(factor).Div(factor.Sub(one))
}

// GenerateSchedule builds the repayment schedule for a loan.
// Installment k falls due k calendar months after the start date. Amount,
// principal and interest are each rounded to 2 places on their own, so
// amount may differ from principal+interest by a cent.
func GenerateSchedule(params ScheduleParams) ([]*domain.Repayment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	i := MonthlyRate(params.AnnualRatePercent)
	payment := MonthlyPayment(params.Principal, params.AnnualRatePercent, params.TermMonths)
	remaining := params.Principal

	schedule := make([]*domain.Repayment, 0, params.TermMonths)
	for k := 1; k <= params.TermMonths; k++ {
		interest := remaining.Mul(i)
		principal := payment.Sub(interest)
		remaining = remaining.Sub(principal)

		schedule = append(schedule, &domain.Repayment{
			ID:                InstallmentID(params.LoanID, k),
			LoanID:            params.LoanID,
			InstallmentNumber: k,
			DueDate:           utils.AddMonths(params.StartDate, k),
			Amount:            utils.Round2(payment),
			Principal:         utils.Round2(principal),
			Interest:          utils.Round2(interest),
			IsPaid:            false,
			// the first installment is at least 28 days out
			Status: domain.RepaymentStatusUpcoming,
		})
	}

	return schedule, nil
}

// InstallmentID derives a stable identifier for installment k of a loan
func InstallmentID(loanID uuid.UUID, k int) uuid.UUID {
	return uuid.NewSHA1(loanID, []byte(fmt.Sprintf("installment-%d", k)))
}
