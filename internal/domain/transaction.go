package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeWithdrawal    = "withdrawal"
	TransactionTypeLoanRepayment = "loan_repayment"
	TransactionTypeDividend      = "dividend"
	TransactionTypeFee           = "fee"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is a member ledger entry supplied by the backend
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	MemberID    string          `json:"member_id" db:"member_id"`
	Type        string          `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Date        time.Time       `json:"date" db:"transaction_date"`
	Description string          `json:"description" db:"description"`
	Reference   string          `json:"reference" db:"reference"`
	Status      string          `json:"status" db:"status"`
}

// TransactionSummary feeds the deposit and dashboard summary cards
type TransactionSummary struct {
	TotalDeposits  decimal.Decimal            `json:"total_deposits"`
	TotalDividends decimal.Decimal            `json:"total_dividends"`
	MonthlyAverage decimal.Decimal            `json:"monthly_average"`
	DepositCount   int                        `json:"deposit_count"`
	TotalsByType   map[string]decimal.Decimal `json:"totals_by_type"`
}

type DepositsResponse struct {
	Transactions []*Transaction     `json:"transactions"`
	Summary      TransactionSummary `json:"summary"`
}
