package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member is the profile record kept by the backend
type Member struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	MembershipNo string    `json:"membership_number" db:"membership_number"`
	PhoneNumber  string    `json:"phone_number" db:"phone_number"`
	DateJoined   time.Time `json:"date_joined" db:"date_joined"`
}

const (
	AnnouncementCategoryGeneral  = "general"
	AnnouncementCategoryDividend = "dividend"
	AnnouncementCategoryLoan     = "loan"
	AnnouncementCategoryEvent    = "event"
	AnnouncementCategoryOther    = "other"
)

type Announcement struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Content       string     `json:"content" db:"content"`
	Category      string     `json:"category" db:"category"`
	IsImportant   bool       `json:"is_important" db:"is_important"`
	Author        string     `json:"author" db:"author"`
	PublishedDate time.Time  `json:"published_date" db:"published_date"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// PerformanceSnapshot holds one quarter of SACCO financial performance
type PerformanceSnapshot struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Year             int             `json:"year" db:"year"`
	Quarter          int             `json:"quarter" db:"quarter"`
	TotalAssets      decimal.Decimal `json:"total_assets" db:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities" db:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity" db:"total_equity"`
	TotalRevenue     decimal.Decimal `json:"total_revenue" db:"total_revenue"`
	TotalExpenses    decimal.Decimal `json:"total_expenses" db:"total_expenses"`
	NetIncome        decimal.Decimal `json:"net_income" db:"net_income"`
	GrowthPercent    decimal.Decimal `json:"growth_percent" db:"growth_percent"`
	NewMembers       int             `json:"new_members" db:"new_members"`
	NewLoans         int             `json:"new_loans" db:"new_loans"`
}

// DashboardResponse is everything the member dashboard cards need
type DashboardResponse struct {
	MemberID         string          `json:"member_id"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalDividends   decimal.Decimal `json:"total_dividends"`
	TotalBorrowed    decimal.Decimal `json:"total_borrowed"`
	OutstandingLoans decimal.Decimal `json:"outstanding_loans"`
	ActiveLoans      []*LoanView     `json:"active_loans"`
	GeneratedAt      time.Time       `json:"generated_at"`

	// five newest ledger entries
	RecentTransactions []*Transaction `json:"recent_transactions"`
}
