package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/segyhp/sacco-portal/internal/domain"
	"github.com/segyhp/sacco-portal/internal/loancalc"
	"github.com/segyhp/sacco-portal/internal/repository"
)

var base = time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repository.Migrate(context.Background(), db))
	return db
}

func newPendingLoan(memberID string, applied time.Time) *domain.Loan {
	loanID := uuid.New()
	return &domain.Loan{
		ID:              loanID,
		MemberID:        memberID,
		Amount:          decimal.NewFromInt(500000),
		Purpose:         "school fees",
		InterestRate:    decimal.NewFromInt(12),
		DurationMonths:  12,
		Status:          domain.LoanStatusPending,
		ApplicationDate: applied,
		CreatedAt:       applied,
		UpdatedAt:       applied,
		Guarantors: []*domain.Guarantor{
			{ID: uuid.New(), LoanID: loanID, MemberID: "user_2", Name: "Jane Smith", MembershipNo: "UU-002", GuaranteeAmount: decimal.NewFromInt(250000), Status: domain.GuarantorStatusPending, RequestedAt: applied},
			{ID: uuid.New(), LoanID: loanID, MemberID: "user_3", Name: "Peter Otieno", MembershipNo: "UU-003", GuaranteeAmount: decimal.NewFromInt(250000), Status: domain.GuarantorStatusPending, RequestedAt: applied},
		},
		Documents: []*domain.Document{
			{ID: uuid.New(), LoanID: loanID, Name: "payslip.pdf", URL: "https://files.example.com/payslip.pdf", Type: "payslip", UploadDate: applied},
		},
	}
}

func TestLoanRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newPendingLoan("user_1", base)
	require.NoError(t, repo.Create(ctx, loan))

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, loan.ID, got.ID)
	assert.Equal(t, "user_1", got.MemberID)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(500000)))
	assert.True(t, got.InterestRate.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, domain.LoanStatusPending, got.Status)
	assert.WithinDuration(t, base, got.ApplicationDate, time.Second)
	assert.Nil(t, got.StartDate)
	assert.Nil(t, got.ApprovalDate)

	require.Len(t, got.Guarantors, 2)
	assert.ElementsMatch(t, []string{"user_2", "user_3"}, []string{got.Guarantors[0].MemberID, got.Guarantors[1].MemberID})
	assert.True(t, got.Guarantors[0].GuaranteeAmount.Equal(decimal.NewFromInt(250000)))
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "payslip.pdf", got.Documents[0].Name)
	assert.Empty(t, got.RepaymentSchedule)
}

func TestLoanRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

// approveAll answers for every guarantor and approves the loan once the last one is in
func approveAll(t *testing.T, repo repository.LoanRepository, loan *domain.Loan) {
	t.Helper()
	ctx := context.Background()

	for _, g := range loan.Guarantors {
		require.NoError(t, g.Respond(true, base))
		require.NoError(t, repo.RespondGuarantor(ctx, g, func(current []*domain.Guarantor) (*domain.Loan, error) {
			if !domain.GuarantorsResolved(current) {
				return nil, nil
			}
			loan.Guarantors = current
			return loan, loan.Approve(base)
		}))
	}
}

// newActiveLoan stores an approved loan and its schedule starting at base
func newActiveLoan(t *testing.T, repo repository.LoanRepository, memberID string) *domain.Loan {
	t.Helper()

	loan := newPendingLoan(memberID, base)
	require.NoError(t, repo.Create(context.Background(), loan))
	approveAll(t, repo, loan)

	schedule, err := loancalc.GenerateSchedule(loancalc.ScheduleParams{
		LoanID:            loan.ID,
		Principal:         loan.Amount,
		AnnualRatePercent: loan.InterestRate,
		TermMonths:        loan.DurationMonths,
		StartDate:         base,
	})
	require.NoError(t, err)
	require.NoError(t, loan.Activate(schedule, base))
	require.NoError(t, repo.SaveSchedule(context.Background(), loan))
	return loan
}

func repaymentEntry(memberID string, r *domain.Repayment, paidAt time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:        uuid.New(),
		MemberID:  memberID,
		Type:      domain.TransactionTypeLoanRepayment,
		Amount:    r.Amount,
		Date:      paidAt,
		Reference: "LR-test",
		Status:    domain.TransactionStatusCompleted,
	}
}

func TestLoanRepository_SaveScheduleAndPay(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ledger := repository.NewTransactionRepository(db)
	ctx := context.Background()

	loan := newActiveLoan(t, repo, "user_1")

	stored, err := repo.GetSchedule(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, stored, 12)
	assert.Equal(t, 1, stored[0].InstallmentNumber)
	assert.Equal(t, 12, stored[11].InstallmentNumber)
	assert.Equal(t, "44424.39", stored[0].Amount.StringFixed(2))
	assert.Equal(t, "5000.00", stored[0].Interest.StringFixed(2))
	assert.WithinDuration(t, time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), stored[0].DueDate, time.Second)
	assert.False(t, stored[0].IsPaid)

	paidAt := base.AddDate(0, 1, -1)
	stored[0].MarkPaid(paidAt)
	require.NoError(t, repo.RecordPayment(ctx, loan, stored[0], repaymentEntry("user_1", stored[0], paidAt)))

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, got.Status)
	require.NotNil(t, got.StartDate)
	require.NotNil(t, got.EndDate)
	assert.WithinDuration(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), *got.EndDate, time.Second)
	require.NotNil(t, got.ApprovalDate)
	for _, g := range got.Guarantors {
		assert.Equal(t, domain.GuarantorStatusApproved, g.Status)
		assert.NotNil(t, g.RespondedAt)
	}

	require.Len(t, got.RepaymentSchedule, 12)
	first := got.RepaymentSchedule[0]
	assert.True(t, first.IsPaid)
	assert.Equal(t, domain.RepaymentStatusPaid, first.Status)
	require.NotNil(t, first.PaidDate)
	assert.WithinDuration(t, paidAt, *first.PaidDate, time.Second)
	assert.False(t, got.RepaymentSchedule[1].IsPaid)

	entries, err := ledger.ListByMember(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(first.Amount))
}

func TestLoanRepository_RecordPayment_OnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ledger := repository.NewTransactionRepository(db)
	ctx := context.Background()

	loan := newActiveLoan(t, repo, "user_1")
	// two requests read the installment while it was unpaid
	a, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)

	a.RepaymentSchedule[0].MarkPaid(base.AddDate(0, 1, 0))
	require.NoError(t, repo.RecordPayment(ctx, a, a.RepaymentSchedule[0], repaymentEntry("user_1", a.RepaymentSchedule[0], base.AddDate(0, 1, 0))))

	b.RepaymentSchedule[0].MarkPaid(base.AddDate(0, 1, 1))
	err = repo.RecordPayment(ctx, b, b.RepaymentSchedule[0], repaymentEntry("user_1", b.RepaymentSchedule[0], base.AddDate(0, 1, 1)))
	assert.ErrorIs(t, err, repository.ErrStaleRow)

	entries, err := ledger.ListByMember(ctx, "user_1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, err := repo.GetSchedule(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, got[0].PaidDate)
	assert.WithinDuration(t, base.AddDate(0, 1, 0), *got[0].PaidDate, time.Second)
}

func TestLoanRepository_RecordPayment_RollsBackOnLedgerFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newActiveLoan(t, repo, "user_1")
	paidAt := base.AddDate(0, 1, 0)

	taken := repaymentEntry("user_1", loan.RepaymentSchedule[0], paidAt)
	_, err := db.NamedExec(`INSERT INTO transactions (id, member_id, type, amount, transaction_date, description, reference, status)
		VALUES (:id, :member_id, :type, :amount, :transaction_date, :description, :reference, :status)`, taken)
	require.NoError(t, err)

	first := loan.RepaymentSchedule[0]
	first.MarkPaid(paidAt)
	duplicate := repaymentEntry("user_1", first, paidAt)
	duplicate.ID = taken.ID
	require.Error(t, repo.RecordPayment(ctx, loan, first, duplicate))

	got, err := repo.GetSchedule(ctx, loan.ID)
	require.NoError(t, err)
	assert.False(t, got[0].IsPaid)
	assert.Nil(t, got[0].PaidDate)
	assert.Equal(t, domain.RepaymentStatusUpcoming, got[0].Status)
}

func TestLoanRepository_RecordPayment_CompletesLoan(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newActiveLoan(t, repo, "user_1")
	for _, r := range loan.RepaymentSchedule[:11] {
		r.MarkPaid(r.DueDate)
		require.NoError(t, repo.RecordPayment(ctx, loan, r, repaymentEntry("user_1", r, r.DueDate)))
	}

	last := loan.RepaymentSchedule[11]
	last.MarkPaid(last.DueDate)
	require.NoError(t, loan.Complete(last.DueDate))
	require.NoError(t, repo.RecordPayment(ctx, loan, last, repaymentEntry("user_1", last, last.DueDate)))

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusCompleted, got.Status)
	assert.True(t, got.AllPaid())
}

func TestLoanRepository_UpdateRepaymentStatuses_KeepsConcurrentPayment(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newActiveLoan(t, repo, "user_1")

	// the refresh job reads the active loans
	snapshot, err := repo.ListByStatus(ctx, domain.LoanStatusActive)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	// the borrower pays installment 1 before the job writes back
	paidAt := time.Date(2023, 4, 19, 0, 0, 0, 0, time.UTC)
	loan.RepaymentSchedule[0].MarkPaid(paidAt)
	require.NoError(t, repo.RecordPayment(ctx, loan, loan.RepaymentSchedule[0], repaymentEntry("user_1", loan.RepaymentSchedule[0], paidAt)))

	stale := snapshot[0].RepaymentSchedule
	loancalc.ClassifyAll(stale, time.Date(2023, 4, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, domain.RepaymentStatusOverdue, stale[0].Status)

	updated, err := repo.UpdateRepaymentStatuses(ctx, stale[:3])
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	got, err := repo.GetSchedule(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, got[0].IsPaid)
	assert.Equal(t, domain.RepaymentStatusPaid, got[0].Status)
	require.NotNil(t, got[0].PaidDate)
	assert.Equal(t, domain.RepaymentStatusOverdue, got[1].Status)
	assert.Equal(t, domain.RepaymentStatusOverdue, got[2].Status)
	assert.Equal(t, domain.RepaymentStatusUpcoming, got[3].Status)
}

func TestLoanRepository_RespondGuarantor_StaleSnapshots(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newPendingLoan("user_1", base)
	require.NoError(t, repo.Create(ctx, loan))

	// both guarantors open the request before either answers
	a, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)

	settle := func(l *domain.Loan) repository.SettleFunc {
		return func(current []*domain.Guarantor) (*domain.Loan, error) {
			if !domain.GuarantorsResolved(current) {
				return nil, nil
			}
			l.Guarantors = current
			return l, l.Approve(base.AddDate(0, 0, 1))
		}
	}

	require.NoError(t, a.Guarantors[0].Respond(true, base.AddDate(0, 0, 1)))
	require.NoError(t, repo.RespondGuarantor(ctx, a.Guarantors[0], settle(a)))
	assert.Equal(t, domain.LoanStatusPending, a.Status)

	// b still shows the first guarantor as pending
	staleFirst := b.Guarantors[0]
	assert.Equal(t, domain.GuarantorStatusPending, staleFirst.Status)
	require.NoError(t, b.Guarantors[1].Respond(true, base.AddDate(0, 0, 1)))
	require.NoError(t, repo.RespondGuarantor(ctx, b.Guarantors[1], settle(b)))
	assert.Equal(t, domain.LoanStatusApproved, b.Status)

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusApproved, got.Status)
	require.NotNil(t, got.ApprovalDate)

	// a second answer from the stale snapshot is refused
	require.NoError(t, staleFirst.Respond(false, base.AddDate(0, 0, 2)))
	err = repo.RespondGuarantor(ctx, staleFirst, settle(b))
	assert.ErrorIs(t, err, repository.ErrStaleRow)
}

func TestLoanRepository_RespondGuarantor_SettleFailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newPendingLoan("user_1", base)
	require.NoError(t, repo.Create(ctx, loan))

	require.NoError(t, loan.Guarantors[0].Respond(true, base))
	err := repo.RespondGuarantor(ctx, loan.Guarantors[0], func([]*domain.Guarantor) (*domain.Loan, error) {
		return nil, errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GuarantorStatusPending, got.Guarantors[0].Status)
	assert.Nil(t, got.Guarantors[0].RespondedAt)
}

func TestLoanRepository_UpdateMissingRows(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	loan := newPendingLoan("user_1", base)
	assert.True(t, errors.Is(repo.Update(ctx, loan), sql.ErrNoRows))

	ghost := &domain.Repayment{ID: uuid.New(), Status: domain.RepaymentStatusOverdue}
	updated, err := repo.UpdateRepaymentStatuses(ctx, []*domain.Repayment{ghost})
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestLoanRepository_ListByMemberAndStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewLoanRepository(db)
	ctx := context.Background()

	older := newPendingLoan("user_1", base)
	newer := newPendingLoan("user_1", base.AddDate(0, 1, 0))
	other := newPendingLoan("user_9", base)
	for _, loan := range []*domain.Loan{older, newer, other} {
		require.NoError(t, repo.Create(ctx, loan))
	}

	newer.Status = domain.LoanStatusRejected
	newer.UpdatedAt = base.AddDate(0, 1, 1)
	require.NoError(t, repo.Update(ctx, newer))

	loans, err := repo.ListByMember(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, newer.ID, loans[0].ID)
	assert.Equal(t, older.ID, loans[1].ID)
	assert.Len(t, loans[0].Guarantors, 2)
	assert.Len(t, loans[1].Guarantors, 2)

	pending, err := repo.ListByStatus(ctx, domain.LoanStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	none, err := repo.ListByMember(ctx, "user_404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTransactionRepository(db)
	ctx := context.Background()

	insert := func(txn *domain.Transaction) {
		_, err := db.NamedExec(`INSERT INTO transactions (id, member_id, type, amount, transaction_date, description, reference, status)
			VALUES (:id, :member_id, :type, :amount, :transaction_date, :description, :reference, :status)`, txn)
		require.NoError(t, err)
	}

	for i, kind := range []string{domain.TransactionTypeDeposit, domain.TransactionTypeDeposit, domain.TransactionTypeDividend} {
		insert(&domain.Transaction{
			ID:        uuid.New(),
			MemberID:  "user_1",
			Type:      kind,
			Amount:    decimal.NewFromInt(15000),
			Date:      base.AddDate(0, i, 0),
			Reference: "DEP-" + string(rune('A'+i)),
			Status:    domain.TransactionStatusCompleted,
		})
	}
	insert(&domain.Transaction{
		ID: uuid.New(), MemberID: "user_2", Type: domain.TransactionTypeDeposit,
		Amount: decimal.NewFromInt(1), Date: base, Status: domain.TransactionStatusCompleted,
	})

	transactions, err := repo.ListByMember(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, transactions, 3)
	assert.Equal(t, domain.TransactionTypeDividend, transactions[0].Type)
	assert.True(t, transactions[0].Date.After(transactions[1].Date))
	assert.True(t, transactions[2].Amount.Equal(decimal.NewFromInt(15000)))
}

func TestMemberRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewMemberRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO members (id, name, email, membership_number, phone_number, date_joined) VALUES (?, ?, ?, ?, ?, ?)`,
		"user_1", "John Doe", "john@example.com", "UU-001", "+254700000001", base)
	require.NoError(t, err)

	member, err := repo.GetByID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", member.Name)
	assert.Equal(t, "john@example.com", member.Email)

	_, err = repo.GetByID(ctx, "user_404")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	expired := base.AddDate(0, 0, -1)
	_, err = db.Exec(`INSERT INTO announcements (id, title, content, category, is_important, author, published_date, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New(), "AGM", "Annual general meeting", domain.AnnouncementCategoryEvent, true, "Secretary", base, nil)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO announcements (id, title, content, category, is_important, author, published_date, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New(), "Old notice", "Expired", domain.AnnouncementCategoryGeneral, false, "Secretary", base.AddDate(0, 0, -30), expired)
	require.NoError(t, err)

	announcements, err := repo.ListAnnouncements(ctx)
	require.NoError(t, err)
	require.Len(t, announcements, 2)
	assert.Equal(t, "AGM", announcements[0].Title)
	assert.True(t, announcements[0].IsImportant)
	assert.Nil(t, announcements[0].ExpiresAt)
	require.NotNil(t, announcements[1].ExpiresAt)

	for _, q := range []struct{ year, quarter int }{{2023, 2}, {2022, 4}, {2023, 1}} {
		_, err = db.Exec(`INSERT INTO performance_snapshots (id, year, quarter, total_assets, total_liabilities, total_equity, total_revenue, total_expenses, net_income, growth_percent, new_members, new_loans) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New(), q.year, q.quarter, decimal.NewFromInt(1000000), decimal.NewFromInt(400000), decimal.NewFromInt(600000),
			decimal.NewFromInt(90000), decimal.NewFromInt(60000), decimal.NewFromInt(30000), decimal.RequireFromString("3.5"), 12, 7)
		require.NoError(t, err)
	}

	snapshots, err := repo.ListPerformance(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, 2022, snapshots[0].Year)
	assert.Equal(t, 1, snapshots[1].Quarter)
	assert.Equal(t, 2, snapshots[2].Quarter)
	assert.True(t, snapshots[2].GrowthPercent.Equal(decimal.RequireFromString("3.5")))
}
