package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/sacco-portal/internal/domain"
)

const (
	loanColumns      = `id, member_id, amount, purpose, interest_rate, duration_months, start_date, end_date, status, application_date, approval_date, created_at, updated_at`
	repaymentColumns = `id, loan_id, installment_number, due_date, amount, principal, interest, is_paid, paid_date, status, created_at`
	guarantorColumns = `id, loan_id, member_id, name, membership_number, guarantee_amount, status, requested_at, responded_at`
	documentColumns  = `id, loan_id, name, url, type, upload_date`
)

// ErrStaleRow is returned when a guarded update finds the row already changed
// by another writer.
var ErrStaleRow = errors.New("row changed since it was read")

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO loans (`+loanColumns+`)
		VALUES (:id, :member_id, :amount, :purpose, :interest_rate, :duration_months, :start_date, :end_date,
		        :status, :application_date, :approval_date, :created_at, :updated_at)
	`, loan)
	if err != nil {
		return err
	}

	for _, g := range loan.Guarantors {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO guarantors (`+guarantorColumns+`)
			VALUES (:id, :loan_id, :member_id, :name, :membership_number, :guarantee_amount, :status, :requested_at, :responded_at)
		`, g)
		if err != nil {
			return err
		}
	}

	for _, d := range loan.Documents {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO loan_documents (`+documentColumns+`)
			VALUES (:id, :loan_id, :name, :url, :type, :upload_date)
		`, d)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := r.db.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE id = ?`)

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, id); err != nil {
		return nil, err
	}

	if err := r.attach(ctx, []*domain.Loan{&loan}); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + `
		FROM loans
		WHERE member_id = ?
		ORDER BY application_date DESC
	`)

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query, memberID); err != nil {
		return nil, err
	}

	return loans, r.attach(ctx, loans)
}

func (r *loanRepository) ListByStatus(ctx context.Context, status string) ([]*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT ` + loanColumns + `
		FROM loans
		WHERE status = ?
		ORDER BY application_date
	`)

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query, status); err != nil {
		return nil, err
	}

	return loans, r.attach(ctx, loans)
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	return updateLoan(ctx, r.db, loan)
}

func (r *loanRepository) SaveSchedule(ctx context.Context, loan *domain.Loan) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err = updateLoan(ctx, tx, loan); err != nil {
		return err
	}

	for _, repayment := range loan.RepaymentSchedule {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO repayments (`+repaymentColumns+`)
			VALUES (:id, :loan_id, :installment_number, :due_date, :amount, :principal, :interest,
			        :is_paid, :paid_date, :status, :created_at)
		`, repayment)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.Repayment, error) {
	query := r.db.Rebind(`
		SELECT ` + repaymentColumns + `
		FROM repayments
		WHERE loan_id = ?
		ORDER BY installment_number
	`)

	var repayments []*domain.Repayment
	if err := r.db.SelectContext(ctx, &repayments, query, loanID); err != nil {
		return nil, err
	}

	return repayments, nil
}

func (r *loanRepository) UpdateRepaymentStatuses(ctx context.Context, repayments []*domain.Repayment) (int, error) {
	query := r.db.Rebind(`
		UPDATE repayments
		SET status = ?
		WHERE id = ? AND is_paid = ?
	`)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	updated := 0
	for _, repayment := range repayments {
		res, err := tx.ExecContext(ctx, query, repayment.Status, repayment.ID, false)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		updated += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *loanRepository) RecordPayment(ctx context.Context, loan *domain.Loan, repayment *domain.Repayment, txn *domain.Transaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE repayments
		SET is_paid = ?, paid_date = ?, status = ?
		WHERE id = ? AND is_paid = ?
	`), repayment.IsPaid, repayment.PaidDate, repayment.Status, repayment.ID, false)
	if err != nil {
		return err
	}
	if err = expectRow(res); errors.Is(err, sql.ErrNoRows) {
		return ErrStaleRow
	} else if err != nil {
		return err
	}

	if err = insertTransaction(ctx, tx, txn); err != nil {
		return err
	}

	if loan.Status == domain.LoanStatusCompleted {
		if err = updateLoan(ctx, tx, loan); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) RespondGuarantor(ctx context.Context, guarantor *domain.Guarantor, settle SettleFunc) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// sqlite serializes writers on its own
	if r.db.DriverName() == "postgres" {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`SELECT id FROM loans WHERE id = ? FOR UPDATE`), guarantor.LoanID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE guarantors
		SET status = ?, responded_at = ?
		WHERE id = ? AND status = ?
	`), guarantor.Status, guarantor.RespondedAt, guarantor.ID, domain.GuarantorStatusPending)
	if err != nil {
		return err
	}
	if err = expectRow(res); errors.Is(err, sql.ErrNoRows) {
		return ErrStaleRow
	} else if err != nil {
		return err
	}

	var guarantors []*domain.Guarantor
	err = tx.SelectContext(ctx, &guarantors, tx.Rebind(`
		SELECT `+guarantorColumns+`
		FROM guarantors
		WHERE loan_id = ?
		ORDER BY requested_at, member_id
	`), guarantor.LoanID)
	if err != nil {
		return err
	}

	loan, err := settle(guarantors)
	if err != nil {
		return err
	}
	if loan != nil {
		if err = updateLoan(ctx, tx, loan); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// attach loads guarantors, documents and schedules for loans with one query per table.
func (r *loanRepository) attach(ctx context.Context, loans []*domain.Loan) error {
	if len(loans) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Loan, len(loans))
	ids := make([]string, 0, len(loans))
	for _, loan := range loans {
		byID[loan.ID] = loan
		ids = append(ids, loan.ID.String())
	}

	var guarantors []*domain.Guarantor
	if err := r.selectIn(ctx, &guarantors, `SELECT `+guarantorColumns+` FROM guarantors WHERE loan_id IN (?) ORDER BY requested_at, member_id`, ids); err != nil {
		return err
	}
	for _, g := range guarantors {
		if loan, ok := byID[g.LoanID]; ok {
			loan.Guarantors = append(loan.Guarantors, g)
		}
	}

	var documents []*domain.Document
	if err := r.selectIn(ctx, &documents, `SELECT `+documentColumns+` FROM loan_documents WHERE loan_id IN (?) ORDER BY upload_date`, ids); err != nil {
		return err
	}
	for _, d := range documents {
		if loan, ok := byID[d.LoanID]; ok {
			loan.Documents = append(loan.Documents, d)
		}
	}

	var repayments []*domain.Repayment
	if err := r.selectIn(ctx, &repayments, `SELECT `+repaymentColumns+` FROM repayments WHERE loan_id IN (?) ORDER BY loan_id, installment_number`, ids); err != nil {
		return err
	}
	for _, rep := range repayments {
		if loan, ok := byID[rep.LoanID]; ok {
			loan.RepaymentSchedule = append(loan.RepaymentSchedule, rep)
		}
	}

	return nil
}

func (r *loanRepository) selectIn(ctx context.Context, dest interface{}, query string, ids []string) error {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return r.db.SelectContext(ctx, dest, r.db.Rebind(query), args...)
}

func updateLoan(ctx context.Context, db sqlx.ExtContext, loan *domain.Loan) error {
	query := db.Rebind(`
		UPDATE loans
		SET status = ?, start_date = ?, end_date = ?, approval_date = ?, updated_at = ?
		WHERE id = ?
	`)

	res, err := db.ExecContext(ctx, query,
		loan.Status,
		loan.StartDate,
		loan.EndDate,
		loan.ApprovalDate,
		loan.UpdatedAt,
		loan.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// expectRow turns an update that matched nothing into sql.ErrNoRows.
func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
