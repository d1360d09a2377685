package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/sacco-portal/internal/domain"
)

const transactionColumns = `id, member_id, type, amount, transaction_date, description, reference, status`

type transactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// insertTransaction posts a ledger entry through db or an open transaction
func insertTransaction(ctx context.Context, db sqlx.ExtContext, txn *domain.Transaction) error {
	_, err := sqlx.NamedExecContext(ctx, db, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (:id, :member_id, :type, :amount, :transaction_date, :description, :reference, :status)
	`, txn)
	return err
}

func (r *transactionRepository) ListByMember(ctx context.Context, memberID string) ([]*domain.Transaction, error) {
	query := r.db.Rebind(`
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE member_id = ?
		ORDER BY transaction_date DESC
	`)

	var transactions []*domain.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, memberID); err != nil {
		return nil, err
	}

	return transactions, nil
}
