package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/sacco-portal/internal/domain"
)

type memberRepository struct {
	db *sqlx.DB
}

func NewMemberRepository(db *sqlx.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	query := r.db.Rebind(`
		SELECT id, name, email, membership_number, phone_number, date_joined
		FROM members
		WHERE id = ?
	`)

	var member domain.Member
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}

	return &member, nil
}

// ListAnnouncements returns every announcement, expired ones included.
func (r *memberRepository) ListAnnouncements(ctx context.Context) ([]*domain.Announcement, error) {
	var announcements []*domain.Announcement
	err := r.db.SelectContext(ctx, &announcements, `
		SELECT id, title, content, category, is_important, author, published_date, expires_at
		FROM announcements
		ORDER BY published_date DESC
	`)
	if err != nil {
		return nil, err
	}

	return announcements, nil
}

func (r *memberRepository) ListPerformance(ctx context.Context) ([]*domain.PerformanceSnapshot, error) {
	var snapshots []*domain.PerformanceSnapshot
	err := r.db.SelectContext(ctx, &snapshots, `
		SELECT id, year, quarter, total_assets, total_liabilities, total_equity, total_revenue,
		       total_expenses, net_income, growth_percent, new_members, new_loans
		FROM performance_snapshots
		ORDER BY year, quarter
	`)
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}
