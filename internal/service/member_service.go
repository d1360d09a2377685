package service

import (
	"context"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/segyhp/sacco-portal/internal/cache"
	"github.com/segyhp/sacco-portal/internal/config"
	"github.com/segyhp/sacco-portal/internal/domain"
	"github.com/segyhp/sacco-portal/internal/loancalc"
	"github.com/segyhp/sacco-portal/internal/metrics"
	"github.com/segyhp/sacco-portal/internal/repository"
	"github.com/segyhp/sacco-portal/internal/tracing"
	customError "github.com/segyhp/sacco-portal/pkg/errors"
)

const recentTransactions = 5

type MemberService struct {
	LoanRepo        repository.LoanRepository
	TransactionRepo repository.TransactionRepository
	MemberRepo      repository.MemberRepository
	cache           cache.Cache
	config          *config.Config
	logger          logrus.FieldLogger
	now             func() time.Time
}

func NewMemberService(
	loanRepo repository.LoanRepository,
	transactionRepo repository.TransactionRepository,
	memberRepo repository.MemberRepository,
	cache cache.Cache,
	config *config.Config,
	logger logrus.FieldLogger,
) *MemberService {
	return &MemberService{
		LoanRepo:        loanRepo,
		TransactionRepo: transactionRepo,
		MemberRepo:      memberRepo,
		cache:           cache,
		config:          config,
		logger:          logger,
		now:             time.Now,
	}
}

// GetDashboard aggregates the member's ledger and loans for the dashboard cards.
// Results are cached until a loan operation invalidates them or the TTL runs out.
func (s *MemberService) GetDashboard(ctx context.Context, memberID string) (dashboard *domain.DashboardResponse, err error) {
	ctx, span := tracing.Start(ctx, "MemberService.GetDashboard", trace.WithAttributes(attribute.String("member_id", memberID)))
	defer func() { tracing.End(span, err) }()

	key := cache.DashboardKey(memberID)
	var cached domain.DashboardResponse
	if found, cacheErr := s.cache.Get(ctx, key, &cached); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("key", key).Warn("dashboard cache read failed")
	} else if found {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		// installment status follows the clock, so cached views are rebuilt
		now := s.now()
		for i, view := range cached.ActiveLoans {
			if view != nil && view.Loan != nil {
				cached.ActiveLoans[i] = loancalc.BuildView(view.Loan, now)
			}
		}
		return &cached, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	transactions, err := s.TransactionRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	loans, err := s.LoanRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	now := s.now()
	summary := loancalc.SummarizeTransactions(transactions)
	totals := loancalc.PortfolioTotals(loans)

	dashboard = &domain.DashboardResponse{
		MemberID:         memberID,
		TotalDeposits:    summary.TotalDeposits,
		TotalDividends:   summary.TotalDividends,
		TotalBorrowed:    totals.TotalBorrowed,
		OutstandingLoans: totals.Active,
		ActiveLoans:      []*domain.LoanView{},
		GeneratedAt:      now,
	}
	for _, loan := range loans {
		if loan.Status == domain.LoanStatusActive {
			dashboard.ActiveLoans = append(dashboard.ActiveLoans, loancalc.BuildView(loan, now))
		}
	}

	sortNewestFirst(transactions)
	dashboard.RecentTransactions = append([]*domain.Transaction{}, transactions[:min(recentTransactions, len(transactions))]...)

	if err := s.cache.Set(ctx, key, dashboard, s.config.GetCacheTTL()); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("dashboard cache write failed")
	}

	return dashboard, nil
}

// GetDeposits returns the member's ledger newest first with its summary
func (s *MemberService) GetDeposits(ctx context.Context, memberID string) (result *domain.DepositsResponse, err error) {
	ctx, span := tracing.Start(ctx, "MemberService.GetDeposits", trace.WithAttributes(attribute.String("member_id", memberID)))
	defer func() { tracing.End(span, err) }()

	key := cache.DepositsKey(memberID)
	var cached domain.DepositsResponse
	if found, cacheErr := s.cache.Get(ctx, key, &cached); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("key", key).Warn("deposits cache read failed")
	} else if found {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return &cached, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	transactions, err := s.TransactionRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	sortNewestFirst(transactions)

	result = &domain.DepositsResponse{
		Transactions: transactions,
		Summary:      loancalc.SummarizeTransactions(transactions),
	}

	if err := s.cache.Set(ctx, key, result, s.config.GetCacheTTL()); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("deposits cache write failed")
	}

	return result, nil
}

// ListAnnouncements returns announcements that have not expired, important
// ones first and newest first within each group. A non-positive limit returns all.
func (s *MemberService) ListAnnouncements(ctx context.Context, limit int) (announcements []*domain.Announcement, err error) {
	ctx, span := tracing.Start(ctx, "MemberService.ListAnnouncements")
	defer func() { tracing.End(span, err) }()

	all, err := s.MemberRepo.ListAnnouncements(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	now := s.now()
	announcements = make([]*domain.Announcement, 0, len(all))
	for _, a := range all {
		if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
			continue
		}
		announcements = append(announcements, a)
	}

	slices.SortStableFunc(announcements, func(a, b *domain.Announcement) int {
		if a.IsImportant != b.IsImportant {
			if a.IsImportant {
				return -1
			}
			return 1
		}
		return b.PublishedDate.Compare(a.PublishedDate)
	})

	if limit > 0 && len(announcements) > limit {
		announcements = announcements[:limit]
	}
	return announcements, nil
}

// GetPerformance returns quarterly SACCO performance, oldest quarter first
func (s *MemberService) GetPerformance(ctx context.Context) (snapshots []*domain.PerformanceSnapshot, err error) {
	ctx, span := tracing.Start(ctx, "MemberService.GetPerformance")
	defer func() { tracing.End(span, err) }()

	snapshots, err = s.MemberRepo.ListPerformance(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	slices.SortStableFunc(snapshots, func(a, b *domain.PerformanceSnapshot) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return a.Quarter - b.Quarter
	})
	if snapshots == nil {
		snapshots = []*domain.PerformanceSnapshot{}
	}
	return snapshots, nil
}

func sortNewestFirst(transactions []*domain.Transaction) {
	slices.SortStableFunc(transactions, func(a, b *domain.Transaction) int {
		return b.Date.Compare(a.Date)
	})
}
