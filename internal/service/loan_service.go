package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/segyhp/sacco-portal/internal/cache"
	"github.com/segyhp/sacco-portal/internal/config"
	"github.com/segyhp/sacco-portal/internal/domain"
	"github.com/segyhp/sacco-portal/internal/loancalc"
	"github.com/segyhp/sacco-portal/internal/metrics"
	"github.com/segyhp/sacco-portal/internal/notify"
	"github.com/segyhp/sacco-portal/internal/repository"
	"github.com/segyhp/sacco-portal/internal/tracing"
	customError "github.com/segyhp/sacco-portal/pkg/errors"
	"github.com/segyhp/sacco-portal/pkg/utils"
)

type LoanService struct {
	LoanRepo   repository.LoanRepository
	MemberRepo repository.MemberRepository
	cache      cache.Cache
	notifier   notify.Notifier
	config     *config.Config
	logger     logrus.FieldLogger
	now        func() time.Time
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	memberRepo repository.MemberRepository,
	cache cache.Cache,
	notifier notify.Notifier,
	config *config.Config,
	logger logrus.FieldLogger,
) *LoanService {
	return &LoanService{
		LoanRepo:   loanRepo,
		MemberRepo: memberRepo,
		cache:      cache,
		notifier:   notifier,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// RefreshReport summarises one status refresh run
type RefreshReport struct {
	LoansScanned      int `json:"loans_scanned"`
	RepaymentsUpdated int `json:"repayments_updated"`
	LoansDefaulted    int `json:"loans_defaulted"`
	LoansCompleted    int `json:"loans_completed"`
}

// ApplyForLoan records a pending application and asks each guarantor to respond
func (s *LoanService) ApplyForLoan(ctx context.Context, memberID string, request *domain.ApplyLoanRequest) (loan *domain.Loan, err error) {
	ctx, span := tracing.Start(ctx, "LoanService.ApplyForLoan", trace.WithAttributes(attribute.String("member_id", memberID)))
	defer func() {
		metrics.LoanEvents.WithLabelValues("apply", metrics.Outcome(err)).Inc()
		tracing.End(span, err)
	}()

	rate := s.config.GetDefaultInterestRate()
	if request.InterestRate != nil {
		rate = *request.InterestRate
	}
	term := request.DurationMonths
	if term == 0 {
		term = s.config.Business.DefaultLoanMonths
	}

	// the schedule is generated on activation, but bad terms are refused up front
	params := loancalc.ScheduleParams{Principal: request.Amount, AnnualRatePercent: rate, TermMonths: term}
	if err = params.Validate(); err != nil {
		return nil, err
	}
	if err = validateGuarantors(memberID, request.Guarantors); err != nil {
		return nil, err
	}

	now := s.now()
	loan = &domain.Loan{
		ID:              uuid.New(),
		MemberID:        memberID,
		Amount:          request.Amount,
		Purpose:         request.Purpose,
		InterestRate:    rate,
		DurationMonths:  term,
		Status:          domain.LoanStatusPending,
		ApplicationDate: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, g := range request.Guarantors {
		loan.Guarantors = append(loan.Guarantors, &domain.Guarantor{
			ID:              uuid.New(),
			LoanID:          loan.ID,
			MemberID:        g.MemberID,
			Name:            g.Name,
			MembershipNo:    g.MembershipNo,
			GuaranteeAmount: g.GuaranteeAmount,
			Status:          domain.GuarantorStatusPending,
			RequestedAt:     now,
		})
	}
	for _, d := range request.Documents {
		loan.Documents = append(loan.Documents, &domain.Document{
			ID:         uuid.New(),
			LoanID:     loan.ID,
			Name:       d.Name,
			URL:        d.URL,
			Type:       d.Type,
			UploadDate: now,
		})
	}

	if err = s.LoanRepo.Create(ctx, loan); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidate(ctx, memberID)
	s.logger.WithFields(logrus.Fields{
		"loan_id":    loan.ID,
		"member_id":  memberID,
		"amount":     loan.Amount.String(),
		"guarantors": len(loan.Guarantors),
	}).Info("loan application received")

	return loan, nil
}

func validateGuarantors(applicantID string, guarantors []domain.GuarantorRequest) error {
	if len(guarantors) == 0 {
		return customError.WrapInvalidLoanParameters("at least one guarantor is required")
	}

	seen := make(map[string]bool, len(guarantors))
	for _, g := range guarantors {
		if g.MemberID == applicantID {
			return customError.WrapInvalidLoanParameters("applicant cannot guarantee their own loan")
		}
		if seen[g.MemberID] {
			return customError.WrapInvalidLoanParameters(fmt.Sprintf("guarantor %s listed twice", g.MemberID))
		}
		if !g.GuaranteeAmount.IsPositive() {
			return customError.WrapInvalidLoanParameters(fmt.Sprintf("guarantee amount for %s must be positive", g.MemberID))
		}
		seen[g.MemberID] = true
	}
	return nil
}

// RespondToGuarantee records a guarantor's decision. One rejection rejects the
// loan; the last approval approves it.
func (s *LoanService) RespondToGuarantee(ctx context.Context, loanID uuid.UUID, guarantorMemberID string, approve bool) (loan *domain.Loan, err error) {
	ctx, span := tracing.Start(ctx, "LoanService.RespondToGuarantee", trace.WithAttributes(attribute.String("loan_id", loanID.String())))
	defer func() {
		metrics.LoanEvents.WithLabelValues("guarantee", metrics.Outcome(err)).Inc()
		tracing.End(span, err)
	}()

	loan, err = s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	var guarantor *domain.Guarantor
	for _, g := range loan.Guarantors {
		if g.MemberID == guarantorMemberID {
			guarantor = g
			break
		}
	}
	if guarantor == nil {
		return nil, customError.WrapGuarantorNotFound(loanID.String(), guarantorMemberID)
	}

	if loan.Status != domain.LoanStatusPending {
		target := domain.LoanStatusRejected
		if approve {
			target = domain.LoanStatusApproved
		}
		return nil, customError.WrapInvalidStateTransition("loan", loan.Status, target)
	}

	now := s.now()
	if err = guarantor.Respond(approve, now); err != nil {
		return nil, err
	}

	var settleErr error
	err = s.LoanRepo.RespondGuarantor(ctx, guarantor, func(current []*domain.Guarantor) (*domain.Loan, error) {
		loan.Guarantors = current
		switch {
		case domain.AnyGuarantorRejected(current):
			settleErr = loan.Reject(now)
		case domain.GuarantorsResolved(current):
			settleErr = loan.Approve(now)
		default:
			return nil, nil
		}
		if settleErr != nil {
			return nil, settleErr
		}
		return loan, nil
	})
	switch {
	case settleErr != nil:
		return nil, settleErr
	case errors.Is(err, repository.ErrStaleRow):
		return nil, customError.WrapInvalidStateTransition("guarantor", "responded", guarantor.Status)
	case err != nil:
		return nil, customError.WrapDatabaseError(err)
	}

	if loan.Status == domain.LoanStatusPending {
		return loan, nil
	}

	s.invalidate(ctx, loan.MemberID)
	s.logger.WithFields(logrus.Fields{"loan_id": loan.ID, "status": loan.Status}).Info("loan guarantees resolved")

	return loan, nil
}

// ActivateLoan generates the repayment schedule of the member's approved loan and starts it today
func (s *LoanService) ActivateLoan(ctx context.Context, memberID string, loanID uuid.UUID) (view *domain.LoanView, err error) {
	ctx, span := tracing.Start(ctx, "LoanService.ActivateLoan", trace.WithAttributes(attribute.String("loan_id", loanID.String())))
	defer func() {
		metrics.LoanEvents.WithLabelValues("activate", metrics.Outcome(err)).Inc()
		tracing.End(span, err)
	}()

	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.MemberID != memberID {
		return nil, customError.WrapForbidden(loanID.String())
	}
	if !domain.CanTransition(loan.Status, domain.LoanStatusActive) {
		return nil, customError.WrapInvalidStateTransition("loan", loan.Status, domain.LoanStatusActive)
	}

	now := s.now()
	start := utils.StartOfDay(now)
	schedule, err := loancalc.GenerateSchedule(loancalc.ScheduleParams{
		LoanID:            loan.ID,
		Principal:         loan.Amount,
		AnnualRatePercent: loan.InterestRate,
		TermMonths:        loan.DurationMonths,
		StartDate:         start,
	})
	if err != nil {
		return nil, err
	}
	for _, r := range schedule {
		r.CreatedAt = now
	}

	if err = loan.Activate(schedule, start); err != nil {
		return nil, err
	}
	loan.UpdatedAt = now

	if err = s.LoanRepo.SaveSchedule(ctx, loan); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	metrics.SchedulesGenerated.Inc()

	s.invalidate(ctx, loan.MemberID)
	s.logger.WithFields(logrus.Fields{
		"loan_id":      loan.ID,
		"installments": len(schedule),
		"installment":  schedule[0].Amount.String(),
	}).Info("loan activated")

	return loancalc.BuildView(loan, now), nil
}

// RecordRepayment marks one installment paid, posts it to the member ledger and
// completes the loan once nothing is left unpaid.
func (s *LoanService) RecordRepayment(ctx context.Context, memberID string, loanID, repaymentID uuid.UUID, paidAt time.Time) (view *domain.LoanView, err error) {
	ctx, span := tracing.Start(ctx, "LoanService.RecordRepayment", trace.WithAttributes(
		attribute.String("loan_id", loanID.String()),
		attribute.String("repayment_id", repaymentID.String()),
	))
	defer func() {
		metrics.LoanEvents.WithLabelValues("repay", metrics.Outcome(err)).Inc()
		tracing.End(span, err)
	}()

	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.MemberID != memberID {
		return nil, customError.WrapForbidden(loanID.String())
	}
	if loan.Status != domain.LoanStatusActive {
		return nil, customError.WrapLoanNotActive(loanID.String(), loan.Status)
	}

	var repayment *domain.Repayment
	for _, r := range loan.RepaymentSchedule {
		if r.ID == repaymentID {
			repayment = r
			break
		}
	}
	if repayment == nil {
		return nil, customError.WrapRepaymentNotFound(repaymentID.String())
	}
	if repayment.IsPaid {
		return nil, customError.WrapRepaymentAlreadyPaid(repaymentID.String())
	}

	repayment.MarkPaid(paidAt)
	txn := &domain.Transaction{
		ID:          uuid.New(),
		MemberID:    memberID,
		Type:        domain.TransactionTypeLoanRepayment,
		Amount:      repayment.Amount,
		Date:        paidAt,
		Description: fmt.Sprintf("Loan repayment, installment %d", repayment.InstallmentNumber),
		Reference:   fmt.Sprintf("LR-%s-%02d", loanID.String()[:8], repayment.InstallmentNumber),
		Status:      domain.TransactionStatusCompleted,
	}

	now := s.now()
	if loan.AllPaid() {
		if err = loan.Complete(now); err != nil {
			return nil, err
		}
	}

	err = s.LoanRepo.RecordPayment(ctx, loan, repayment, txn)
	if errors.Is(err, repository.ErrStaleRow) {
		return nil, customError.WrapRepaymentAlreadyPaid(repaymentID.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if loan.Status == domain.LoanStatusCompleted {
		s.logger.WithField("loan_id", loan.ID).Info("loan fully repaid")
	}

	s.invalidate(ctx, memberID)
	return loancalc.BuildView(loan, now), nil
}

// GetLoan returns one loan with its schedule classified at the current time.
// The borrower and the loan's guarantors may read it.
func (s *LoanService) GetLoan(ctx context.Context, memberID string, loanID uuid.UUID) (view *domain.LoanView, err error) {
	ctx, span := tracing.Start(ctx, "LoanService.GetLoan", trace.WithAttributes(attribute.String("loan_id", loanID.String())))
	defer func() { tracing.End(span, err) }()

	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !canView(loan, memberID) {
		return nil, customError.WrapForbidden(loanID.String())
	}

	return loancalc.BuildView(loan, s.now()), nil
}

func canView(loan *domain.Loan, memberID string) bool {
	if loan.MemberID == memberID {
		return true
	}
	for _, g := range loan.Guarantors {
		if g.MemberID == memberID {
			return true
		}
	}
	return false
}

// ListLoans returns every loan of a member with portfolio totals
func (s *LoanService) ListLoans(ctx context.Context, memberID string) (result *domain.LoanListResponse, err error) {
	ctx, span := tracing.Start(ctx, "LoanService.ListLoans", trace.WithAttributes(attribute.String("member_id", memberID)))
	defer func() { tracing.End(span, err) }()

	loans, err := s.LoanRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	now := s.now()
	views := make([]*domain.LoanView, 0, len(loans))
	for _, loan := range loans {
		views = append(views, loancalc.BuildView(loan, now))
	}

	return &domain.LoanListResponse{
		Loans:  views,
		Totals: loancalc.PortfolioTotals(loans),
	}, nil
}

// RefreshStatuses persists the derived status of every active installment,
// completes loans with nothing left unpaid and defaults loans whose run of
// missed installments reaches the threshold.
// A failing loan is logged and skipped; the failures are returned together.
func (s *LoanService) RefreshStatuses(ctx context.Context) (report RefreshReport, err error) {
	ctx, span := tracing.Start(ctx, "LoanService.RefreshStatuses")
	defer func() { tracing.End(span, err) }()

	loans, err := s.LoanRepo.ListByStatus(ctx, domain.LoanStatusActive)
	if err != nil {
		return report, customError.WrapDatabaseError(err)
	}

	now := s.now()
	threshold := s.config.Business.DelinquencyThreshold
	var failures []error

	for _, loan := range loans {
		report.LoansScanned++
		log := s.logger.WithField("loan_id", loan.ID)

		before := make([]string, len(loan.RepaymentSchedule))
		for i, r := range loan.RepaymentSchedule {
			before[i] = r.Status
		}
		loancalc.ClassifyAll(loan.RepaymentSchedule, now)

		var changed []*domain.Repayment
		for i, r := range loan.RepaymentSchedule {
			if r.Status != before[i] {
				changed = append(changed, r)
			}
		}
		updated := 0
		if len(changed) > 0 {
			n, err := s.LoanRepo.UpdateRepaymentStatuses(ctx, changed)
			if err != nil {
				log.WithError(err).Error("failed to persist repayment statuses")
				failures = append(failures, fmt.Errorf("loan %s: %w", loan.ID, err))
				continue
			}
			updated = n
			report.RepaymentsUpdated += n
			metrics.RepaymentStatusChanges.Add(float64(n))
		}
		// a payment landed after the loan was read; the next run sees it
		if updated < len(changed) {
			log.WithField("skipped", len(changed)-updated).Info("installments paid during refresh left untouched")
			if updated > 0 {
				s.invalidate(ctx, loan.MemberID)
			}
			continue
		}

		if loan.AllPaid() {
			if err := loan.Complete(now); err != nil {
				failures = append(failures, err)
				continue
			}
			if err := s.LoanRepo.Update(ctx, loan); err != nil {
				log.WithError(err).Error("failed to complete repaid loan")
				failures = append(failures, fmt.Errorf("loan %s: %w", loan.ID, err))
				continue
			}
			report.LoansCompleted++
			s.invalidate(ctx, loan.MemberID)
			log.Info("repaid loan completed")
			continue
		}

		missed := loancalc.ConsecutiveMissed(loan.RepaymentSchedule, now)
		if missed >= threshold {
			if err := loan.MarkDefaulted(now); err != nil {
				failures = append(failures, err)
				continue
			}
			if err := s.LoanRepo.Update(ctx, loan); err != nil {
				log.WithError(err).Error("failed to mark loan defaulted")
				failures = append(failures, fmt.Errorf("loan %s: %w", loan.ID, err))
				continue
			}
			report.LoansDefaulted++
			metrics.LoanEvents.WithLabelValues("default", metrics.StatusOK).Inc()
			log.WithField("missed", missed).Warn("loan defaulted")
		}

		if updated > 0 || loan.Status == domain.LoanStatusDefaulted {
			s.invalidate(ctx, loan.MemberID)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"loans":     report.LoansScanned,
		"updated":   report.RepaymentsUpdated,
		"defaulted": report.LoansDefaulted,
		"completed": report.LoansCompleted,
	}).Info("repayment statuses refreshed")

	if len(failures) > 0 {
		return report, customError.WrapDatabaseError(errors.Join(failures...))
	}
	return report, nil
}

// SendDueReminders notifies borrowers about every unpaid installment that is due or overdue.
// It returns how many reminders were delivered.
func (s *LoanService) SendDueReminders(ctx context.Context) (sent int, err error) {
	ctx, span := tracing.Start(ctx, "LoanService.SendDueReminders")
	defer func() { tracing.End(span, err) }()

	loans, err := s.LoanRepo.ListByStatus(ctx, domain.LoanStatusActive)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	now := s.now()
	members := make(map[string]*domain.Member)
	var failures []error

	for _, loan := range loans {
		loancalc.ClassifyAll(loan.RepaymentSchedule, now)

		for _, r := range loan.RepaymentSchedule {
			if r.Status != domain.RepaymentStatusDue && r.Status != domain.RepaymentStatusOverdue {
				continue
			}

			member, ok := members[loan.MemberID]
			if !ok {
				var lookupErr error
				member, lookupErr = s.MemberRepo.GetByID(ctx, loan.MemberID)
				if errors.Is(lookupErr, sql.ErrNoRows) {
					s.logger.WithField("member_id", loan.MemberID).Warn("no member profile, reminder skipped")
					member = nil
				} else if lookupErr != nil {
					return sent, customError.WrapDatabaseError(lookupErr)
				}
				members[loan.MemberID] = member
			}
			if member == nil {
				continue
			}

			sendErr := s.notifier.SendRepaymentReminder(notify.Reminder{Member: member, LoanID: loan.ID.String(), Repayment: r})
			metrics.RemindersSent.WithLabelValues(metrics.Outcome(sendErr)).Inc()
			if sendErr != nil {
				failures = append(failures, sendErr)
				continue
			}
			sent++
		}
	}

	s.logger.WithFields(logrus.Fields{"sent": sent, "failed": len(failures)}).Info("repayment reminders processed")

	if len(failures) > 0 {
		return sent, customError.WrapNotificationError(errors.Join(failures...))
	}
	return sent, nil
}

func (s *LoanService) getLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanID.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

// invalidate drops cached summaries. Failures are logged, not returned.
func (s *LoanService) invalidate(ctx context.Context, memberID string) {
	if err := s.cache.Delete(ctx, cache.MemberKeys(memberID)...); err != nil {
		s.logger.WithError(err).WithField("member_id", memberID).Warn("failed to invalidate member cache")
	}
}
