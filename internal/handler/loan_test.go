package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/sacco-portal/internal/domain"
	customError "github.com/segyhp/sacco-portal/pkg/errors"
)

func applyBody() map[string]interface{} {
	return map[string]interface{}{
		"amount":  500000,
		"purpose": "school fees",
		"guarantors": []map[string]interface{}{
			{"member_id": "user_2", "name": "Jane Smith", "guarantee_amount": 250000},
			{"member_id": "user_3", "name": "Peter Otieno", "guarantee_amount": 250000},
		},
	}
}

func TestLoanHandler_Apply(t *testing.T) {
	api := newTestAPI(t)
	loanID := uuid.New()

	api.loans.On("ApplyForLoan", mock.Anything, "user_1", mock.MatchedBy(func(req *domain.ApplyLoanRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(500000)) && len(req.Guarantors) == 2 && req.DurationMonths == 0
	})).Return(&domain.Loan{ID: loanID, MemberID: "user_1", Status: domain.LoanStatusPending}, nil).Once()

	rec := api.do(http.MethodPost, "/api/v1/loans", validToken, applyBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	var loan domain.Loan
	env := decode(t, rec, &loan)
	assert.True(t, env.Success)
	assert.Equal(t, loanID, loan.ID)
	assert.Equal(t, domain.LoanStatusPending, loan.Status)
	api.loans.AssertExpectations(t)
}

func TestLoanHandler_Apply_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(body map[string]interface{})
	}{
		{name: "zero amount", mutate: func(b map[string]interface{}) { b["amount"] = 0 }},
		{name: "negative amount", mutate: func(b map[string]interface{}) { b["amount"] = -100 }},
		{name: "missing purpose", mutate: func(b map[string]interface{}) { delete(b, "purpose") }},
		{name: "no guarantors", mutate: func(b map[string]interface{}) { b["guarantors"] = []interface{}{} }},
		{name: "negative duration", mutate: func(b map[string]interface{}) { b["duration_months"] = -6 }},
		{name: "guarantor without member", mutate: func(b map[string]interface{}) {
			b["guarantors"] = []map[string]interface{}{{"guarantee_amount": 1000}}
		}},
		{name: "document without url", mutate: func(b map[string]interface{}) {
			b["documents"] = []map[string]interface{}{{"name": "payslip.pdf"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			body := applyBody()
			tt.mutate(body)

			rec := api.do(http.MethodPost, "/api/v1/loans", validToken, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decode(t, rec, nil)
			assert.Equal(t, customError.ErrCodeInvalidLoanParameters, env.Code)
			api.loans.AssertNotCalled(t, "ApplyForLoan", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLoanHandler_Apply_MalformedBody(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/loans", validToken, `{"amount": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoanHandler_Apply_ServiceRejects(t *testing.T) {
	api := newTestAPI(t)
	api.loans.On("ApplyForLoan", mock.Anything, "user_1", mock.Anything).
		Return(nil, customError.WrapInvalidLoanParameters("applicant cannot guarantee their own loan"))

	rec := api.do(http.MethodPost, "/api/v1/loans", validToken, applyBody())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec, nil)
	assert.Equal(t, "applicant cannot guarantee their own loan", env.Message)
}

func TestLoanHandler_List(t *testing.T) {
	api := newTestAPI(t)
	api.loans.On("ListLoans", mock.Anything, "user_1").Return(&domain.LoanListResponse{
		Loans:  []*domain.LoanView{},
		Totals: domain.PortfolioTotals{TotalBorrowed: decimal.NewFromInt(70000), ActiveCount: 1},
	}, nil)

	rec := api.do(http.MethodGet, "/api/v1/loans", validToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result domain.LoanListResponse
	decode(t, rec, &result)
	assert.Equal(t, 1, result.Totals.ActiveCount)
	assert.True(t, result.Totals.TotalBorrowed.Equal(decimal.NewFromInt(70000)))
}

func TestLoanHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		api := newTestAPI(t)
		loanID := uuid.New()
		api.loans.On("GetLoan", mock.Anything, "user_1", loanID).
			Return(&domain.LoanView{Loan: &domain.Loan{ID: loanID}, Progress: 25}, nil)

		rec := api.do(http.MethodGet, "/api/v1/loans/"+loanID.String(), validToken, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var view domain.LoanView
		decode(t, rec, &view)
		assert.Equal(t, 25.0, view.Progress)
	})

	t.Run("bad id", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(http.MethodGet, "/api/v1/loans/not-a-uuid", validToken, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		api.loans.AssertNotCalled(t, "GetLoan", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		api := newTestAPI(t)
		loanID := uuid.New()
		api.loans.On("GetLoan", mock.Anything, "user_1", loanID).Return(nil, customError.WrapLoanNotFound(loanID.String()))

		rec := api.do(http.MethodGet, "/api/v1/loans/"+loanID.String(), validToken, nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		env := decode(t, rec, nil)
		assert.Equal(t, customError.ErrCodeLoanNotFound, env.Code)
	})

	t.Run("someone else's loan", func(t *testing.T) {
		api := newTestAPI(t)
		loanID := uuid.New()
		api.loans.On("GetLoan", mock.Anything, "user_1", loanID).Return(nil, customError.WrapForbidden(loanID.String()))

		rec := api.do(http.MethodGet, "/api/v1/loans/"+loanID.String(), validToken, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestLoanHandler_RespondToGuarantee(t *testing.T) {
	api := newTestAPI(t)
	loanID := uuid.New()
	api.loans.On("RespondToGuarantee", mock.Anything, loanID, "user_1", false).
		Return(&domain.Loan{ID: loanID, Status: domain.LoanStatusRejected}, nil).Once()

	rec := api.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/guarantors/respond", validToken, map[string]bool{"approve": false})

	assert.Equal(t, http.StatusOK, rec.Code)
	var loan domain.Loan
	decode(t, rec, &loan)
	assert.Equal(t, domain.LoanStatusRejected, loan.Status)
	api.loans.AssertExpectations(t)
}

func TestLoanHandler_RespondToGuarantee_NotAGuarantor(t *testing.T) {
	api := newTestAPI(t)
	loanID := uuid.New()
	api.loans.On("RespondToGuarantee", mock.Anything, loanID, "user_1", true).
		Return(nil, customError.WrapGuarantorNotFound(loanID.String(), "user_1"))

	rec := api.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/guarantors/respond", validToken, map[string]bool{"approve": true})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoanHandler_Activate(t *testing.T) {
	t.Run("borrower activates", func(t *testing.T) {
		api := newTestAPI(t)
		loanID := uuid.New()
		api.loans.On("ActivateLoan", mock.Anything, "user_1", loanID).
			Return(&domain.LoanView{Loan: &domain.Loan{ID: loanID, MemberID: "user_1", Status: domain.LoanStatusActive}}, nil).Once()

		rec := api.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/activate", validToken, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var view domain.LoanView
		decode(t, rec, &view)
		assert.Equal(t, domain.LoanStatusActive, view.Loan.Status)
		api.loans.AssertExpectations(t)
	})

	t.Run("someone else's loan", func(t *testing.T) {
		api := newTestAPI(t)
		loanID := uuid.New()
		api.loans.On("ActivateLoan", mock.Anything, "user_1", loanID).
			Return(nil, customError.WrapForbidden(loanID.String())).Once()

		rec := api.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/activate", validToken, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		env := decode(t, rec, nil)
		assert.Equal(t, customError.ErrCodeForbidden, env.Code)
		api.loans.AssertExpectations(t)
	})

	t.Run("not yet approved", func(t *testing.T) {
		api := newTestAPI(t)
		loanID := uuid.New()
		api.loans.On("ActivateLoan", mock.Anything, "user_1", loanID).
			Return(nil, customError.WrapInvalidStateTransition("loan", domain.LoanStatusPending, domain.LoanStatusActive))

		rec := api.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/activate", validToken, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestLoanHandler_Pay(t *testing.T) {
	loanID := uuid.New()
	repaymentID := uuid.New()
	path := "/api/v1/loans/" + loanID.String() + "/repayments/" + repaymentID.String() + "/pay"

	t.Run("defaults to now", func(t *testing.T) {
		api := newTestAPI(t)
		before := time.Now()
		api.loans.On("RecordRepayment", mock.Anything, "user_1", loanID, repaymentID, mock.MatchedBy(func(at time.Time) bool {
			return !at.Before(before) && !at.After(time.Now())
		})).Return(&domain.LoanView{Loan: &domain.Loan{ID: loanID}, Progress: 50}, nil).Once()

		rec := api.do(http.MethodPost, path, validToken, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		api.loans.AssertExpectations(t)
	})

	t.Run("explicit paid_at", func(t *testing.T) {
		api := newTestAPI(t)
		paidAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		api.loans.On("RecordRepayment", mock.Anything, "user_1", loanID, repaymentID, mock.MatchedBy(func(at time.Time) bool {
			return at.Equal(paidAt)
		})).Return(&domain.LoanView{Loan: &domain.Loan{ID: loanID}}, nil).Once()

		rec := api.do(http.MethodPost, path, validToken, map[string]string{"paid_at": "2024-03-01T10:00:00Z"})

		assert.Equal(t, http.StatusOK, rec.Code)
		api.loans.AssertExpectations(t)
	})

	t.Run("paid_at in the future", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(http.MethodPost, path, validToken, map[string]string{"paid_at": "2999-01-01T00:00:00Z"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		api.loans.AssertNotCalled(t, "RecordRepayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already paid", func(t *testing.T) {
		api := newTestAPI(t)
		api.loans.On("RecordRepayment", mock.Anything, "user_1", loanID, repaymentID, mock.Anything).
			Return(nil, customError.WrapRepaymentAlreadyPaid(repaymentID.String()))

		rec := api.do(http.MethodPost, path, validToken, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		env := decode(t, rec, nil)
		require.False(t, env.Success)
		assert.Equal(t, customError.ErrCodeRepaymentAlreadyPaid, env.Code)
	})

	t.Run("bad repayment id", func(t *testing.T) {
		api := newTestAPI(t)

		rec := api.do(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/repayments/7/pay", validToken, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
