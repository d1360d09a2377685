package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/segyhp/sacco-portal/internal/domain"
	customError "github.com/segyhp/sacco-portal/pkg/errors"
	"github.com/segyhp/sacco-portal/pkg/response"
)

type LoanService interface {
	ApplyForLoan(ctx context.Context, memberID string, request *domain.ApplyLoanRequest) (*domain.Loan, error)
	RespondToGuarantee(ctx context.Context, loanID uuid.UUID, guarantorMemberID string, approve bool) (*domain.Loan, error)
	ActivateLoan(ctx context.Context, memberID string, loanID uuid.UUID) (*domain.LoanView, error)
	RecordRepayment(ctx context.Context, memberID string, loanID, repaymentID uuid.UUID, paidAt time.Time) (*domain.LoanView, error)
	GetLoan(ctx context.Context, memberID string, loanID uuid.UUID) (*domain.LoanView, error)
	ListLoans(ctx context.Context, memberID string) (*domain.LoanListResponse, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
	now       func() time.Time
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: newValidator(),
		now:       time.Now,
	}
}

// Apply handles POST /loans
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	var request domain.ApplyLoanRequest
	if err := decodeJSON(r, &request); err != nil {
		response.FromError(w, err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.FromError(w, customError.WrapInvalidLoanParameters(err.Error()))
		return
	}

	loan, err := h.service.ApplyForLoan(r.Context(), s.MemberID, &request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, loan)
}

// List handles GET /loans
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	result, err := h.service.ListLoans(r.Context(), s.MemberID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, result)
}

// Get handles GET /loans/{loanId}
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}
	loanID, err := uuidVar(r, "loanId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	view, err := h.service.GetLoan(r.Context(), s.MemberID, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, view)
}

// RespondToGuarantee handles POST /loans/{loanId}/guarantors/respond.
// The session member answers for themselves.
func (h *LoanHandler) RespondToGuarantee(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}
	loanID, err := uuidVar(r, "loanId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var request domain.GuaranteeResponseRequest
	if err := decodeJSON(r, &request); err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.RespondToGuarantee(r.Context(), loanID, s.MemberID, request.Approve)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// Activate handles POST /loans/{loanId}/activate
func (h *LoanHandler) Activate(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}
	loanID, err := uuidVar(r, "loanId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	view, err := h.service.ActivateLoan(r.Context(), s.MemberID, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, view)
}

// Pay handles POST /loans/{loanId}/repayments/{repaymentId}/pay.
// paid_at defaults to the time the request is handled.
func (h *LoanHandler) Pay(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}
	loanID, err := uuidVar(r, "loanId")
	if err != nil {
		response.FromError(w, err)
		return
	}
	repaymentID, err := uuidVar(r, "repaymentId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var request domain.RecordRepaymentRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &request); err != nil {
			response.FromError(w, err)
			return
		}
	}
	paidAt := h.now()
	if request.PaidAt != nil {
		if request.PaidAt.After(paidAt) {
			response.FromError(w, customError.WrapInvalidLoanParameters("paid_at cannot be in the future"))
			return
		}
		paidAt = *request.PaidAt
	}

	view, err := h.service.RecordRepayment(r.Context(), s.MemberID, loanID, repaymentID, paidAt)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, view)
}
