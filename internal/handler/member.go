package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/segyhp/sacco-portal/internal/domain"
	customError "github.com/segyhp/sacco-portal/pkg/errors"
	"github.com/segyhp/sacco-portal/pkg/response"
)

const defaultAnnouncementLimit = 20

type MemberService interface {
	GetDashboard(ctx context.Context, memberID string) (*domain.DashboardResponse, error)
	GetDeposits(ctx context.Context, memberID string) (*domain.DepositsResponse, error)
	ListAnnouncements(ctx context.Context, limit int) ([]*domain.Announcement, error)
	GetPerformance(ctx context.Context) ([]*domain.PerformanceSnapshot, error)
}

type MemberHandler struct {
	service MemberService
}

func NewMemberHandler(service MemberService) *MemberHandler {
	return &MemberHandler{service: service}
}

// Dashboard handles GET /dashboard
func (h *MemberHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	dashboard, err := h.service.GetDashboard(r.Context(), s.MemberID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, dashboard)
}

// Deposits handles GET /deposits
func (h *MemberHandler) Deposits(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	deposits, err := h.service.GetDeposits(r.Context(), s.MemberID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, deposits)
}

// Announcements handles GET /announcements?limit=N
func (h *MemberHandler) Announcements(w http.ResponseWriter, r *http.Request) {
	limit := defaultAnnouncementLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.FromError(w, customError.WrapInvalidLoanParameters("limit must be a positive integer"))
			return
		}
		limit = n
	}

	announcements, err := h.service.ListAnnouncements(r.Context(), limit)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, announcements)
}

// Performance handles GET /performance
func (h *MemberHandler) Performance(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.service.GetPerformance(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, snapshots)
}
