package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/sacco-portal/pkg/response"
)

// Handlers groups everything the router dispatches to
type Handlers struct {
	Health  *HealthHandler
	Loans   *LoanHandler
	Members *MemberHandler
	Session *SessionHandler
}

// NewRouter wires the public probes and the session-protected API
func NewRouter(h Handlers, sessions SessionManager, logger logrus.FieldLogger) http.Handler {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "no route for "+r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r.Method+" not allowed on "+r.URL.Path)
	})

	router.HandleFunc("/health", h.Health.Health).Methods("GET")
	router.HandleFunc("/health/ready", h.Health.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(SessionMiddleware(sessions))

	api.HandleFunc("/session/logout", h.Session.Logout).Methods("POST")

	api.HandleFunc("/loans", h.Loans.Apply).Methods("POST")
	api.HandleFunc("/loans", h.Loans.List).Methods("GET")
	api.HandleFunc("/loans/{loanId}", h.Loans.Get).Methods("GET")
	api.HandleFunc("/loans/{loanId}/guarantors/respond", h.Loans.RespondToGuarantee).Methods("POST")
	api.HandleFunc("/loans/{loanId}/activate", h.Loans.Activate).Methods("POST")
	api.HandleFunc("/loans/{loanId}/repayments/{repaymentId}/pay", h.Loans.Pay).Methods("POST")

	api.HandleFunc("/dashboard", h.Members.Dashboard).Methods("GET")
	api.HandleFunc("/deposits", h.Members.Deposits).Methods("GET")
	api.HandleFunc("/announcements", h.Members.Announcements).Methods("GET")
	api.HandleFunc("/performance", h.Members.Performance).Methods("GET")

	return response.CORSMiddleware(router)
}
