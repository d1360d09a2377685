package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/segyhp/sacco-portal/internal/session"
	"github.com/segyhp/sacco-portal/pkg/response"
)

type SessionManager interface {
	Restore(ctx context.Context, token string) (*session.Session, error)
	Clear(ctx context.Context, s *session.Session) error
}

// SessionMiddleware restores the member session from the Bearer token and
// puts it on the request context. Requests without a valid session get a 401.
func SessionMiddleware(manager SessionManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))

			s, err := manager.Restore(r.Context(), token)
			if err != nil {
				response.FromError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
		})
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type SessionHandler struct {
	manager SessionManager
}

func NewSessionHandler(manager SessionManager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// Logout clears the current session so its token is refused from now on
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	if err := h.manager.Clear(r.Context(), s); err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, map[string]string{"member_id": s.MemberID, "status": "logged_out"})
}
