package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/segyhp/sacco-portal/internal/handler"
	"github.com/segyhp/sacco-portal/internal/mocks"
	"github.com/segyhp/sacco-portal/internal/session"
	customError "github.com/segyhp/sacco-portal/pkg/errors"
)

const validToken = "valid-token"

var member = &session.Session{
	Token:     validToken,
	TokenID:   "jti-1",
	MemberID:  "user_1",
	Email:     "john@example.com",
	ExpiresAt: time.Now().Add(time.Hour),
}

type testAPI struct {
	loans    *mocks.MockLoanService
	members  *mocks.MockMemberService
	sessions *mocks.MockSessionManager
	router   http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// nothing listens on port 1
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { rdb.Close() })

	api := &testAPI{
		loans:    &mocks.MockLoanService{},
		members:  &mocks.MockMemberService{},
		sessions: &mocks.MockSessionManager{},
	}
	api.sessions.On("Restore", mock.Anything, validToken).Return(member, nil).Maybe()
	api.sessions.On("Restore", mock.Anything, mock.Anything).
		Return(nil, customError.WrapUnauthorized(session.ErrInvalidToken)).Maybe()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	api.router = handler.NewRouter(handler.Handlers{
		Health:  handler.NewHealthHandler(db, rdb, time.Second),
		Loans:   handler.NewLoanHandler(api.loans),
		Members: handler.NewMemberHandler(api.members),
		Session: handler.NewSessionHandler(api.sessions),
	}, api.sessions, logger)

	return api
}

// do sends an authenticated request unless token is empty
func (api *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env
}
