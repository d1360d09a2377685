package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/segyhp/sacco-portal/internal/session"
	customError "github.com/segyhp/sacco-portal/pkg/errors"
)

// newValidator returns a validator that compares decimal amounts numerically
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return customError.WrapInvalidLoanParameters(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func uuidVar(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, customError.WrapInvalidLoanParameters(fmt.Sprintf("%s %q is not a valid id", name, raw))
	}
	return id, nil
}

// currentSession returns the session the middleware attached to the request
func currentSession(r *http.Request) (*session.Session, error) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return nil, customError.WrapUnauthorized(session.ErrMissingToken)
	}
	return s, nil
}
