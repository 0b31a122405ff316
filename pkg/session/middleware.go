package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	autherr "github.com/workhive/auth/pkg/errors"
)

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "session context value " + k.name
}

var principalKey = &contextKey{"Principal"}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Middleware authenticates requests with a bearer access token and stores
// the resulting Principal on the request context. Requests that fail
// validation are answered with the error taxonomy's HTTP mapping and never
// reach the next handler.
func Middleware(validator *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := jwtauth.TokenFromHeader(r)
			if rawToken == "" {
				respondError(w, r, autherr.InvalidOrExpiredToken())
				return
			}

			principal, err := validator.Validate(r.Context(), rawToken)
			if err != nil {
				slog.Debug("Rejected bearer token", "code", autherr.GetCode(err))
				respondError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the Principal the middleware attached to the
// request context
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalKey).(*Principal)
	return principal, ok
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *autherr.Error
	if !errors.As(err, &authErr) {
		authErr = autherr.Internal(err)
	}
	render.Status(r, authErr.HTTPStatusCode())
	render.JSON(w, r, errorResponse{
		Code:    string(authErr.Code),
		Message: authErr.Message,
	})
}
