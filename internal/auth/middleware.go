package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/model"
)

// SessionResolver turns a session token into its account. The identity
// service implements it.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (model.Account, error)
}

// contextKey is unexported so no other package can collide with our keys.
type contextKey string

const (
	accountKey contextKey = "account"
	tokenKey   contextKey = "sessionToken"
)

// RequireSession rejects requests without a live session with 401 and
// stores the resolved account and session token in the request context.
//
// The account is resolved from the store on every request, so a logout
// takes effect immediately.
func RequireSession(resolver SessionResolver, cookies *Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := cookies.SessionToken(r)
			if err != nil {
				writeAuthError(w, apperror.New(apperror.ErrInvalidSession, "session cookie is invalid"))
				return
			}

			account, err := resolver.ResolveSession(r.Context(), token)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), accountKey, account)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext returns the account RequireSession resolved.
func AccountFromContext(ctx context.Context) (model.Account, bool) {
	a, ok := ctx.Value(accountKey).(model.Account)
	return a, ok
}

// SessionTokenFromContext returns the session token RequireSession resolved.
func SessionTokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}

// WithSession returns ctx carrying account and token, as RequireSession
// would. Handler tests use it to skip cookie plumbing.
func WithSession(ctx context.Context, account model.Account, token string) context.Context {
	ctx = context.WithValue(ctx, accountKey, account)
	return context.WithValue(ctx, tokenKey, token)
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	kind := apperror.KindOf(err)
	msg := "authentication required"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	if kind != apperror.ErrUnauthenticated.Error() && kind != apperror.ErrInvalidSession.Error() {
		status = http.StatusInternalServerError
		kind = apperror.KindInternal
		msg = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"ok":      false,
		"error":   kind,
		"message": msg,
	})
}
