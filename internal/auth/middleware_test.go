package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/model"
)

// fakeResolver knows a fixed set of tokens.
type fakeResolver struct {
	sessions map[string]model.Account
	err      error
}

func (f *fakeResolver) ResolveSession(_ context.Context, token string) (model.Account, error) {
	if f.err != nil {
		return model.Account{}, f.err
	}
	if token == "" {
		return model.Account{}, apperror.New(apperror.ErrUnauthenticated, "login required")
	}
	a, ok := f.sessions[token]
	if !ok {
		return model.Account{}, apperror.New(apperror.ErrInvalidSession, "session not found")
	}
	return a, nil
}

func echoAccount(w http.ResponseWriter, r *http.Request) {
	a, _ := AccountFromContext(r.Context())
	tok, _ := SessionTokenFromContext(r.Context())
	w.Write([]byte(a.ID + "|" + tok))
}

func withCookie(t *testing.T, c *Cookies, token, accountID string) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, c.Set(rec, token, accountID))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireSession(t *testing.T) {
	resolver := &fakeResolver{sessions: map[string]model.Account{
		"tok-1": {ID: "acc-1", Username: "alice"},
	}}
	ts := newTestTokenService(t)

	cases := []struct {
		name       string
		cookies    *Cookies
		request    func(c *Cookies) *http.Request
		wantStatus int
		wantBody   string
		wantKind   string
	}{
		{
			name:       "raw token",
			cookies:    NewCookies(nil, false),
			request:    func(c *Cookies) *http.Request { return withCookie(t, c, "tok-1", "acc-1") },
			wantStatus: http.StatusOK,
			wantBody:   "acc-1|tok-1",
		},
		{
			name:       "signed envelope",
			cookies:    NewCookies(ts, true),
			request:    func(c *Cookies) *http.Request { return withCookie(t, c, "tok-1", "acc-1") },
			wantStatus: http.StatusOK,
			wantBody:   "acc-1|tok-1",
		},
		{
			name:       "no cookie",
			cookies:    NewCookies(nil, false),
			request: func(*Cookies) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			},
			wantStatus: http.StatusUnauthorized,
			wantKind:   "Unauthenticated",
		},
		{
			name:       "unknown token",
			cookies:    NewCookies(nil, false),
			request:    func(c *Cookies) *http.Request { return withCookie(t, c, "tok-gone", "acc-1") },
			wantStatus: http.StatusUnauthorized,
			wantKind:   "InvalidSession",
		},
		{
			name:       "raw token sent to a signing server",
			cookies:    NewCookies(ts, false),
			request: func(*Cookies) *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
				req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok-1"})
				return req
			},
			wantStatus: http.StatusUnauthorized,
			wantKind:   "InvalidSession",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := RequireSession(resolver, tc.cookies)(http.HandlerFunc(echoAccount))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tc.request(tc.cookies))

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
			if tc.wantKind != "" {
				body := decodeBody(t, rec)
				assert.Equal(t, false, body["ok"])
				assert.Equal(t, tc.wantKind, body["error"])
			}
		})
	}
}

func TestRequireSession_StoreFailureIsInternal(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("disk gone")}
	c := NewCookies(nil, false)

	h := RequireSession(resolver, c)(http.HandlerFunc(echoAccount))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withCookie(t, c, "tok-1", "acc-1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal", decodeBody(t, rec)["error"])
}

func TestCookies_SetAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, NewCookies(nil, true).Set(rec, "tok", "acc"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	ck := cookies[0]
	assert.Equal(t, CookieName, ck.Name)
	assert.Equal(t, "tok", ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
}

func TestCookies_Clear(t *testing.T) {
	rec := httptest.NewRecorder()
	NewCookies(nil, false).Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestCookies_BadEnvelope(t *testing.T) {
	c := NewCookies(newTestTokenService(t), false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})

	_, err := c.SessionToken(req)
	assert.ErrorIs(t, err, ErrBadEnvelope)
}

func TestWithSession(t *testing.T) {
	ctx := WithSession(context.Background(), model.Account{ID: "acc-9"}, "tok-9")

	a, ok := AccountFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "acc-9", a.ID)

	tok, ok := SessionTokenFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tok-9", tok)

	_, ok = AccountFromContext(context.Background())
	assert.False(t, ok)
}
