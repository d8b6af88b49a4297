package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/service"
)

// AuthHandler manages registration, login and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account, start a session, set the cookie
//   - HandleLogin    → check credentials, start a session, set the cookie
//   - HandleMe       → return the account behind the current session
//   - HandleLogout   → end the session and clear the cookie
//
// DEPENDENCY CHAIN:
//   - identity *service.IdentityService → accounts and sessions
//   - cookies  *auth.Cookies            → raw or signed session cookie
type AuthHandler struct {
	identity *service.IdentityService
	cookies  *auth.Cookies
	logger   *slog.Logger
}

func NewAuthHandler(identity *service.IdentityService, cookies *auth.Cookies, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, cookies: cookies, logger: logger}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// HandleRegister creates an account and logs it in.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"username": "alice", "password": "...", "role": "user" | "developer"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, apperror.MissingFields("username", "password"))
		return
	}

	res, err := h.identity.Register(r.Context(), req.Username, req.Password, model.Role(req.Role))
	if err != nil {
		fail(h.logger, w, r, "register", err)
		return
	}
	h.startSession(w, r, res)
}

// HandleLogin verifies credentials and issues a fresh session.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"username": "alice", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, apperror.MissingFields("username", "password"))
		return
	}

	res, err := h.identity.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		fail(h.logger, w, r, "login", err)
		return
	}
	h.startSession(w, r, res)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, res *service.AuthResult) {
	if err := h.cookies.Set(w, res.Token, res.Account.ID); err != nil {
		fail(h.logger, w, r, "signing session cookie", err)
		return
	}
	respond(w, map[string]any{"user": res.Account})
}

// HandleMe returns the current account.
//
// HTTP: GET /api/auth/me
// Auth: Required (RequireSession puts the account in the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		writeError(w, apperror.New(apperror.ErrUnauthenticated, "login required"))
		return
	}
	respond(w, map[string]any{"user": account.Public()})
}

// HandleLogout removes the session and expires the cookie. Other sessions of
// the same account stay valid.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.SessionTokenFromContext(r.Context())
	if err := h.identity.Logout(r.Context(), token); err != nil {
		fail(h.logger, w, r, "logout", err)
		return
	}
	h.cookies.Clear(w)
	respond(w, nil)
}
