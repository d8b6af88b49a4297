package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/service"
)

// AdminHandler serves the moderation endpoints. The admin check itself lives
// in service.AdminService, so these handlers only translate HTTP.
type AdminHandler struct {
	admin  *service.AdminService
	logger *slog.Logger
}

func NewAdminHandler(admin *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

type adminRequest struct {
	FileID   string `json:"fileId"`
	DevID    string `json:"devId"`
	Username string `json:"username"`
	Password string `json:"password"`
	Boost    *int   `json:"followersBoost"`
}

func (h *AdminHandler) actor(w http.ResponseWriter, r *http.Request) (model.Account, bool) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		writeError(w, apperror.New(apperror.ErrUnauthenticated, "login required"))
	}
	return account, ok
}

func (h *AdminHandler) body(w http.ResponseWriter, r *http.Request) (model.Account, adminRequest, bool) {
	var req adminRequest
	actor, ok := h.actor(w, r)
	if !ok {
		return actor, req, false
	}
	// A non-admin gets Forbidden whatever the body holds.
	if err := service.RequireAdmin(actor); err != nil {
		writeError(w, err)
		return actor, req, false
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return actor, req, false
	}
	return actor, req, true
}

// HandleStats returns collection totals.
//
// HTTP: GET /api/admin/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	st, err := h.admin.Stats(r.Context(), actor)
	if err != nil {
		fail(h.logger, w, r, "stats", err)
		return
	}
	respond(w, map[string]any{"totals": st})
}

// HandleReports lists every report.
//
// HTTP: GET /api/admin/reports
func (h *AdminHandler) HandleReports(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	reports, err := h.admin.ListReports(r.Context(), actor)
	if err != nil {
		fail(h.logger, w, r, "list reports", err)
		return
	}
	respond(w, map[string]any{"reports": reports})
}

// HandleDeleteFile removes a file with its likes, comments and reports.
//
// HTTP: POST /api/admin/delete-file
// REQUEST BODY: {"fileId": "..."}
func (h *AdminHandler) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.body(w, r)
	if !ok {
		return
	}
	res, err := h.admin.DeleteFile(r.Context(), actor, req.FileID)
	if err != nil {
		fail(h.logger, w, r, "delete file", err)
		return
	}
	respond(w, map[string]any{"removed": res})
}

// HandleApprove approves a pending developer.
//
// HTTP: POST /api/admin/approve-dev
// REQUEST BODY: {"devId": "..."}
func (h *AdminHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.body(w, r)
	if !ok {
		return
	}
	if err := h.admin.ApproveDeveloper(r.Context(), actor, req.DevID); err != nil {
		fail(h.logger, w, r, "approve developer", err)
		return
	}
	respond(w, nil)
}

// HandleVerify grants an admin verification.
//
// HTTP: POST /api/admin/verify
// REQUEST BODY: {"devId": "..."}
func (h *AdminHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.body(w, r)
	if !ok {
		return
	}
	if err := h.admin.VerifyDeveloper(r.Context(), actor, req.DevID); err != nil {
		fail(h.logger, w, r, "verify developer", err)
		return
	}
	respond(w, nil)
}

// HandleCreateVerified creates an approved, verified developer account.
//
// HTTP: POST /api/admin/create-verified
// REQUEST BODY: {"username": "...", "password": "...", "followersBoost": 50}
func (h *AdminHandler) HandleCreateVerified(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.body(w, r)
	if !ok {
		return
	}
	boost := service.DefaultCreateVerifiedBoost
	if req.Boost != nil {
		boost = *req.Boost
	}

	user, err := h.admin.CreateVerifiedAccount(r.Context(), actor, req.Username, req.Password, boost)
	if err != nil {
		fail(h.logger, w, r, "create verified account", err)
		return
	}
	respond(w, map[string]any{"user": user})
}
