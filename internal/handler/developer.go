package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/service"
)

// DeveloperHandler serves developer profiles and follows.
type DeveloperHandler struct {
	social  *service.SocialService
	profile *service.ProfileService
	logger  *slog.Logger
}

func NewDeveloperHandler(social *service.SocialService, profile *service.ProfileService, logger *slog.Logger) *DeveloperHandler {
	return &DeveloperHandler{social: social, profile: profile, logger: logger}
}

// HandleUpdateProfile edits the caller's own profile.
//
// HTTP: POST /api/dev/profile
// REQUEST BODY: {"displayName": "...", "bio": "...", "avatar": "..."} (all optional)
func (h *DeveloperHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		writeError(w, apperror.New(apperror.ErrUnauthenticated, "login required"))
		return
	}

	var upd service.ProfileUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, err)
		return
	}

	profile, user, err := h.profile.UpdateDeveloperProfile(r.Context(), account.ID, upd)
	if err != nil {
		fail(h.logger, w, r, "update profile", err)
		return
	}
	respond(w, map[string]any{"profile": profile, "user": user})
}

// HandleList returns every developer profile.
//
// HTTP: GET /api/dev/list
func (h *DeveloperHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	devs, err := h.social.ListDevelopers(r.Context())
	if err != nil {
		fail(h.logger, w, r, "list developers", err)
		return
	}
	respond(w, map[string]any{"devs": devs})
}

// HandleGet returns one profile with its follower count.
//
// HTTP: GET /api/dev/{id}
func (h *DeveloperHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	detail, err := h.social.GetDeveloper(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(h.logger, w, r, "get developer", err)
		return
	}
	body := map[string]any{"dev": detail.Profile, "followers": detail.FollowerCount}
	if detail.Verification != nil {
		body["verification"] = detail.Verification
	}
	respond(w, body)
}

// HandleFollow makes the caller follow a developer. Following yourself or
// someone you already follow still answers ok.
//
// HTTP: POST /api/follow/{developerId}
func (h *DeveloperHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		writeError(w, apperror.New(apperror.ErrUnauthenticated, "login required"))
		return
	}

	target := r.PathValue("developerId")
	res, err := h.social.Follow(r.Context(), account.ID, target)
	if err != nil {
		fail(h.logger, w, r, "follow", err)
		return
	}

	body := map[string]any{
		"created":       res.Created,
		"followerCount": res.FollowerCount,
		"verified":      res.Verified,
	}
	switch {
	case target == account.ID:
		body["message"] = "Cannot follow yourself"
	case !res.Created:
		body["message"] = "Already following"
	}
	respond(w, body)
}
