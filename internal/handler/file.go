package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/service"
)

// FileHandler serves uploads and the likes, comments and reports on them.
type FileHandler struct {
	content *service.ContentService
	logger  *slog.Logger
}

func NewFileHandler(content *service.ContentService, logger *slog.Logger) *FileHandler {
	return &FileHandler{content: content, logger: logger}
}

type fileRequest struct {
	FileID string `json:"fileId"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// HandleUpload publishes a file. Only approved developers may upload.
//
// HTTP: POST /api/files/upload
// REQUEST BODY: {"title": "...", "description": "...", "zipUrl": "https://..."}
func (h *FileHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		writeError(w, apperror.New(apperror.ErrUnauthenticated, "login required"))
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ZipURL      string `json:"zipUrl"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	f, err := h.content.CreateFile(r.Context(), account, service.NewFile{
		Title:       req.Title,
		Description: req.Description,
		ZipURL:      req.ZipURL,
	})
	if err != nil {
		fail(h.logger, w, r, "upload", err)
		return
	}
	respond(w, map[string]any{"file": f})
}

// HandleList returns every file with its like and comment counts.
//
// HTTP: GET /api/files/list
func (h *FileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	files, err := h.content.ListFiles(r.Context())
	if err != nil {
		fail(h.logger, w, r, "list files", err)
		return
	}
	respond(w, map[string]any{"files": files})
}

// HandleLike likes a file. Liking twice answers ok with a message; an empty
// or unknown fileId is NoSuchFile.
//
// HTTP: POST /api/files/like
// REQUEST BODY: {"fileId": "..."}
func (h *FileHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	account, req, ok := h.parse(w, r)
	if !ok {
		return
	}
	added, err := h.content.Like(r.Context(), account, req.FileID)
	if err != nil {
		fail(h.logger, w, r, "like", err)
		return
	}
	body := map[string]any{"liked": added}
	if !added {
		body["message"] = "Already liked"
	}
	respond(w, body)
}

// HandleComment comments on a file.
//
// HTTP: POST /api/files/comment
// REQUEST BODY: {"fileId": "...", "text": "..."}
func (h *FileHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	account, req, ok := h.parse(w, r)
	if !ok {
		return
	}

	c, err := h.content.Comment(r.Context(), account, req.FileID, req.Text)
	if err != nil {
		fail(h.logger, w, r, "comment", err)
		return
	}
	respond(w, map[string]any{"comment": c})
}

// HandleReport files a moderation report.
//
// HTTP: POST /api/report
// REQUEST BODY: {"fileId": "...", "reason": "..."}
func (h *FileHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	account, req, ok := h.parse(w, r)
	if !ok {
		return
	}

	rep, err := h.content.Report(r.Context(), account, req.FileID, req.Reason)
	if err != nil {
		fail(h.logger, w, r, "report", err)
		return
	}
	respond(w, map[string]any{"report": rep})
}

// parse returns the caller's account id and the decoded body, or writes the
// error and reports false.
func (h *FileHandler) parse(w http.ResponseWriter, r *http.Request) (string, fileRequest, bool) {
	var req fileRequest
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		writeError(w, apperror.New(apperror.ErrUnauthenticated, "login required"))
		return "", req, false
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return "", req, false
	}
	return account.ID, req, true
}
