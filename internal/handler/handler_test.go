package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/handler"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/service"
	"github.com/sakif/ziphub/internal/store"
)

// fixture wires real services over an in-memory store. The handlers are thin
// enough that faking the services would only test the fakes.
type fixture struct {
	identity *service.IdentityService
	social   *service.SocialService
	content  *service.ContentService
	admin    *service.AdminService

	auth  *handler.AuthHandler
	devs  *handler.DeveloperHandler
	files *handler.FileHandler
	mod   *handler.AdminHandler

	creator model.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := store.New(store.NewMemoryBackend(), logger)
	t.Cleanup(func() { st.Close() })

	hasher := auth.NewPasswordServiceForTest()
	social := service.NewSocialService(st, logger)
	content := service.NewContentService(st, service.NoSeed{}, logger)
	identity := service.NewIdentityService(st, hasher, social, service.CreatorConfig{
		Username: "james", Password: "6033", DisplayName: "James", Boost: 3000,
	}, logger)
	profile := service.NewProfileService(st, logger)
	admin := service.NewAdminService(st, hasher, social, content, logger)

	require.NoError(t, identity.Bootstrap(context.Background()))
	login, err := identity.Login(context.Background(), "james", "6033")
	require.NoError(t, err)
	creator, err := identity.ResolveSession(context.Background(), login.Token)
	require.NoError(t, err)

	return &fixture{
		identity: identity,
		social:   social,
		content:  content,
		admin:    admin,
		auth:     handler.NewAuthHandler(identity, auth.NewCookies(nil, false), logger),
		devs:     handler.NewDeveloperHandler(social, profile, logger),
		files:    handler.NewFileHandler(content, logger),
		mod:      handler.NewAdminHandler(admin, logger),
		creator:  creator,
	}
}

// register creates an account and returns it with its session token.
func (f *fixture) register(t *testing.T, username string, role model.Role) (model.Account, string) {
	t.Helper()
	res, err := f.identity.Register(context.Background(), username, "pw-"+username, role)
	require.NoError(t, err)
	a, err := f.identity.ResolveSession(context.Background(), res.Token)
	require.NoError(t, err)
	return a, res.Token
}

// developer creates an approved developer.
func (f *fixture) developer(t *testing.T, username string) model.Account {
	t.Helper()
	d, _ := f.register(t, username, model.RoleDeveloper)
	require.NoError(t, f.admin.ApproveDeveloper(context.Background(), f.creator, d.ID))
	d.Approved = true
	return d
}

func request(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	return r
}

// as attaches a resolved session to r, the way RequireSession does.
func as(r *http.Request, account model.Account, token string) *http.Request {
	return r.WithContext(auth.WithSession(r.Context(), account, token))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

// assertError checks status, ok=false and the error kind.
func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	assert.Equal(t, status, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, kind, body["error"])
	assert.NotEmpty(t, body["message"])
}
