package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/repository"
	"github.com/sakif/ziphub/internal/store"
)

// =========================================================================
// TEST ENVIRONMENT
// =========================================================================

// testEnv wires every service over one in-memory store, the same way the
// server does.
type testEnv struct {
	store    *store.Store
	backend  store.Backend
	identity *IdentityService
	social   *SocialService
	content  *ContentService
	profile  *ProfileService
	admin    *AdminService
}

var testCreator = CreatorConfig{
	Username:    "james",
	Password:    "6033",
	DisplayName: "James (Creator)",
	Bio:         "ZIPHUB creator",
	Boost:       3000,
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithBackend(t, store.NewMemoryBackend())
}

func newTestEnvWithBackend(t *testing.T, backend store.Backend) *testEnv {
	t.Helper()
	logger := quietLogger()
	st := store.New(backend, logger)
	t.Cleanup(func() { st.Close() })

	// Cost 4 is the bcrypt minimum and keeps tests fast.
	hasher := auth.NewPasswordServiceForTest()

	social := NewSocialService(st, logger)
	content := NewContentService(st, DefaultSeedPolicy(), logger)
	return &testEnv{
		store:    st,
		backend:  backend,
		identity: NewIdentityService(st, hasher, social, testCreator, logger),
		social:   social,
		content:  content,
		profile:  NewProfileService(st, logger),
		admin:    NewAdminService(st, hasher, social, content, logger),
	}
}

// setClock pins every service's clock to fn.
func (e *testEnv) setClock(fn func() time.Time) {
	e.identity.clock = fn
	e.social.clock = fn
	e.content.clock = fn
	e.admin.clock = fn
}

func (e *testEnv) bootstrap(t *testing.T) model.Account {
	t.Helper()
	if err := e.identity.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	id, ok, err := e.identity.CreatorID(context.Background())
	if err != nil || !ok {
		t.Fatalf("CreatorID() = %q, %v, %v", id, ok, err)
	}
	return e.account(t, id)
}

func (e *testEnv) account(t *testing.T, id string) model.Account {
	t.Helper()
	accounts, err := store.Get(context.Background(), e.store, repository.Accounts)
	if err != nil {
		t.Fatalf("loading accounts: %v", err)
	}
	i := model.FindAccount(accounts, id)
	if i < 0 {
		t.Fatalf("account %s not found", id)
	}
	return accounts[i]
}

func (e *testEnv) register(t *testing.T, username string, role model.Role) model.Account {
	t.Helper()
	res, err := e.identity.Register(context.Background(), username, "password-"+username, role)
	if err != nil {
		t.Fatalf("Register(%q) error = %v", username, err)
	}
	return e.account(t, res.Account.ID)
}

// approvedDeveloper registers a developer and has the creator approve it.
func (e *testEnv) approvedDeveloper(t *testing.T, admin model.Account, username string) model.Account {
	t.Helper()
	d := e.register(t, username, model.RoleDeveloper)
	if err := e.admin.ApproveDeveloper(context.Background(), admin, d.ID); err != nil {
		t.Fatalf("ApproveDeveloper() error = %v", err)
	}
	return e.account(t, d.ID)
}

func (e *testEnv) upload(t *testing.T, owner model.Account, title string) model.File {
	t.Helper()
	f, err := e.content.CreateFile(context.Background(), owner, NewFile{Title: title, Description: "desc", ZipURL: "https://example.com/x.zip"})
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	return f
}

// assertKind fails unless err wraps the given sentinel.
func assertKind(t *testing.T, err error, want error) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %v", want)
	}
	if !errors.Is(err, want) {
		t.Fatalf("error = %v (kind %s), want kind %v", err, apperror.KindOf(err), want)
	}
}
