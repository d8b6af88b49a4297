package service

import (
	"context"
	"testing"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/model"
)

func TestAdmin_ForbiddenForNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "user", model.RoleUser)
	dev := env.register(t, "dev", model.RoleDeveloper)

	calls := []struct {
		name string
		call func(actor model.Account) error
	}{
		{"stats", func(a model.Account) error { _, err := env.admin.Stats(ctx, a); return err }},
		{"reports", func(a model.Account) error { _, err := env.admin.ListReports(ctx, a); return err }},
		{"delete", func(a model.Account) error { _, err := env.admin.DeleteFile(ctx, a, "f"); return err }},
		{"approve", func(a model.Account) error { return env.admin.ApproveDeveloper(ctx, a, dev.ID) }},
		{"verify", func(a model.Account) error { return env.admin.VerifyDeveloper(ctx, a, dev.ID) }},
		{"create-verified", func(a model.Account) error {
			_, err := env.admin.CreateVerifiedAccount(ctx, a, "x", "y", 0)
			return err
		}},
	}

	for _, actor := range []model.Account{user, dev} {
		for _, c := range calls {
			t.Run(string(actor.Role)+"/"+c.name, func(t *testing.T) {
				assertKind(t, c.call(actor), apperror.ErrForbidden)
			})
		}
	}

	if env.account(t, dev.ID).Approved {
		t.Error("forbidden approve still approved the developer")
	}
}

func TestAdmin_AdminRoleIsAllowed(t *testing.T) {
	env := newTestEnv(t)
	admin := model.Account{ID: "ops", Role: model.RoleAdmin}
	if _, err := env.admin.Stats(context.Background(), admin); err != nil {
		t.Errorf("Stats(admin role) error = %v", err)
	}
}

func TestApproveDeveloper(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.bootstrap(t)
	user := env.register(t, "plain", model.RoleUser)

	t.Run("missing id", func(t *testing.T) {
		assertKind(t, env.admin.ApproveDeveloper(ctx, creator, ""), apperror.ErrMissingFields)
	})
	t.Run("unknown id", func(t *testing.T) {
		assertKind(t, env.admin.ApproveDeveloper(ctx, creator, "ghost"), apperror.ErrNoSuchDeveloper)
	})
	t.Run("not a developer", func(t *testing.T) {
		assertKind(t, env.admin.ApproveDeveloper(ctx, creator, user.ID), apperror.ErrNoSuchDeveloper)
	})

	t.Run("pending developer can log in afterwards", func(t *testing.T) {
		dev := env.register(t, "waiting", model.RoleDeveloper)
		if err := env.admin.ApproveDeveloper(ctx, creator, dev.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := env.identity.Login(ctx, "waiting", "password-waiting"); err != nil {
			t.Fatalf("Login() after approval error = %v", err)
		}
		detail, _ := env.social.GetDeveloper(ctx, dev.ID)
		if !detail.Profile.Approved {
			t.Error("profile approval not mirrored")
		}
		// Approving twice is harmless.
		if err := env.admin.ApproveDeveloper(ctx, creator, dev.ID); err != nil {
			t.Errorf("second ApproveDeveloper() error = %v", err)
		}
	})
}

func TestVerifyDeveloper(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.bootstrap(t)
	dev := env.register(t, "nominee", model.RoleDeveloper)

	assertKind(t, env.admin.VerifyDeveloper(ctx, creator, ""), apperror.ErrMissingFields)
	assertKind(t, env.admin.VerifyDeveloper(ctx, creator, "ghost"), apperror.ErrNoSuchDeveloper)

	if err := env.admin.VerifyDeveloper(ctx, creator, dev.ID); err != nil {
		t.Fatal(err)
	}
	detail, _ := env.social.GetDeveloper(ctx, dev.ID)
	if !detail.Profile.Verified || detail.Verification.GrantedBy != model.GrantedByAdmin {
		t.Errorf("detail = %+v, want admin-verified", detail)
	}
}

func TestCreateVerifiedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.bootstrap(t)

	tests := []struct {
		name      string
		username  string
		boost     int
		wantCount int
	}{
		{"default boost", "partner", DefaultCreateVerifiedBoost, DefaultCreateVerifiedBoost},
		{"negative boost is zero", "nobody-follows", -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := env.admin.CreateVerifiedAccount(ctx, creator, tt.username, "pw", tt.boost)
			if err != nil {
				t.Fatal(err)
			}
			if !acc.IsDeveloper || !acc.Approved || acc.Role != model.RoleDeveloper {
				t.Errorf("account = %+v, want approved developer", acc)
			}

			detail, err := env.social.GetDeveloper(ctx, acc.ID)
			if err != nil {
				t.Fatal(err)
			}
			if detail.FollowerCount != tt.wantCount {
				t.Errorf("FollowerCount = %d, want %d", detail.FollowerCount, tt.wantCount)
			}
			if !detail.Profile.Verified || detail.Verification == nil || detail.Verification.GrantedBy != model.GrantedByAdmin {
				t.Errorf("detail = %+v, want admin-verified", detail)
			}

			if _, err := env.identity.Login(ctx, tt.username, "pw"); err != nil {
				t.Errorf("Login() error = %v", err)
			}
		})
	}

	t.Run("duplicate username", func(t *testing.T) {
		_, err := env.admin.CreateVerifiedAccount(ctx, creator, "PARTNER", "pw", 0)
		assertKind(t, err, apperror.ErrUsernameTaken)
	})
	t.Run("missing fields", func(t *testing.T) {
		_, err := env.admin.CreateVerifiedAccount(ctx, creator, " ", "", 0)
		assertKind(t, err, apperror.ErrMissingFields)
	})
}

func TestStatsAndReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.bootstrap(t)
	dev := env.approvedDeveloper(t, creator, "d")
	fan := env.register(t, "fan", model.RoleUser)
	f := env.upload(t, dev, "counted")

	env.content.Like(ctx, fan.ID, f.ID)
	env.content.Comment(ctx, fan.ID, f.ID, "hi")
	if _, err := env.content.Report(ctx, fan.ID, f.ID, "broken"); err != nil {
		t.Fatal(err)
	}

	st, err := env.admin.Stats(ctx, creator)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Users: 3, Developers: 2, Files: 1, Reports: 1, Likes: 1, Comments: 1}
	if st != want {
		t.Errorf("Stats() = %+v, want %+v", st, want)
	}

	reports, err := env.admin.ListReports(ctx, creator)
	if err != nil || len(reports) != 1 || reports[0].Reason != "broken" {
		t.Errorf("ListReports() = %+v, %v", reports, err)
	}

	res, err := env.admin.DeleteFile(ctx, creator, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res != (DeleteResult{Likes: 1, Comments: 1, Reports: 1}) {
		t.Errorf("DeleteFile() = %+v", res)
	}
}

// TestEndToEnd walks a user and a developer from registration to a
// published file.
func TestEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := env.bootstrap(t)

	u, err := env.identity.Register(ctx, "U", "pw-u", model.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := env.social.FollowerCount(ctx, creator.ID); n != testCreator.Boost+1 {
		t.Errorf("creator followers = %d, want %d", n, testCreator.Boost+1)
	}

	if _, err := env.identity.Login(ctx, "U", "pw-u"); err != nil {
		t.Fatalf("Login(U) error = %v", err)
	}
	uAccount, err := env.identity.ResolveSession(ctx, u.Token)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.content.CreateFile(ctx, uAccount, NewFile{Title: "t", Description: "d"})
	assertKind(t, err, apperror.ErrNotApprovedDeveloper)

	d, err := env.identity.Register(ctx, "D", "pw-d", model.RoleDeveloper)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.identity.Login(ctx, "D", "pw-d")
	assertKind(t, err, apperror.ErrPendingApproval)

	if err := env.admin.ApproveDeveloper(ctx, creator, d.Account.ID); err != nil {
		t.Fatal(err)
	}
	login, err := env.identity.Login(ctx, "D", "pw-d")
	if err != nil {
		t.Fatalf("Login(D) after approval error = %v", err)
	}
	dAccount, err := env.identity.ResolveSession(ctx, login.Token)
	if err != nil {
		t.Fatal(err)
	}

	f, err := env.content.CreateFile(ctx, dAccount, NewFile{Title: "t", Description: "d", ZipURL: "https://example.com/t.zip"})
	if err != nil {
		t.Fatalf("CreateFile(D) error = %v", err)
	}

	views, err := env.content.ListFiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 {
		t.Fatalf("ListFiles() = %d files, want 1", len(views))
	}
	if v := views[0]; v.ID != f.ID || v.Likes != 0 || v.Comments != 0 {
		t.Errorf("view = %+v, want new file with no likes or comments", v)
	}
}
