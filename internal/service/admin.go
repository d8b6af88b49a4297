package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/repository"
	"github.com/sakif/ziphub/internal/store"
)

// DefaultCreateVerifiedBoost is the follower boost given to accounts made
// through CreateVerifiedAccount when the caller does not pass one.
const DefaultCreateVerifiedBoost = 50

// Stats are collection totals for the admin dashboard.
type Stats struct {
	Users      int `json:"users"`
	Developers int `json:"developers"`
	Files      int `json:"files"`
	Reports    int `json:"reports"`
	Likes      int `json:"likes"`
	Comments   int `json:"comments"`
}

// AdminService runs moderation operations. Every method takes the acting
// account and fails with Forbidden unless it is an admin or the creator.
type AdminService struct {
	store   *store.Store
	hasher  CredentialHasher
	social  *SocialService
	content *ContentService
	logger  *slog.Logger
	clock   clock
}

func NewAdminService(
	st *store.Store,
	hasher CredentialHasher,
	social *SocialService,
	content *ContentService,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		store:   st,
		hasher:  hasher,
		social:  social,
		content: content,
		logger:  logger,
	}
}

// RequireAdmin fails with Forbidden unless actor may use the admin operations.
func RequireAdmin(actor model.Account) error {
	if !actor.IsAdmin() {
		return apperror.Forbidden("admin only")
	}
	return nil
}

// Stats counts the records in each content collection.
func (s *AdminService) Stats(ctx context.Context, actor model.Account) (Stats, error) {
	if err := RequireAdmin(actor); err != nil {
		return Stats{}, err
	}

	var st Stats
	var err error
	if st.Users, err = count(ctx, s.store, repository.Accounts); err != nil {
		return Stats{}, err
	}
	if st.Developers, err = count(ctx, s.store, repository.Developers); err != nil {
		return Stats{}, err
	}
	if st.Files, err = count(ctx, s.store, repository.Files); err != nil {
		return Stats{}, err
	}
	if st.Reports, err = count(ctx, s.store, repository.Reports); err != nil {
		return Stats{}, err
	}
	if st.Likes, err = count(ctx, s.store, repository.Likes); err != nil {
		return Stats{}, err
	}
	if st.Comments, err = count(ctx, s.store, repository.Comments); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func count[T any](ctx context.Context, st *store.Store, c store.Collection[[]T]) (int, error) {
	v, err := store.Get(ctx, st, c)
	if err != nil {
		return 0, fmt.Errorf("service/admin: loading %s: %w", c.Name, err)
	}
	return len(v), nil
}

// ListReports returns every report.
func (s *AdminService) ListReports(ctx context.Context, actor model.Account) ([]model.Report, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	reports, err := store.Get(ctx, s.store, repository.Reports)
	if err != nil {
		return nil, fmt.Errorf("service/admin: loading reports: %w", err)
	}
	return reports, nil
}

// DeleteFile removes a file and its dependents.
func (s *AdminService) DeleteFile(ctx context.Context, actor model.Account, fileID string) (DeleteResult, error) {
	if err := RequireAdmin(actor); err != nil {
		return DeleteResult{}, err
	}
	res, err := s.content.DeleteFile(ctx, fileID)
	if err == nil {
		s.logger.Info("admin deleted file",
			slog.String("adminID", actor.ID),
			slog.String("fileID", fileID),
		)
	}
	return res, err
}

// ApproveDeveloper lets a pending developer log in and publish. The account
// is approved first, then the profile mirror; a missing profile is
// recreated.
func (s *AdminService) ApproveDeveloper(ctx context.Context, actor model.Account, devID string) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if devID == "" {
		return apperror.MissingFields("devId")
	}

	account, err := store.Mutate(ctx, s.store, repository.Accounts,
		func(accounts []model.Account) ([]model.Account, model.Account, error) {
			i := model.FindAccount(accounts, devID)
			if i < 0 || !accounts[i].IsDeveloper {
				return accounts, model.Account{}, apperror.NoSuchDeveloper(devID)
			}
			accounts[i].Approved = true
			return accounts, accounts[i], nil
		})
	if err != nil {
		return wrapDomain("service/admin: approving account", err)
	}

	if _, err := store.Mutate(ctx, s.store, repository.Developers,
		func(devs []model.DeveloperProfile) ([]model.DeveloperProfile, struct{}, error) {
			i := model.FindDeveloper(devs, devID)
			if i < 0 {
				devs = append(devs, model.DeveloperProfile{
					ID:       account.ID,
					Username: account.Username,
					Avatar:   account.Avatar,
				})
				i = len(devs) - 1
			}
			devs[i].Approved = true
			return devs, struct{}{}, nil
		}); err != nil {
		return fmt.Errorf("service/admin: mirroring approval: %w", err)
	}

	s.logger.Info("developer approved",
		slog.String("adminID", actor.ID),
		slog.String("developerID", devID),
	)
	return nil
}

// VerifyDeveloper grants an admin verification.
func (s *AdminService) VerifyDeveloper(ctx context.Context, actor model.Account, devID string) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if devID == "" {
		return apperror.MissingFields("devId")
	}
	return s.social.AdminVerify(ctx, devID)
}

// CreateVerifiedAccount creates an approved, admin-verified developer with
// boost extra followers. Negative boosts count as zero.
func (s *AdminService) CreateVerifiedAccount(ctx context.Context, actor model.Account, username, password string, boost int) (model.PublicAccount, error) {
	if err := RequireAdmin(actor); err != nil {
		return model.PublicAccount{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.PublicAccount{}, apperror.MissingFields("username", "password")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return model.PublicAccount{}, apperror.InvalidInput("password", "password must be 72 bytes or fewer")
		}
		return model.PublicAccount{}, fmt.Errorf("service/admin: hashing password: %w", err)
	}

	now := s.clock.now()
	account := model.Account{
		ID:             s.store.NewID(),
		Username:       username,
		CredentialHash: hash,
		Role:           model.RoleDeveloper,
		IsDeveloper:    true,
		Approved:       true,
		CreatedAt:      now,
		DisplayName:    username,
		Avatar:         model.DefaultAvatar,
	}

	if _, err := store.Mutate(ctx, s.store, repository.Accounts,
		func(accounts []model.Account) ([]model.Account, struct{}, error) {
			if model.FindAccountByUsername(accounts, username) >= 0 {
				return accounts, struct{}{}, apperror.New(apperror.ErrUsernameTaken, "username is already taken")
			}
			return append(accounts, account), struct{}{}, nil
		}); err != nil {
		return model.PublicAccount{}, wrapDomain("service/admin: creating account", err)
	}

	if _, err := store.Mutate(ctx, s.store, repository.Developers,
		func(devs []model.DeveloperProfile) ([]model.DeveloperProfile, struct{}, error) {
			return append(devs, model.DeveloperProfile{
				ID:       account.ID,
				Username: account.Username,
				Avatar:   model.DefaultAvatar,
				Approved: true,
			}), struct{}{}, nil
		}); err != nil {
		return model.PublicAccount{}, fmt.Errorf("service/admin: creating profile: %w", err)
	}

	if _, err := s.social.grant(ctx, account.ID, model.GrantedByAdmin, model.BadgeVerified, true); err != nil {
		return model.PublicAccount{}, err
	}

	if _, err := store.Mutate(ctx, s.store, repository.Followers,
		func(g model.FollowerGraph) (model.FollowerGraph, struct{}, error) {
			g.AddBoost(account.ID, boost)
			return g, struct{}{}, nil
		}); err != nil {
		return model.PublicAccount{}, fmt.Errorf("service/admin: setting boost: %w", err)
	}

	s.logger.Info("verified account created",
		slog.String("adminID", actor.ID),
		slog.String("accountID", account.ID),
		slog.Int("boost", max(0, boost)),
	)
	return account.Public(), nil
}
