package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/repository"
	"github.com/sakif/ziphub/internal/store"
)

// ProfileUpdate lists the fields a developer may change. A nil field is left
// as is; an empty display name or avatar is ignored.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	Avatar      *string `json:"avatar"`
}

// ProfileService edits developer profiles.
type ProfileService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewProfileService(st *store.Store, logger *slog.Logger) *ProfileService {
	return &ProfileService{store: st, logger: logger}
}

// UpdateDeveloperProfile applies upd to the account and its developer
// profile. The account is written first (display name, avatar), then the
// profile (bio, avatar).
func (s *ProfileService) UpdateDeveloperProfile(ctx context.Context, accountID string, upd ProfileUpdate) (model.DeveloperProfile, model.PublicAccount, error) {
	accounts, err := store.Get(ctx, s.store, repository.Accounts)
	if err != nil {
		return model.DeveloperProfile{}, model.PublicAccount{}, fmt.Errorf("service/profile: loading accounts: %w", err)
	}
	i := model.FindAccount(accounts, accountID)
	if i < 0 || !accounts[i].IsDeveloper {
		return model.DeveloperProfile{}, model.PublicAccount{}, apperror.Forbidden("not a developer")
	}

	devs, err := store.Get(ctx, s.store, repository.Developers)
	if err != nil {
		return model.DeveloperProfile{}, model.PublicAccount{}, fmt.Errorf("service/profile: loading developers: %w", err)
	}
	if model.FindDeveloper(devs, accountID) < 0 {
		return model.DeveloperProfile{}, model.PublicAccount{}, apperror.NoSuchDeveloper(accountID)
	}

	displayName := trimmed(upd.DisplayName)
	avatar := trimmed(upd.Avatar)

	account, err := store.Mutate(ctx, s.store, repository.Accounts,
		func(accounts []model.Account) ([]model.Account, model.Account, error) {
			i := model.FindAccount(accounts, accountID)
			if i < 0 {
				return accounts, model.Account{}, apperror.Forbidden("not a developer")
			}
			if displayName != "" {
				accounts[i].DisplayName = truncate(displayName, MaxDisplayNameLength)
			}
			if avatar != "" {
				accounts[i].Avatar = avatar
			}
			return accounts, accounts[i], nil
		})
	if err != nil {
		return model.DeveloperProfile{}, model.PublicAccount{}, wrapDomain("service/profile: updating account", err)
	}

	profile, err := store.Mutate(ctx, s.store, repository.Developers,
		func(devs []model.DeveloperProfile) ([]model.DeveloperProfile, model.DeveloperProfile, error) {
			i := model.FindDeveloper(devs, accountID)
			if i < 0 {
				return devs, model.DeveloperProfile{}, apperror.NoSuchDeveloper(accountID)
			}
			if upd.Bio != nil {
				devs[i].Bio = truncate(strings.TrimSpace(*upd.Bio), MaxBioLength)
			}
			if avatar != "" {
				devs[i].Avatar = avatar
			}
			return devs, devs[i], nil
		})
	if err != nil {
		return model.DeveloperProfile{}, model.PublicAccount{}, wrapDomain("service/profile: updating profile", err)
	}

	s.logger.Debug("developer profile updated", slog.String("developerID", accountID))
	return profile, account.Public(), nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// wrapDomain passes domain errors through untouched and wraps everything
// else with op.
func wrapDomain(op string, err error) error {
	if apperror.KindOf(err) != apperror.KindInternal {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
