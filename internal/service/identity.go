package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/repository"
	"github.com/sakif/ziphub/internal/store"
)

// CredentialHasher is the one-way credential primitive. auth.PasswordService
// implements it; Verify must return auth.ErrPasswordMismatch for a wrong
// password.
type CredentialHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// CreatorConfig describes the distinguished account created by Bootstrap.
type CreatorConfig struct {
	Username    string
	Password    string
	DisplayName string
	Bio         string
	Boost       int
}

// IdentityService handles accounts and sessions.
//
// DEPENDENCIES (injected via NewIdentityService):
//   - store    *store.Store      → accounts, developers, sessions
//   - hasher   CredentialHasher  → bcrypt in production, cost 4 in tests
//   - social   *SocialService    → auto-follow of the creator, bootstrap grant
//   - creator  CreatorConfig     → who the distinguished account is
type IdentityService struct {
	store   *store.Store
	hasher  CredentialHasher
	social  *SocialService
	creator CreatorConfig
	logger  *slog.Logger
	clock   clock
}

func NewIdentityService(
	st *store.Store,
	hasher CredentialHasher,
	social *SocialService,
	creator CreatorConfig,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		store:   st,
		hasher:  hasher,
		social:  social,
		creator: creator,
		logger:  logger,
	}
}

// AuthResult bundles the account and the new session token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	Account model.PublicAccount
	Token   string
}

// Bootstrap makes sure the distinguished creator account exists together
// with its developer profile, follower boost and verification record.
//
// It is idempotent: a second run finds the account and only backfills what
// is missing, so there is always exactly one account, one boost entry and one
// verification record for the creator.
func (s *IdentityService) Bootstrap(ctx context.Context) error {
	c := s.creator
	if c.Username == "" {
		return errors.New("service/identity: creator username must not be empty")
	}

	accounts, err := store.Get(ctx, s.store, repository.Accounts)
	if err != nil {
		return fmt.Errorf("service/identity: loading accounts: %w", err)
	}

	// Hash outside the lock, and only when the account is actually missing.
	var hash string
	if model.FindAccountByUsername(accounts, c.Username) < 0 {
		if hash, err = s.hasher.Hash(c.Password); err != nil {
			return fmt.Errorf("service/identity: hashing creator password: %w", err)
		}
	}

	id := s.store.NewID()
	now := s.clock.now()
	creator, err := store.Mutate(ctx, s.store, repository.Accounts,
		func(accounts []model.Account) ([]model.Account, model.Account, error) {
			if i := model.FindAccountByUsername(accounts, c.Username); i >= 0 {
				return accounts, accounts[i], nil
			}
			if hash == "" {
				// Someone else removed it between our read and this mutation.
				return accounts, model.Account{}, errors.New("service/identity: creator account vanished during bootstrap")
			}
			a := model.Account{
				ID:             id,
				Username:       c.Username,
				CredentialHash: hash,
				Role:           model.RoleCreator,
				IsDeveloper:    true,
				Approved:       true,
				CreatedAt:      now,
				DisplayName:    c.DisplayName,
				Avatar:         model.DefaultAvatar,
			}
			return append(accounts, a), a, nil
		})
	if err != nil {
		return fmt.Errorf("service/identity: creating creator account: %w", err)
	}
	if creator.Role != model.RoleCreator {
		return fmt.Errorf("service/identity: username %q is held by a non-creator account", c.Username)
	}

	if _, err := store.Mutate(ctx, s.store, repository.Developers,
		func(devs []model.DeveloperProfile) ([]model.DeveloperProfile, struct{}, error) {
			if model.FindDeveloper(devs, creator.ID) < 0 {
				devs = append(devs, model.DeveloperProfile{
					ID:       creator.ID,
					Username: creator.Username,
					Bio:      c.Bio,
					Avatar:   model.DefaultAvatar,
					Approved: true,
				})
			}
			return devs, struct{}{}, nil
		}); err != nil {
		return fmt.Errorf("service/identity: creating creator profile: %w", err)
	}

	if _, err := store.Mutate(ctx, s.store, repository.Followers,
		func(g model.FollowerGraph) (model.FollowerGraph, struct{}, error) {
			if _, ok := g.Boost[creator.ID]; !ok {
				g.AddBoost(creator.ID, c.Boost)
			}
			return g, struct{}{}, nil
		}); err != nil {
		return fmt.Errorf("service/identity: setting creator boost: %w", err)
	}

	if _, err := s.social.grant(ctx, creator.ID, model.GrantedByBootstrap, model.BadgeCreator, false); err != nil {
		return err
	}

	s.logger.Info("creator account ready",
		slog.String("accountID", creator.ID),
		slog.String("username", creator.Username),
	)
	return nil
}

// Register creates an account and logs it in.
//
// role "developer" creates a developer account with a pending profile; any
// other value creates a plain user. The case-insensitive uniqueness check
// and the insert happen inside one accounts mutation, so of two concurrent
// registrations for the same name exactly one wins.
func (s *IdentityService) Register(ctx context.Context, username, password string, role model.Role) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.InvalidInput("username", "username and password are required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, apperror.InvalidInput("username",
			fmt.Sprintf("username must be %d characters or fewer", MaxUsernameLength))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.InvalidInput("password", "password must be 72 bytes or fewer")
		}
		return nil, fmt.Errorf("service/identity: hashing password: %w", err)
	}

	isDev := role == model.RoleDeveloper
	account := model.Account{
		ID:             s.store.NewID(),
		Username:       username,
		CredentialHash: hash,
		Role:           model.RoleUser,
		IsDeveloper:    isDev,
		Approved:       !isDev, // developers wait for an admin
		CreatedAt:      s.clock.now(),
		DisplayName:    username,
		Avatar:         model.DefaultAvatar,
	}
	if isDev {
		account.Role = model.RoleDeveloper
	}

	if _, err := store.Mutate(ctx, s.store, repository.Accounts,
		func(accounts []model.Account) ([]model.Account, struct{}, error) {
			if model.FindAccountByUsername(accounts, username) >= 0 {
				return accounts, struct{}{}, apperror.New(apperror.ErrUsernameTaken, "username is already taken")
			}
			return append(accounts, account), struct{}{}, nil
		}); err != nil {
		if errors.Is(err, apperror.ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("service/identity: creating account: %w", err)
	}

	if isDev {
		if _, err := store.Mutate(ctx, s.store, repository.Developers,
			func(devs []model.DeveloperProfile) ([]model.DeveloperProfile, struct{}, error) {
				return append(devs, model.DeveloperProfile{
					ID:       account.ID,
					Username: account.Username,
					Avatar:   model.DefaultAvatar,
				}), struct{}{}, nil
			}); err != nil {
			return nil, fmt.Errorf("service/identity: creating developer profile: %w", err)
		}
	}

	s.followCreator(ctx, account.ID)

	token, err := s.newSession(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered",
		slog.String("accountID", account.ID),
		slog.String("username", account.Username),
		slog.String("role", string(account.Role)),
	)
	return &AuthResult{Account: account.Public(), Token: token}, nil
}

// followCreator makes a new account follow the creator. Failure is logged
// and does not fail the registration.
func (s *IdentityService) followCreator(ctx context.Context, accountID string) {
	creatorID, ok, err := s.CreatorID(ctx)
	if err != nil || !ok {
		if err != nil {
			s.logger.Warn("auto-follow skipped", slog.String("error", err.Error()))
		}
		return
	}
	if _, err := s.social.Follow(ctx, accountID, creatorID); err != nil {
		s.logger.Warn("auto-follow of creator failed",
			slog.String("accountID", accountID),
			slog.String("error", err.Error()),
		)
	}
}

// CreatorID returns the id of the distinguished account, if it exists.
func (s *IdentityService) CreatorID(ctx context.Context) (string, bool, error) {
	accounts, err := store.Get(ctx, s.store, repository.Accounts)
	if err != nil {
		return "", false, fmt.Errorf("service/identity: loading accounts: %w", err)
	}
	i := model.FindAccountByUsername(accounts, s.creator.Username)
	if i < 0 || accounts[i].Role != model.RoleCreator {
		return "", false, nil
	}
	return accounts[i].ID, true, nil
}

// Login verifies credentials and issues a new session. Sessions are
// additive; earlier sessions stay valid.
//
// Unknown usernames and wrong passwords fail with the same error so that
// the response does not reveal which usernames exist.
func (s *IdentityService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.InvalidInput("username", "username and password are required")
	}

	accounts, err := store.Get(ctx, s.store, repository.Accounts)
	if err != nil {
		return nil, fmt.Errorf("service/identity: loading accounts: %w", err)
	}
	i := model.FindAccountByUsername(accounts, username)
	if i < 0 {
		return nil, invalidCredentials()
	}
	account := accounts[i]

	if err := s.hasher.Verify(account.CredentialHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("credential check failed",
				slog.String("accountID", account.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, invalidCredentials()
	}

	if account.IsDeveloper && !account.Approved {
		return nil, apperror.New(apperror.ErrPendingApproval, "developer pending admin approval")
	}

	token, err := s.newSession(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Account: account.Public(), Token: token}, nil
}

func invalidCredentials() error {
	return apperror.New(apperror.ErrInvalidCredentials, "invalid username or password")
}

func (s *IdentityService) newSession(ctx context.Context, accountID string) (string, error) {
	session := model.Session{
		Token:     uuid.NewString(),
		AccountID: accountID,
		CreatedAt: s.clock.now(),
	}
	if _, err := store.Mutate(ctx, s.store, repository.Sessions,
		func(sessions []model.Session) ([]model.Session, struct{}, error) {
			return append(sessions, session), struct{}{}, nil
		}); err != nil {
		return "", fmt.Errorf("service/identity: creating session: %w", err)
	}
	return session.Token, nil
}

// ResolveSession returns the account behind token. It fails with
// Unauthenticated for an absent or unknown token and with InvalidSession
// when the token's account no longer exists.
func (s *IdentityService) ResolveSession(ctx context.Context, token string) (model.Account, error) {
	if token == "" {
		return model.Account{}, apperror.New(apperror.ErrUnauthenticated, "login required")
	}

	sessions, err := store.Get(ctx, s.store, repository.Sessions)
	if err != nil {
		return model.Account{}, fmt.Errorf("service/identity: loading sessions: %w", err)
	}
	i := slices.IndexFunc(sessions, func(ss model.Session) bool { return ss.Token == token })
	if i < 0 {
		return model.Account{}, apperror.New(apperror.ErrUnauthenticated, "login required")
	}

	accounts, err := store.Get(ctx, s.store, repository.Accounts)
	if err != nil {
		return model.Account{}, fmt.Errorf("service/identity: loading accounts: %w", err)
	}
	j := model.FindAccount(accounts, sessions[i].AccountID)
	if j < 0 {
		return model.Account{}, apperror.New(apperror.ErrInvalidSession, "session account no longer exists")
	}
	return accounts[j], nil
}

// Logout removes the session. Logging out twice is not an error.
func (s *IdentityService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := store.Mutate(ctx, s.store, repository.Sessions,
		func(sessions []model.Session) ([]model.Session, struct{}, error) {
			return slices.DeleteFunc(sessions, func(ss model.Session) bool { return ss.Token == token }), struct{}{}, nil
		})
	if err != nil {
		return fmt.Errorf("service/identity: removing session: %w", err)
	}
	return nil
}

// Me returns the redacted account behind token.
func (s *IdentityService) Me(ctx context.Context, token string) (model.PublicAccount, error) {
	a, err := s.ResolveSession(ctx, token)
	if err != nil {
		return model.PublicAccount{}, err
	}
	return a.Public(), nil
}
