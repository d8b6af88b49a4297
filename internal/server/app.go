package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/ziphub/internal/auth"
	"github.com/sakif/ziphub/internal/config"
	"github.com/sakif/ziphub/internal/repository"
	"github.com/sakif/ziphub/internal/service"
	"github.com/sakif/ziphub/internal/store"
	badgerstore "github.com/sakif/ziphub/internal/store/badger"
	sqlitestore "github.com/sakif/ziphub/internal/store/sqlite"
)

// OpenBackend creates the store backend named by cfg.StoreBackend.
//
//	file    → <data_dir>/<collection>.json
//	sqlite  → <data_dir>/ziphub.db
//	badger  → <data_dir>/badger/
//	memory  → nothing on disk
func OpenBackend(cfg *config.Config, logger *slog.Logger) (store.Backend, error) {
	if cfg.StoreBackend != config.BackendMemory {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
		}
	}

	switch cfg.StoreBackend {
	case config.BackendFile:
		return store.NewFileBackend(cfg.DataDir)
	case config.BackendMemory:
		return store.NewMemoryBackend(), nil
	case config.BackendSQLite:
		return sqlitestore.New(filepath.Join(cfg.DataDir, "ziphub.db"))
	case config.BackendBadger:
		bc := badgerstore.DefaultConfig(filepath.Join(cfg.DataDir, "badger"))
		bc.Logger = logger.With(slog.String("component", "badger"))
		return badgerstore.Open(bc)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// Services is every domain service, wired over one store.
type Services struct {
	Store    *store.Store
	Identity *service.IdentityService
	Social   *service.SocialService
	Content  *service.ContentService
	Profile  *service.ProfileService
	Admin    *service.AdminService
}

// NewServices builds the service graph.
//
// DEPENDENCY GRAPH:
//
//	store ─┬─ SocialService ──┬─ IdentityService
//	       │                  └─ AdminService
//	       ├─ ContentService ───┘
//	       └─ ProfileService
func NewServices(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Services, error) {
	hasher, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	var seeds service.SeedPolicy = service.NoSeed{}
	if cfg.SeedLikes {
		seeds = service.DefaultSeedPolicy()
	}

	social := service.NewSocialService(st, logger)
	content := service.NewContentService(st, seeds, logger)
	return &Services{
		Store: st,
		Identity: service.NewIdentityService(st, hasher, social, service.CreatorConfig{
			Username:    cfg.Creator.Username,
			Password:    cfg.Creator.Password,
			DisplayName: cfg.Creator.DisplayName,
			Bio:         cfg.Creator.Bio,
			Boost:       cfg.Creator.Boost,
		}, logger),
		Social:  social,
		Content: content,
		Profile: service.NewProfileService(st, logger),
		Admin:   service.NewAdminService(st, hasher, social, content, logger),
	}, nil
}

// Prepare creates missing collections, makes sure the creator account
// exists and removes dependents orphaned by an interrupted delete.
func (s *Services) Prepare(ctx context.Context, logger *slog.Logger) error {
	if err := repository.Warm(ctx, s.Store); err != nil {
		return err
	}
	if err := s.Identity.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping creator: %w", err)
	}
	res, err := s.Content.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweeping orphans: %w", err)
	}
	logger.Debug("startup sweep finished",
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
		slog.Int("reports", res.Reports),
	)
	return nil
}

// Open opens the configured backend and wires the services over it. The
// caller owns the returned store and must Close it.
func Open(cfg *config.Config, logger *slog.Logger) (*Services, error) {
	backend, err := OpenBackend(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.StoreBackend, err)
	}
	st := store.New(backend, logger)

	svc, err := NewServices(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return svc, nil
}
