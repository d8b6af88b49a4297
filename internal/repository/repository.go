// Package repository is the catalogue of persisted collections.
//
// Services never name a collection by string; they pass one of the typed
// descriptors below to store.Get / store.Mutate. Each descriptor carries the
// collection's default value, which is what a collection starts as on first
// access and what it is reset to if its stored content is unusable.
package repository

import (
	"context"
	"fmt"

	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/store"
)

var (
	Accounts = store.Collection[[]model.Account]{
		Name:    "accounts",
		Default: func() []model.Account { return []model.Account{} },
	}

	Developers = store.Collection[[]model.DeveloperProfile]{
		Name:    "developers",
		Default: func() []model.DeveloperProfile { return []model.DeveloperProfile{} },
	}

	Sessions = store.Collection[[]model.Session]{
		Name:    "sessions",
		Default: func() []model.Session { return []model.Session{} },
	}

	Followers = store.Collection[model.FollowerGraph]{
		Name: "followers",
		Default: func() model.FollowerGraph {
			return model.FollowerGraph{Boost: map[string]int{}, Edges: []model.FollowEdge{}}
		},
	}

	Verifications = store.Collection[model.Verifications]{
		Name: "verifications",
		Default: func() model.Verifications {
			return model.Verifications{Verified: map[string]model.VerificationRecord{}}
		},
	}

	Files = store.Collection[[]model.File]{
		Name:    "files",
		Default: func() []model.File { return []model.File{} },
	}

	Likes = store.Collection[[]model.Like]{
		Name:    "likes",
		Default: func() []model.Like { return []model.Like{} },
	}

	Comments = store.Collection[[]model.Comment]{
		Name:    "comments",
		Default: func() []model.Comment { return []model.Comment{} },
	}

	Reports = store.Collection[[]model.Report]{
		Name:    "reports",
		Default: func() []model.Report { return []model.Report{} },
	}
)

// Warm touches every collection once so that missing ones are created and
// corrupt ones are healed before the first request arrives.
func Warm(ctx context.Context, s *store.Store) error {
	steps := []func() error{
		func() error { _, err := store.Get(ctx, s, Accounts); return err },
		func() error { _, err := store.Get(ctx, s, Developers); return err },
		func() error { _, err := store.Get(ctx, s, Sessions); return err },
		func() error { _, err := store.Get(ctx, s, Followers); return err },
		func() error { _, err := store.Get(ctx, s, Verifications); return err },
		func() error { _, err := store.Get(ctx, s, Files); return err },
		func() error { _, err := store.Get(ctx, s, Likes); return err },
		func() error { _, err := store.Get(ctx, s, Comments); return err },
		func() error { _, err := store.Get(ctx, s, Reports); return err },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("repository: warming collections: %w", err)
		}
	}
	return nil
}
