package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/repository"
	"github.com/sakif/ziphub/internal/store"
)

// VerificationThreshold is the follower count at which a developer is
// verified automatically.
const VerificationThreshold = 20

// SocialService manages follow edges, follower counts and verification.
type SocialService struct {
	store  *store.Store
	logger *slog.Logger
	clock  clock
}

func NewSocialService(st *store.Store, logger *slog.Logger) *SocialService {
	return &SocialService{store: st, logger: logger}
}

// FollowResult describes the outcome of a follow.
type FollowResult struct {
	Created       bool `json:"created"`
	FollowerCount int  `json:"followerCount"`
	Verified      bool `json:"verified"`
}

// DeveloperDetail is a profile with its derived follower count.
type DeveloperDetail struct {
	Profile       model.DeveloperProfile    `json:"dev"`
	FollowerCount int                       `json:"followers"`
	Verification  *model.VerificationRecord `json:"verification,omitempty"`
}

// Follow makes followerID follow followedID.
//
// Following yourself, or someone you already follow, succeeds without
// changing anything. The verification threshold is evaluated from the count
// computed inside the same followers mutation that inserted the edge, so the
// 20th follower always triggers verification in the call that added it.
func (s *SocialService) Follow(ctx context.Context, followerID, followedID string) (FollowResult, error) {
	if followerID == followedID {
		return FollowResult{}, nil
	}

	devs, err := store.Get(ctx, s.store, repository.Developers)
	if err != nil {
		return FollowResult{}, fmt.Errorf("service/social: loading developers: %w", err)
	}
	if model.FindDeveloper(devs, followedID) < 0 {
		return FollowResult{}, apperror.NoSuchDeveloper(followedID)
	}

	at := s.clock.now()
	res, err := store.Mutate(ctx, s.store, repository.Followers,
		func(g model.FollowerGraph) (model.FollowerGraph, FollowResult, error) {
			var r FollowResult
			if !g.HasEdge(followerID, followedID) {
				g.Edges = append(g.Edges, model.FollowEdge{FollowerID: followerID, FollowedID: followedID, At: at})
				r.Created = true
			}
			r.FollowerCount = g.FollowerCount(followedID)
			return g, r, nil
		})
	if err != nil {
		return FollowResult{}, fmt.Errorf("service/social: adding follow edge: %w", err)
	}

	// Re-evaluated even when the edge already existed, so a verification
	// interrupted by a crash is completed by the next follow attempt.
	if res.FollowerCount >= VerificationThreshold {
		if _, err := s.grant(ctx, followedID, model.GrantedByAuto, model.BadgeVerified, false); err != nil {
			return FollowResult{}, err
		}
		res.Verified = true
	}

	if res.Created {
		s.logger.Debug("follow edge created",
			slog.String("follower", followerID),
			slog.String("followed", followedID),
			slog.Int("followerCount", res.FollowerCount),
		)
	}
	return res, nil
}

// FollowerCount returns raw edges plus boost for id. It is always derived,
// never stored.
func (s *SocialService) FollowerCount(ctx context.Context, id string) (int, error) {
	g, err := store.Get(ctx, s.store, repository.Followers)
	if err != nil {
		return 0, fmt.Errorf("service/social: loading followers: %w", err)
	}
	return g.FollowerCount(id), nil
}

// AdminVerify records an admin verification for developerID, replacing any
// existing record.
func (s *SocialService) AdminVerify(ctx context.Context, developerID string) error {
	devs, err := store.Get(ctx, s.store, repository.Developers)
	if err != nil {
		return fmt.Errorf("service/social: loading developers: %w", err)
	}
	if model.FindDeveloper(devs, developerID) < 0 {
		return apperror.NoSuchDeveloper(developerID)
	}

	if _, err := s.grant(ctx, developerID, model.GrantedByAdmin, model.BadgeVerified, true); err != nil {
		return err
	}
	s.logger.Info("developer verified by admin", slog.String("developerID", developerID))
	return nil
}

// grant writes the verification record, then mirrors verified=true onto the
// profile. Unless overwrite is set the record is only written when absent,
// which keeps auto grants from replacing admin or bootstrap ones. The mirror
// is applied either way so an interrupted earlier grant heals.
func (s *SocialService) grant(ctx context.Context, id string, by model.Grantor, badge string, overwrite bool) (bool, error) {
	rec := model.VerificationRecord{GrantedBy: by, Date: s.clock.now(), Badge: badge}

	inserted, err := store.Mutate(ctx, s.store, repository.Verifications,
		func(v model.Verifications) (model.Verifications, bool, error) {
			if _, ok := v.Get(id); ok && !overwrite {
				return v, false, nil
			}
			v.Set(id, rec)
			return v, true, nil
		})
	if err != nil {
		return false, fmt.Errorf("service/social: recording verification: %w", err)
	}

	if err := s.markVerified(ctx, id); err != nil {
		return false, err
	}

	if inserted && by == model.GrantedByAuto {
		s.logger.Info("developer auto-verified", slog.String("developerID", id))
	}
	return inserted, nil
}

func (s *SocialService) markVerified(ctx context.Context, id string) error {
	_, err := store.Mutate(ctx, s.store, repository.Developers,
		func(devs []model.DeveloperProfile) ([]model.DeveloperProfile, struct{}, error) {
			if i := model.FindDeveloper(devs, id); i >= 0 {
				devs[i].Verified = true
			}
			return devs, struct{}{}, nil
		})
	if err != nil {
		return fmt.Errorf("service/social: mirroring verification: %w", err)
	}
	return nil
}

// ListDevelopers returns every developer profile.
func (s *SocialService) ListDevelopers(ctx context.Context) ([]model.DeveloperProfile, error) {
	devs, err := store.Get(ctx, s.store, repository.Developers)
	if err != nil {
		return nil, fmt.Errorf("service/social: loading developers: %w", err)
	}
	return devs, nil
}

// GetDeveloper returns one profile with its follower count.
func (s *SocialService) GetDeveloper(ctx context.Context, id string) (*DeveloperDetail, error) {
	devs, err := store.Get(ctx, s.store, repository.Developers)
	if err != nil {
		return nil, fmt.Errorf("service/social: loading developers: %w", err)
	}
	i := model.FindDeveloper(devs, id)
	if i < 0 {
		return nil, apperror.NoSuchDeveloper(id)
	}

	count, err := s.FollowerCount(ctx, id)
	if err != nil {
		return nil, err
	}

	v, err := store.Get(ctx, s.store, repository.Verifications)
	if err != nil {
		return nil, fmt.Errorf("service/social: loading verifications: %w", err)
	}

	detail := &DeveloperDetail{Profile: devs[i], FollowerCount: count}
	if rec, ok := v.Get(id); ok {
		detail.Verification = &rec
	}
	return detail, nil
}
