package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/ziphub/internal/apperror"
	"github.com/sakif/ziphub/internal/model"
	"github.com/sakif/ziphub/internal/repository"
	"github.com/sakif/ziphub/internal/store"
)

// SweepGrace is how old an orphaned dependent must be, relative to the files
// snapshot, before Sweep removes it.
const SweepGrace = time.Minute

// SeedPolicy decides how many synthetic likes a new file starts with.
type SeedPolicy interface {
	Seeds(owner model.Account) int
}

// CreatorSeedPolicy gives files uploaded by creator-role accounts between
// Min and Min+Spread-1 seed likes.
type CreatorSeedPolicy struct {
	Min    int
	Spread int
}

// DefaultSeedPolicy seeds 60 to 139 likes on creator uploads.
func DefaultSeedPolicy() CreatorSeedPolicy {
	return CreatorSeedPolicy{Min: 60, Spread: 80}
}

func (p CreatorSeedPolicy) Seeds(owner model.Account) int {
	if owner.Role != model.RoleCreator {
		return 0
	}
	if p.Spread <= 0 {
		return p.Min
	}
	return p.Min + rand.IntN(p.Spread)
}

// NoSeed never seeds.
type NoSeed struct{}

func (NoSeed) Seeds(model.Account) int { return 0 }

// ContentService manages files and the likes, comments and reports that
// hang off them.
//
// ATTACH PROTOCOL:
// Like, Comment and Report touch two collections (files to check, the
// dependent to insert) and cannot lock both. They check the file, insert the
// dependent, then check the file again; if it vanished in between, the
// dependent is removed and NoSuchFile is returned. DeleteFile removes the
// file before its dependents, so whichever side loses the race cleans up and
// no dependent outlives its file.
type ContentService struct {
	store  *store.Store
	seeds  SeedPolicy
	logger *slog.Logger
	clock  clock
}

func NewContentService(st *store.Store, seeds SeedPolicy, logger *slog.Logger) *ContentService {
	if seeds == nil {
		seeds = NoSeed{}
	}
	return &ContentService{store: st, seeds: seeds, logger: logger}
}

// NewFile holds upload input.
type NewFile struct {
	Title       string
	Description string
	ZipURL      string
}

// DeleteResult counts what a delete removed.
type DeleteResult struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Reports  int `json:"reports"`
}

// SweepResult counts orphaned dependents removed by Sweep.
type SweepResult = DeleteResult

// CreateFile publishes a file owned by owner. Only approved developers may
// publish. Title and description are required and truncated to their limits.
func (s *ContentService) CreateFile(ctx context.Context, owner model.Account, in NewFile) (model.File, error) {
	if !owner.CanPublish() {
		return model.File{}, apperror.New(apperror.ErrNotApprovedDeveloper, "developer approval required")
	}
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" || desc == "" {
		return model.File{}, apperror.InvalidInput("title", "title and description are required")
	}

	f := model.File{
		ID:          s.store.NewID(),
		OwnerID:     owner.ID,
		Title:       truncate(title, MaxTitleLength),
		Description: truncate(desc, MaxDescriptionLength),
		ZipURL:      strings.TrimSpace(in.ZipURL),
		CreatedAt:   s.clock.now(),
	}

	if _, err := store.Mutate(ctx, s.store, repository.Files,
		func(files []model.File) ([]model.File, struct{}, error) {
			return append(files, f), struct{}{}, nil
		}); err != nil {
		return model.File{}, fmt.Errorf("service/content: creating file: %w", err)
	}

	if n := s.seeds.Seeds(owner); n > 0 {
		if err := s.seed(ctx, f.ID, n); err != nil {
			return model.File{}, err
		}
	}

	s.logger.Info("file created",
		slog.String("fileID", f.ID),
		slog.String("ownerID", owner.ID),
	)
	return f, nil
}

// seed inserts n synthetic likes for fileID, then checks the file again the
// way attach does. If it was deleted in between, the seeded likes are purged
// and NoSuchFile is returned.
func (s *ContentService) seed(ctx context.Context, fileID string, n int) error {
	at := s.clock.now()
	_, err := store.Mutate(ctx, s.store, repository.Likes,
		func(likes []model.Like) ([]model.Like, struct{}, error) {
			for i := range n {
				likes = append(likes, model.Like{UserID: "seed-" + strconv.Itoa(i), FileID: fileID, At: at})
			}
			return likes, struct{}{}, nil
		})
	if err != nil {
		return fmt.Errorf("service/content: seeding likes: %w", err)
	}

	ok, err := s.fileExists(ctx, fileID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := purgeFrom(ctx, s.store, repository.Likes, func(l model.Like) bool { return l.FileID == fileID }); err != nil {
		return err
	}
	return apperror.NoSuchFile(fileID)
}

// ListFiles returns every file with derived like and comment counts and its
// redacted owner.
func (s *ContentService) ListFiles(ctx context.Context) ([]model.FileView, error) {
	files, err := store.Get(ctx, s.store, repository.Files)
	if err != nil {
		return nil, fmt.Errorf("service/content: loading files: %w", err)
	}
	likes, err := store.Get(ctx, s.store, repository.Likes)
	if err != nil {
		return nil, fmt.Errorf("service/content: loading likes: %w", err)
	}
	comments, err := store.Get(ctx, s.store, repository.Comments)
	if err != nil {
		return nil, fmt.Errorf("service/content: loading comments: %w", err)
	}
	accounts, err := store.Get(ctx, s.store, repository.Accounts)
	if err != nil {
		return nil, fmt.Errorf("service/content: loading accounts: %w", err)
	}

	likeCount := make(map[string]int)
	for _, l := range likes {
		likeCount[l.FileID]++
	}
	commentCount := make(map[string]int)
	for _, c := range comments {
		commentCount[c.FileID]++
	}

	views := make([]model.FileView, 0, len(files))
	for _, f := range files {
		v := model.FileView{File: f, Likes: likeCount[f.ID], Comments: commentCount[f.ID]}
		if i := model.FindAccount(accounts, f.OwnerID); i >= 0 {
			owner := accounts[i].Public()
			v.Owner = &owner
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *ContentService) fileExists(ctx context.Context, id string) (bool, error) {
	files, err := store.Get(ctx, s.store, repository.Files)
	if err != nil {
		return false, fmt.Errorf("service/content: loading files: %w", err)
	}
	return model.FindFile(files, id) >= 0, nil
}

// attach runs the attach protocol for one dependent collection. insert
// reports whether it added a record; detach removes what insert added.
func attach[T any](
	ctx context.Context,
	s *ContentService,
	c store.Collection[[]T],
	fileID string,
	insert func([]T) ([]T, bool),
	detach func([]T) []T,
) (bool, error) {
	ok, err := s.fileExists(ctx, fileID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperror.NoSuchFile(fileID)
	}

	created, err := store.Mutate(ctx, s.store, c, func(cur []T) ([]T, bool, error) {
		next, added := insert(cur)
		return next, added, nil
	})
	if err != nil {
		return false, fmt.Errorf("service/content: inserting into %s: %w", c.Name, err)
	}
	if !created {
		return false, nil
	}

	ok, err = s.fileExists(ctx, fileID)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	// The file was deleted while we were inserting.
	if _, err := store.Mutate(ctx, s.store, c, func(cur []T) ([]T, struct{}, error) {
		return detach(cur), struct{}{}, nil
	}); err != nil {
		return false, fmt.Errorf("service/content: detaching from %s: %w", c.Name, err)
	}
	return false, apperror.NoSuchFile(fileID)
}

// Like records that userID likes fileID. Liking twice is a no-op; the
// returned bool reports whether a like was added.
func (s *ContentService) Like(ctx context.Context, userID, fileID string) (bool, error) {
	match := func(l model.Like) bool { return l.UserID == userID && l.FileID == fileID }
	like := model.Like{UserID: userID, FileID: fileID, At: s.clock.now()}

	return attach(ctx, s, repository.Likes, fileID,
		func(likes []model.Like) ([]model.Like, bool) {
			if slices.ContainsFunc(likes, match) {
				return likes, false
			}
			return append(likes, like), true
		},
		func(likes []model.Like) []model.Like {
			return slices.DeleteFunc(likes, match)
		})
}

// Comment adds a comment to fileID. Blank text fails with EmptyComment;
// text is truncated to MaxCommentLength.
func (s *ContentService) Comment(ctx context.Context, userID, fileID, text string) (model.Comment, error) {
	if blank(text) {
		return model.Comment{}, apperror.New(apperror.ErrEmptyComment, "comment text is empty")
	}

	c := model.Comment{
		ID:     s.store.NewID(),
		FileID: fileID,
		UserID: userID,
		Text:   truncate(strings.TrimSpace(text), MaxCommentLength),
		At:     s.clock.now(),
	}
	match := func(x model.Comment) bool { return x.ID == c.ID }

	if _, err := attach(ctx, s, repository.Comments, fileID,
		func(cs []model.Comment) ([]model.Comment, bool) { return append(cs, c), true },
		func(cs []model.Comment) []model.Comment { return slices.DeleteFunc(cs, match) },
	); err != nil {
		return model.Comment{}, err
	}
	return c, nil
}

// Report files a moderation report against fileID.
func (s *ContentService) Report(ctx context.Context, reporterID, fileID, reason string) (model.Report, error) {
	var missing []string
	if fileID == "" {
		missing = append(missing, "fileId")
	}
	if blank(reason) {
		missing = append(missing, "reason")
	}
	if len(missing) > 0 {
		return model.Report{}, apperror.MissingFields(missing...)
	}

	r := model.Report{
		ID:         s.store.NewID(),
		FileID:     fileID,
		Reason:     truncate(strings.TrimSpace(reason), MaxReasonLength),
		ReporterID: reporterID,
		At:         s.clock.now(),
	}
	match := func(x model.Report) bool { return x.ID == r.ID }

	if _, err := attach(ctx, s, repository.Reports, fileID,
		func(rs []model.Report) ([]model.Report, bool) { return append(rs, r), true },
		func(rs []model.Report) []model.Report { return slices.DeleteFunc(rs, match) },
	); err != nil {
		return model.Report{}, err
	}

	s.logger.Info("file reported",
		slog.String("fileID", fileID),
		slog.String("reporterID", reporterID),
	)
	return r, nil
}

// DeleteFile removes the file, then every like, comment and report that
// references it, in that order.
//
// When the file is already gone the dependent purge still runs, so calling
// DeleteFile again completes a cascade that was interrupted part-way; the
// call then fails with NoSuchFile.
func (s *ContentService) DeleteFile(ctx context.Context, fileID string) (DeleteResult, error) {
	if fileID == "" {
		return DeleteResult{}, apperror.MissingFields("fileId")
	}

	found, err := store.Mutate(ctx, s.store, repository.Files,
		func(files []model.File) ([]model.File, bool, error) {
			i := model.FindFile(files, fileID)
			if i < 0 {
				return files, false, nil
			}
			return slices.Delete(files, i, i+1), true, nil
		})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("service/content: deleting file: %w", err)
	}

	res, err := s.purge(ctx, func(id string, _ time.Time) bool { return id == fileID })
	if err != nil {
		return res, err
	}

	if !found {
		return res, apperror.NoSuchFile(fileID)
	}
	s.logger.Info("file deleted",
		slog.String("fileID", fileID),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
		slog.Int("reports", res.Reports),
	)
	return res, nil
}

// Sweep removes dependents whose file no longer exists. Records younger than
// SweepGrace relative to the files snapshot are left alone, since their file
// may have been created after the snapshot was taken.
func (s *ContentService) Sweep(ctx context.Context) (SweepResult, error) {
	files, err := store.Get(ctx, s.store, repository.Files)
	if err != nil {
		return SweepResult{}, fmt.Errorf("service/content: loading files: %w", err)
	}
	live := make(map[string]bool, len(files))
	for _, f := range files {
		live[f.ID] = true
	}
	cutoff := s.clock.now().Add(-SweepGrace)

	res, err := s.purge(ctx, func(id string, at time.Time) bool {
		return !live[id] && at.Before(cutoff)
	})
	if err != nil {
		return res, err
	}
	if res != (SweepResult{}) {
		s.logger.Info("orphaned records swept",
			slog.Int("likes", res.Likes),
			slog.Int("comments", res.Comments),
			slog.Int("reports", res.Reports),
		)
	}
	return res, nil
}

// purge removes dependents for which doomed(fileID, at) is true, from likes,
// comments and reports in that order.
func (s *ContentService) purge(ctx context.Context, doomed func(fileID string, at time.Time) bool) (DeleteResult, error) {
	var res DeleteResult
	var err error

	res.Likes, err = purgeFrom(ctx, s.store, repository.Likes, func(l model.Like) bool { return doomed(l.FileID, l.At) })
	if err != nil {
		return res, err
	}
	res.Comments, err = purgeFrom(ctx, s.store, repository.Comments, func(c model.Comment) bool { return doomed(c.FileID, c.At) })
	if err != nil {
		return res, err
	}
	res.Reports, err = purgeFrom(ctx, s.store, repository.Reports, func(r model.Report) bool { return doomed(r.FileID, r.At) })
	if err != nil {
		return res, err
	}
	return res, nil
}

func purgeFrom[T any](ctx context.Context, st *store.Store, c store.Collection[[]T], doomed func(T) bool) (int, error) {
	n, err := store.Mutate(ctx, st, c, func(cur []T) ([]T, int, error) {
		before := len(cur)
		cur = slices.DeleteFunc(cur, doomed)
		return cur, before - len(cur), nil
	})
	if err != nil {
		return 0, fmt.Errorf("service/content: purging %s: %w", c.Name, err)
	}
	return n, nil
}
