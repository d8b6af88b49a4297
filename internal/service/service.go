// Package service contains the business logic of ZIPHUB.
//
// THE LAYERS:
//
//	Handler (HTTP layer)   → parses requests, writes {ok:...} responses
//	Service (domain layer) → validates, enforces rules, orchestrates
//	Store (data layer)     → locked Get / Mutate over named collections
//
// THE ONE RULE:
// Every read-then-write goes through a single store.Mutate on the collection
// it changes. Reading with store.Get and writing later would reintroduce the
// lost-update race the store exists to prevent.
//
// CROSS-COLLECTION OPERATIONS:
// There are no multi-collection transactions. An operation that touches
// several collections does one Mutate per collection in a fixed order,
// primary record first and dependent mirror second, so that a crash between
// steps leaves a weaker state that a re-run (or Sweep) completes:
//
//	register:      accounts → developers → followers → sessions
//	follow:        followers → verifications → developers
//	approve-dev:   accounts → developers
//	delete-file:   files → likes → comments → reports
//
// Services return *apperror.AppError for domain failures. Store failures are
// wrapped with the service name and surface as Internal.
package service

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Length limits, in runes.
const (
	MaxTitleLength       = 80
	MaxDescriptionLength = 1000
	MaxCommentLength     = 300
	MaxReasonLength      = 300
	MaxBioLength         = 500
	MaxDisplayNameLength = 80
	MaxUsernameLength    = 64
)

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// clock is the wall-clock source. Tests in this package replace it.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
