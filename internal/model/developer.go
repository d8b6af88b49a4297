package model

import "time"

// DeveloperProfile is the public face of a developer account. Its ID equals
// the owning Account.ID, and it exists exactly when Account.IsDeveloper is set.
type DeveloperProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
	Approved bool   `json:"approved"` // mirrors Account.Approved
	Verified bool   `json:"verified"` // mirrors presence of a VerificationRecord
}

// FindDeveloper returns the index of the profile with the given id, or -1.
func FindDeveloper(devs []DeveloperProfile, id string) int {
	for i := range devs {
		if devs[i].ID == id {
			return i
		}
	}
	return -1
}

// FollowEdge records that FollowerID follows FollowedID.
type FollowEdge struct {
	FollowerID string    `json:"followerId"`
	FollowedID string    `json:"followedId"`
	At         time.Time `json:"at"`
}

// FollowerGraph is the whole followers collection: raw edges plus a sparse
// boost overlay added to each developer's edge count.
type FollowerGraph struct {
	Boost map[string]int `json:"boost"`
	Edges []FollowEdge   `json:"edges"`
}

// HasEdge reports whether follower already follows followed.
func (g FollowerGraph) HasEdge(follower, followed string) bool {
	for _, e := range g.Edges {
		if e.FollowerID == follower && e.FollowedID == followed {
			return true
		}
	}
	return false
}

// FollowerCount is the raw edge count for id plus its boost.
func (g FollowerGraph) FollowerCount(id string) int {
	n := g.Boost[id]
	for _, e := range g.Edges {
		if e.FollowedID == id {
			n++
		}
	}
	return n
}

// AddBoost adds n (clamped to zero) to the boost of id.
func (g *FollowerGraph) AddBoost(id string, n int) {
	if g.Boost == nil {
		g.Boost = make(map[string]int)
	}
	g.Boost[id] += max(0, n)
}

// Grantor identifies who granted a verification.
type Grantor string

const (
	GrantedByBootstrap Grantor = "bootstrap"
	GrantedByAuto      Grantor = "auto"
	GrantedByAdmin     Grantor = "admin"
)

const (
	BadgeCreator  = "creator"
	BadgeVerified = "verified"
)

// VerificationRecord is durable proof that a developer met the bar.
type VerificationRecord struct {
	GrantedBy Grantor   `json:"grantedBy"`
	Date      time.Time `json:"date"`
	Badge     string    `json:"badge"`
}

// Verifications is the whole verifications collection, keyed by developer id.
// Entries are never removed.
type Verifications struct {
	Verified map[string]VerificationRecord `json:"verified"`
}

// Get returns the record for id, if any.
func (v Verifications) Get(id string) (VerificationRecord, bool) {
	rec, ok := v.Verified[id]
	return rec, ok
}

// Set stores rec for id, overwriting any existing record.
func (v *Verifications) Set(id string, rec VerificationRecord) {
	if v.Verified == nil {
		v.Verified = make(map[string]VerificationRecord)
	}
	v.Verified[id] = rec
}
