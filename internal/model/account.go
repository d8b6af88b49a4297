// Package model defines the data structures used throughout the application.
//
// Every persisted entity is a plain struct with JSON tags; the store encodes
// whole collections of them. Derived facts (follower counts, like counts)
// are never stored here.
package model

import (
	"strings"
	"time"
)

// Role is the coarse permission level of an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
	RoleCreator   Role = "creator"
)

// DefaultAvatar is assigned to accounts and profiles that have not set one.
const DefaultAvatar = "/public/img/logo.svg"

// Account is a registered login.
//
// Accounts are never hard-deleted. A developer account exists in the
// developers collection too (see DeveloperProfile); Approved gates whether
// a developer may log in and upload.
type Account struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	CredentialHash string    `json:"credentialHash"`
	Role           Role      `json:"role"`
	IsDeveloper    bool      `json:"isDeveloper"`
	Approved       bool      `json:"approved"`
	CreatedAt      time.Time `json:"createdAt"`
	DisplayName    string    `json:"displayName"`
	Avatar         string    `json:"avatar"`
}

// PublicAccount is an Account with credential material stripped.
type PublicAccount struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Role        Role      `json:"role"`
	IsDeveloper bool      `json:"isDeveloper"`
	Approved    bool      `json:"approved"`
	CreatedAt   time.Time `json:"createdAt"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar"`
}

// Public returns the redacted view of the account.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:          a.ID,
		Username:    a.Username,
		Role:        a.Role,
		IsDeveloper: a.IsDeveloper,
		Approved:    a.Approved,
		CreatedAt:   a.CreatedAt,
		DisplayName: a.DisplayName,
		Avatar:      a.Avatar,
	}
}

// IsAdmin reports whether the account may use moderation endpoints.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleCreator
}

// CanPublish reports whether the account may create files.
func (a Account) CanPublish() bool {
	return a.IsDeveloper && a.Approved
}

// SameUsername compares usernames the way registration does (case-insensitive).
func SameUsername(a, b string) bool {
	return strings.EqualFold(a, b)
}

// FindAccount returns the index of the account with the given id, or -1.
func FindAccount(accounts []Account, id string) int {
	for i := range accounts {
		if accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// FindAccountByUsername returns the index of the account whose username
// matches case-insensitively, or -1.
func FindAccountByUsername(accounts []Account, username string) int {
	for i := range accounts {
		if SameUsername(accounts[i].Username, username) {
			return i
		}
	}
	return -1
}

// Session maps an opaque token to an account. Sessions have no TTL.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"accountId"`
	CreatedAt time.Time `json:"createdAt"`
}
