package model

import "time"

// File is an uploaded listing. Like and comment counts are derived at read
// time from the likes and comments collections.
type File struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ZipURL      string    `json:"zipUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FindFile returns the index of the file with the given id, or -1.
func FindFile(files []File, id string) int {
	for i := range files {
		if files[i].ID == id {
			return i
		}
	}
	return -1
}

// Like is at most one per (UserID, FileID). Seeded likes carry UserIDs that
// do not resolve to an Account.
type Like struct {
	UserID string    `json:"userId"`
	FileID string    `json:"fileId"`
	At     time.Time `json:"at"`
}

type Comment struct {
	ID     string    `json:"id"`
	FileID string    `json:"fileId"`
	UserID string    `json:"userId"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

type Report struct {
	ID         string    `json:"id"`
	FileID     string    `json:"fileId"`
	Reason     string    `json:"reason"`
	ReporterID string    `json:"reporterId"`
	At         time.Time `json:"at"`
}

// FileView is a File joined with its derived aggregates and its owner.
type FileView struct {
	File
	Likes    int            `json:"likes"`
	Comments int            `json:"comments"`
	Owner    *PublicAccount `json:"owner"`
}
