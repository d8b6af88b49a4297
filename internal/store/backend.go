package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotExist is returned by Backend.Load for a collection that was never saved.
var ErrNotExist = errors.New("store: collection does not exist")

// Backend is a durable byte store holding one blob per collection name.
//
// Implementations only need to be safe for concurrent calls on different
// names; the Store never issues two concurrent calls for the same name.
type Backend interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Close() error
}

// Archiver is implemented by backends that can keep a copy of content the
// Store is about to discard as corrupt.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) error
}

var validName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateName rejects collection names that are unsafe as file names or keys.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("store: invalid collection name %q", name)
	}
	return nil
}
