package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NoSuchFile wraps ErrNoSuchFile",
			err:       NoSuchFile("abc123"),
			target:    ErrNoSuchFile,
			wantMatch: true,
		},
		{
			name:      "InvalidInput wraps ErrInvalidInput",
			err:       InvalidInput("title", "title is required"),
			target:    ErrInvalidInput,
			wantMatch: true,
		},
		{
			name:      "wrapped twice still matches",
			err:       fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", New(ErrUsernameTaken, "taken"))),
			target:    ErrUsernameTaken,
			wantMatch: true,
		},
		{
			name:      "NoSuchFile does NOT match ErrNoSuchDeveloper",
			err:       NoSuchFile("abc123"),
			target:    ErrNoSuchDeveloper,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error is internal", errors.New("disk on fire"), KindInternal},
		{"pending approval", New(ErrPendingApproval, "wait"), "PendingApproval"},
		{"wrapped empty comment", fmt.Errorf("commenting: %w", New(ErrEmptyComment, "empty")), "EmptyComment"},
		{"missing fields", MissingFields("fileId", "reason"), "MissingFields"},
		{"forbidden", Forbidden("admin only"), "Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NoSuchFile message includes id",
			err:         NoSuchFile("abc123"),
			wantMessage: "file not found with id abc123",
		},
		{
			name:        "NoSuchDeveloper message includes id",
			err:         NoSuchDeveloper("d1"),
			wantMessage: "developer not found with id d1",
		},
		{
			name:        "InvalidInput uses custom message",
			err:         InvalidInput("username", "username is required"),
			wantMessage: "username is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NoSuchFile("abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNoSuchFile {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNoSuchFile)
	}
}

func TestKindWithoutSentinel(t *testing.T) {
	err := &AppError{Message: "odd"}
	if got := err.Kind(); got != KindInternal {
		t.Errorf("Kind() = %q, want %q", got, KindInternal)
	}
}

func TestInvalidInputField(t *testing.T) {
	err := InvalidInput("password", "password must be 72 bytes or fewer")
	if err.Field != "password" {
		t.Errorf("Field = %q, want %q", err.Field, "password")
	}
}
