package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// Log is the append-only interaction log shared by the advisor, the resume
// analyzer, and the synthesis engine.
type Log interface {
	// Append validates and persists one interaction. Same-user appends are
	// serialized; timestamps must be monotonically non-decreasing per user.
	Append(ctx context.Context, rec *Interaction) error
	// ReadAll returns a consistent snapshot of the user's interactions in
	// timestamp order. Unknown users yield an empty slice, not an error.
	ReadAll(ctx context.Context, username string) ([]Interaction, error)
	// Stats counts a user's interactions without reading record bodies into
	// the synthesis pipeline.
	Stats(ctx context.Context, username string) (Stats, error)
	// Usernames lists every user with at least one interaction.
	Usernames(ctx context.Context) ([]string, error)
}

// Profiles is the latest-profile store. Puts are atomic: a concurrent get
// never observes a half-written profile.
type Profiles interface {
	GetProfile(ctx context.Context, username string) (*Profile, error)
	// PutProfile overwrites the user's profile wholesale and increments its
	// revision. Last completed put wins.
	PutProfile(ctx context.Context, p *Profile) error
}

// Store combines the interaction log and the profile store over one backend.
type Store interface {
	Log
	Profiles
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open creates a Store on the given backend rooted at dataDir.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return OpenFile(dataDir)
	case BackendSQLite:
		return OpenSQLite(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

var (
	validate   = validator.New(validator.WithRequiredStructEnabled())
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
)

// ValidateUsername rejects names that are empty, oversized, or unsafe as a
// storage key (usernames become file names in the file backend).
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return &ValidationError{Field: "username", Reason: "must be 1-64 characters of letters, digits, '.', '_' or '-'"}
	}
	return nil
}

// validateInteraction enforces the record contract shared by all backends.
func validateInteraction(rec *Interaction) error {
	if rec == nil {
		return &ValidationError{Field: "interaction", Reason: "record is nil"}
	}
	if err := ValidateUsername(rec.Username); err != nil {
		return err
	}
	if err := validate.Struct(rec); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			f := errs[0]
			return &ValidationError{Field: f.Namespace(), Reason: fmt.Sprintf("failed %q check", f.Tag())}
		}
		return &ValidationError{Field: "interaction", Reason: err.Error()}
	}
	return nil
}

// checkMonotonic enforces per-user timestamp ordering against the last
// persisted record.
func checkMonotonic(last time.Time, rec *Interaction) error {
	if !last.IsZero() && rec.Timestamp.Before(last) {
		return &ValidationError{
			Field:  "timestamp",
			Reason: fmt.Sprintf("%s is before last recorded %s", rec.Timestamp.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano)),
		}
	}
	return nil
}
