package store

import (
	"context"
	"errors"
	"time"

	"github.com/reviewloop/reviewloop/internal/models"
)

// Sentinel errors forming the store's failure taxonomy. Callers branch
// with errors.Is.
var (
	// ErrNotFound means no record exists for the subject. Not a failure:
	// the caller synthesizes an empty state.
	ErrNotFound = errors.New("review state not found")

	// ErrCorruptRecord means the persisted bytes could not be decoded.
	// The raw payload has been archived for inspection before this is
	// returned; the caller falls back to a fresh state.
	ErrCorruptRecord = errors.New("corrupt review state record")

	// ErrUnavailable means the backing database could not serve the call.
	ErrUnavailable = errors.New("state store unavailable")

	// ErrMigrationFailure means a persisted record could not be upgraded
	// to the current schema version. The stored record is left untouched.
	ErrMigrationFailure = errors.New("schema migration failed")
)

// CorruptRecord is an archived copy of an un-decodable state payload.
type CorruptRecord struct {
	ID         string
	SubjectKey string
	Payload    []byte
	CapturedAt time.Time
}

// Store is the persistence contract for review state: one durable record
// per subject, atomic per call. Cross-call atomicity (read-merge-write) is
// the lifecycle controller's responsibility, not the store's.
type Store interface {
	// Load returns the state for a subject, ErrNotFound if none exists,
	// or ErrCorruptRecord after archiving an un-decodable payload.
	Load(ctx context.Context, subject models.ReviewSubject) (*models.ReviewState, error)

	// Save persists the state all-or-nothing, migrating records carrying
	// an older schema version first.
	Save(ctx context.Context, state *models.ReviewState) error

	// Delete removes a subject's record. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, subject models.ReviewSubject) error

	// ListSubjects returns every subject with a persisted record.
	ListSubjects(ctx context.Context) ([]models.ReviewSubject, error)

	// CorruptRecords returns archived corrupt payloads for inspection.
	CorruptRecords(ctx context.Context) ([]CorruptRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
