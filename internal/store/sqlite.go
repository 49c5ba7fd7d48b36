package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/reviewloop/reviewloop/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
// Each subject's ReviewState is one row; the full document is a JSON
// payload column so a save is a single all-or-nothing statement.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent triggers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load fetches and decodes the state for a subject. An un-decodable
// payload is archived into corrupt_states before ErrCorruptRecord is
// returned, so the bad bytes stay inspectable.
func (s *SQLiteStore) Load(ctx context.Context, subject models.ReviewSubject) (*models.ReviewState, error) {
	key := subject.Key()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM review_states WHERE subject_key = ?`, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrUnavailable, key, err)
	}

	state := &models.ReviewState{}
	if err := json.Unmarshal(payload, state); err != nil {
		if archiveErr := s.archiveCorrupt(ctx, key, payload); archiveErr != nil {
			return nil, fmt.Errorf("%w: %s (archive failed: %v)", ErrCorruptRecord, key, archiveErr)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, key, err)
	}
	if state.Findings == nil {
		state.Findings = make(map[string]*models.Finding)
	}

	if state.SchemaVersion < models.SchemaVersion {
		if err := MigrateRecord(state); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMigrationFailure, key, err)
		}
	}

	return state, nil
}

// Save persists the state as a single upsert. Records carrying an older
// schema version are migrated first; on migration failure nothing is
// written.
func (s *SQLiteStore) Save(ctx context.Context, state *models.ReviewState) error {
	key := state.Subject.Key()

	if state.SchemaVersion < models.SchemaVersion {
		if err := MigrateRecord(state); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMigrationFailure, key, err)
		}
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_states (subject_key, provider, repository, subject_number, schema_version, paused, pause_until, last_review_at, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_key) DO UPDATE SET
			schema_version = excluded.schema_version,
			paused = excluded.paused,
			pause_until = excluded.pause_until,
			last_review_at = excluded.last_review_at,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		key, state.Subject.Provider, state.Subject.Repository, state.Subject.Number,
		state.SchemaVersion, boolToInt(state.Paused), state.PauseUntil, state.LastReviewAt,
		payload, now, now,
	)
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Delete removes a subject's record. Missing records are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, subject models.ReviewSubject) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM review_states WHERE subject_key = ?`, subject.Key())
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, subject.Key(), err)
	}
	return nil
}

// ListSubjects returns every subject with a persisted record, ordered by key.
func (s *SQLiteStore) ListSubjects(ctx context.Context) ([]models.ReviewSubject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, repository, subject_number FROM review_states ORDER BY subject_key`)
	if err != nil {
		return nil, fmt.Errorf("%w: list subjects: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var subjects []models.ReviewSubject
	for rows.Next() {
		var sub models.ReviewSubject
		if err := rows.Scan(&sub.Provider, &sub.Repository, &sub.Number); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// CorruptRecords returns archived corrupt payloads, newest first.
func (s *SQLiteStore) CorruptRecords(ctx context.Context) ([]CorruptRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_key, payload, captured_at FROM corrupt_states ORDER BY captured_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list corrupt records: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var records []CorruptRecord
	for rows.Next() {
		var r CorruptRecord
		if err := rows.Scan(&r.ID, &r.SubjectKey, &r.Payload, &r.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan corrupt record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// archiveCorrupt copies un-decodable bytes aside so they survive the
// caller's fallback to a fresh state.
func (s *SQLiteStore) archiveCorrupt(ctx context.Context, subjectKey string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO corrupt_states (id, subject_key, payload, captured_at) VALUES (?, ?, ?, ?)`,
		newULID(), subjectKey, payload, time.Now().UTC())
	return err
}

// ensure interface compliance
var _ Store = (*SQLiteStore)(nil)

// IsRecoverableLoad reports whether a Load error allows proceeding with a
// fresh empty state (missing or corrupt record, as opposed to an
// unavailable store).
func IsRecoverableLoad(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorruptRecord)
}
