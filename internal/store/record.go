package store

import (
	"fmt"

	"github.com/reviewloop/reviewloop/internal/models"
)

// recordMigrations upgrades a persisted record from version N to N+1.
// Registered per source version; MigrateRecord chains them until the
// record reaches models.SchemaVersion.
var recordMigrations = map[int]func(*models.ReviewState) error{
	0: migrateV0,
	1: migrateV1,
}

// MigrateRecord upgrades a decoded record in place to the current schema
// version. On error the record may be partially upgraded in memory but
// nothing has been persisted; callers must not save it.
func MigrateRecord(state *models.ReviewState) error {
	for state.SchemaVersion < models.SchemaVersion {
		migrate, ok := recordMigrations[state.SchemaVersion]
		if !ok {
			return fmt.Errorf("no migration from schema version %d", state.SchemaVersion)
		}
		if err := migrate(state); err != nil {
			return fmt.Errorf("migrate from schema version %d: %w", state.SchemaVersion, err)
		}
		state.SchemaVersion++
	}
	return nil
}

// migrateV0 handles pre-versioned records: findings map and commit list
// may be absent entirely.
func migrateV0(state *models.ReviewState) error {
	if state.Findings == nil {
		state.Findings = make(map[string]*models.Finding)
	}
	if state.ReviewedCommits == nil {
		state.ReviewedCommits = []string{}
	}
	return nil
}

// migrateV1 backfills content fingerprints, which v1 records did not
// carry; without one, the first re-detection would refresh every mutable
// field unnecessarily but harmlessly.
func migrateV1(state *models.ReviewState) error {
	for _, f := range state.Findings {
		if f.ContentFingerprint == "" {
			f.ContentFingerprint = models.ContentFingerprint(f.Message, f.SuggestedFix, f.Severity)
		}
	}
	return nil
}
