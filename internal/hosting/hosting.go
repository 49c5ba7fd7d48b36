// Package hosting defines the interface to the platform hosting the
// review subject: it supplies changed hunks and commits, and consumes the
// rendered report. The engine never tracks platform comment ids; the
// publisher keys its comment by a marker string.
package hosting

import (
	"context"

	"github.com/reviewloop/reviewloop/internal/models"
)

// Host is the hosting-provider client consumed by the lifecycle
// controller.
type Host interface {
	// ChangesSince returns the hunks changed since the given commit (all
	// changes when sinceCommit is empty), the current head commit ref,
	// and the raw unified diff for the analysis layer.
	ChangesSince(ctx context.Context, subject models.ReviewSubject, sinceCommit string) (models.ChangeSet, string, string, error)

	// PublishReport creates or updates the single persistent review
	// comment for the subject. Must be idempotent: republishing an
	// unchanged body is a no-op.
	PublishReport(ctx context.Context, subject models.ReviewSubject, body string) error
}
