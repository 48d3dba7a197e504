// Package store persists trial aggregates in PostgreSQL and provides an
// in-memory implementation of the same contracts for unit testing.
package store

import (
	"context"

	"trialstore/internal/trial/models"
	"trialstore/pkg/domain"
)

// Writer persists one mapped trial aggregate. SaveTrial issues every
// statement through the transaction carried in ctx when one is present, so a
// TxRunner boundary makes the whole aggregate a single atomic unit.
//
// Write semantics are deliberately asymmetric and must stay that way:
// basic_info, descriptions and eligibility are upserts keyed on nct_id;
// arms, outcomes, locations, conditions and keywords are plain appends.
// Re-ingesting a record without a prior PurgeChildren therefore duplicates
// child rows. Downstream counts depend on this behavior.
type Writer interface {
	SaveTrial(ctx context.Context, rec *models.TrialRecord) error
}

// ListFilter narrows the trials listing.
type ListFilter struct {
	Status string
	Phase  string
	Limit  int
	Offset int
}

// Reader serves the query surface of the HTTP API.
type Reader interface {
	GetTrial(ctx context.Context, nctID domain.NCTID) (*models.TrialSummary, error)
	ListTrials(ctx context.Context, filter ListFilter) ([]models.TrialSummary, error)
	SearchTrials(ctx context.Context, query string, limit int) ([]models.TrialSummary, error)
	Stats(ctx context.Context) (*models.CorpusStats, error)
}

// ChildTable names a child relation for corpus-level reads.
type ChildTable string

const (
	ChildDescriptions ChildTable = "trial_descriptions"
	ChildEligibility  ChildTable = "trial_eligibility"
	ChildArms         ChildTable = "trial_arms_interventions"
	ChildOutcomes     ChildTable = "trial_outcomes"
	ChildLocations    ChildTable = "trial_locations"
	ChildConditions   ChildTable = "trial_conditions"
	ChildKeywords     ChildTable = "trial_keywords"
)

// CorpusReader is the read contract of the quality engine. Implementations
// must serve a consistent snapshot per call; the engine never mutates state
// through it.
type CorpusReader interface {
	TotalTrials(ctx context.Context) (int, error)
	// BasicInfoRows returns every parent row, including duplicates should
	// the corpus carry them (e.g. restored from a pre-constraint dump).
	BasicInfoRows(ctx context.Context) ([]models.BasicInfo, error)
	// ChildKeys returns the nct_id of every row in the named child table,
	// one entry per row.
	ChildKeys(ctx context.Context, table ChildTable) ([]domain.NCTID, error)
	// LocationRows returns every location row, for contact format checks.
	LocationRows(ctx context.Context) ([]models.Location, error)
}
