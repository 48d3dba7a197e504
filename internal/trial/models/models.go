// Package models defines the persisted shape of one clinical trial: a parent
// BasicInfo row plus its child rows, all keyed by the registry NCT ID.
package models

import (
	"time"

	"trialstore/pkg/domain"
)

// OutcomeType labels an outcome row.
type OutcomeType string

const (
	OutcomePrimary   OutcomeType = "Primary"
	OutcomeSecondary OutcomeType = "Secondary"
)

// ArmRowType labels the origin of an arms_interventions row. The registry
// encodes arm groups and interventions as two sub-arrays; both map to the
// same table, distinguished by this value.
type ArmRowType string

const (
	ArmRowArmGroup     ArmRowType = "Arm Group"
	ArmRowIntervention ArmRowType = "Intervention"
)

// BasicInfo is the parent row. Optional columns are pointers so that absence
// survives the round trip to SQL NULL; string fields are normalized by the
// mapper so an all-whitespace source value is stored as NULL, not "".
type BasicInfo struct {
	NCTID                 domain.NCTID
	ProtocolSectionID     *string
	OrganizationName      *string
	OrganizationType      *string
	BriefTitle            *string
	OfficialTitle         *string
	Status                *string
	Phase                 *string
	StudyType             *string
	EnrollmentCount       *int
	EnrollmentType        *string
	StartDate             *time.Time
	CompletionDate        *time.Time
	PrimaryCompletionDate *time.Time
	IsFDARegulatedDrug    *bool
	IsFDARegulatedDevice  *bool
	IsUnapprovedDevice    *bool
	IsPPSD                *bool
	IsUSExport            *bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Description is the 0:1 free-text child row.
type Description struct {
	NCTID               domain.NCTID
	BriefSummary        *string
	DetailedDescription *string
}

// Eligibility is the 0:1 criteria child row. Inclusion/Exclusion are derived
// from the registry's single criteria blob by the criteria splitter.
type Eligibility struct {
	NCTID             domain.NCTID
	InclusionCriteria *string
	ExclusionCriteria *string
	MinimumAge        *string
	MaximumAge        *string
	Gender            *string
	HealthyVolunteers *bool
}

// ArmIntervention is an append-only child row.
type ArmIntervention struct {
	NCTID            domain.NCTID
	RowType          ArmRowType
	Label            *string
	Description      *string
	InterventionName *string
}

// Outcome is an append-only child row.
type Outcome struct {
	NCTID       domain.NCTID
	Type        OutcomeType
	Measure     *string
	TimeFrame   *string
	Description *string
}

// Location is an append-only child row.
type Location struct {
	NCTID        domain.NCTID
	FacilityName *string
	Address      *string
	City         *string
	State        *string
	Zip          *string
	Country      *string
	ContactName  *string
	ContactPhone *string
	ContactEmail *string
}

// TrialRecord is the full aggregate produced by the mapper and persisted as
// one transaction. Children are lifetime-bound to BasicInfo.
type TrialRecord struct {
	BasicInfo   BasicInfo
	Description *Description
	Eligibility *Eligibility
	Arms        []ArmIntervention
	Outcomes    []Outcome
	Locations   []Location
	Conditions  []string
	Keywords    []string
}

// HasDescription reports whether the aggregate carries any description text.
// The writer skips the descriptions row entirely when both fields are absent,
// matching the source pipeline.
func (t *TrialRecord) HasDescription() bool {
	return t.Description != nil &&
		(t.Description.BriefSummary != nil || t.Description.DetailedDescription != nil)
}

// HasEligibility reports whether the aggregate carries any criteria text.
func (t *TrialRecord) HasEligibility() bool {
	return t.Eligibility != nil &&
		(t.Eligibility.InclusionCriteria != nil || t.Eligibility.ExclusionCriteria != nil)
}

// TrialSummary is the flattened read model served by list/search endpoints.
type TrialSummary struct {
	NCTID               domain.NCTID `json:"nct_id"`
	BriefTitle          string       `json:"brief_title"`
	OfficialTitle       string       `json:"official_title"`
	BriefSummary        *string      `json:"brief_summary,omitempty"`
	DetailedDescription *string      `json:"detailed_description,omitempty"`
	Status              string       `json:"status"`
	Phase               *string      `json:"phase,omitempty"`
	StudyType           string       `json:"study_type"`
	EnrollmentCount     *int         `json:"enrollment_count,omitempty"`
	StartDate           *string      `json:"start_date,omitempty"`
	CompletionDate      *string      `json:"completion_date,omitempty"`
	Organization        *string      `json:"organization,omitempty"`
	InclusionCriteria   *string      `json:"inclusion_criteria,omitempty"`
	ExclusionCriteria   *string      `json:"exclusion_criteria,omitempty"`
}

// CountBucket is one row of a distribution (status, phase, study type).
type CountBucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CorpusStats is the aggregate served by the stats endpoint.
type CorpusStats struct {
	TotalTrials           int           `json:"total_trials"`
	StatusDistribution    []CountBucket `json:"status_distribution"`
	PhaseDistribution     []CountBucket `json:"phase_distribution"`
	StudyTypeDistribution []CountBucket `json:"study_type_distribution"`
}
