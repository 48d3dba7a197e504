// Package mapper converts one raw hierarchical registry record into the flat
// typed TrialRecord aggregate. It is pure: no I/O, no clock, and field-level
// defects (bad dates, empty strings, missing groups) resolve to absent values
// rather than errors. Only a structurally unusable record fails to map.
package mapper

import (
	"strings"
	"time"

	"trialstore/internal/registry"
	"trialstore/internal/trial/models"
	"trialstore/pkg/domain"
	dErrors "trialstore/pkg/domain-errors"
	platformstrings "trialstore/pkg/platform/strings"
)

// Map flattens a registry protocolSection into a TrialRecord.
//
// Errors: CodeMapping when the record is nil or carries no NCT ID; everything
// else maps. An NCT ID that fails format validation still maps (the quality
// engine flags it later) as long as it is non-empty.
func Map(study *registry.Study) (*models.TrialRecord, error) {
	if study == nil {
		return nil, dErrors.New(dErrors.CodeMapping, "record is not an object")
	}

	ident := study.Identification
	if ident == nil || strings.TrimSpace(ident.NCTID) == "" {
		return nil, dErrors.New(dErrors.CodeMapping, "record has no nct id")
	}
	nctID := domain.NCTID(strings.TrimSpace(ident.NCTID))

	rec := &models.TrialRecord{
		BasicInfo: mapBasicInfo(nctID, study),
	}
	rec.Description = mapDescription(nctID, study.Description)
	rec.Eligibility = mapEligibility(nctID, study.Eligibility)
	rec.Arms = mapArms(nctID, study.Arms)
	rec.Outcomes = mapOutcomes(nctID, study.Outcomes)
	rec.Locations = mapLocations(nctID, study.Contacts)
	if study.Conditions != nil {
		rec.Conditions = mapFreeText(study.Conditions.Conditions)
		rec.Keywords = mapFreeText(study.Conditions.Keywords)
	}
	return rec, nil
}

func mapBasicInfo(nctID domain.NCTID, study *registry.Study) models.BasicInfo {
	info := models.BasicInfo{NCTID: nctID}

	ident := study.Identification
	if ident.OrgStudyIDInfo != nil {
		info.ProtocolSectionID = optional(ident.OrgStudyIDInfo.ID)
	}
	if ident.Organization != nil {
		info.OrganizationName = optional(ident.Organization.FullName)
		info.OrganizationType = optional(ident.Organization.Class)
	}
	info.BriefTitle = optional(ident.BriefTitle)
	info.OfficialTitle = optional(ident.OfficialTitle)

	if status := study.Status; status != nil {
		info.Status = optional(status.OverallStatus)
		info.StartDate = dateOf(status.StartDate)
		info.CompletionDate = dateOf(status.CompletionDate)
		info.PrimaryCompletionDate = dateOf(status.PrimaryCompletionDate)
	}

	if design := study.Design; design != nil {
		info.StudyType = optional(design.StudyType)
		info.Phase = optional(strings.Join(design.Phases, ", "))
		if design.EnrollmentInfo != nil {
			info.EnrollmentCount = design.EnrollmentInfo.Count
			info.EnrollmentType = optional(design.EnrollmentInfo.Type)
		}
	}

	if oversight := study.Oversight; oversight != nil {
		info.IsFDARegulatedDrug = oversight.IsFDARegulatedDrug
		info.IsFDARegulatedDevice = oversight.IsFDARegulatedDevice
		info.IsUnapprovedDevice = oversight.IsUnapprovedDevice
		info.IsPPSD = oversight.IsPPSD
		info.IsUSExport = oversight.IsUSExport
	}

	return info
}

func mapDescription(nctID domain.NCTID, desc *registry.DescriptionModule) *models.Description {
	if desc == nil {
		return nil
	}
	d := &models.Description{
		NCTID:               nctID,
		BriefSummary:        optional(desc.BriefSummary),
		DetailedDescription: optional(desc.DetailedDescription),
	}
	if d.BriefSummary == nil && d.DetailedDescription == nil {
		return nil
	}
	return d
}

func mapEligibility(nctID domain.NCTID, elig *registry.EligibilityModule) *models.Eligibility {
	if elig == nil {
		return nil
	}
	inclusion, exclusion := SplitCriteria(string(elig.EligibilityCriteria))
	e := &models.Eligibility{
		NCTID:             nctID,
		InclusionCriteria: inclusion,
		ExclusionCriteria: exclusion,
		MinimumAge:        optional(elig.MinimumAge),
		MaximumAge:        optional(elig.MaximumAge),
		Gender:            optional(elig.Sex),
		HealthyVolunteers: elig.HealthyVolunteers,
	}
	if e.InclusionCriteria == nil && e.ExclusionCriteria == nil &&
		e.MinimumAge == nil && e.MaximumAge == nil && e.Gender == nil && e.HealthyVolunteers == nil {
		return nil
	}
	return e
}

// mapArms flattens both registry sub-arrays into the single arms table: one
// row per arm group and one per intervention, distinguished by row type. The
// cross-references (intervention names on an arm, arm labels on an
// intervention) are joined into one column.
func mapArms(nctID domain.NCTID, arms *registry.ArmsModule) []models.ArmIntervention {
	if arms == nil {
		return nil
	}
	rows := make([]models.ArmIntervention, 0, len(arms.ArmGroups)+len(arms.Interventions))
	for _, g := range arms.ArmGroups {
		rows = append(rows, models.ArmIntervention{
			NCTID:            nctID,
			RowType:          models.ArmRowArmGroup,
			Label:            optional(g.Label),
			Description:      optional(g.Description),
			InterventionName: optional(strings.Join(g.InterventionNames, "; ")),
		})
	}
	for _, iv := range arms.Interventions {
		rows = append(rows, models.ArmIntervention{
			NCTID:            nctID,
			RowType:          models.ArmRowIntervention,
			Label:            optional(iv.Name),
			Description:      optional(iv.Description),
			InterventionName: optional(strings.Join(iv.ArmGroupLabels, "; ")),
		})
	}
	return rows
}

func mapOutcomes(nctID domain.NCTID, outcomes *registry.OutcomesModule) []models.Outcome {
	if outcomes == nil {
		return nil
	}
	rows := make([]models.Outcome, 0, len(outcomes.PrimaryOutcomes)+len(outcomes.SecondaryOutcomes))
	for _, o := range outcomes.PrimaryOutcomes {
		rows = append(rows, outcomeRow(nctID, models.OutcomePrimary, o))
	}
	for _, o := range outcomes.SecondaryOutcomes {
		rows = append(rows, outcomeRow(nctID, models.OutcomeSecondary, o))
	}
	return rows
}

func outcomeRow(nctID domain.NCTID, typ models.OutcomeType, o registry.OutcomeMeasure) models.Outcome {
	return models.Outcome{
		NCTID:       nctID,
		Type:        typ,
		Measure:     optional(o.Measure),
		TimeFrame:   optional(o.TimeFrame),
		Description: optional(o.Description),
	}
}

func mapLocations(nctID domain.NCTID, contacts *registry.ContactsModule) []models.Location {
	if contacts == nil {
		return nil
	}
	rows := make([]models.Location, 0, len(contacts.Locations))
	for _, loc := range contacts.Locations {
		row := models.Location{
			NCTID:        nctID,
			FacilityName: optional(loc.Facility),
			City:         optional(loc.City),
			State:        optional(loc.State),
			Zip:          optional(loc.Zip),
			Country:      optional(loc.Country),
		}
		// The registry lists several contacts per site; the flat row keeps
		// the first one.
		if len(loc.Contacts) > 0 {
			first := loc.Contacts[0]
			row.ContactName = optional(first.Name)
			row.ContactPhone = optional(first.Phone)
			row.ContactEmail = optional(first.Email)
		}
		rows = append(rows, row)
	}
	return rows
}

func mapFreeText(values []string) []string {
	return platformstrings.DedupeAndTrim(values)
}

// optional normalizes the registry's three spellings of absence (missing
// field, empty string, all-whitespace string) to nil so completeness checks
// treat them uniformly. Non-empty values keep their original spacing.
func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func dateOf(d *registry.DateStruct) *time.Time {
	if d == nil {
		return nil
	}
	return ParseDate(d.Date)
}
