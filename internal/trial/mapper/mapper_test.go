package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialstore/internal/registry"
	"trialstore/internal/trial/models"
	"trialstore/pkg/domain"
	domainerrors "trialstore/pkg/domain-errors"
)

func intPtr(n int) *int { return &n }

func fullStudy() *registry.Study {
	truthy := true
	return &registry.Study{
		Identification: &registry.IdentificationModule{
			NCTID:          "NCT01234567",
			OrgStudyIDInfo: &registry.OrgStudyID{ID: "PROTO-7"},
			Organization:   &registry.Organization{FullName: "Acme Research", Class: "INDUSTRY"},
			BriefTitle:     "Brief",
			OfficialTitle:  "Official",
		},
		Status: &registry.StatusModule{
			OverallStatus:  "RECRUITING",
			StartDate:      &registry.DateStruct{Date: "2023-01"},
			CompletionDate: &registry.DateStruct{Date: "2024-06-30"},
		},
		Design: &registry.DesignModule{
			StudyType:      "INTERVENTIONAL",
			Phases:         []string{"PHASE2", "PHASE3"},
			EnrollmentInfo: &registry.EnrollmentInfo{Count: intPtr(120), Type: "ESTIMATED"},
		},
		Oversight: &registry.OversightModule{IsFDARegulatedDrug: &truthy},
		Description: &registry.DescriptionModule{
			BriefSummary:        "summary",
			DetailedDescription: "details",
		},
		Eligibility: &registry.EligibilityModule{
			EligibilityCriteria: "Inclusion Criteria: A\nExclusion Criteria\nB",
			MinimumAge:          "18 Years",
			MaximumAge:          "65 Years",
			Sex:                 "ALL",
		},
		Arms: &registry.ArmsModule{
			ArmGroups: []registry.ArmGroup{
				{Label: "Treatment", Description: "drug arm", InterventionNames: []string{"Drug: X", "Drug: Y"}},
			},
			Interventions: []registry.Intervention{
				{Name: "Drug: X", Description: "study drug", ArmGroupLabels: []string{"Treatment"}},
			},
		},
		Outcomes: &registry.OutcomesModule{
			PrimaryOutcomes:   []registry.OutcomeMeasure{{Measure: "OS", TimeFrame: "24 months"}},
			SecondaryOutcomes: []registry.OutcomeMeasure{{Measure: "PFS"}, {Measure: "QoL"}},
		},
		Contacts: &registry.ContactsModule{
			Locations: []registry.StudyLocation{
				{
					Facility: "General Hospital", City: "Boston", Country: "United States",
					Contacts: []registry.LocationContact{{Name: "Dr. Ada", Phone: "617-555-0100", Email: "ada@example.org"}},
				},
			},
		},
		Conditions: &registry.ConditionsModule{
			Conditions: []string{"Lung Cancer", "   "},
			Keywords:   []string{"oncology"},
		},
	}
}

func TestMapFullRecord(t *testing.T) {
	rec, err := Map(fullStudy())
	require.NoError(t, err)

	assert.Equal(t, domain.NCTID("NCT01234567"), rec.BasicInfo.NCTID)
	require.NotNil(t, rec.BasicInfo.Phase)
	assert.Equal(t, "PHASE2, PHASE3", *rec.BasicInfo.Phase)
	require.NotNil(t, rec.BasicInfo.StartDate)
	assert.Equal(t, "2023-01-01", rec.BasicInfo.StartDate.Format("2006-01-02"))
	require.NotNil(t, rec.BasicInfo.EnrollmentCount)
	assert.Equal(t, 120, *rec.BasicInfo.EnrollmentCount)
	require.NotNil(t, rec.BasicInfo.IsFDARegulatedDrug)
	assert.True(t, *rec.BasicInfo.IsFDARegulatedDrug)

	require.True(t, rec.HasDescription())
	assert.Equal(t, "summary", *rec.Description.BriefSummary)

	require.True(t, rec.HasEligibility())
	assert.Equal(t, "A", *rec.Eligibility.InclusionCriteria)
	assert.Equal(t, "B", *rec.Eligibility.ExclusionCriteria)
	assert.Equal(t, "ALL", *rec.Eligibility.Gender)

	require.Len(t, rec.Arms, 2)
	assert.Equal(t, models.ArmRowArmGroup, rec.Arms[0].RowType)
	assert.Equal(t, "Drug: X; Drug: Y", *rec.Arms[0].InterventionName)
	assert.Equal(t, models.ArmRowIntervention, rec.Arms[1].RowType)
	assert.Equal(t, "Drug: X", *rec.Arms[1].Label)
	assert.Equal(t, "Treatment", *rec.Arms[1].InterventionName)

	require.Len(t, rec.Outcomes, 3)
	assert.Equal(t, models.OutcomePrimary, rec.Outcomes[0].Type)
	assert.Equal(t, models.OutcomeSecondary, rec.Outcomes[1].Type)

	require.Len(t, rec.Locations, 1)
	assert.Equal(t, "General Hospital", *rec.Locations[0].FacilityName)
	assert.Equal(t, "ada@example.org", *rec.Locations[0].ContactEmail)
	assert.Equal(t, "617-555-0100", *rec.Locations[0].ContactPhone)

	assert.Equal(t, []string{"Lung Cancer"}, rec.Conditions)
	assert.Equal(t, []string{"oncology"}, rec.Keywords)
}

func TestMapStructuralFailures(t *testing.T) {
	t.Run("nil record", func(t *testing.T) {
		_, err := Map(nil)
		require.Error(t, err)
		assert.True(t, domainerrors.HasCode(err, domainerrors.CodeMapping))
	})

	t.Run("missing identification group", func(t *testing.T) {
		_, err := Map(&registry.Study{})
		require.Error(t, err)
		assert.True(t, domainerrors.HasCode(err, domainerrors.CodeMapping))
	})

	t.Run("blank nct id", func(t *testing.T) {
		_, err := Map(&registry.Study{Identification: &registry.IdentificationModule{NCTID: "   "}})
		require.Error(t, err)
		assert.True(t, domainerrors.HasCode(err, domainerrors.CodeMapping))
	})
}

func TestMapNormalizesAbsence(t *testing.T) {
	study := &registry.Study{
		Identification: &registry.IdentificationModule{
			NCTID:      "NCT00000001",
			BriefTitle: "   ",
		},
		Status:      &registry.StatusModule{StartDate: &registry.DateStruct{Date: "sometime in 2023"}},
		Description: &registry.DescriptionModule{BriefSummary: "\t\n"},
	}

	rec, err := Map(study)
	require.NoError(t, err)

	assert.Nil(t, rec.BasicInfo.BriefTitle, "whitespace title must normalize to absent")
	assert.Nil(t, rec.BasicInfo.StartDate, "unparseable date must be absent, not an error")
	assert.False(t, rec.HasDescription(), "all-whitespace description collapses to no row")
	assert.False(t, rec.HasEligibility())
	assert.Empty(t, rec.Arms)
	assert.Empty(t, rec.Outcomes)
	assert.Empty(t, rec.Locations)
	assert.Empty(t, rec.Conditions)
}

func TestMapKeepsMalformedIdentifierForQualityChecks(t *testing.T) {
	rec, err := Map(&registry.Study{
		Identification: &registry.IdentificationModule{NCTID: "NCT123"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.NCTID("NCT123"), rec.BasicInfo.NCTID)
	assert.False(t, rec.BasicInfo.NCTID.IsValid())
}
