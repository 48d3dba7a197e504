package registry

import (
	"encoding/json"
	"strings"
)

// Study is the protocolSection object of one registry record. Every group and
// every field within a group is optional; the mapper decides what absence
// means. Field names follow the ClinicalTrials.gov v2 API.
type Study struct {
	Identification *IdentificationModule `json:"identificationModule,omitempty"`
	Status         *StatusModule         `json:"statusModule,omitempty"`
	Sponsor        *SponsorModule        `json:"sponsorCollaboratorsModule,omitempty"`
	Description    *DescriptionModule    `json:"descriptionModule,omitempty"`
	Design         *DesignModule         `json:"designModule,omitempty"`
	Oversight      *OversightModule      `json:"oversightModule,omitempty"`
	Eligibility    *EligibilityModule    `json:"eligibilityModule,omitempty"`
	Arms           *ArmsModule           `json:"armsInterventionsModule,omitempty"`
	Outcomes       *OutcomesModule       `json:"outcomesModule,omitempty"`
	Contacts       *ContactsModule       `json:"contactsLocationsModule,omitempty"`
	Conditions     *ConditionsModule     `json:"conditionsModule,omitempty"`
}

type IdentificationModule struct {
	NCTID          string        `json:"nctId,omitempty"`
	OrgStudyIDInfo *OrgStudyID   `json:"orgStudyIdInfo,omitempty"`
	Organization   *Organization `json:"organization,omitempty"`
	BriefTitle     string        `json:"briefTitle,omitempty"`
	OfficialTitle  string        `json:"officialTitle,omitempty"`
}

type OrgStudyID struct {
	ID string `json:"id,omitempty"`
}

type Organization struct {
	FullName string `json:"fullName,omitempty"`
	Class    string `json:"class,omitempty"`
}

type StatusModule struct {
	OverallStatus         string      `json:"overallStatus,omitempty"`
	StartDate             *DateStruct `json:"startDateStruct,omitempty"`
	CompletionDate        *DateStruct `json:"completionDateStruct,omitempty"`
	PrimaryCompletionDate *DateStruct `json:"primaryCompletionDateStruct,omitempty"`
}

type DateStruct struct {
	Date string `json:"date,omitempty"`
}

type SponsorModule struct {
	LeadSponsor *Sponsor `json:"leadSponsor,omitempty"`
}

type Sponsor struct {
	Name  string `json:"name,omitempty"`
	Class string `json:"class,omitempty"`
}

type DescriptionModule struct {
	BriefSummary        string `json:"briefSummary,omitempty"`
	DetailedDescription string `json:"detailedDescription,omitempty"`
}

type DesignModule struct {
	StudyType      string          `json:"studyType,omitempty"`
	Phases         []string        `json:"phases,omitempty"`
	EnrollmentInfo *EnrollmentInfo `json:"enrollmentInfo,omitempty"`
}

type EnrollmentInfo struct {
	Count *int   `json:"count,omitempty"`
	Type  string `json:"type,omitempty"`
}

type OversightModule struct {
	IsFDARegulatedDrug   *bool `json:"isFdaRegulatedDrug,omitempty"`
	IsFDARegulatedDevice *bool `json:"isFdaRegulatedDevice,omitempty"`
	IsUnapprovedDevice   *bool `json:"isUnapprovedDevice,omitempty"`
	IsPPSD               *bool `json:"isPpsd,omitempty"`
	IsUSExport           *bool `json:"isUsExport,omitempty"`
}

type EligibilityModule struct {
	EligibilityCriteria CriteriaText `json:"eligibilityCriteria,omitempty"`
	MinimumAge          string       `json:"minimumAge,omitempty"`
	MaximumAge          string       `json:"maximumAge,omitempty"`
	Sex                 string       `json:"sex,omitempty"`
	HealthyVolunteers   *bool        `json:"healthyVolunteers,omitempty"`
}

// CriteriaText tolerates both encodings the registry has used for the
// criteria blob: a bare string and an object with a textblock field.
type CriteriaText string

func (c *CriteriaText) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Textblock string `json:"textblock"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*c = CriteriaText(obj.Textblock)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = CriteriaText(s)
	return nil
}

type ArmsModule struct {
	ArmGroups     []ArmGroup     `json:"armGroups,omitempty"`
	Interventions []Intervention `json:"interventions,omitempty"`
}

type ArmGroup struct {
	Label             string   `json:"label,omitempty"`
	Type              string   `json:"type,omitempty"`
	Description       string   `json:"description,omitempty"`
	InterventionNames []string `json:"interventionNames,omitempty"`
}

type Intervention struct {
	Name           string   `json:"name,omitempty"`
	Type           string   `json:"type,omitempty"`
	Description    string   `json:"description,omitempty"`
	ArmGroupLabels []string `json:"armGroupLabels,omitempty"`
}

type OutcomesModule struct {
	PrimaryOutcomes   []OutcomeMeasure `json:"primaryOutcomes,omitempty"`
	SecondaryOutcomes []OutcomeMeasure `json:"secondaryOutcomes,omitempty"`
}

type OutcomeMeasure struct {
	Measure     string `json:"measure,omitempty"`
	TimeFrame   string `json:"timeFrame,omitempty"`
	Description string `json:"description,omitempty"`
}

type ContactsModule struct {
	Locations []StudyLocation `json:"locations,omitempty"`
}

type StudyLocation struct {
	Facility string            `json:"facility,omitempty"`
	City     string            `json:"city,omitempty"`
	State    string            `json:"state,omitempty"`
	Zip      string            `json:"zip,omitempty"`
	Country  string            `json:"country,omitempty"`
	Contacts []LocationContact `json:"contacts,omitempty"`
}

type LocationContact struct {
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type ConditionsModule struct {
	Conditions []string `json:"conditions,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
}
