package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"trialstore/internal/trial/models"
	"trialstore/pkg/platform/sentinel"
	txcontext "trialstore/pkg/platform/tx"
)

// PostgresStore persists trials in PostgreSQL. It implements Writer, Reader
// and CorpusReader against the same eight tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed trial store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer picks the transaction from context when a TxRunner opened one,
// falling back to the pool for standalone calls.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// SaveTrial writes the whole aggregate. Call inside a TxRunner boundary;
// statement failures surface unchanged so the transaction rolls back.
func (s *PostgresStore) SaveTrial(ctx context.Context, rec *models.TrialRecord) error {
	if rec == nil {
		return fmt.Errorf("trial record is required")
	}
	ex := s.execer(ctx)

	if err := s.upsertBasicInfo(ctx, ex, &rec.BasicInfo); err != nil {
		return err
	}
	if rec.HasDescription() {
		if err := s.upsertDescription(ctx, ex, rec.Description); err != nil {
			return err
		}
	}
	if rec.HasEligibility() {
		if err := s.upsertEligibility(ctx, ex, rec.Eligibility); err != nil {
			return err
		}
	}
	for i := range rec.Arms {
		if err := s.insertArm(ctx, ex, &rec.Arms[i]); err != nil {
			return err
		}
	}
	for i := range rec.Outcomes {
		if err := s.insertOutcome(ctx, ex, &rec.Outcomes[i]); err != nil {
			return err
		}
	}
	for i := range rec.Locations {
		if err := s.insertLocation(ctx, ex, &rec.Locations[i]); err != nil {
			return err
		}
	}
	for _, c := range rec.Conditions {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO trial_conditions (nct_id, condition_name) VALUES ($1, $2)`,
			rec.BasicInfo.NCTID.String(), c); err != nil {
			return wrapWrite("insert condition", err)
		}
	}
	for _, k := range rec.Keywords {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO trial_keywords (nct_id, keyword) VALUES ($1, $2)`,
			rec.BasicInfo.NCTID.String(), k); err != nil {
			return wrapWrite("insert keyword", err)
		}
	}
	return nil
}

func (s *PostgresStore) upsertBasicInfo(ctx context.Context, ex dbExecutor, info *models.BasicInfo) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trial_basic_info (
			nct_id, protocol_section_id, organization_name, organization_type,
			brief_title, official_title, status, phase, study_type,
			enrollment_count, enrollment_type, start_date, completion_date,
			primary_completion_date, is_fda_regulated_drug, is_fda_regulated_device,
			is_unapproved_device, is_ppsd, is_us_export
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (nct_id) DO UPDATE SET
			protocol_section_id = EXCLUDED.protocol_section_id,
			organization_name = EXCLUDED.organization_name,
			organization_type = EXCLUDED.organization_type,
			brief_title = EXCLUDED.brief_title,
			official_title = EXCLUDED.official_title,
			status = EXCLUDED.status,
			phase = EXCLUDED.phase,
			study_type = EXCLUDED.study_type,
			enrollment_count = EXCLUDED.enrollment_count,
			enrollment_type = EXCLUDED.enrollment_type,
			start_date = EXCLUDED.start_date,
			completion_date = EXCLUDED.completion_date,
			primary_completion_date = EXCLUDED.primary_completion_date,
			is_fda_regulated_drug = EXCLUDED.is_fda_regulated_drug,
			is_fda_regulated_device = EXCLUDED.is_fda_regulated_device,
			is_unapproved_device = EXCLUDED.is_unapproved_device,
			is_ppsd = EXCLUDED.is_ppsd,
			is_us_export = EXCLUDED.is_us_export,
			updated_at = CURRENT_TIMESTAMP`,
		info.NCTID.String(), info.ProtocolSectionID, info.OrganizationName, info.OrganizationType,
		info.BriefTitle, info.OfficialTitle, info.Status, info.Phase, info.StudyType,
		info.EnrollmentCount, info.EnrollmentType, info.StartDate, info.CompletionDate,
		info.PrimaryCompletionDate, info.IsFDARegulatedDrug, info.IsFDARegulatedDevice,
		info.IsUnapprovedDevice, info.IsPPSD, info.IsUSExport,
	)
	if err != nil {
		return wrapWrite("upsert basic info", err)
	}
	return nil
}

func (s *PostgresStore) upsertDescription(ctx context.Context, ex dbExecutor, d *models.Description) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trial_descriptions (nct_id, brief_summary, detailed_description)
		VALUES ($1, $2, $3)
		ON CONFLICT (nct_id) DO UPDATE SET
			brief_summary = EXCLUDED.brief_summary,
			detailed_description = EXCLUDED.detailed_description`,
		d.NCTID.String(), d.BriefSummary, d.DetailedDescription,
	)
	if err != nil {
		return wrapWrite("upsert description", err)
	}
	return nil
}

func (s *PostgresStore) upsertEligibility(ctx context.Context, ex dbExecutor, e *models.Eligibility) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trial_eligibility (
			nct_id, inclusion_criteria, exclusion_criteria,
			minimum_age, maximum_age, gender, healthy_volunteers
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (nct_id) DO UPDATE SET
			inclusion_criteria = EXCLUDED.inclusion_criteria,
			exclusion_criteria = EXCLUDED.exclusion_criteria,
			minimum_age = EXCLUDED.minimum_age,
			maximum_age = EXCLUDED.maximum_age,
			gender = EXCLUDED.gender,
			healthy_volunteers = EXCLUDED.healthy_volunteers`,
		e.NCTID.String(), e.InclusionCriteria, e.ExclusionCriteria,
		e.MinimumAge, e.MaximumAge, e.Gender, e.HealthyVolunteers,
	)
	if err != nil {
		return wrapWrite("upsert eligibility", err)
	}
	return nil
}

func (s *PostgresStore) insertArm(ctx context.Context, ex dbExecutor, a *models.ArmIntervention) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trial_arms_interventions (nct_id, row_type, label, description, intervention_name)
		VALUES ($1, $2, $3, $4, $5)`,
		a.NCTID.String(), string(a.RowType), a.Label, a.Description, a.InterventionName,
	)
	if err != nil {
		return wrapWrite("insert arm intervention", err)
	}
	return nil
}

func (s *PostgresStore) insertOutcome(ctx context.Context, ex dbExecutor, o *models.Outcome) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trial_outcomes (nct_id, outcome_type, outcome_measure, outcome_time_frame, outcome_description)
		VALUES ($1, $2, $3, $4, $5)`,
		o.NCTID.String(), string(o.Type), o.Measure, o.TimeFrame, o.Description,
	)
	if err != nil {
		return wrapWrite("insert outcome", err)
	}
	return nil
}

func (s *PostgresStore) insertLocation(ctx context.Context, ex dbExecutor, l *models.Location) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trial_locations (
			nct_id, facility_name, facility_address, facility_city, facility_state,
			facility_zip, facility_country, facility_contact_name,
			facility_contact_phone, facility_contact_email
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.NCTID.String(), l.FacilityName, l.Address, l.City, l.State,
		l.Zip, l.Country, l.ContactName, l.ContactPhone, l.ContactEmail,
	)
	if err != nil {
		return wrapWrite("insert location", err)
	}
	return nil
}

// wrapWrite attaches the failing statement and classifies the driver error
// into a sentinel so the service layer can assign a persistence reason
// without knowing about pgconn.
func wrapWrite(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrConflict, err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23":
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrConstraint, err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
