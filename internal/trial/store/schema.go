package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaDDL provisions the eight trial tables. Statements are idempotent so
// EnsureSchema can run on every start. Child tables reference the parent by
// nct_id without a database-level foreign key: the pipeline never writes a
// child before its parent, and the quality engine reports orphans instead of
// the database rejecting them (restored dumps may legitimately contain some).
const schemaDDL = `
CREATE TABLE IF NOT EXISTS trial_basic_info (
	nct_id                  VARCHAR(11) PRIMARY KEY,
	protocol_section_id     TEXT,
	organization_name       TEXT,
	organization_type       TEXT,
	brief_title             TEXT,
	official_title          TEXT,
	status                  TEXT,
	phase                   TEXT,
	study_type              TEXT,
	enrollment_count        INTEGER,
	enrollment_type         TEXT,
	start_date              DATE,
	completion_date         DATE,
	primary_completion_date DATE,
	is_fda_regulated_drug   BOOLEAN,
	is_fda_regulated_device BOOLEAN,
	is_unapproved_device    BOOLEAN,
	is_ppsd                 BOOLEAN,
	is_us_export            BOOLEAN,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS trial_descriptions (
	nct_id               VARCHAR(11) PRIMARY KEY,
	brief_summary        TEXT,
	detailed_description TEXT
);

CREATE TABLE IF NOT EXISTS trial_eligibility (
	nct_id             VARCHAR(11) PRIMARY KEY,
	inclusion_criteria TEXT,
	exclusion_criteria TEXT,
	minimum_age        TEXT,
	maximum_age        TEXT,
	gender             TEXT,
	healthy_volunteers BOOLEAN
);

CREATE TABLE IF NOT EXISTS trial_arms_interventions (
	id                BIGSERIAL PRIMARY KEY,
	nct_id            VARCHAR(11) NOT NULL,
	row_type          TEXT NOT NULL,
	label             TEXT,
	description       TEXT,
	intervention_name TEXT
);

CREATE TABLE IF NOT EXISTS trial_outcomes (
	id                  BIGSERIAL PRIMARY KEY,
	nct_id              VARCHAR(11) NOT NULL,
	outcome_type        TEXT NOT NULL,
	outcome_measure     TEXT,
	outcome_time_frame  TEXT,
	outcome_description TEXT
);

CREATE TABLE IF NOT EXISTS trial_locations (
	id                     BIGSERIAL PRIMARY KEY,
	nct_id                 VARCHAR(11) NOT NULL,
	facility_name          TEXT,
	facility_address       TEXT,
	facility_city          TEXT,
	facility_state         TEXT,
	facility_zip           TEXT,
	facility_country       TEXT,
	facility_contact_name  TEXT,
	facility_contact_phone TEXT,
	facility_contact_email TEXT
);

CREATE TABLE IF NOT EXISTS trial_conditions (
	id             BIGSERIAL PRIMARY KEY,
	nct_id         VARCHAR(11) NOT NULL,
	condition_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trial_keywords (
	id      BIGSERIAL PRIMARY KEY,
	nct_id  VARCHAR(11) NOT NULL,
	keyword TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_arms_nct ON trial_arms_interventions (nct_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_nct ON trial_outcomes (nct_id);
CREATE INDEX IF NOT EXISTS idx_locations_nct ON trial_locations (nct_id);
CREATE INDEX IF NOT EXISTS idx_conditions_nct ON trial_conditions (nct_id);
CREATE INDEX IF NOT EXISTS idx_keywords_nct ON trial_keywords (nct_id);
CREATE INDEX IF NOT EXISTS idx_basic_info_status ON trial_basic_info (status);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
