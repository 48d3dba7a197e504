package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trialstore/internal/trial/models"
	"trialstore/pkg/domain"
	"trialstore/pkg/platform/sentinel"
)

// summarySelect joins the parent with its 1:1 children into the flattened
// read model served by the API.
const summarySelect = `
	SELECT
		tbi.nct_id, tbi.brief_title, tbi.official_title,
		td.brief_summary, td.detailed_description,
		tbi.status, tbi.phase, tbi.study_type, tbi.enrollment_count,
		tbi.start_date, tbi.completion_date, tbi.organization_name,
		te.inclusion_criteria, te.exclusion_criteria
	FROM trial_basic_info tbi
	LEFT JOIN trial_descriptions td ON tbi.nct_id = td.nct_id
	LEFT JOIN trial_eligibility te ON tbi.nct_id = te.nct_id`

func (s *PostgresStore) GetTrial(ctx context.Context, nctID domain.NCTID) (*models.TrialSummary, error) {
	row := s.execer(ctx).QueryRowContext(ctx, summarySelect+` WHERE tbi.nct_id = $1`, nctID.String())
	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get trial: %w", err)
	}
	return summary, nil
}

func (s *PostgresStore) ListTrials(ctx context.Context, filter ListFilter) ([]models.TrialSummary, error) {
	query := summarySelect + ` WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND tbi.status = $%d", len(args))
	}
	if filter.Phase != "" {
		args = append(args, filter.Phase)
		query += fmt.Sprintf(" AND tbi.phase = $%d", len(args))
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY tbi.created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	return s.querySummaries(ctx, "list trials", query, args...)
}

func (s *PostgresStore) SearchTrials(ctx context.Context, q string, limit int) ([]models.TrialSummary, error) {
	if limit < 1 {
		limit = 20
	}
	query := summarySelect + `
	WHERE tbi.brief_title ILIKE $1
		OR tbi.official_title ILIKE $1
		OR td.brief_summary ILIKE $1
		OR td.detailed_description ILIKE $1
	ORDER BY tbi.created_at DESC
	LIMIT $2`
	return s.querySummaries(ctx, "search trials", query, "%"+q+"%", limit)
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.CorpusStats, error) {
	ex := s.execer(ctx)
	stats := &models.CorpusStats{}

	if err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM trial_basic_info`).Scan(&stats.TotalTrials); err != nil {
		return nil, fmt.Errorf("count trials: %w", err)
	}

	var err error
	stats.StatusDistribution, err = s.distribution(ctx,
		`SELECT COALESCE(status, ''), COUNT(*) FROM trial_basic_info GROUP BY status ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("status distribution: %w", err)
	}
	stats.PhaseDistribution, err = s.distribution(ctx,
		`SELECT phase, COUNT(*) FROM trial_basic_info WHERE phase IS NOT NULL GROUP BY phase ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("phase distribution: %w", err)
	}
	stats.StudyTypeDistribution, err = s.distribution(ctx,
		`SELECT COALESCE(study_type, ''), COUNT(*) FROM trial_basic_info GROUP BY study_type ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("study type distribution: %w", err)
	}
	return stats, nil
}

// TotalTrials implements CorpusReader.
func (s *PostgresStore) TotalTrials(ctx context.Context) (int, error) {
	var total int
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM trial_basic_info`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count trials: %w", err)
	}
	return total, nil
}

// BasicInfoRows implements CorpusReader.
func (s *PostgresStore) BasicInfoRows(ctx context.Context) ([]models.BasicInfo, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT nct_id, protocol_section_id, organization_name, organization_type,
			brief_title, official_title, status, phase, study_type,
			enrollment_count, enrollment_type, start_date, completion_date,
			primary_completion_date, created_at, updated_at
		FROM trial_basic_info`)
	if err != nil {
		return nil, fmt.Errorf("read basic info rows: %w", err)
	}
	defer rows.Close()

	var infos []models.BasicInfo
	for rows.Next() {
		var (
			info  models.BasicInfo
			nctID string
		)
		if err := rows.Scan(
			&nctID, &info.ProtocolSectionID, &info.OrganizationName, &info.OrganizationType,
			&info.BriefTitle, &info.OfficialTitle, &info.Status, &info.Phase, &info.StudyType,
			&info.EnrollmentCount, &info.EnrollmentType, &info.StartDate, &info.CompletionDate,
			&info.PrimaryCompletionDate, &info.CreatedAt, &info.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan basic info row: %w", err)
		}
		info.NCTID = domain.NCTID(nctID)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read basic info rows: %w", err)
	}
	return infos, nil
}

// ChildKeys implements CorpusReader.
func (s *PostgresStore) ChildKeys(ctx context.Context, table ChildTable) ([]domain.NCTID, error) {
	switch table {
	case ChildDescriptions, ChildEligibility, ChildArms, ChildOutcomes,
		ChildLocations, ChildConditions, ChildKeywords:
	default:
		return nil, fmt.Errorf("unknown child table %q", table)
	}
	// table is validated against the fixed enum above, never caller input.
	rows, err := s.execer(ctx).QueryContext(ctx, fmt.Sprintf(`SELECT nct_id FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("read %s keys: %w", table, err)
	}
	defer rows.Close()

	var keys []domain.NCTID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s key: %w", table, err)
		}
		keys = append(keys, domain.NCTID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s keys: %w", table, err)
	}
	return keys, nil
}

// LocationRows implements CorpusReader.
func (s *PostgresStore) LocationRows(ctx context.Context) ([]models.Location, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT nct_id, facility_name, facility_contact_name,
			facility_contact_phone, facility_contact_email
		FROM trial_locations`)
	if err != nil {
		return nil, fmt.Errorf("read location rows: %w", err)
	}
	defer rows.Close()

	var locs []models.Location
	for rows.Next() {
		var (
			loc   models.Location
			nctID string
		)
		if err := rows.Scan(&nctID, &loc.FacilityName, &loc.ContactName, &loc.ContactPhone, &loc.ContactEmail); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		loc.NCTID = domain.NCTID(nctID)
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read location rows: %w", err)
	}
	return locs, nil
}

func (s *PostgresStore) querySummaries(ctx context.Context, op, query string, args ...any) ([]models.TrialSummary, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.TrialSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) distribution(ctx context.Context, query string) ([]models.CountBucket, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []models.CountBucket
	for rows.Next() {
		var b models.CountBucket
		if err := rows.Scan(&b.Value, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*models.TrialSummary, error) {
	var (
		s          models.TrialSummary
		nctID      string
		brief      sql.NullString
		official   sql.NullString
		status     sql.NullString
		studyType  sql.NullString
		start, end sql.NullTime
	)
	if err := row.Scan(
		&nctID, &brief, &official,
		&s.BriefSummary, &s.DetailedDescription,
		&status, &s.Phase, &studyType, &s.EnrollmentCount,
		&start, &end, &s.Organization,
		&s.InclusionCriteria, &s.ExclusionCriteria,
	); err != nil {
		return nil, err
	}
	s.NCTID = domain.NCTID(nctID)
	s.BriefTitle = brief.String
	s.OfficialTitle = official.String
	s.Status = status.String
	s.StudyType = studyType.String
	s.StartDate = formatDate(start)
	s.CompletionDate = formatDate(end)
	return &s, nil
}

func formatDate(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	formatted := t.Time.Format(time.DateOnly)
	return &formatted
}
