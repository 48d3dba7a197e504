// Package maintenance bundles operational database tasks: purging child rows
// ahead of a re-ingest, statistics refresh, and health reporting. It owns a
// raw handle because its statements (VACUUM, catalog reads) sit outside the
// trial store's transaction discipline.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"trialstore/internal/trial/store"
	"trialstore/pkg/domain"
	domainerrors "trialstore/pkg/domain-errors"
)

type Service struct {
	db  *sql.DB
	log *slog.Logger
}

func New(db *sql.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log}
}

// childTables in purge order. The parent row is never touched here.
var childTables = []store.ChildTable{
	store.ChildDescriptions,
	store.ChildEligibility,
	store.ChildArms,
	store.ChildOutcomes,
	store.ChildLocations,
	store.ChildConditions,
	store.ChildKeywords,
}

// PurgeChildren deletes every child row of one trial in a single
// transaction. Re-ingesting after a purge yields exactly one set of child
// rows; without it the child tables keep appending.
func (s *Service) PurgeChildren(ctx context.Context, nctID domain.NCTID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domainerrors.Persistence(err, domainerrors.ReasonConnectivity, "begin purge")
	}
	defer tx.Rollback()

	for _, table := range childTables {
		query := fmt.Sprintf("DELETE FROM %s WHERE nct_id = $1", table)
		if _, err := tx.ExecContext(ctx, query, string(nctID)); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodePersistence,
				fmt.Sprintf("purge %s", table))
		}
	}
	if err := tx.Commit(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodePersistence, "commit purge")
	}
	s.log.Info("purged child rows", "nct_id", string(nctID))
	return nil
}

// TableSize is one relation's on-disk footprint.
type TableSize struct {
	Table string `json:"table"`
	Size  string `json:"size"`
}

// OptimizeResult summarizes one optimize pass.
type OptimizeResult struct {
	DatabaseSize string      `json:"database_size"`
	TableSizes   []TableSize `json:"table_sizes"`
	CompletedAt  time.Time   `json:"completed_at"`
}

// Optimize refreshes planner statistics and reclaims space, then reports
// current sizes. VACUUM cannot run inside a transaction, so statements go
// straight through the handle.
func (s *Service) Optimize(ctx context.Context) (*OptimizeResult, error) {
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodePersistence, "analyze")
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM ANALYZE"); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodePersistence, "vacuum")
	}

	result := &OptimizeResult{CompletedAt: time.Now()}
	row := s.db.QueryRowContext(ctx,
		"SELECT pg_size_pretty(pg_database_size(current_database()))")
	if err := row.Scan(&result.DatabaseSize); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "read database size")
	}

	sizes, err := s.tableSizes(ctx)
	if err != nil {
		return nil, err
	}
	result.TableSizes = sizes

	s.log.Info("database optimize finished", "database_size", result.DatabaseSize)
	return result, nil
}

// Health is a point-in-time operational snapshot.
type Health struct {
	DatabaseSize      string      `json:"database_size"`
	TableSizes        []TableSize `json:"table_sizes"`
	ActiveConnections int         `json:"active_connections"`
	LongQueries       int         `json:"long_running_queries"`
	CheckedAt         time.Time   `json:"checked_at"`
}

// CheckHealth reads size, connection and long-query figures from the
// postgres catalogs.
func (s *Service) CheckHealth(ctx context.Context) (*Health, error) {
	h := &Health{CheckedAt: time.Now()}

	row := s.db.QueryRowContext(ctx,
		"SELECT pg_size_pretty(pg_database_size(current_database()))")
	if err := row.Scan(&h.DatabaseSize); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "read database size")
	}

	sizes, err := s.tableSizes(ctx)
	if err != nil {
		return nil, err
	}
	h.TableSizes = sizes

	row = s.db.QueryRowContext(ctx, "SELECT count(*) FROM pg_stat_activity")
	if err := row.Scan(&h.ActiveConnections); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "count connections")
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM pg_stat_activity
		WHERE state = 'active'
		  AND now() - query_start > interval '5 minutes'`)
	if err := row.Scan(&h.LongQueries); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "count long queries")
	}

	return h, nil
}

func (s *Service) tableSizes(ctx context.Context) ([]TableSize, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tablename,
		       pg_size_pretty(pg_total_relation_size('public.'||tablename))
		FROM pg_tables
		WHERE schemaname = 'public'
		ORDER BY pg_total_relation_size('public.'||tablename) DESC`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "read table sizes")
	}
	defer rows.Close()

	var sizes []TableSize
	for rows.Next() {
		var ts TableSize
		if err := rows.Scan(&ts.Table, &ts.Size); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeQuery, "scan table size")
		}
		sizes = append(sizes, ts)
	}
	return sizes, rows.Err()
}
