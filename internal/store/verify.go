package store

import (
	"context"
	"fmt"
)

// Violation checks reported by Verify.
const (
	CheckSingleCurrent    = "single_current"    // more than one current row per key
	CheckLineageCurrent   = "lineage_current"   // uid without exactly one current row
	CheckMonotonicVersion = "monotonic_version" // versions not 1..n without gaps
	CheckBrokenLineage    = "broken_lineage"    // supersedes_asset_id not the previous version
	CheckDanglingEdge     = "dangling_edge"     // edge endpoint row missing
)

// Violation is one audit finding.
type Violation struct {
	Check  string `json:"check"`
	Ref    string `json:"ref"`
	Detail string `json:"detail"`
}

// Verify audits the stored graph. The unique indexes and foreign keys make
// violations impossible through UpsertAssetsAndEdges, so any finding means
// rows were written around the store.
//
// projectID scopes the asset checks; empty audits every project. The
// dangling edge check is always global because a missing endpoint has no
// project to filter on.
func (s *Store) Verify(ctx context.Context, projectID string) ([]Violation, error) {
	checks := []struct {
		name  string
		query string
		args  []any
	}{
		{
			name: CheckSingleCurrent,
			query: `
				SELECT project_id || '/' || idempotency_key, COUNT(*)
				FROM assets
				WHERE is_current = TRUE AND (? = '' OR project_id = ?)
				GROUP BY project_id, idempotency_key
				HAVING COUNT(*) > 1
				ORDER BY 1`,
			args: []any{projectID, projectID},
		},
		{
			name: CheckLineageCurrent,
			query: `
				SELECT asset_uid, SUM(CASE WHEN is_current THEN 1 ELSE 0 END)
				FROM assets
				WHERE (? = '' OR project_id = ?)
				GROUP BY asset_uid
				HAVING SUM(CASE WHEN is_current THEN 1 ELSE 0 END) <> 1
				ORDER BY 1`,
			args: []any{projectID, projectID},
		},
		{
			name: CheckMonotonicVersion,
			query: `
				SELECT asset_uid, COUNT(*)
				FROM assets
				WHERE (? = '' OR project_id = ?)
				GROUP BY asset_uid
				HAVING MIN(version) <> 1 OR MAX(version) <> COUNT(*)
				ORDER BY 1`,
			args: []any{projectID, projectID},
		},
		{
			name: CheckBrokenLineage,
			query: `
				SELECT a.id, a.version
				FROM assets a
				LEFT JOIN assets p ON p.id = a.supersedes_asset_id
				WHERE a.version > 1 AND (? = '' OR a.project_id = ?)
				  AND (p.id IS NULL OR p.asset_uid <> a.asset_uid OR p.version <> a.version - 1)
				ORDER BY 1`,
			args: []any{projectID, projectID},
		},
		{
			name: CheckDanglingEdge,
			query: `
				SELECT CAST(e.id AS TEXT), COUNT(*)
				FROM asset_edges e
				LEFT JOIN assets f ON f.id = e.from_asset_id
				LEFT JOIN assets t ON t.id = e.to_asset_id
				WHERE f.id IS NULL OR t.id IS NULL
				GROUP BY e.id
				ORDER BY e.id`,
		},
	}

	violations := []Violation{}
	for _, c := range checks {
		found, err := s.runCheck(ctx, c.name, c.query, c.args...)
		if err != nil {
			return nil, err
		}
		violations = append(violations, found...)
	}
	return violations, nil
}

func (s *Store) runCheck(ctx context.Context, name, query string, args ...any) ([]Violation, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", name, err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var ref string
		var n int64
		if err := rows.Scan(&ref, &n); err != nil {
			return nil, fmt.Errorf("verify %s: scan: %w", name, err)
		}
		out = append(out, Violation{Check: name, Ref: ref, Detail: describe(name, n)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("verify %s: %w", name, err)
	}
	return out, nil
}

func describe(check string, n int64) string {
	switch check {
	case CheckSingleCurrent:
		return fmt.Sprintf("%d current rows", n)
	case CheckLineageCurrent:
		return fmt.Sprintf("%d current rows for asset_uid", n)
	case CheckMonotonicVersion:
		return fmt.Sprintf("%d versions do not form 1..%d", n, n)
	case CheckBrokenLineage:
		return fmt.Sprintf("version %d does not supersede version %d of the same asset", n, n-1)
	case CheckDanglingEdge:
		return "edge endpoint missing"
	default:
		return ""
	}
}
