package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/assetgraph/internal/asset"
)

const assetColumns = `id, asset_uid, version, is_current, supersedes_asset_id, project_id, asset_type,
	asset_subtype, name, description, metadata, content, content_hash, idempotency_key, created_at, updated_at`

const edgeColumns = `id, from_asset_id, to_asset_id, edge_type, metadata, created_at`

type scanner interface {
	Scan(dest ...any) error
}

// Current returns the current version of a logical asset.
// Returns ErrNotFound if the key has never been written in the project.
func (s *Store) Current(ctx context.Context, projectID, key string) (asset.Asset, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT `+assetColumns+`
		FROM assets
		WHERE project_id = ? AND idempotency_key = ? AND is_current = TRUE
	`), projectID, key)

	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Asset{}, fmt.Errorf("current %q in project %q: %w", key, projectID, ErrNotFound)
	}
	if err != nil {
		return asset.Asset{}, fmt.Errorf("read current: %w", err)
	}
	return a, nil
}

// Get returns a version row by id, current or not.
func (s *Store) Get(ctx context.Context, id string) (asset.Asset, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT `+assetColumns+`
		FROM assets
		WHERE id = ?
	`), id)

	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Asset{}, fmt.Errorf("asset %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return asset.Asset{}, fmt.Errorf("read asset: %w", err)
	}
	return a, nil
}

// History returns every version of an asset ordered by version ascending.
// Returns an empty slice (not nil) for an unknown uid.
func (s *Store) History(ctx context.Context, assetUID string) ([]asset.Asset, error) {
	return s.queryAssets(ctx, "history", `
		SELECT `+assetColumns+`
		FROM assets
		WHERE asset_uid = ?
		ORDER BY version ASC
	`, assetUID)
}

// ListCurrent returns the current version of every asset in a project,
// ordered by type, subtype and key.
func (s *Store) ListCurrent(ctx context.Context, projectID string, f asset.Filter) ([]asset.Asset, error) {
	return s.queryAssets(ctx, "list current", `
		SELECT `+assetColumns+`
		FROM assets
		WHERE project_id = ? AND is_current = TRUE
		  AND (? = '' OR asset_type = ?)
		  AND (? = '' OR asset_subtype = ?)
		ORDER BY asset_type ASC, asset_subtype ASC, idempotency_key ASC
	`, projectID, f.Type, f.Type, f.Subtype, f.Subtype)
}

// EdgesFrom returns edges leaving a version row, oldest first.
func (s *Store) EdgesFrom(ctx context.Context, assetID string) ([]asset.Edge, error) {
	return s.queryEdges(ctx, "edges from", `
		SELECT `+edgeColumns+`
		FROM asset_edges
		WHERE from_asset_id = ?
		ORDER BY id ASC
	`, assetID)
}

// EdgesTo returns edges arriving at a version row, oldest first.
func (s *Store) EdgesTo(ctx context.Context, assetID string) ([]asset.Edge, error) {
	return s.queryEdges(ctx, "edges to", `
		SELECT `+edgeColumns+`
		FROM asset_edges
		WHERE to_asset_id = ?
		ORDER BY id ASC
	`, assetID)
}

// EdgeTypeCounts counts edges by type for edges leaving rows of a project.
func (s *Store) EdgeTypeCounts(ctx context.Context, projectID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT e.edge_type, COUNT(*)
		FROM asset_edges e
		JOIN assets a ON a.id = e.from_asset_id
		WHERE a.project_id = ?
		GROUP BY e.edge_type
	`), projectID)
	if err != nil {
		return nil, fmt.Errorf("query edge counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var edgeType string
		var n int64
		if err := rows.Scan(&edgeType, &n); err != nil {
			return nil, fmt.Errorf("scan edge count: %w", err)
		}
		counts[edgeType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edge counts: %w", err)
	}
	return counts, nil
}

func (s *Store) queryAssets(ctx context.Context, op, query string, args ...any) ([]asset.Asset, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", op, err)
	}
	defer rows.Close()

	assets := []asset.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", op, err)
	}
	return assets, nil
}

func (s *Store) queryEdges(ctx context.Context, op, query string, args ...any) ([]asset.Edge, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", op, err)
	}
	defer rows.Close()

	edges := []asset.Edge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", op, err)
	}
	return edges, nil
}

func scanAsset(row scanner) (asset.Asset, error) {
	var (
		a          asset.Asset
		supersedes sql.NullString
		metadata   []byte
		content    []byte
		createdAt  time.Time
		updatedAt  time.Time
	)
	err := row.Scan(
		&a.ID,
		&a.AssetUID,
		&a.Version,
		&a.IsCurrent,
		&supersedes,
		&a.ProjectID,
		&a.Type,
		&a.Subtype,
		&a.Name,
		&a.Description,
		&metadata,
		&content,
		&a.ContentHash,
		&a.IdempotencyKey,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return asset.Asset{}, err
	}

	a.SupersedesAssetID = supersedes.String
	a.CreatedAt = utc(createdAt)
	a.UpdatedAt = utc(updatedAt)
	if a.Metadata, err = unmarshalPayload("metadata", metadata); err != nil {
		return asset.Asset{}, err
	}
	if a.Content, err = unmarshalPayload("content", content); err != nil {
		return asset.Asset{}, err
	}
	return a, nil
}

func scanEdge(row scanner) (asset.Edge, error) {
	var (
		e         asset.Edge
		metadata  []byte
		createdAt time.Time
	)
	if err := row.Scan(&e.ID, &e.FromAssetID, &e.ToAssetID, &e.EdgeType, &metadata, &createdAt); err != nil {
		return asset.Edge{}, fmt.Errorf("scan edge: %w", err)
	}

	e.CreatedAt = utc(createdAt)
	meta, err := unmarshalPayload("edge metadata", metadata)
	if err != nil {
		return asset.Edge{}, err
	}
	e.Metadata = meta
	return e, nil
}
