package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/assetgraph/internal/asset"
)

// resolved is the row a spec settled on in this attempt.
type resolved struct {
	id      string
	uid     string
	version int64
}

// arena maps batch positions and aliases to resolved rows.
// Positions fill in spec order, so a lookup of an earlier spec always hits.
type arena struct {
	rows   []resolved
	filled []bool
	refs   map[string]int
	specs  []asset.WriteSpec
}

func newArena(batch []preparedSpec) *arena {
	a := &arena{
		rows:   make([]resolved, len(batch)),
		filled: make([]bool, len(batch)),
		refs:   make(map[string]int),
		specs:  make([]asset.WriteSpec, len(batch)),
	}
	for i, p := range batch {
		a.specs[i] = p.spec
		if p.spec.Ref != "" {
			a.refs[p.spec.Ref] = i
		}
	}
	return a
}

func (a *arena) set(i int, r resolved) {
	a.rows[i] = r
	a.filled[i] = true
}

func (a *arena) at(i int) (resolved, bool) {
	if i < 0 || i >= len(a.rows) || !a.filled[i] {
		return resolved{}, false
	}
	return a.rows[i], true
}

// resolveTarget returns the version row id an edge from spec i points at.
func (w *batchWriter) resolveTarget(ctx context.Context, i int, t asset.Target) (string, error) {
	spec := w.batch[i].spec

	switch t.Kind {
	case asset.TargetLocal:
		if r, ok := w.arena.at(t.Index); ok && t.Index < i {
			return r.id, nil
		}
		return "", asset.NewReferenceError(i, fmt.Sprintf("edge target %s is not an earlier spec", t), nil)

	case asset.TargetLocalRef:
		if j, ok := w.arena.refs[t.Ref]; ok && j < i {
			if r, ok := w.arena.at(j); ok {
				return r.id, nil
			}
		}
		return "", asset.NewReferenceError(i, fmt.Sprintf("edge target %s is not an earlier spec", t), nil)

	case asset.TargetKey:
		if j, ok := asset.LocalKeyIndex(w.arena.specs, spec.ProjectID, t.Key, i); ok {
			if r, ok := w.arena.at(j); ok {
				return r.id, nil
			}
		}
		cur, found, err := w.lookupCurrent(ctx, spec.ProjectID, t.Key)
		if err != nil {
			return "", stepErr(i, "resolve edge target", err)
		}
		if !found {
			return "", asset.NewReferenceError(i,
				fmt.Sprintf("edge target %s has no current version in project %q", t, spec.ProjectID), nil)
		}
		return cur.id, nil

	case asset.TargetAssetID:
		var project string
		err := w.queryRow(ctx, `SELECT project_id FROM assets WHERE id = ?`, t.AssetID).Scan(&project)
		if errors.Is(err, sql.ErrNoRows) {
			return "", asset.NewReferenceError(i, fmt.Sprintf("edge target %s does not exist", t), nil)
		}
		if err != nil {
			return "", stepErr(i, "resolve edge target", err)
		}
		if project != spec.ProjectID {
			return "", asset.NewReferenceError(i,
				fmt.Sprintf("edge target %s belongs to project %q, not %q", t, project, spec.ProjectID), nil)
		}
		return t.AssetID, nil

	default:
		return "", asset.NewReferenceError(i, fmt.Sprintf("edge target %s is not addressable", t), nil)
	}
}

// writeEdges inserts the outgoing edges of spec i from its resolved row.
// Edges already present on (from, to, edge_type) are skipped.
func (w *batchWriter) writeEdges(ctx context.Context, i int) error {
	p := w.batch[i]
	from, ok := w.arena.at(i)
	if !ok {
		return stepErr(i, "write edges", fmt.Errorf("spec %d was not resolved", i))
	}

	for j, e := range p.edges {
		to, err := w.resolveTarget(ctx, i, e.spec.Target)
		if err != nil {
			return err
		}

		var id int64
		err = w.queryRow(ctx, `
			INSERT INTO asset_edges (from_asset_id, to_asset_id, edge_type, metadata, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (from_asset_id, to_asset_id, edge_type) DO NOTHING
			RETURNING id
		`, from.id, to, e.spec.EdgeType, e.metadata, w.now).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			w.skipped++
			continue
		}
		if err != nil {
			return stepErr(i, fmt.Sprintf("insert edges[%d]", j), err)
		}

		w.created++
		w.outcomes[i].EdgeIDs = append(w.outcomes[i].EdgeIDs, id)
	}
	return nil
}
