package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/assetgraph/internal/asset"
)

// currentRow is the part of the current version the resolver needs.
type currentRow struct {
	id          string
	uid         string
	version     int64
	contentHash string
}

// lookupCurrent returns the current row for a logical asset, if any.
// On PostgreSQL the row is locked until the attempt ends.
func (w *batchWriter) lookupCurrent(ctx context.Context, projectID, key string) (currentRow, bool, error) {
	var cur currentRow
	err := w.queryRow(ctx, `
		SELECT id, asset_uid, version, content_hash
		FROM assets
		WHERE project_id = ? AND idempotency_key = ? AND is_current = TRUE`+w.s.dialect.lockCurrent,
		projectID, key,
	).Scan(&cur.id, &cur.uid, &cur.version, &cur.contentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return currentRow{}, false, nil
	}
	if err != nil {
		return currentRow{}, false, err
	}
	return cur, true, nil
}

// resolveVersion decides CREATE, SUPERSEDE or NO-OP for spec i and performs
// the corresponding writes. Only content participates in the decision.
func (w *batchWriter) resolveVersion(ctx context.Context, i int) error {
	p := w.batch[i]
	spec := p.spec

	cur, found, err := w.lookupCurrent(ctx, spec.ProjectID, spec.IdempotencyKey)
	if err != nil {
		return stepErr(i, "lookup current", err)
	}

	if !found {
		return w.create(ctx, i)
	}

	if spec.AssetUID != "" && spec.AssetUID != cur.uid {
		return uidMismatch(i, fmt.Sprintf("asset_uid %q does not match stored asset_uid %q", spec.AssetUID, cur.uid))
	}

	if cur.contentHash == p.contentHash {
		w.record(i, asset.Outcome{
			Index:    i,
			Action:   asset.ActionUnchanged,
			AssetUID: cur.uid,
			ID:       cur.id,
			Version:  cur.version,
		})
		return nil
	}

	return w.supersede(ctx, i, cur)
}

func (w *batchWriter) create(ctx context.Context, i int) error {
	spec := w.batch[i].spec

	uid := spec.AssetUID
	if uid != "" {
		if err := w.checkUnusedUID(ctx, i, uid); err != nil {
			return err
		}
	} else {
		uid = w.s.ids.Generate()
	}

	id := w.s.ids.Generate()
	if err := w.insertVersion(ctx, i, id, uid, 1, ""); err != nil {
		return err
	}

	w.record(i, asset.Outcome{
		Index:    i,
		Action:   asset.ActionCreated,
		AssetUID: uid,
		ID:       id,
		Version:  1,
	})
	return nil
}

// checkUnusedUID fails spec i if uid already has rows. Rows under the spec's
// own key mean the current row was retired after lookupCurrent read past it
// (a PostgreSQL row lock released by a concurrent supersede), so the attempt
// is retried rather than rejected.
func (w *batchWriter) checkUnusedUID(ctx context.Context, i int, uid string) error {
	spec := w.batch[i].spec

	var projectID, key string
	err := w.queryRow(ctx, `
		SELECT project_id, idempotency_key
		FROM assets
		WHERE asset_uid = ?
		ORDER BY version DESC
		LIMIT 1`, uid,
	).Scan(&projectID, &key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return stepErr(i, "check asset_uid", err)
	}

	if projectID == spec.ProjectID && key == spec.IdempotencyKey {
		return stepErr(i, "check asset_uid", errCurrentMoved)
	}
	return uidMismatch(i, fmt.Sprintf("asset_uid %q already belongs to key %q in project %q", uid, key, projectID))
}

// supersede flips the old row off before inserting the new current row, so
// the partial unique indexes never see two current rows.
func (w *batchWriter) supersede(ctx context.Context, i int, cur currentRow) error {
	res, err := w.exec(ctx, `
		UPDATE assets SET is_current = FALSE, updated_at = ?
		WHERE id = ? AND is_current = TRUE
	`, w.now, cur.id)
	if err != nil {
		return stepErr(i, "retire current version", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return stepErr(i, "retire current version", err)
	}
	if n != 1 {
		return stepErr(i, "retire current version", errCurrentMoved)
	}

	id := w.s.ids.Generate()
	version := cur.version + 1
	if err := w.insertVersion(ctx, i, id, cur.uid, version, cur.id); err != nil {
		return err
	}

	w.record(i, asset.Outcome{
		Index:        i,
		Action:       asset.ActionSuperseded,
		AssetUID:     cur.uid,
		ID:           id,
		Version:      version,
		SupersededID: cur.id,
	})
	return nil
}

func (w *batchWriter) insertVersion(ctx context.Context, i int, id, uid string, version int64, supersedes string) error {
	p := w.batch[i]
	spec := p.spec

	_, err := w.exec(ctx, `
		INSERT INTO assets
		(id, asset_uid, version, is_current, supersedes_asset_id, project_id, asset_type, asset_subtype,
		 name, description, metadata, content, content_hash, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, TRUE, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		uid,
		version,
		nullString(supersedes),
		spec.ProjectID,
		spec.AssetType,
		spec.AssetSubtype,
		spec.Name,
		spec.Description,
		p.metadata,
		p.content,
		p.contentHash,
		spec.IdempotencyKey,
		w.now,
		w.now,
	)
	if err != nil {
		return stepErr(i, "insert asset version", err)
	}
	return nil
}

func (w *batchWriter) record(i int, o asset.Outcome) {
	w.outcomes[i] = o
	w.arena.set(i, resolved{id: o.ID, uid: o.AssetUID, version: o.Version})

	w.s.log.Debug("asset resolved",
		zap.Int("spec_index", i),
		zap.String("action", string(o.Action)),
		zap.String("project_id", w.batch[i].spec.ProjectID),
		zap.String("idempotency_key", w.batch[i].spec.IdempotencyKey),
		zap.String("asset_uid", o.AssetUID),
		zap.Int64("version", o.Version))
}

func uidMismatch(i int, msg string) *asset.BatchError {
	return asset.NewValidationError([]asset.ValidationError{{
		Index:   i,
		Field:   "asset_uid",
		Code:    asset.ErrUIDMismatch,
		Message: msg,
	}})
}
