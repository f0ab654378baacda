package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/assetgraph/internal/asset"
)

// StatusCommitted is the batch status reported to Hooks on success.
const StatusCommitted = "committed"

// UpsertAssetsAndEdges persists a batch of write specs atomically.
//
// Each spec becomes a new asset (version 1), a new version of an existing
// asset (content changed), or nothing (content unchanged). Edges are written
// after every asset in the batch, from each spec's resolved row to the row
// its target resolves to. Either the whole batch commits or nothing does.
//
// The returned error is always a *asset.BatchError:
//   - validation: the batch was rejected before touching storage, or an
//     asset_uid expectation did not match storage
//   - reference: an edge target could not be resolved
//   - conflict: concurrent writers won every attempt
//   - storage: anything else, including cancellation
//
// Calling it again with the same specs is safe: unchanged specs report
// ActionUnchanged and existing edges are skipped.
func (s *Store) UpsertAssetsAndEdges(ctx context.Context, specs []asset.WriteSpec) (*asset.BatchResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "assetgraph.upsert", trace.WithAttributes(
		attribute.String("db.system", s.dialect.name),
		attribute.Int("assetgraph.specs", len(specs)),
	))
	defer span.End()

	res, attempts, err := s.upsert(ctx, specs)
	dur := time.Since(start)

	if err != nil {
		kind := asset.KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(
			attribute.String("assetgraph.error_kind", string(kind)),
			attribute.Int("assetgraph.attempts", attempts),
		)
		s.hooks.ObserveBatch(string(kind), attempts, dur)
		s.log.Info("batch rejected",
			zap.String("kind", string(kind)),
			zap.Int("specs", len(specs)),
			zap.Int("attempts", attempts),
			zap.Duration("duration", dur),
			zap.Error(err))
		return nil, err
	}

	created := res.Count(asset.ActionCreated)
	superseded := res.Count(asset.ActionSuperseded)
	unchanged := res.Count(asset.ActionUnchanged)

	for _, o := range res.Outcomes {
		s.hooks.ObserveOutcome(o.Action)
	}
	s.hooks.ObserveBatch(StatusCommitted, attempts, dur)

	span.SetAttributes(
		attribute.Int("assetgraph.attempts", attempts),
		attribute.Int("assetgraph.created", created),
		attribute.Int("assetgraph.superseded", superseded),
		attribute.Int("assetgraph.unchanged", unchanged),
		attribute.Int("assetgraph.edges_created", res.EdgesCreated),
		attribute.Int("assetgraph.edges_skipped", res.EdgesSkipped),
	)
	span.SetStatus(codes.Ok, "")

	s.log.Info("batch committed",
		zap.Int("specs", len(specs)),
		zap.Int("created", created),
		zap.Int("superseded", superseded),
		zap.Int("unchanged", unchanged),
		zap.Int("edges_created", res.EdgesCreated),
		zap.Int("edges_skipped", res.EdgesSkipped),
		zap.Int("attempts", attempts),
		zap.Duration("duration", dur))

	return res, nil
}

func (s *Store) upsert(ctx context.Context, specs []asset.WriteSpec) (*asset.BatchResult, int, error) {
	if problems := asset.Validate(specs); len(problems) > 0 {
		return nil, 0, asset.NewValidationError(problems)
	}

	batch, err := prepareBatch(specs)
	if err != nil {
		return nil, 0, err
	}

	if _, ok := ctx.Deadline(); !ok && s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	return s.writeBatch(ctx, batch)
}
