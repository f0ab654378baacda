package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/payload"
)

// preparedSpec is a validated spec with its payloads already serialized.
// Serialization happens once, outside the transaction, and is reused by
// every attempt.
type preparedSpec struct {
	spec        asset.WriteSpec
	metadata    string
	content     string
	contentHash string
	edges       []preparedEdge
}

type preparedEdge struct {
	spec     asset.EdgeSpec
	metadata string
}

// prepareBatch canonicalizes payloads and computes content hashes.
func prepareBatch(specs []asset.WriteSpec) ([]preparedSpec, error) {
	batch := make([]preparedSpec, len(specs))
	for i, spec := range specs {
		p := preparedSpec{spec: spec}

		var err error
		if p.metadata, err = marshalPayload("metadata", spec.Metadata); err != nil {
			return nil, payloadProblem(i, "metadata", asset.ErrPayloadNotCanon, err)
		}
		if p.content, err = marshalPayload("content", spec.Content); err != nil {
			return nil, payloadProblem(i, "content", asset.ErrPayloadNotCanon, err)
		}
		p.contentHash = payload.ContentHashBytes([]byte(p.content))

		p.edges = make([]preparedEdge, len(spec.Edges))
		for j, e := range spec.Edges {
			meta, err := marshalPayload("edge metadata", e.Metadata)
			if err != nil {
				return nil, payloadProblem(i, fmt.Sprintf("edges[%d].metadata", j), asset.ErrEdgeMetaNotCanon, err)
			}
			p.edges[j] = preparedEdge{spec: e, metadata: meta}
		}

		batch[i] = p
	}
	return batch, nil
}

func payloadProblem(index int, field, code string, err error) *asset.BatchError {
	return asset.NewValidationError([]asset.ValidationError{{
		Index:   index,
		Field:   field,
		Code:    code,
		Message: err.Error(),
	}})
}

// stepError records which spec and which statement failed inside an attempt.
type stepError struct {
	index int
	op    string
	err   error
}

func (e *stepError) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }
func (e *stepError) Unwrap() error { return e.err }

func stepErr(index int, op string, err error) error {
	return &stepError{index: index, op: op, err: err}
}

// batchWriter holds the state of one attempt.
type batchWriter struct {
	s     *Store
	tx    *sql.Tx
	batch []preparedSpec
	arena *arena
	now   time.Time

	outcomes []asset.Outcome
	created  int
	skipped  int
}

// writeBatch runs attempts until one commits, a non-retryable error occurs,
// or retries are exhausted. Returns the number of attempts made.
func (s *Store) writeBatch(ctx context.Context, batch []preparedSpec) (*asset.BatchResult, int, error) {
	maxAttempts := s.maxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			s.hooks.IncRetry()
			if err := s.backoff(ctx, attempt-1); err != nil {
				return nil, attempt - 1, asset.NewStorageError(-1, "wait for retry", err)
			}
		}

		res, err := s.runAttempt(ctx, batch, attempt)
		if err == nil {
			res.Attempts = attempt
			return res, attempt, nil
		}

		var be *asset.BatchError
		if errors.As(err, &be) {
			return nil, attempt, be
		}

		index, op := -1, "write batch"
		var se *stepError
		if errors.As(err, &se) {
			index, op = se.index, se.op
		}

		switch classify(err) {
		case classRetry:
			s.hooks.IncConflict()
			s.log.Warn("batch attempt conflicted",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Int("spec_index", index),
				zap.Error(err))
			lastErr = err
		case classReference:
			return nil, attempt, asset.NewReferenceError(index, op, err)
		default:
			return nil, attempt, asset.NewStorageError(index, op, err)
		}
	}

	return nil, maxAttempts, asset.NewConflictError(maxAttempts, lastErr)
}

// backoff sleeps before retry n (1-based): exponential, capped, with ±25% jitter.
func (s *Store) backoff(ctx context.Context, n int) error {
	delay := s.retryBase << uint(n-1)
	if delay > s.retryMax || delay <= 0 {
		delay = s.retryMax
	}
	if half := int64(delay / 2); half > 0 {
		jitter := time.Duration(rand.Int64N(half))
		delay = delay - delay/4 + jitter
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runAttempt performs the whole batch in one transaction.
// Asset writes happen in spec order, then all edge writes.
func (s *Store) runAttempt(ctx context.Context, batch []preparedSpec, attempt int) (*asset.BatchResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, stepErr(-1, "begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	w := &batchWriter{
		s:        s,
		tx:       tx,
		batch:    batch,
		arena:    newArena(batch),
		now:      s.now(),
		outcomes: make([]asset.Outcome, len(batch)),
	}

	for i := range batch {
		if err := w.resolveVersion(ctx, i); err != nil {
			return nil, err
		}
	}
	for i := range batch {
		if err := w.writeEdges(ctx, i); err != nil {
			return nil, err
		}
	}

	if s.precommit != nil {
		if err := s.precommit(attempt); err != nil {
			return nil, stepErr(-1, "precommit", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, stepErr(-1, "commit", err)
	}

	return &asset.BatchResult{
		Outcomes:     w.outcomes,
		EdgesCreated: w.created,
		EdgesSkipped: w.skipped,
	}, nil
}

func (s *Store) now() time.Time {
	return utc(s.clock.Now()).Truncate(time.Microsecond)
}

func (w *batchWriter) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return w.tx.ExecContext(ctx, w.s.dialect.rebind(query), args...)
}

func (w *batchWriter) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return w.tx.QueryRowContext(ctx, w.s.dialect.rebind(query), args...)
}
