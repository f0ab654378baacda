package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/payload"
)

func TestUpsert_ExampleScenario(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := writeSpec("P1", "doc_extract:P1:D1", "doc_extract", obj("text", "v1"))
	b := writeSpec("P1", "plans:P1", "plan", obj("steps", []any{"s1"}))
	b.Edges = []asset.EdgeSpec{{Target: asset.Local(0), EdgeType: "derived_from"}}

	res := mustUpsert(t, s, a, b)
	assert.Equal(t, asset.ActionCreated, res.Outcomes[0].Action)
	assert.Equal(t, asset.ActionCreated, res.Outcomes[1].Action)
	assert.Equal(t, int64(1), res.Outcomes[0].Version)
	assert.Equal(t, 1, res.EdgesCreated)
	assert.Equal(t, 1, res.Attempts)

	edges, err := s.EdgesFrom(ctx, res.Outcomes[1].ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, res.Outcomes[0].ID, edges[0].ToAssetID)
	assert.Equal(t, "derived_from", edges[0].EdgeType)

	// content change supersedes
	uid := res.Outcomes[0].AssetUID
	a.Content = obj("text", "v2")
	res2 := mustUpsert(t, s, a)
	assert.Equal(t, asset.ActionSuperseded, res2.Outcomes[0].Action)
	assert.Equal(t, int64(2), res2.Outcomes[0].Version)
	assert.Equal(t, uid, res2.Outcomes[0].AssetUID)
	assert.Equal(t, res.Outcomes[0].ID, res2.Outcomes[0].SupersededID)

	old, err := s.Get(ctx, res.Outcomes[0].ID)
	require.NoError(t, err)
	assert.False(t, old.IsCurrent)

	// same content again is a no-op
	res3 := mustUpsert(t, s, a)
	assert.Equal(t, asset.ActionUnchanged, res3.Outcomes[0].Action)
	assert.Equal(t, res2.Outcomes[0].ID, res3.Outcomes[0].ID)
	assert.Equal(t, int64(2), res3.Outcomes[0].Version)

	history, err := s.History(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, 3, countRows(t, s, "assets"))
}

func TestUpsert_NoOpIgnoresNonContentFields(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	spec := writeSpec("p", "project_details:p", "project_details", obj("area", 1250.0, "levels", 3))
	spec.Name = "Original"
	first := mustUpsert(t, s, spec)

	spec.Name = "Renamed"
	spec.Description = "changed"
	spec.Metadata = obj("source", "rerun")
	// same content with different key order and number spelling
	content, err := payload.ParseObject([]byte(`{"levels": 3.0, "area": 1250}`))
	require.NoError(t, err)
	spec.Content = content

	second := mustUpsert(t, s, spec)
	assert.Equal(t, asset.ActionUnchanged, second.Outcomes[0].Action)
	assert.Equal(t, first.Outcomes[0].ID, second.Outcomes[0].ID)

	cur, err := s.Current(ctx, "p", "project_details:p")
	require.NoError(t, err)
	assert.Equal(t, "Original", cur.Name, "no-op must not rewrite the stored row")
}

func TestUpsert_MonotonicVersions(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	var uid string
	var prevID string
	for v := 1; v <= 5; v++ {
		res := mustUpsert(t, s, writeSpec("p", "wbs:p", "wbs", obj("rev", v)))
		o := res.Outcomes[0]
		assert.Equal(t, int64(v), o.Version)
		if v == 1 {
			uid = o.AssetUID
			assert.Equal(t, asset.ActionCreated, o.Action)
		} else {
			assert.Equal(t, uid, o.AssetUID)
			assert.Equal(t, prevID, o.SupersededID)
		}
		prevID = o.ID
	}

	history, err := s.History(ctx, uid)
	require.NoError(t, err)
	require.Len(t, history, 5)

	current := 0
	for i, row := range history {
		assert.Equal(t, int64(i+1), row.Version)
		if row.IsCurrent {
			current++
			assert.Equal(t, int64(5), row.Version)
		}
		if i > 0 {
			assert.Equal(t, history[i-1].ID, row.SupersedesAssetID)
		} else {
			assert.Empty(t, row.SupersedesAssetID)
		}
	}
	assert.Equal(t, 1, current)

	violations, err := s.Verify(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestUpsert_ValidationFailsBeforeStorage(t *testing.T) {
	s := createTestStore(t)
	// A closed store fails any query, so a validation error proves nothing
	// was attempted.
	require.NoError(t, s.Close())

	bad := writeSpec("p", "", "t", nil)
	_, err := s.UpsertAssetsAndEdges(context.Background(), []asset.WriteSpec{writeSpec("p", "k", "t", nil), bad})

	be := requireBatchError(t, err, asset.KindValidation)
	assert.Equal(t, 1, be.Index)
	require.Len(t, be.Problems, 1)
	assert.Equal(t, asset.ErrKeyEmpty, be.Problems[0].Code)
	assert.ErrorIs(t, err, asset.ErrValidation)
}

func TestUpsert_ContentKeysEqualAfterNFCRejected(t *testing.T) {
	s := createTestStore(t)
	content := payload.Object{
		"caf\u00e9":       payload.Int(1),
		"caf\u0065\u0301": payload.Int(2),
	}

	_, err := s.UpsertAssetsAndEdges(context.Background(), []asset.WriteSpec{writeSpec("p", "k", "t", content)})
	be := requireBatchError(t, err, asset.KindValidation)
	assert.Equal(t, asset.ErrPayloadNotCanon, be.Problems[0].Code)
	assert.Equal(t, 0, countRows(t, s, "assets"))
}

func TestUpsert_EmptyBatch(t *testing.T) {
	s := createTestStore(t)
	_, err := s.UpsertAssetsAndEdges(context.Background(), nil)
	be := requireBatchError(t, err, asset.KindValidation)
	assert.Equal(t, -1, be.Index)
	assert.Equal(t, asset.ErrEmptyBatch, be.Problems[0].Code)
}

func TestUpsert_ReferenceErrorRollsBackWholeBatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := writeSpec("p", "doc_extract:p:d1", "doc_extract", obj("text", "x"))
	b := writeSpec("p", "standard:p:AS 1289", "standard", obj("code", "AS 1289"))
	b.Edges = []asset.EdgeSpec{
		{Target: asset.Local(0), EdgeType: "extracted_from"},
		{Target: asset.Key("project_details:p"), EdgeType: "belongs_to"},
	}

	_, err := s.UpsertAssetsAndEdges(ctx, []asset.WriteSpec{a, b})
	be := requireBatchError(t, err, asset.KindReference)
	assert.Equal(t, 1, be.Index)
	assert.Contains(t, be.Reason, "project_details:p")

	assert.Equal(t, 0, countRows(t, s, "assets"))
	assert.Equal(t, 0, countRows(t, s, "asset_edges"))

	_, err = s.Current(ctx, "p", "doc_extract:p:d1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsert_SupersedeRolledBackOnFailure(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	first := mustUpsert(t, s, writeSpec("p", "k", "t", obj("v", 1)))

	changed := writeSpec("p", "k", "t", obj("v", 2))
	changed.Edges = []asset.EdgeSpec{{Target: asset.AssetID("does-not-exist"), EdgeType: "rel"}}
	_, err := s.UpsertAssetsAndEdges(ctx, []asset.WriteSpec{changed})
	requireBatchError(t, err, asset.KindReference)

	cur, err := s.Current(ctx, "p", "k")
	require.NoError(t, err)
	assert.Equal(t, first.Outcomes[0].ID, cur.ID)
	assert.True(t, cur.IsCurrent)
	assert.Equal(t, int64(1), cur.Version)
	assert.Equal(t, 1, countRows(t, s, "assets"))
}

func TestUpsert_EdgeTargets(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	details := mustUpsert(t, s, writeSpec("p", "project_details:p", "project_details", obj("name", "Tower")))
	detailsID := details.Outcomes[0].ID

	doc := writeSpec("p", "doc_extract:p:d1", "doc_extract", obj("pages", 12))
	doc.Ref = "doc"
	plan := writeSpec("p", "plans:p", "plan", obj("phase", "design"))
	plan.Edges = []asset.EdgeSpec{
		{Target: asset.LocalRef("doc"), EdgeType: "derived_from"},
		{Target: asset.Key("doc_extract:p:d1"), EdgeType: "cites", Metadata: obj("page", 4)},
		{Target: asset.Key("project_details:p"), EdgeType: "belongs_to"},
		{Target: asset.AssetID(detailsID), EdgeType: "pinned_to"},
	}

	res := mustUpsert(t, s, doc, plan)
	assert.Equal(t, 4, res.EdgesCreated)
	assert.Len(t, res.Outcomes[1].EdgeIDs, 4)

	edges, err := s.EdgesFrom(ctx, res.Outcomes[1].ID)
	require.NoError(t, err)
	require.Len(t, edges, 4)
	assert.Equal(t, res.Outcomes[0].ID, edges[0].ToAssetID)
	assert.Equal(t, res.Outcomes[0].ID, edges[1].ToAssetID)
	assert.Equal(t, obj("page", 4), edges[1].Metadata)
	assert.Equal(t, detailsID, edges[2].ToAssetID)
	assert.Equal(t, detailsID, edges[3].ToAssetID)

	incoming, err := s.EdgesTo(ctx, detailsID)
	require.NoError(t, err)
	assert.Len(t, incoming, 2)

	counts, err := s.EdgeTypeCounts(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"derived_from": 1, "cites": 1, "belongs_to": 1, "pinned_to": 1}, counts)
}

func TestUpsert_DuplicateEdgesSkipped(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := writeSpec("p", "a", "t", obj("v", 1))
	b := writeSpec("p", "b", "t", obj("v", 1))
	b.Edges = []asset.EdgeSpec{
		{Target: asset.Local(0), EdgeType: "rel"},
		{Target: asset.Key("a"), EdgeType: "rel"}, // same endpoints and type
		{Target: asset.Local(0), EdgeType: "other"},
	}

	res := mustUpsert(t, s, a, b)
	assert.Equal(t, 2, res.EdgesCreated)
	assert.Equal(t, 1, res.EdgesSkipped)

	// replaying the whole batch changes nothing
	replay := mustUpsert(t, s, a, b)
	assert.Equal(t, 0, replay.EdgesCreated)
	assert.Equal(t, 3, replay.EdgesSkipped)
	assert.Equal(t, asset.ActionUnchanged, replay.Outcomes[0].Action)
	assert.Equal(t, asset.ActionUnchanged, replay.Outcomes[1].Action)

	edges, err := s.EdgesFrom(ctx, res.Outcomes[1].ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestUpsert_EdgesPinVersionAtWriteTime(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := writeSpec("p", "a", "t", obj("v", 1))
	b := writeSpec("p", "b", "t", obj("v", 1))
	b.Edges = []asset.EdgeSpec{{Target: asset.Key("a"), EdgeType: "rel"}}
	first := mustUpsert(t, s, a, b)

	a.Content = obj("v", 2)
	second := mustUpsert(t, s, a)
	require.Equal(t, asset.ActionSuperseded, second.Outcomes[0].Action)

	edges, err := s.EdgesFrom(ctx, first.Outcomes[1].ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, first.Outcomes[0].ID, edges[0].ToAssetID, "edge keeps pointing at version 1")

	// rewriting b unchanged adds an edge to the new current version of a
	again := mustUpsert(t, s, b)
	assert.Equal(t, asset.ActionUnchanged, again.Outcomes[0].Action)
	assert.Equal(t, 1, again.EdgesCreated)

	edges, err = s.EdgesFrom(ctx, first.Outcomes[1].ID)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, second.Outcomes[0].ID, edges[1].ToAssetID)
}

func TestUpsert_PinnedTargetMustBeInSameProject(t *testing.T) {
	s := createTestStore(t)

	other := mustUpsert(t, s, writeSpec("other", "k", "t", obj("v", 1)))

	spec := writeSpec("p", "k", "t", obj("v", 1))
	spec.Edges = []asset.EdgeSpec{{Target: asset.AssetID(other.Outcomes[0].ID), EdgeType: "rel"}}
	_, err := s.UpsertAssetsAndEdges(context.Background(), []asset.WriteSpec{spec})

	be := requireBatchError(t, err, asset.KindReference)
	assert.Contains(t, be.Reason, `project "other"`)
}

func TestUpsert_ExpectedAssetUID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	t.Run("create uses expected uid", func(t *testing.T) {
		spec := writeSpec("p", "k1", "t", obj("v", 1))
		spec.AssetUID = "uid-fixed"
		res := mustUpsert(t, s, spec)
		assert.Equal(t, "uid-fixed", res.Outcomes[0].AssetUID)

		cur, err := s.Current(ctx, "p", "k1")
		require.NoError(t, err)
		assert.Equal(t, "uid-fixed", cur.AssetUID)
	})

	t.Run("mismatch with stored uid", func(t *testing.T) {
		spec := writeSpec("p", "k1", "t", obj("v", 2))
		spec.AssetUID = "uid-other"
		_, err := s.UpsertAssetsAndEdges(ctx, []asset.WriteSpec{spec})
		be := requireBatchError(t, err, asset.KindValidation)
		require.Len(t, be.Problems, 1)
		assert.Equal(t, asset.ErrUIDMismatch, be.Problems[0].Code)
	})

	t.Run("create cannot reuse uid of another key", func(t *testing.T) {
		spec := writeSpec("p", "k2", "t", obj("v", 1))
		spec.AssetUID = "uid-fixed"
		_, err := s.UpsertAssetsAndEdges(ctx, []asset.WriteSpec{spec})
		be := requireBatchError(t, err, asset.KindValidation)
		assert.Equal(t, asset.ErrUIDMismatch, be.Problems[0].Code)

		_, err = s.Current(ctx, "p", "k2")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpsert_ExpectedUIDWithRetiredCurrentIsRetried(t *testing.T) {
	s := createTestStore(t, WithMaxRetries(1))
	// The lineage exists under this key but has no current row, which is what
	// a writer sees after a concurrent supersede releases the row it waited on.
	insertRawAsset(t, s.db, "r1", "uid-race", 1, false, "p", "k")

	spec := writeSpec("p", "k", "t", obj("v", 1))
	spec.AssetUID = "uid-race"
	_, err := s.UpsertAssetsAndEdges(context.Background(), []asset.WriteSpec{spec})

	be := requireBatchError(t, err, asset.KindConflict)
	assert.Contains(t, be.Reason, "2 attempts")
	assert.ErrorIs(t, err, errCurrentMoved)
}

func TestUpsert_RetriesConflicts(t *testing.T) {
	hooks := &recordingHooks{}
	conflict := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	s := createTestStore(t, WithHooks(hooks), withPrecommit(func(attempt int) error {
		if attempt < 3 {
			return conflict
		}
		return nil
	}))

	res := mustUpsert(t, s, writeSpec("p", "k", "t", obj("v", 1)))
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, asset.ActionCreated, res.Outcomes[0].Action)
	assert.Equal(t, int64(1), res.Outcomes[0].Version)
	assert.Equal(t, 1, countRows(t, s, "assets"), "failed attempts must roll back")

	assert.Equal(t, 2, hooks.conflicts)
	assert.Equal(t, 2, hooks.retries)
	assert.Equal(t, []string{StatusCommitted}, hooks.statuses)
}

func TestUpsert_ConflictExhaustion(t *testing.T) {
	hooks := &recordingHooks{}
	s := createTestStore(t, WithHooks(hooks), WithMaxRetries(2), withPrecommit(func(int) error {
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	}))

	_, err := s.UpsertAssetsAndEdges(context.Background(), []asset.WriteSpec{writeSpec("p", "k", "t", nil)})
	be := requireBatchError(t, err, asset.KindConflict)
	assert.Contains(t, be.Reason, "3 attempts")
	assert.ErrorIs(t, err, asset.ErrConflict)

	assert.Equal(t, 0, countRows(t, s, "assets"))
	assert.Equal(t, 3, hooks.conflicts)
	assert.Equal(t, []string{string(asset.KindConflict)}, hooks.statuses)
}

func TestUpsert_StorageErrorNotRetried(t *testing.T) {
	hooks := &recordingHooks{}
	calls := 0
	s := createTestStore(t, WithHooks(hooks), withPrecommit(func(int) error {
		calls++
		return errors.New("disk on fire")
	}))

	_, err := s.UpsertAssetsAndEdges(context.Background(), []asset.WriteSpec{writeSpec("p", "k", "t", nil)})
	requireBatchError(t, err, asset.KindStorage)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, hooks.retries)
}

func TestUpsert_CancelledContext(t *testing.T) {
	s := createTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.UpsertAssetsAndEdges(ctx, []asset.WriteSpec{writeSpec("p", "k", "t", nil)})
	requireBatchError(t, err, asset.KindStorage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpsert_ConcurrentSameKeyWriters(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	const writers = 8
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			spec := writeSpec("p", "plans:p", "plan", obj("writer", i))
			_, err := s.UpsertAssetsAndEdges(gctx, []asset.WriteSpec{spec})
			return err
		})
	}
	require.NoError(t, g.Wait())

	cur, err := s.Current(ctx, "p", "plans:p")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), cur.Version)

	history, err := s.History(ctx, cur.AssetUID)
	require.NoError(t, err)
	require.Len(t, history, writers)
	for i, row := range history {
		assert.Equal(t, int64(i+1), row.Version)
		assert.Equal(t, i == writers-1, row.IsCurrent)
	}

	violations, err := s.Verify(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestUpsert_ConcurrentIdenticalBatches(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	batch := func() []asset.WriteSpec {
		a := writeSpec("p", "doc_extract:p:d1", "doc_extract", obj("text", "same"))
		b := writeSpec("p", "standard:p:AS 3600", "standard", obj("code", "AS 3600"))
		b.Edges = []asset.EdgeSpec{{Target: asset.Local(0), EdgeType: "extracted_from"}}
		return []asset.WriteSpec{a, b}
	}

	var mu sync.Mutex
	actions := map[asset.Action]int{}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 6; i++ {
		g.Go(func() error {
			res, err := s.UpsertAssetsAndEdges(gctx, batch())
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, o := range res.Outcomes {
				actions[o.Action]++
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 2, actions[asset.ActionCreated])
	assert.Equal(t, 10, actions[asset.ActionUnchanged])
	assert.Equal(t, 2, countRows(t, s, "assets"))
	assert.Equal(t, 1, countRows(t, s, "asset_edges"))
}

func TestUpsert_TracingSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := createTestStore(t, WithTracer(tp.Tracer("test")))
	mustUpsert(t, s, writeSpec("p", "k", "t", obj("v", 1)))
	_, err := s.UpsertAssetsAndEdges(context.Background(), []asset.WriteSpec{{}})
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "assetgraph.upsert", spans[0].Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "sqlite", attrs["db.system"].AsString())
	assert.Equal(t, int64(1), attrs["assetgraph.created"].AsInt64())

	failed := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[1].Attributes() {
		failed[kv.Key] = kv.Value
	}
	assert.Equal(t, "validation", failed["assetgraph.error_kind"].AsString())
}

func TestUpsert_HooksObserveOutcomes(t *testing.T) {
	hooks := &recordingHooks{}
	s := createTestStore(t, WithHooks(hooks))

	mustUpsert(t, s, writeSpec("p", "a", "t", obj("v", 1)), writeSpec("p", "b", "t", obj("v", 1)))
	mustUpsert(t, s, writeSpec("p", "a", "t", obj("v", 2)), writeSpec("p", "b", "t", obj("v", 1)))

	assert.Equal(t, map[asset.Action]int{
		asset.ActionCreated:    2,
		asset.ActionSuperseded: 1,
		asset.ActionUnchanged:  1,
	}, hooks.outcomes)
	assert.Equal(t, []string{StatusCommitted, StatusCommitted}, hooks.statuses)
}

func TestUpsert_LargeBatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	specs := make([]asset.WriteSpec, 0, 50)
	for i := 0; i < 50; i++ {
		spec := writeSpec("p", fmt.Sprintf("itp:p:%03d", i), "itp", obj("n", i))
		if i > 0 {
			spec.Edges = []asset.EdgeSpec{{Target: asset.Local(i - 1), EdgeType: "follows"}}
		}
		specs = append(specs, spec)
	}

	res, err := s.UpsertAssetsAndEdges(ctx, specs)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Count(asset.ActionCreated))
	assert.Equal(t, 49, res.EdgesCreated)

	list, err := s.ListCurrent(ctx, "p", asset.Filter{Type: "itp"})
	require.NoError(t, err)
	assert.Len(t, list, 50)
}

type recordingHooks struct {
	mu        sync.Mutex
	statuses  []string
	outcomes  map[asset.Action]int
	conflicts int
	retries   int
}

func (h *recordingHooks) ObserveBatch(status string, _ int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
}

func (h *recordingHooks) ObserveOutcome(a asset.Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcomes == nil {
		h.outcomes = map[asset.Action]int{}
	}
	h.outcomes[a]++
}

func (h *recordingHooks) IncConflict() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conflicts++
}

func (h *recordingHooks) IncRetry() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retries++
}
