package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/payload"
	"github.com/roach88/assetgraph/internal/testutil"
)

// createTestStore creates a new file-backed store with deterministic ids and
// timestamps and no retry delay.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	base := []Option{
		WithIDGenerator(testutil.NewSequenceGenerator("asset")),
		WithClock(testutil.NewStepClock()),
		WithRetryDelay(0, 0),
	}
	s, err := Open(path, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writeSpec creates a spec with minimal required fields.
func writeSpec(project, key, typ string, content payload.Object) asset.WriteSpec {
	return asset.WriteSpec{
		ProjectID:      project,
		IdempotencyKey: key,
		AssetType:      typ,
		Content:        content,
	}
}

func mustUpsert(t *testing.T, s *Store, specs ...asset.WriteSpec) *asset.BatchResult {
	t.Helper()
	res, err := s.UpsertAssetsAndEdges(context.Background(), specs)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, len(specs))
	return res
}

func requireBatchError(t *testing.T, err error, kind asset.Kind) *asset.BatchError {
	t.Helper()
	require.Error(t, err)
	var be *asset.BatchError
	require.ErrorAs(t, err, &be)
	require.Equal(t, kind, be.Kind, "error: %v", err)
	return be
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func obj(kv ...any) payload.Object {
	if len(kv)%2 != 0 {
		panic("obj: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return payload.MustObject(m)
}
