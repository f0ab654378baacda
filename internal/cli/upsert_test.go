package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/assetgraph/internal/asset"
)

func TestUpsertText(t *testing.T) {
	db := isolate(t)
	batch := writeFile(t, "batch.yaml", docBatch)

	first := runCLI(t, "--db", db, "upsert", batch)
	require.NoError(t, first.err, first.stdout)
	assert.Contains(t, first.stdout, "✓ Batch committed (2 specs, 1 attempt(s))")
	assert.Contains(t, first.stdout, "created    P1/doc_extract:P1:D1 v1")
	assert.Contains(t, first.stdout, "created    P1/plans:P1 v1")
	assert.Contains(t, first.stdout, "Edges: 1 created, 0 skipped")

	second := runCLI(t, "--db", db, "upsert", batch)
	require.NoError(t, second.err, second.stdout)
	assert.Equal(t, 2, strings.Count(second.stdout, "unchanged"))
	assert.Contains(t, second.stdout, "Edges: 0 created, 1 skipped")
}

func TestUpsertJSONSupersede(t *testing.T) {
	db := isolate(t)
	require.NoError(t, runCLI(t, "--db", db, "upsert", writeFile(t, "v1.yaml", docBatch)).err)

	changed := strings.Replace(docBatch, "text: v1", "text: v2", 1)
	run := runCLI(t, "--db", db, "--format", "json", "upsert", writeFile(t, "v2.yaml", changed))
	require.NoError(t, run.err, run.stdout)

	var res asset.BatchResult
	resp := decodeResponse(t, run.stdout, &res)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, asset.ActionSuperseded, res.Outcomes[0].Action)
	assert.Equal(t, int64(2), res.Outcomes[0].Version)
	assert.NotEmpty(t, res.Outcomes[0].SupersededID)
	assert.Equal(t, asset.ActionUnchanged, res.Outcomes[1].Action)
	// The plan is unchanged but its edge now points at doc v2.
	assert.Equal(t, 1, res.EdgesCreated)
}

func TestUpsertFromStdin(t *testing.T) {
	db := isolate(t)
	run := runCLIWithInput(t, docBatch, "--db", db, "upsert", "-")
	require.NoError(t, run.err, run.stdout)
	assert.Contains(t, run.stdout, "✓ Batch committed")
}

func TestUpsertReferenceErrorWritesNothing(t *testing.T) {
	db := isolate(t)
	batch := docBatch + `      - target: {key: "project_details:P1"}
        edge_type: belongs_to
`

	run := runCLI(t, "--db", db, "--format", "json", "upsert", writeFile(t, "batch.yaml", batch))
	require.Error(t, run.err)
	assert.Equal(t, ExitFailure, GetExitCode(run.err))
	assert.ErrorIs(t, run.err, asset.ErrReference)

	resp := decodeResponse(t, run.stdout, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReference, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "project_details:P1")

	show := runCLI(t, "--db", db, "show", "--project", "P1", "--key", "doc_extract:P1:D1")
	require.Error(t, show.err)
	assert.Contains(t, show.stdout, "Error [E005]")
}

func TestUpsertValidationError(t *testing.T) {
	db := isolate(t)
	batch := `specs:
  - {project_id: P1, idempotency_key: k, asset_type: t}
  - {project_id: P1, idempotency_key: k, asset_type: t}
`
	run := runCLI(t, "--db", db, "upsert", writeFile(t, "dup.yaml", batch))
	require.Error(t, run.err)
	assert.Equal(t, ExitFailure, GetExitCode(run.err))
	assert.Contains(t, run.stdout, "✗ Validation failed")
	assert.Contains(t, run.stdout, "specs[1]")
	assert.Contains(t, run.stdout, asset.ErrDuplicateKey)
}

func TestUpsertUnreadableFile(t *testing.T) {
	db := isolate(t)
	run := runCLI(t, "--db", db, "upsert", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, run.err)
	assert.Equal(t, ExitCommandError, GetExitCode(run.err))
	assert.Contains(t, run.stdout, "Error [E003]")
}

func TestUpsertMetricsFile(t *testing.T) {
	db := isolate(t)
	metricsPath := filepath.Join(t.TempDir(), "assetgraph.prom")

	run := runCLI(t, "--db", db, "upsert", "--metrics-file", metricsPath, writeFile(t, "batch.yaml", docBatch))
	require.NoError(t, run.err, run.stdout)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `assetgraph_asset_outcomes_total{action="created"} 2`)
	assert.Contains(t, text, `assetgraph_batch_duration_seconds_count{status="committed"} 1`)
	assert.Contains(t, text, "assetgraph_batch_attempts_sum 1")
}

func TestBatchErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeReference, batchErrorCode(asset.KindReference))
	assert.Equal(t, ErrCodeConflict, batchErrorCode(asset.KindConflict))
	assert.Equal(t, ErrCodeStorage, batchErrorCode(asset.KindStorage))
	assert.Equal(t, ErrCodeGeneric, batchErrorCode(asset.KindValidation))
}
