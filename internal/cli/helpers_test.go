package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const docBatch = `specs:
  - ref: doc
    project_id: P1
    idempotency_key: "doc_extract:P1:D1"
    asset_type: doc_extract
    name: Geotechnical report
    content:
      text: v1
  - project_id: P1
    idempotency_key: "plans:P1"
    asset_type: plan
    content:
      steps: [s1, s2]
    edges:
      - target: {ref: doc}
        edge_type: derived_from
`

// cliRun holds what one invocation printed.
type cliRun struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the root command in an isolated directory so that no
// stray assetgraph.yaml or .env is picked up.
func runCLI(t *testing.T, args ...string) cliRun {
	t.Helper()
	return runCLIWithInput(t, "", args...)
}

func runCLIWithInput(t *testing.T, stdin string, args ...string) cliRun {
	t.Helper()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return cliRun{stdout: out.String(), stderr: errOut.String(), err: err}
}

// isolate moves the test into an empty directory and returns a database
// path inside it.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return filepath.Join(dir, "assets.db")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}
