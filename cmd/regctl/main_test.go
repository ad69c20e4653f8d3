package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes rootCmd with args against a fresh in-process run, capturing
// stdout by swapping os.Stdout around the cobra Run/RunE call.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = oldStdout })

	rootCmd.SetArgs(args)
	runErr := rootCmd.ExecuteContext(context.Background())

	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	os.Stdout = oldStdout

	rootCmd.SetArgs(nil)
	pathFlag, layerFlag = "", ""
	jsonOut, traceFlag = false, false

	return buf.String(), runErr
}

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()

	payloadFile := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(payloadFile, []byte(`{"name":"hemoglobin"}`), 0o644))
	out, err := runCLI(t, "--path", dir, "put", "Bio.seq.Swissprot.1", payloadFile, "--doc", "a swissprot entry")
	require.NoError(t, err)
	assert.Contains(t, out, "Bio.seq.Swissprot.1")

	// put reads the payload from stdin when no file arg is given; exercise
	// that path directly via a stdin swap so the round trip covers it too.
	oldStdin := os.Stdin
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, werr := w.Write([]byte(`{"name":"hemoglobin"}`))
	require.NoError(t, werr)
	w.Close()
	os.Stdin = r
	out, err = runCLI(t, "--path", dir, "put", "Bio.seq.Swissprot.1", "--doc", "a swissprot entry")
	os.Stdin = oldStdin
	require.NoError(t, err)
	assert.Contains(t, out, "Bio.seq.Swissprot.1")

	out, err = runCLI(t, "--path", dir, "get", "Bio.seq.Swissprot.1")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"hemoglobin"}`, strings.TrimSpace(out))
}

func TestPutRejectsMissingDocstring(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, "--path", dir, "put", "A", "--doc", "")
	assert.Error(t, err)
}

func TestPutRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	oldStdin := os.Stdin
	r, w, err := os.Pipe()
	require.NoError(t, err)
	w.Write([]byte(`not json`))
	w.Close()
	os.Stdin = r
	_, err = runCLI(t, "--path", dir, "put", "A", "--doc", "x")
	os.Stdin = oldStdin
	assert.Error(t, err)
}

func TestGetReportsMissingID(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, "--path", dir, "get", "Nope")
	assert.Error(t, err)
}

func TestRmDeletesExistingResource(t *testing.T) {
	dir := t.TempDir()
	putWithStdin(t, dir, "A", `{"x":1}`)

	out, err := runCLI(t, "--path", dir, "rm", "A")
	require.NoError(t, err)
	assert.Contains(t, out, "A")

	_, err = runCLI(t, "--path", dir, "get", "A")
	assert.Error(t, err)
}

func TestRmReportsMissingID(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, "--path", dir, "rm", "Nope")
	assert.Error(t, err)
}

func TestLsListsAcrossPrefix(t *testing.T) {
	dir := t.TempDir()
	putWithStdin(t, dir, "Bio.seq.Swissprot.1", `{}`)
	putWithStdin(t, dir, "Bio.seq.Swissprot.2", `{}`)
	putWithStdin(t, dir, "Bio.taxon.NCBI", `{}`)

	out, err := runCLI(t, "--path", dir, "ls", "Bio.seq")
	require.NoError(t, err)
	assert.Contains(t, out, "Bio.seq.Swissprot.1")
	assert.Contains(t, out, "Bio.seq.Swissprot.2")
	assert.NotContains(t, out, "Bio.taxon.NCBI")
}

func TestLsJSONOutput(t *testing.T) {
	dir := t.TempDir()
	putWithStdin(t, dir, "A", `{}`)

	out, err := runCLI(t, "--path", dir, "--json", "ls")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{"A"}, ids)
}

func TestSchemaBootstrapThenExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifest := t.TempDir() + "/schema.jsonc"
	require.NoError(t, os.WriteFile(manifest, []byte(`{
  "bindings": [
    { "id": "Bio.seq.Swissprot", "attr": "organism", "kind": "Direct",
      "descriptor": { "targetID": "Bio.taxon.NCBI" } }
  ]
}`), 0o644))

	_, err := runCLI(t, "--path", dir, "schema", "bootstrap", manifest)
	require.NoError(t, err)

	out, err := runCLI(t, "--path", dir, "schema", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "Bio.seq.Swissprot")
	assert.Contains(t, out, "organism")
}

func TestSchemaRelateInverseWritesBothSides(t *testing.T) {
	dir := t.TempDir()
	putWithStdin(t, dir, "A", `{}`)
	putWithStdin(t, dir, "B", `{}`)

	_, err := runCLI(t, "--path", dir, "schema", "relate-inverse", "A", "B")
	require.NoError(t, err)

	out, err := runCLI(t, "--path", dir, "schema", "export")
	require.NoError(t, err)
	// Count the attribute keys only: each binding's inverseof field also
	// holds the value inverseDB.
	assert.Equal(t, 2, strings.Count(out, "inverseDB:"), "both A and B should carry an inverseDB binding")
}

// putWithStdin is a helper wrapping runCLI's stdin swap for tests that only
// care about seeding a resource, not exercising the stdin path itself.
func putWithStdin(t *testing.T, dir, id, payload string) {
	t.Helper()
	oldStdin := os.Stdin
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, werr := w.Write([]byte(payload))
	require.NoError(t, werr)
	w.Close()
	os.Stdin = r
	_, err = runCLI(t, "--path", dir, "put", id, "--doc", "test fixture")
	os.Stdin = oldStdin
	require.NoError(t, err)
}
