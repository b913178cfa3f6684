// SPDX-License-Identifier: Apache-2.0

package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-fredrickson/keyrecon"
	"github.com/sam-fredrickson/keyrecon/internal/cli"
)

// run executes the command line with logging discarded.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRootCommand("v1.2.3")
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--log-output", "discard"}, args...))
	err := root.Execute()
	return out.String(), err
}

// copyTestdata copies a testdata file into a temp dir.
func copyTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func decodeYAML(t *testing.T, data []byte) keyrecon.Map {
	t.Helper()
	var raw any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	m, err := keyrecon.MapFromAny(raw)
	require.NoError(t, err)
	return m
}

func requireUpdated(t *testing.T, doc keyrecon.Map) {
	t.Helper()
	want := map[string]any{
		"id":         42,
		"name":       "disk_full",
		"event_type": "ALARM",
		"alarm_definitions": map[string]any{
			"severity":   "MINOR",
			"trigger_on": []any{"A", "B", "C"},
		},
		"metadata": map[string]any{
			"enabled":        true,
			"cooldown":       30,
			"changed_fields": []any{[]any{"alarm", "severity"}, "cooldown"},
		},
	}
	w, err := keyrecon.MapFromAny(want)
	require.NoError(t, err)
	require.Truef(t, w.Equal(doc), "want %s\ngot  %s", keyrecon.MapOf(w), keyrecon.MapOf(doc))
}

func TestDiff(t *testing.T) {
	out, err := run(t, "diff", "-p", "testdata/profile.yaml", "testdata/benchmark.yaml", "testdata/test.yaml")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		`[!] alarm.severity: "MINOR" ==> "MINOR" (user_kept)`,
		`[!] alarm.trigger_on: ["C"] ==> ["A", "B", "C"] (union)`,
		`[!] cooldown: 30 ==> 30 (user_kept)`,
		`[!] enabled: false ==> true (benchmark_kept)`,
	}, "\n")+"\n", out)
}

func TestDiffSummary(t *testing.T) {
	out, err := run(t, "diff", "--summary", "--format", "json",
		"-p", "testdata/profile.yaml", "testdata/benchmark.yaml", "testdata/test.yaml")
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, map[string]any{
		"alarm_definitions": map[string]any{
			"severity":   "MINOR",
			"trigger_on": []any{"A", "B", "C"},
		},
		"cooldown": float64(30),
		"enabled":  true,
	}, summary)
}

func TestDiffExitCode(t *testing.T) {
	_, err := run(t, "diff", "--exit-code", "-p", "testdata/profile.yaml",
		"testdata/benchmark.yaml", "testdata/test.yaml")
	assert.ErrorIs(t, err, cli.ErrDifferences)

	out, err := run(t, "diff", "--exit-code", "testdata/benchmark.yaml", "testdata/benchmark.yaml")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUpdateStdout(t *testing.T) {
	out, err := run(t, "update", "-p", "testdata/profile.yaml", "--id", "run-1",
		"testdata/benchmark.yaml", "testdata/test.yaml")
	require.NoError(t, err)
	requireUpdated(t, decodeYAML(t, []byte(out)))
}

func TestUpdateOutFileAndFormat(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "result.json")
	_, err := run(t, "update", "-p", "testdata/profile.yaml", "--format", "json", "-o", outPath,
		"testdata/benchmark.yaml", "testdata/test.yaml")
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var raw any
	require.NoError(t, json.Unmarshal(data, &raw))
	doc, err := keyrecon.MapFromAny(raw)
	require.NoError(t, err)
	requireUpdated(t, doc)
}

func TestUpdateInPlace(t *testing.T) {
	testPath := copyTestdata(t, "test.yaml")

	_, err := run(t, "update", "-i", "-p", "testdata/profile.yaml", "testdata/benchmark.yaml", testPath)
	require.NoError(t, err)

	data, err := os.ReadFile(testPath)
	require.NoError(t, err)
	requireUpdated(t, decodeYAML(t, data))

	info, err := os.Stat(testPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// a second run finds nothing to change
	_, err = run(t, "update", "-i", "-p", "testdata/profile.yaml", "testdata/benchmark.yaml", testPath)
	require.NoError(t, err)
	again, err := os.ReadFile(testPath)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))

	// and diff agrees: user-kept and combined values are not reported as pending
	_, err = run(t, "diff", "--exit-code", "-p", "testdata/profile.yaml", "testdata/benchmark.yaml", testPath)
	assert.NoError(t, err)
}

func TestUpdateInPlaceLocked(t *testing.T) {
	testPath := copyTestdata(t, "test.yaml")

	held := flock.New(testPath + ".lock")
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = held.Unlock() })

	_, err = run(t, "update", "-i", "--lock-timeout", "100ms",
		"-p", "testdata/profile.yaml", "testdata/benchmark.yaml", testPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to lock")

	data, err := os.ReadFile(testPath)
	require.NoError(t, err)
	original, err := os.ReadFile("testdata/test.yaml")
	require.NoError(t, err)
	assert.Equal(t, string(original), string(data))
}

func TestUpdateProfileFromEnv(t *testing.T) {
	t.Setenv("KEYRECON_PROFILE", "testdata/profile.yaml")
	out, err := run(t, "update", "testdata/benchmark.yaml", "testdata/test.yaml")
	require.NoError(t, err)
	requireUpdated(t, decodeYAML(t, []byte(out)))
}

func TestUpdateErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"update", "testdata/benchmark.yaml", "testdata/missing.yaml"}, "missing.yaml"},
		{"unknown extension", []string{"update", "testdata/benchmark.yaml", "testdata/profile.ini"}, "unsupported file format"},
		{"bad format flag", []string{"update", "--format", "xml", "testdata/benchmark.yaml", "testdata/test.yaml"}, "invalid format"},
		{"missing profile", []string{"update", "-p", "testdata/nope.yaml", "testdata/benchmark.yaml", "testdata/test.yaml"}, "nope.yaml"},
		{"exclusive flags", []string{"update", "-i", "-o", "x.yaml", "testdata/benchmark.yaml", "testdata/test.yaml"}, "none of the others can be"},
		{"arg count", []string{"update", "testdata/benchmark.yaml"}, "accepts 2 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3\n", out)
}

func TestExecute(t *testing.T) {
	assert.Equal(t, 0, cli.Execute("dev", []string{"--log-output", "discard", "diff",
		"testdata/benchmark.yaml", "testdata/benchmark.yaml"}))
	assert.Equal(t, 1, cli.Execute("dev", []string{"--log-output", "discard", "diff",
		"testdata/benchmark.yaml", "testdata/missing.yaml"}))
}
