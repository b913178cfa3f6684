// SPDX-License-Identifier: Apache-2.0

package keyrecon_test

import (
	_ "embed"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/require"

	"github.com/sam-fredrickson/keyrecon"
)

//go:embed testfiles/cluster-benchmark.yaml
var clusterBenchmark []byte

//go:embed testfiles/cluster-test.yaml
var clusterTest []byte

//go:embed testfiles/cluster-state-benchmark.yaml
var clusterStateBenchmark []byte

//go:embed testfiles/cluster-state-test.yaml
var clusterStateTest []byte

//go:embed testfiles/task-benchmark.yaml
var taskBenchmark []byte

//go:embed testfiles/task-test.yaml
var taskTest []byte

//go:embed testfiles/ad-benchmark.yaml
var adBenchmark []byte

//go:embed testfiles/ad-test.yaml
var adTest []byte

//go:embed testfiles/vms-benchmark.yaml
var vmsBenchmark []byte

//go:embed testfiles/vms-test.yaml
var vmsTest []byte

//go:embed testfiles/bundle-benchmark.yaml
var bundleBenchmark []byte

//go:embed testfiles/bundle-test.yaml
var bundleTest []byte

// doc decodes a YAML document into a Map.
func doc(t testing.TB, data []byte) keyrecon.Map {
	t.Helper()
	var raw any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	m, err := keyrecon.MapFromAny(raw)
	require.NoError(t, err)
	return m
}

// docOf converts a literal Go tree into a Map.
func docOf(t testing.TB, raw map[string]any) keyrecon.Map {
	t.Helper()
	m, err := keyrecon.MapFromAny(raw)
	require.NoError(t, err)
	return m
}

// requireMap fails unless got equals the literal tree want.
func requireMap(t testing.TB, want map[string]any, got keyrecon.Map) {
	t.Helper()
	w := docOf(t, want)
	require.Truef(t, w.Equal(got), "want %s\ngot  %s", keyrecon.MapOf(w), keyrecon.MapOf(got))
}

// requireValue fails unless the value at chain equals want.
func requireValue(t testing.TB, want any, m keyrecon.Map, chain ...string) {
	t.Helper()
	w, err := keyrecon.FromAny(want)
	require.NoError(t, err)
	got, err := m.Require(chain)
	require.NoError(t, err)
	require.Truef(t, w.Equal(got), "at %v: want %s, got %s", chain, w, got)
}

// eventDefOptions renames event definition columns the way the persisted
// documents store them.
func eventDefOptions() keyrecon.Options {
	return keyrecon.Options{
		ColumnMapping: keyrecon.ColumnMapping{
			Map: map[string]keyrecon.KeyChain{
				"action": {"action_definitions"},
				"alarm":  {"alarm_definitions"},
				"text":   {"event_message"},
			},
			GenericKey: keyrecon.KeyChain{"metadata"},
		},
		FixFuncs:   map[string][]keyrecon.FixFunc{"event_type": {keyrecon.Upper()}},
		IgnoreKeys: []string{"id"},
	}
}

// changedFrom sets ChangedFields from the ledger stored in test.
func changedFrom(opts keyrecon.Options, test keyrecon.Map) keyrecon.Options {
	opts.ChangedFields = keyrecon.ChangedFieldsFrom(test, keyrecon.KeyChain{"metadata", "changed_fields"})
	return opts
}

// recordingLogger keeps every event for assertions.
type recordingLogger struct {
	events []logEvent
}

type logEvent struct {
	level  string
	msg    string
	fields map[string]any
}

func (l *recordingLogger) add(level, msg string, fields []keyrecon.Field) {
	e := logEvent{level: level, msg: msg, fields: make(map[string]any, len(fields))}
	for _, f := range fields {
		e.fields[f.Key] = f.Value
	}
	l.events = append(l.events, e)
}

func (l *recordingLogger) Info(msg string, fields ...keyrecon.Field) {
	l.add("info", msg, fields)
}

func (l *recordingLogger) Warn(msg string, fields ...keyrecon.Field) {
	l.add("warn", msg, fields)
}

func (l *recordingLogger) Error(msg string, fields ...keyrecon.Field) {
	l.add("error", msg, fields)
}

func (l *recordingLogger) at(level string) []logEvent {
	var out []logEvent
	for _, e := range l.events {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}
