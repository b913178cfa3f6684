// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"strconv"
	"testing"

	"github.com/goccy/go-yaml"

	"github.com/sam-fredrickson/keyrecon"
)

const (
	numEvents  = 100
	numActions = 20
)

var eventOpts = keyrecon.Options{
	ColumnMapping: keyrecon.ColumnMapping{
		Map: map[string]keyrecon.KeyChain{
			"action": {"action_definitions"},
			"alarm":  {"alarm_definitions"},
		},
		GenericKey: keyrecon.KeyChain{"metadata"},
	},
	IgnoreKeys: []string{"id"},
	FixFuncs:   map[string][]keyrecon.FixFunc{"severity": {keyrecon.Upper()}},
}

// generateBenchmark creates a benchmark document with many event definitions.
func generateBenchmark() map[string]any {
	events := make(map[string]any, numEvents)
	for i := 0; i < numEvents; i++ {
		actions := make([]any, numActions)
		for j := range actions {
			actions[j] = "action" + strconv.Itoa(j)
		}
		events["event"+strconv.Itoa(i)] = map[string]any{
			"enabled":  true,
			"cooldown": 30,
			"alarm": map[string]any{
				"severity":   "major",
				"trigger_on": actions,
			},
		}
	}
	return map[string]any{
		"id":      1,
		"version": "2.0",
		"events":  events,
		"action":  map[string]any{"notify": []any{"email", "sms"}},
	}
}

// generateTest creates a persisted copy that diverges from the benchmark
// in every tenth event.
func generateTest() map[string]any {
	events := make(map[string]any, numEvents)
	for i := 0; i < numEvents; i++ {
		ev := map[string]any{
			"enabled":  true,
			"cooldown": 30,
			"alarm": map[string]any{
				"severity":   "MAJOR",
				"trigger_on": []any{"action0", "action1"},
			},
		}
		if i%10 == 0 {
			ev["cooldown"] = 60
			ev["legacy"] = "x"
		}
		events["event"+strconv.Itoa(i)] = ev
	}
	return map[string]any{
		"id":                 9,
		"version":            "1.0",
		"events":             events,
		"action_definitions": map[string]any{"notify": []any{"email"}},
	}
}

func mustMap(b *testing.B, raw map[string]any) keyrecon.Map {
	b.Helper()
	m, err := keyrecon.MapFromAny(raw)
	if err != nil {
		b.Fatal(err)
	}
	return m
}

func BenchmarkCompare_Small(b *testing.B) {
	r, err := keyrecon.NewReconciler(eventOpts)
	if err != nil {
		b.Fatal(err)
	}
	benchmark := mustMap(b, map[string]any{"name": "disk", "alarm": map[string]any{"severity": "major"}})
	test := mustMap(b, map[string]any{"name": "disk", "alarm_definitions": map[string]any{"severity": "minor"}})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Compare(benchmark, test)
	}
}

func BenchmarkCompare_Large(b *testing.B) {
	r, err := keyrecon.NewReconciler(eventOpts)
	if err != nil {
		b.Fatal(err)
	}
	benchmark := mustMap(b, generateBenchmark())
	test := mustMap(b, generateTest())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Compare(benchmark, test)
	}
}

func BenchmarkResult_Large(b *testing.B) {
	r, err := keyrecon.NewReconciler(eventOpts)
	if err != nil {
		b.Fatal(err)
	}
	benchmark := mustMap(b, generateBenchmark())
	test := mustMap(b, generateTest())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Result(benchmark, test)
	}
}

func BenchmarkUpdate_Large(b *testing.B) {
	r, err := keyrecon.NewReconciler(eventOpts)
	if err != nil {
		b.Fatal(err)
	}
	benchmark := mustMap(b, generateBenchmark())
	test := mustMap(b, generateTest())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		doc := test.Clone()
		b.StartTimer()
		_, _ = r.Update(benchmark, doc)
	}
}

func BenchmarkUpdateMarshal_YAML(b *testing.B) {
	r, err := keyrecon.NewReconciler(eventOpts)
	if err != nil {
		b.Fatal(err)
	}
	benchmark, err := yaml.Marshal(generateBenchmark())
	if err != nil {
		b.Fatal(err)
	}
	test, err := yaml.Marshal(generateTest())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = r.UpdateMarshal(yaml.Unmarshal, yaml.Marshal, benchmark, test)
	}
}

func BenchmarkCollections(b *testing.B) {
	for _, size := range []int{5, 50, 200} {
		benchTags := make([]any, size)
		testTags := make([]any, size)
		for i := 0; i < size; i++ {
			benchTags[i] = i
			if i < size/2 {
				testTags[i] = i
			} else {
				testTags[i] = i + size
			}
		}
		benchmark := mustMap(b, map[string]any{"tags": benchTags})
		test := mustMap(b, map[string]any{"tags": testTags})

		for _, strict := range []bool{false, true} {
			name := strconv.Itoa(size)
			if strict {
				name += "_strict"
			}
			b.Run(name, func(b *testing.B) {
				r, err := keyrecon.NewReconciler(keyrecon.Options{StrictOrder: strict})
				if err != nil {
					b.Fatal(err)
				}
				for i := 0; i < b.N; i++ {
					_, _ = r.Result(benchmark, test)
				}
			})
		}
	}
}
