// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"

	"github.com/sam-fredrickson/keyrecon"
	"github.com/sam-fredrickson/keyrecon/internal/config"
	"github.com/sam-fredrickson/keyrecon/internal/format"
	"github.com/sam-fredrickson/keyrecon/logging"
)

// KRM annotation constants.
const (
	// AnnotationBase is the base prefix for all keyrecon annotations.
	AnnotationBase = "config.keyrecon.io/"

	// AnnotationID pairs a benchmark ConfigMap with the test ConfigMap it
	// reconciles.
	AnnotationID = AnnotationBase + "id"

	// AnnotationRole is either "benchmark" or "test".
	AnnotationRole = AnnotationBase + "role"

	// AnnotationProfile holds a reconciliation profile as inline YAML. It is
	// read from the benchmark ConfigMap.
	AnnotationProfile = AnnotationBase + "profile"

	// AnnotationStrictOrder makes collection comparison order-sensitive.
	// Read from the benchmark ConfigMap.
	AnnotationStrictOrder = AnnotationBase + "strict-order"
)

const (
	roleBenchmark = "benchmark"
	roleTest      = "test"
)

// TypeMeta describes an individual object in a ResourceList.
type TypeMeta struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
}

// ObjectMeta is metadata that all persisted resources must have.
type ObjectMeta struct {
	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	Namespace   string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// ConfigMap represents a Kubernetes ConfigMap resource.
type ConfigMap struct {
	TypeMeta   `yaml:",inline" json:",inline"`
	ObjectMeta `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Data       map[string]string `yaml:"data,omitempty" json:"data,omitempty"`
}

// ResourceList is the input/output format for KRM functions.
// See: https://github.com/kubernetes-sigs/kustomize/blob/master/cmd/config/docs/api-conventions/functions-spec.md
type ResourceList struct {
	APIVersion string           `yaml:"apiVersion" json:"apiVersion"`
	Kind       string           `yaml:"kind" json:"kind"`
	Items      []map[string]any `yaml:"items" json:"items"`
}

// pair is a benchmark ConfigMap and the test ConfigMap reconciled against it.
type pair struct {
	id        string
	benchmark *ConfigMap
	test      *ConfigMap
	profile   *config.Profile
	strict    bool
}

// Run executes the KRM function, reading a ResourceList from in and writing
// the reconciled ResourceList to out. Benchmark ConfigMaps are consumed;
// every test ConfigMap is replaced by its reconciled version.
func Run(in io.Reader, out io.Writer, log zerolog.Logger) error {
	rl, err := readResourceList(in)
	if err != nil {
		return fmt.Errorf("failed to read ResourceList: %w", err)
	}

	pairs, passthrough, err := pairConfigMaps(rl)
	if err != nil {
		return fmt.Errorf("failed to pair ConfigMaps: %w", err)
	}

	ids := make([]string, 0, len(pairs))
	for id := range pairs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	reconciled := make([]map[string]any, 0, len(pairs))
	for _, id := range ids {
		item, err := reconcilePair(pairs[id], log)
		if err != nil {
			return fmt.Errorf("failed to reconcile ConfigMap pair %q: %w", id, err)
		}
		reconciled = append(reconciled, item)
	}

	outputRL := ResourceList{
		APIVersion: "v1",
		Kind:       "ResourceList",
		Items:      append(passthrough, reconciled...),
	}
	if err := writeResourceList(out, outputRL); err != nil {
		return fmt.Errorf("failed to write ResourceList: %w", err)
	}
	return nil
}

// readResourceList reads and unmarshals a ResourceList from a reader.
func readResourceList(r io.Reader) (*ResourceList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var rl ResourceList
	if err := yaml.Unmarshal(data, &rl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ResourceList: %w", err)
	}
	return &rl, nil
}

// writeResourceList marshals and writes a ResourceList to a writer.
func writeResourceList(w io.Writer, rl ResourceList) error {
	data, err := yaml.Marshal(rl)
	if err != nil {
		return fmt.Errorf("failed to marshal ResourceList: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// pairConfigMaps separates annotated ConfigMaps from passthrough resources.
func pairConfigMaps(rl *ResourceList) (map[string]*pair, []map[string]any, error) {
	pairs := make(map[string]*pair)
	var passthrough []map[string]any

	for _, item := range rl.Items {
		cm, isConfigMap, err := parseConfigMap(item)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse resource: %w", err)
		}
		if !isConfigMap {
			passthrough = append(passthrough, item)
			continue
		}

		id := cm.Annotations[AnnotationID]
		if id == "" {
			passthrough = append(passthrough, item)
			continue
		}

		p := pairs[id]
		if p == nil {
			p = &pair{id: id}
			pairs[id] = p
		}

		switch role := strings.ToLower(strings.TrimSpace(cm.Annotations[AnnotationRole])); role {
		case roleBenchmark:
			if p.benchmark != nil {
				return nil, nil, fmt.Errorf("ConfigMap %q: pair %q already has benchmark %q", cm.Name, id, p.benchmark.Name)
			}
			p.benchmark = &cm
		case roleTest:
			if p.test != nil {
				return nil, nil, fmt.Errorf("ConfigMap %q: pair %q already has test %q", cm.Name, id, p.test.Name)
			}
			p.test = &cm
		case "":
			return nil, nil, fmt.Errorf("ConfigMap %q: missing required annotation %q", cm.Name, AnnotationRole)
		default:
			return nil, nil, fmt.Errorf("ConfigMap %q: invalid %q annotation %q (must be benchmark or test)",
				cm.Name, AnnotationRole, role)
		}
	}

	for id, p := range pairs {
		if err := preparePair(p); err != nil {
			return nil, nil, fmt.Errorf("ConfigMap pair %q: %w", id, err)
		}
	}
	return pairs, passthrough, nil
}

// parseConfigMap attempts to parse a resource item as a ConfigMap.
func parseConfigMap(item map[string]any) (ConfigMap, bool, error) {
	apiVersion, _ := item["apiVersion"].(string)
	kind, _ := item["kind"].(string)
	if kind != "ConfigMap" {
		return ConfigMap{}, false, nil
	}

	data, err := yaml.Marshal(item)
	if err != nil {
		return ConfigMap{}, false, fmt.Errorf("failed to marshal item: %w", err)
	}
	var cm ConfigMap
	if err := yaml.Unmarshal(data, &cm); err != nil {
		return ConfigMap{}, false, fmt.Errorf("failed to unmarshal ConfigMap: %w", err)
	}

	if cm.APIVersion == "" {
		cm.APIVersion = apiVersion
	}
	if cm.Kind == "" {
		cm.Kind = kind
	}
	return cm, true, nil
}

// preparePair validates p and parses the benchmark's annotations.
func preparePair(p *pair) error {
	if p.benchmark == nil {
		return fmt.Errorf("no ConfigMap with %s=%s", AnnotationRole, roleBenchmark)
	}
	if p.test == nil {
		return fmt.Errorf("no ConfigMap with %s=%s", AnnotationRole, roleTest)
	}

	p.profile = &config.Profile{}
	if raw := p.benchmark.Annotations[AnnotationProfile]; strings.TrimSpace(raw) != "" {
		profile, err := config.ParseProfile([]byte(raw))
		if err != nil {
			return fmt.Errorf("invalid %q annotation: %w", AnnotationProfile, err)
		}
		p.profile = profile
	}

	if raw := p.benchmark.Annotations[AnnotationStrictOrder]; raw != "" {
		strict, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %q annotation: %w", AnnotationStrictOrder, err)
		}
		p.strict = strict
	}
	return nil
}

// reconcilePair reconciles every data key of the test ConfigMap against the
// benchmark ConfigMap. Keys only the benchmark has are copied; keys only the
// test has are kept.
func reconcilePair(p *pair, log zerolog.Logger) (map[string]any, error) {
	keys := make([]string, 0, len(p.benchmark.Data)+len(p.test.Data))
	for key := range p.benchmark.Data {
		keys = append(keys, key)
	}
	for key := range p.test.Data {
		if _, ok := p.benchmark.Data[key]; !ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	data := make(map[string]string, len(keys))
	for _, key := range keys {
		bench, inBench := p.benchmark.Data[key]
		test, inTest := p.test.Data[key]
		switch {
		case !inTest || test == "":
			data[key] = bench
		case !inBench || bench == "":
			data[key] = test
		default:
			merged, err := reconcileDataKey(p, key, bench, test, log)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile data key %q: %w", key, err)
			}
			data[key] = merged
		}
	}

	result := ConfigMap{
		TypeMeta: TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: ObjectMeta{
			Name:        p.test.Name,
			Namespace:   p.test.Namespace,
			Annotations: filterKeyreconAnnotations(p.test.Annotations),
			Labels:      p.test.Labels,
		},
		Data: data,
	}

	out, err := yaml.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reconciled ConfigMap: %w", err)
	}
	var resultMap map[string]any
	if err := yaml.Unmarshal(out, &resultMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reconciled ConfigMap: %w", err)
	}
	return resultMap, nil
}

// reconcileDataKey updates one test document with its benchmark.
func reconcileDataKey(p *pair, key, bench, test string, log zerolog.Logger) (string, error) {
	f, err := formatFromKey(key)
	if err != nil {
		return "", err
	}

	benchDoc, err := f.Decode([]byte(bench))
	if err != nil {
		return "", fmt.Errorf("benchmark ConfigMap %q (format: %s): %w", p.benchmark.Name, f, err)
	}
	testDoc, err := f.Decode([]byte(test))
	if err != nil {
		return "", fmt.Errorf("test ConfigMap %q (format: %s): %w", p.test.Name, f, err)
	}

	opts, err := p.profile.Options(testDoc)
	if err != nil {
		return "", err
	}
	opts.StrictOrder = opts.StrictOrder || p.strict
	opts.DiffID = p.id + "/" + key
	opts.Logger = logging.Zerolog(log)

	if _, err := keyrecon.Update(opts, benchDoc, testDoc); err != nil {
		return "", err
	}
	out, err := f.Encode(testDoc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", f, err)
	}
	return string(out), nil
}

// formatFromKey detects the format from the data key name (e.g.,
// "config.yaml" → YAML). Keys without an extension are YAML, as is common in
// Kubernetes.
func formatFromKey(key string) (format.Format, error) {
	if filepath.Ext(key) == "" {
		return format.YAML, nil
	}
	return format.Detect(key)
}

// filterKeyreconAnnotations removes keyrecon.io annotations from a map.
func filterKeyreconAnnotations(annotations map[string]string) map[string]string {
	if annotations == nil {
		return nil
	}

	filtered := make(map[string]string)
	for key, value := range annotations {
		if !strings.HasPrefix(key, AnnotationBase) {
			filtered[key] = value
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}
