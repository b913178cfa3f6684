// SPDX-License-Identifier: Apache-2.0

// Package format reads and writes documents as YAML, JSON or TOML.
package format

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"github.com/sam-fredrickson/keyrecon"
)

// Format names a document encoding. The zero value means "not chosen" and
// is resolved from a file extension. It implements pflag.Value.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	TOML Format = "toml"
)

var validFormats = map[string]Format{
	"":     "",
	"json": JSON,
	"yaml": YAML,
	"yml":  YAML,
	"toml": TOML,
}

func (f *Format) String() string {
	return string(*f)
}

func (f *Format) Set(value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	format, ok := validFormats[value]
	if !ok {
		return fmt.Errorf("invalid format %q (want json, yaml or toml)", value)
	}
	*f = format
	return nil
}

func (f *Format) Type() string {
	return "format"
}

// Detect picks the format from a file extension.
func Detect(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("unsupported file format: %q", ext)
	}
}

// Unmarshal returns the decoding function of f.
func (f Format) Unmarshal() (func([]byte, any) error, error) {
	switch f {
	case YAML:
		return yaml.Unmarshal, nil
	case JSON:
		return json.Unmarshal, nil
	case TOML:
		return toml.Unmarshal, nil
	default:
		return nil, fmt.Errorf("invalid format %q", string(f))
	}
}

// Marshal encodes doc in format f. JSON is indented.
func (f Format) Marshal(doc any) ([]byte, error) {
	switch f {
	case JSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case YAML:
		return yaml.Marshal(doc)
	case TOML:
		return toml.Marshal(doc)
	default:
		return nil, fmt.Errorf("invalid format %q", string(f))
	}
}

// Decode parses data as a document whose root is a mapping. Empty input
// yields an empty map.
func (f Format) Decode(data []byte) (keyrecon.Map, error) {
	unmarshal, err := f.Unmarshal()
	if err != nil {
		return nil, err
	}
	var raw any
	if err := unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return keyrecon.Map{}, nil
	}
	return keyrecon.MapFromAny(raw)
}

// Encode writes m in format f.
func (f Format) Encode(m keyrecon.Map) ([]byte, error) {
	return f.Marshal(m.Interface())
}

// ReadFile reads and decodes a document, detecting its format from the
// file extension.
func ReadFile(path string) (keyrecon.Map, Format, error) {
	f, err := Detect(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, f, err
	}
	m, err := f.Decode(data)
	if err != nil {
		return nil, f, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return m, f, nil
}
