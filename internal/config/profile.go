// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/sam-fredrickson/keyrecon"
)

// Chain is a key chain in a profile: either a dotted string ("alarm.severity")
// or a list of keys, for keys that contain dots.
type Chain keyrecon.KeyChain

// UnmarshalYAML accepts both chain notations.
func (c *Chain) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		*c = Chain(keyrecon.ParseKeyChain(s))
		return nil
	}
	var keys []string
	if err := unmarshal(&keys); err != nil {
		return fmt.Errorf("key chain must be a string or a list of strings: %w", err)
	}
	*c = Chain(keys)
	return nil
}

// ColumnMapping is the profile form of [keyrecon.ColumnMapping].
type ColumnMapping struct {
	Map              map[string]Chain `yaml:"map"`
	InnerKeyValidity bool             `yaml:"inner_key_validity"`
	GenericKey       Chain            `yaml:"generic_key"`
}

// Profile is a reconciliation policy stored as YAML.
//
//	column_mapping:
//	  map:
//	    alarm: alarm_definitions
//	  generic_key: metadata
//	ignore_keys: [id]
//	modification_fields: [cooldown]
//	changed_fields_path: metadata.changed_fields
//	fix_funcs:
//	  event_type: [trim, upper]
type Profile struct {
	ColumnMapping      ColumnMapping       `yaml:"column_mapping"`
	IgnoreKeys         []string            `yaml:"ignore_keys"`
	ModificationFields []string            `yaml:"modification_fields"`
	ChangedFields      []Chain             `yaml:"changed_fields"`
	ChangedFieldsPath  Chain               `yaml:"changed_fields_path"`
	FixFuncs           map[string][]string `yaml:"fix_funcs"`
	StrictOrder        bool                `yaml:"strict_order"`
}

// LoadProfile reads a profile file. An empty path yields the zero profile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// ParseProfile decodes a profile. Unknown fields are rejected.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.UnmarshalWithOptions(data, &p, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	return &p, nil
}

// Options builds reconciliation options. Changed fields listed in the
// profile are combined with the ledger read from test at ChangedFieldsPath.
func (p *Profile) Options(test keyrecon.Map) (keyrecon.Options, error) {
	opts := keyrecon.Options{
		StrictOrder:        p.StrictOrder,
		IgnoreKeys:         p.IgnoreKeys,
		ModificationFields: p.ModificationFields,
		ColumnMapping: keyrecon.ColumnMapping{
			InnerKeyValidity: p.ColumnMapping.InnerKeyValidity,
			GenericKey:       keyrecon.KeyChain(p.ColumnMapping.GenericKey),
		},
	}

	if len(p.ColumnMapping.Map) > 0 {
		opts.ColumnMapping.Map = make(map[string]keyrecon.KeyChain, len(p.ColumnMapping.Map))
		for k, chain := range p.ColumnMapping.Map {
			opts.ColumnMapping.Map[k] = keyrecon.KeyChain(chain)
		}
	}

	if len(p.FixFuncs) > 0 {
		keys := make([]string, 0, len(p.FixFuncs))
		for k := range p.FixFuncs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		opts.FixFuncs = make(map[string][]keyrecon.FixFunc, len(keys))
		for _, k := range keys {
			funcs, err := keyrecon.FixFuncsByName(p.FixFuncs[k]...)
			if err != nil {
				return keyrecon.Options{}, fmt.Errorf("fix_funcs[%s]: %w", k, err)
			}
			opts.FixFuncs[k] = funcs
		}
	}

	for _, chain := range p.ChangedFields {
		opts.ChangedFields = append(opts.ChangedFields, keyrecon.KeyChain(chain))
	}
	if len(p.ChangedFieldsPath) > 0 {
		ledger := keyrecon.ChangedFieldsFrom(test, keyrecon.KeyChain(p.ChangedFieldsPath))
		opts.ChangedFields = append(opts.ChangedFields, ledger...)
	}
	return opts, nil
}
