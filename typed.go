// SPDX-License-Identifier: Apache-2.0

package keyrecon

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// TagKind identifies which kr struct tag directive had an error.
type TagKind int

const (
	// UnknownTag indicates an unknown or unsupported kr tag directive.
	UnknownTag TagKind = iota
	// IgnoreTag indicates an error with kr:"ignore" directive.
	IgnoreTag
	// ModifiableTag indicates an error with kr:"modifiable" directive.
	ModifiableTag
	// MapTag indicates an error with kr:"map=..." directive.
	MapTag
	// FixTag indicates an error with kr:"fix=..." directive.
	FixTag
	// FieldTag indicates an error with kr:"field=..." directive.
	FieldTag
)

func (k TagKind) String() string {
	switch k {
	case UnknownTag:
		return "unknown"
	case IgnoreTag:
		return "ignore"
	case ModifiableTag:
		return "modifiable"
	case MapTag:
		return "map"
	case FixTag:
		return "fix"
	case FieldTag:
		return "field"
	default:
		return fmt.Sprintf("TagKind(%d)", k)
	}
}

// InvalidTagError is returned when a kr struct tag contains an invalid directive or value.
type InvalidTagError struct {
	// Kind indicates which kr tag directive had the error.
	Kind TagKind
	// FieldName is the struct field name where the error occurred.
	FieldName string
	// Value is the invalid value (e.g., the unknown fix function).
	Value string
	// Message provides details about what went wrong.
	Message string
}

func (e *InvalidTagError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("field %s: invalid %s tag: %s (value: %q)",
			e.FieldName, e.Kind.String(), e.Message, e.Value)
	}
	return fmt.Sprintf("field %s: invalid %s tag: %s",
		e.FieldName, e.Kind.String(), e.Message)
}

func (e *InvalidTagError) Is(target error) bool {
	return target == ErrInvalidTag
}

// OptionsFor derives reconciliation options from the kr struct tags of T
// and adds them to base.
//
// Struct tag format:
//   - kr:"ignore" - skips a top-level field on both sides
//   - kr:"modifiable" - allows the field to diverge from the benchmark
//   - kr:"map=a.b" - renames the field to the key chain a.b in the test document
//   - kr:"fix=upper|trim" - normalizes the field with built-in fix functions
//   - kr:"field=name" - overrides field name detection
//
// Directives combine with commas: kr:"modifiable,fix=upper".
// Field names are detected from yaml, json and toml struct tags. Nested
// struct fields are walked; kr:"ignore" and kr:"map" are only valid at the
// top level unless base enables InnerKeyValidity for map.
//
// Example:
//
//	type EventDef struct {
//		ID       int      `yaml:"id" kr:"ignore"`
//		Alarm    Alarm    `yaml:"alarm" kr:"map=alarm_definitions"`
//		Type     string   `yaml:"event_type" kr:"fix=upper"`
//		Cooldown int      `yaml:"cooldown" kr:"modifiable"`
//	}
//
//	opts, _ := OptionsFor[EventDef](Options{})
func OptionsFor[T any](base Options) (Options, error) {
	opts := cloneOptions(base)
	if err := collectTags(reflect.TypeOf((*T)(nil)).Elem(), &opts, true); err != nil {
		return Options{}, err
	}
	if err := validateOptions(opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// NewReconcilerFor creates a [Reconciler] with options derived from T.
func NewReconcilerFor[T any](base Options) (*Reconciler, error) {
	opts, err := OptionsFor[T](base)
	if err != nil {
		return nil, err
	}
	return NewReconciler(opts)
}

// collectTags walks the fields of t and records their directives in opts.
func collectTags(t reflect.Type, opts *Options, top bool) error {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldName, err := getFieldName(field)
		if err != nil {
			return err
		}
		if fieldName == "-" {
			continue
		}

		if tag := field.Tag.Get("kr"); tag != "" {
			if err := parseKRTag(tag, field.Name, fieldName, opts, top); err != nil {
				return err
			}
		}

		fieldType := field.Type
		for fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}
		if fieldType.Kind() == reflect.Struct {
			if err := collectTags(fieldType, opts, false); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
		}
	}
	return nil
}

// getFieldName extracts the serialized field name from struct tags.
// Priority: kr:field override > yaml > json > toml > struct field name.
func getFieldName(field reflect.StructField) (string, error) {
	if krTag := field.Tag.Get("kr"); krTag != "" {
		fieldName, err := extractFieldDirective(krTag, field.Name)
		if err != nil {
			return "", err
		}
		if fieldName != "" {
			return fieldName, nil
		}
	}

	for _, tagName := range []string{"yaml", "json", "toml"} {
		tag, ok := field.Tag.Lookup(tagName)
		if !ok {
			continue
		}
		if tag == "-" {
			return "-", nil
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name, nil
		}
	}

	return field.Name, nil
}

// extractFieldDirective extracts the field=name directive from a kr tag.
func extractFieldDirective(krTag, structField string) (string, error) {
	for _, part := range strings.Split(krTag, ",") {
		part = strings.TrimSpace(part)
		if name, ok := strings.CutPrefix(part, "field="); ok {
			if name == "" {
				return "", &InvalidTagError{
					Kind:      FieldTag,
					FieldName: structField,
					Value:     part,
					Message:   "field name cannot be empty",
				}
			}
			return name, nil
		}
	}
	return "", nil
}

// parseKRTag parses one kr struct tag into opts. Fix functions of a renamed
// field are also registered under the last component of its test chain.
func parseKRTag(tag, structField, fieldName string, opts *Options, top bool) error {
	var mapped KeyChain
	var fixes []FixFunc
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)

		switch {
		case part == "ignore":
			if !top {
				return &InvalidTagError{
					Kind:      IgnoreTag,
					FieldName: structField,
					Message:   "only valid on top-level fields",
				}
			}
			if !slices.Contains(opts.IgnoreKeys, fieldName) {
				opts.IgnoreKeys = append(opts.IgnoreKeys, fieldName)
			}

		case part == "modifiable":
			if !slices.Contains(opts.ModificationFields, fieldName) {
				opts.ModificationFields = append(opts.ModificationFields, fieldName)
			}

		case strings.HasPrefix(part, "map="):
			target := strings.TrimPrefix(part, "map=")
			chain := ParseKeyChain(target)
			if validateChain(chain) != nil {
				return &InvalidTagError{
					Kind:      MapTag,
					FieldName: structField,
					Value:     target,
					Message:   "expected a dotted key chain",
				}
			}
			if !top && !opts.ColumnMapping.InnerKeyValidity {
				return &InvalidTagError{
					Kind:      MapTag,
					FieldName: structField,
					Value:     target,
					Message:   "nested mapping requires InnerKeyValidity",
				}
			}
			if opts.ColumnMapping.Map == nil {
				opts.ColumnMapping.Map = make(map[string]KeyChain)
			}
			opts.ColumnMapping.Map[fieldName] = chain
			mapped = chain

		case strings.HasPrefix(part, "fix="):
			names := strings.Split(strings.TrimPrefix(part, "fix="), "|")
			for _, name := range names {
				fn, ok := FixFuncByName(name)
				if !ok {
					return &InvalidTagError{
						Kind:      FixTag,
						FieldName: structField,
						Value:     name,
						Message:   "valid: " + strings.Join(FixFuncNames(), ", "),
					}
				}
				fixes = append(fixes, fn)
			}

		case strings.HasPrefix(part, "field="):
			// handled by getFieldName

		default:
			return &InvalidTagError{
				Kind:      UnknownTag,
				FieldName: structField,
				Value:     part,
				Message:   "unknown kr tag directive",
			}
		}
	}

	if len(fixes) == 0 {
		return nil
	}
	if opts.FixFuncs == nil {
		opts.FixFuncs = make(map[string][]FixFunc)
	}
	opts.FixFuncs[fieldName] = append(opts.FixFuncs[fieldName], fixes...)
	if last := mapped.Last(); last != "" && last != fieldName {
		opts.FixFuncs[last] = append(opts.FixFuncs[last], fixes...)
	}
	return nil
}
