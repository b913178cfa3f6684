// SPDX-License-Identifier: Apache-2.0

package keyrecon

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple error checking with [errors.Is].
// For detailed error information, use [errors.As] with the typed errors below.
var (
	// ErrLookup indicates a key chain expected to exist in a document was absent.
	ErrLookup = errors.New("lookup failed")
	// ErrTransform indicates a fix function failed.
	ErrTransform = errors.New("transform failed")
	// ErrInvalidOptions indicates invalid reconcile options were provided.
	ErrInvalidOptions = errors.New("invalid options")
	// ErrMarshal indicates a marshaling or unmarshaling operation failed.
	ErrMarshal = errors.New("marshal error")
	// ErrUnsupportedType indicates a Go value cannot be represented as a document value.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrNotMapping indicates a document root is not a mapping.
	ErrNotMapping = errors.New("document is not a mapping")
	// ErrOverlap indicates a key chain was recorded in more than one diff bucket.
	ErrOverlap = errors.New("diff buckets overlap")
	// ErrInvalidTag indicates a kr struct tag is malformed.
	ErrInvalidTag = errors.New("invalid tag")
	// ErrNilDocument indicates a nil document was passed where one is updated.
	ErrNilDocument = errors.New("nil document")
)

// LookupError is returned when a key chain that the diff bookkeeping expects
// to exist cannot be resolved. It signals a broken invariant, not a missing key.
type LookupError struct {
	// Chain is the key chain that was looked up.
	Chain KeyChain
	// Depth is the index of the first component that could not be resolved.
	Depth int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("key chain %s not found (missing %q at depth %d)",
		e.Chain, e.Chain[e.Depth], e.Depth)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrLookup
}

// TransformError is reported when a fix function returns an error or panics.
type TransformError struct {
	// Key is the field name the fix functions are registered under.
	Key string
	// Index is the position of the failing function in the key's list.
	Index int
	// Err is the underlying failure.
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("fix function %d for key %q failed: %v", e.Index, e.Key, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

func (e *TransformError) Is(target error) bool {
	return target == ErrTransform
}

// MarshalError is returned when unmarshaling or marshaling a document fails.
type MarshalError struct {
	// Err is the underlying error returned by a marshaling function.
	Err error
	// Document names the document that failed ("benchmark", "test" or "result").
	Document string
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("cannot marshal %s document: %v", e.Document, e.Err)
}

func (e *MarshalError) Unwrap() error {
	return e.Err
}

func (e *MarshalError) Is(target error) bool {
	return target == ErrMarshal
}

// UnsupportedTypeError is returned by [FromAny] for values outside the document model.
type UnsupportedTypeError struct {
	// Value is the offending Go value.
	Value any
	// Path is where in the input the value occurred.
	Path []string
}

func (e *UnsupportedTypeError) Error() string {
	path := strings.Join(e.Path, ".")
	if path == "" {
		path = "(root)"
	}
	return fmt.Sprintf("unsupported value of type %T at path %s", e.Value, path)
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// OverlapError is returned by [Diff.Validate] when a key chain appears in
// more than one of the added, removed and modified buckets.
type OverlapError struct {
	// Chain is the key chain found twice.
	Chain KeyChain
	// Buckets names the buckets the chain was found in.
	Buckets []string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("key chain %s appears in buckets %s", e.Chain, strings.Join(e.Buckets, ", "))
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}
