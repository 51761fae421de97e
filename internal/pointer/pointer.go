// Package pointer implements the slash-delimited path addressing used by the
// decision-program engine. A pointer like /site/canopyCover addresses a value
// inside a nested map[string]any context object. Pointers must start with "/"
// and contain at least one non-empty segment; anything else is malformed and
// rejected at write time rather than silently ignored.
package pointer

import (
	"fmt"
	"strings"
)

// ErrMalformed is wrapped by every pointer-grammar rejection.
var ErrMalformed = fmt.Errorf("malformed pointer")

// Validate checks ptr against the pointer grammar.
func Validate(ptr string) error {
	if !strings.HasPrefix(ptr, "/") {
		return fmt.Errorf("%w: %q (missing leading slash)", ErrMalformed, ptr)
	}
	if ptr == "/" {
		return fmt.Errorf("%w: %q (no segments)", ErrMalformed, ptr)
	}
	for _, seg := range strings.Split(ptr[1:], "/") {
		if seg == "" {
			return fmt.Errorf("%w: %q (empty segment)", ErrMalformed, ptr)
		}
	}
	return nil
}

// Segments splits a valid pointer into its path segments.
// Returns nil for a malformed pointer.
func Segments(ptr string) []string {
	if Validate(ptr) != nil {
		return nil
	}
	return strings.Split(ptr[1:], "/")
}

// Get resolves ptr inside obj. The second return reports whether the full
// path exists and holds a non-nil value.
func Get(obj map[string]any, ptr string) (any, bool) {
	segs := Segments(ptr)
	if segs == nil {
		return nil, false
	}
	var cur any = obj
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Has reports whether ptr resolves to a present, non-nil value.
func Has(obj map[string]any, ptr string) bool {
	_, ok := Get(obj, ptr)
	return ok
}

// Set writes value at ptr, creating intermediate objects as needed.
// An existing non-map intermediate is overwritten with a fresh map, matching
// the create-on-write contract. Malformed pointers are a hard error.
func Set(obj map[string]any, ptr string, value any) error {
	if err := Validate(ptr); err != nil {
		return err
	}
	segs := Segments(ptr)
	cur := obj
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
	return nil
}

// Unset removes the value at ptr. Missing paths are a no-op.
func Unset(obj map[string]any, ptr string) {
	segs := Segments(ptr)
	if segs == nil {
		return
	}
	cur := obj
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

// ListMissing filters ptrs to those that fail Has, preserving input order.
// obj is never mutated.
func ListMissing(obj map[string]any, ptrs []string) []string {
	missing := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		if !Has(obj, p) {
			missing = append(missing, p)
		}
	}
	return missing
}
