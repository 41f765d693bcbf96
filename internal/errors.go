package internal

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

var ErrCodeExists = errors.New("code already exists")
var ErrLinkNotFound = errors.New("link not found")
var ErrInvalidCode = errors.New("invalid code")
var ErrCodeExhausted = errors.New("could not generate a unique code")

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
