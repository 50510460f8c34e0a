// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain error sentinels. Errors returned by this package and its storage
// implementations match exactly one of these with errors.Is.
var (
	// ErrValidation indicates submitted input failed a type, required or choice check.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced tab, definition or scope does not exist or is deleted.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a name collision or a locked change.
	ErrConflict = errors.New("conflict")
	// ErrStorage indicates the underlying store failed. It is never retried here.
	ErrStorage = errors.New("storage failure")
)

// ValidationError represents an input validation error for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors aggregates per-field failures from a batch save.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is makes ValidationErrors match ErrValidation.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Fields returns the sorted, de-duplicated names of the offending fields.
func (e ValidationErrors) Fields() []string {
	seen := make(map[string]struct{}, len(e))
	fields := make([]string, 0, len(e))
	for _, v := range e {
		if _, ok := seen[v.Field]; ok {
			continue
		}
		seen[v.Field] = struct{}{}
		fields = append(fields, v.Field)
	}
	sort.Strings(fields)
	return fields
}

// ForField returns the errors recorded against name.
func (e ValidationErrors) ForField(name string) []*ValidationError {
	var out []*ValidationError
	for _, v := range e {
		if v.Field == name {
			out = append(out, v)
		}
	}
	return out
}

func (e ValidationErrors) sorted() ValidationErrors {
	sort.SliceStable(e, func(i, j int) bool { return e[i].Field < e[j].Field })
	return e
}

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// IsDomainError reports whether err is a validation, not-found or conflict
// failure rather than a storage failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
