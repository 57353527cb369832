package errors

import (
	"fmt"
	"time"
)

// Error types for the language server core
type ErrorType string

const (
	// Query errors
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeAmbiguous   ErrorType = "ambiguous"
	ErrorTypeNoReference ErrorType = "no_reference"

	// Compilation errors
	ErrorTypeParse       ErrorType = "parse"
	ErrorTypeElaboration ErrorType = "elaboration"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// NotFoundError reports a hierarchical path, module name or macro name that
// does not exist in the current index or compiled design. Never fatal.
type NotFoundError struct {
	Type ErrorType
	Kind string // "path", "module", "macro", "file"
	Name string
}

// NewNotFoundError creates a not-found error for the named entity
func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Type: ErrorTypeNotFound, Kind: kind, Name: name}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find %s in compiled design: %s", e.Kind, e.Name)
}

// NoReferenceError reports a symbol that resolved but has no recorded uses.
// Distinct from NotFoundError so callers can surface a different message.
type NoReferenceError struct {
	Type ErrorType
	Name string
}

// NewNoReferenceError creates a no-reference error for the named symbol
func NewNoReferenceError(name string) *NoReferenceError {
	return &NoReferenceError{Type: ErrorTypeNoReference, Name: name}
}

func (e *NoReferenceError) Error() string {
	return fmt.Sprintf("could not find reference to: %s", e.Name)
}

// AmbiguousError reports multiple top-level definitions sharing a name.
// Callers must disambiguate; it is never auto-resolved for navigation.
type AmbiguousError struct {
	Type  ErrorType
	Name  string
	Files []string
}

// NewAmbiguousError creates an ambiguity error listing the defining files
func NewAmbiguousError(name string, files []string) *AmbiguousError {
	return &AmbiguousError{Type: ErrorTypeAmbiguous, Name: name, Files: files}
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("multiple definitions of %s found in %d files", e.Name, len(e.Files))
}

// ParseError represents a shallow-parse failure for a single file.
// Indexing continues for other files; the file is recorded with zero symbols.
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Line       int
	Column     int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(path string, line, column int, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Line:       line,
		Column:     column,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s:%d:%d: %v", e.FilePath, e.Line, e.Column, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// ElaborationError reports that the front-end could not build a usable
// symbol graph for the selected top level or build file. The previous
// Analysis, if any, stays queryable.
type ElaborationError struct {
	Type       ErrorType
	Top        string
	Underlying error
	Timestamp  time.Time
}

// NewElaborationError creates a new elaboration error
func NewElaborationError(top string, err error) *ElaborationError {
	return &ElaborationError{
		Type:       ErrorTypeElaboration,
		Top:        top,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ElaborationError) Error() string {
	if e.Top != "" {
		return fmt.Sprintf("elaboration of %s failed: %v", e.Top, e.Underlying)
	}
	return fmt.Sprintf("elaboration failed: %v", e.Underlying)
}

// Unwrap returns the underlying error
func (e *ElaborationError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration loading or validation error
type ConfigError struct {
	Type       ErrorType
	Field      string
	Underlying error
}

// NewConfigError creates a new configuration error
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Type: ErrorTypeConfig, Field: field, Underlying: err}
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %v", e.Field, e.Underlying)
	}
	return fmt.Sprintf("config error: %v", e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}
