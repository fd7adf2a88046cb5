// Package errors provides the error taxonomy for content resolution and the
// helpers shared by the transports built on top of it.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrContentRootNotFound indicates the content root directory is missing
	ErrContentRootNotFound = errors.New("content root not found")
	// ErrFileRead indicates a content file could not be read
	ErrFileRead = errors.New("file read failed")
	// ErrParse indicates a content file did not deserialize into its record shape
	ErrParse = errors.New("parse failed")
	// ErrBookFileNotFound indicates neither book file naming convention matched
	ErrBookFileNotFound = errors.New("book file not found")
	// ErrChapterNotFound indicates no chapter matched the requested number
	ErrChapterNotFound = errors.New("chapter not found")
)

// ContentRootError reports a content root that could not be resolved or does
// not exist as a directory.
type ContentRootError struct {
	Path string // Attempted path, empty if resolution failed before a path existed
	Err  error  // Underlying error, if any
}

func (e *ContentRootError) Error() string {
	if e.Path == "" && e.Err != nil {
		return fmt.Sprintf("content root not found: %v", e.Err)
	}
	return fmt.Sprintf("content root not found at: %s", e.Path)
}

func (e *ContentRootError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrContentRootNotFound, e.Err}
	}
	return []error{ErrContentRootNotFound}
}

// FileReadError reports a required file that could not be opened or read.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read file '%s': %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFileRead, e.Err}
	}
	return []error{ErrFileRead}
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "reference")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// BookFileNotFoundError reports that no candidate filename for a book exists.
type BookFileNotFoundError struct {
	Abbr  string   // Book abbreviation as requested
	Dir   string   // Directory that was searched
	Tried []string // Candidate filenames, in probe order
}

func (e *BookFileNotFoundError) Error() string {
	return fmt.Sprintf("book file not found for '%s': tried %s in %s",
		e.Abbr, strings.Join(e.Tried, ", "), e.Dir)
}

func (e *BookFileNotFoundError) Unwrap() []error {
	return []error{ErrBookFileNotFound, ErrNotFound}
}

// ChapterNotFoundError reports a chapter number with no matching chapter
// in a loaded book file.
type ChapterNotFoundError struct {
	Chapter uint32
	Book    string // Book abbreviation the file was resolved from
	Path    string // Book file path, if known
}

func (e *ChapterNotFoundError) Error() string {
	return fmt.Sprintf("chapter %d not found in book file for %s", e.Chapter, e.Book)
}

func (e *ChapterNotFoundError) Unwrap() []error {
	return []error{ErrChapterNotFound, ErrNotFound}
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "command", "route")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error outside the content tree,
// such as writing an export.
type IOError struct {
	Operation string // Operation being performed (e.g., "create", "write")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewContentRoot creates a ContentRootError
func NewContentRoot(path string, err error) *ContentRootError {
	return &ContentRootError{Path: path, Err: err}
}

// NewFileRead creates a FileReadError
func NewFileRead(path string, err error) *FileReadError {
	return &FileReadError{Path: path, Err: err}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewBookFileNotFound creates a BookFileNotFoundError
func NewBookFileNotFound(abbr, dir string, tried ...string) *BookFileNotFoundError {
	return &BookFileNotFoundError{Abbr: abbr, Dir: dir, Tried: tried}
}

// NewChapterNotFound creates a ChapterNotFoundError
func NewChapterNotFound(chapter uint32, book, path string) *ChapterNotFoundError {
	return &ChapterNotFoundError{Chapter: chapter, Book: book, Path: path}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
