package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeArgument   ErrorType = "argument"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeSyntax     ErrorType = "syntax"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeSpawn      ErrorType = "spawn"
	ErrorTypeConfig     ErrorType = "config"
)

// Common error codes.
const (
	ErrCodeMissingInput     = "MISSING_INPUT"
	ErrCodeConflictingModes = "CONFLICTING_MODES"
	ErrCodeMissingCommand   = "MISSING_COMMAND"
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodeYAMLSyntax       = "YAML_SYNTAX"
	ErrCodeJSONSyntax       = "JSON_SYNTAX"
	ErrCodeTOMLSyntax       = "TOML_SYNTAX"
	ErrCodeUnsupportedKey   = "UNSUPPORTED_KEY"
	ErrCodeIncludeCycle     = "INCLUDE_CYCLE"
	ErrCodeReadFailed       = "READ_FAILED"
	ErrCodeWriteFailed      = "WRITE_FAILED"
	ErrCodeSpawnFailed      = "SPAWN_FAILED"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
)

// YamlincError is a structured error type with context.
type YamlincError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	FilePath string
	Line     int
}

// Error implements the error interface.
func (e *YamlincError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *YamlincError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *YamlincError) Is(target error) bool {
	var t *YamlincError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithLocation adds file location information.
func (e *YamlincError) WithLocation(filePath string, line int) *YamlincError {
	e.FilePath = filePath
	e.Line = line

	return e
}

// Error creation functions

// NewArgumentError creates a command-line argument error.
func NewArgumentError(code, message string) *YamlincError {
	return &YamlincError{
		Type:    ErrorTypeArgument,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a missing file error.
func NewNotFoundError(path string, cause error) *YamlincError {
	return &YamlincError{
		Type:     ErrorTypeNotFound,
		Code:     ErrCodeFileNotFound,
		Message:  fmt.Sprintf("file '%s' not found", path),
		Cause:    cause,
		FilePath: path,
	}
}

// NewSyntaxError creates a parse error.
func NewSyntaxError(code, message string, cause error) *YamlincError {
	return &YamlincError{
		Type:    ErrorTypeSyntax,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewCycleError creates an include cycle error from the chain of files
// that lead back to the first one.
func NewCycleError(chain []string) *YamlincError {
	return &YamlincError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeIncludeCycle,
		Message: "include cycle: " + strings.Join(chain, " -> "),
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *YamlincError {
	return &YamlincError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewSpawnError creates a child process error.
func NewSpawnError(command string, cause error) *YamlincError {
	return &YamlincError{
		Type:    ErrorTypeSpawn,
		Code:    ErrCodeSpawnFailed,
		Message: "failed to start command: " + command,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *YamlincError {
	return &YamlincError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeInvalidConfig,
		Message: message,
	}
}

func hasType(err error, typ ErrorType) bool {
	var ye *YamlincError
	if errors.As(err, &ye) {
		return ye.Type == typ
	}

	return false
}

// IsArgument checks if an error was caused by bad command-line input.
func IsArgument(err error) bool {
	return hasType(err, ErrorTypeArgument)
}

// IsNotFound checks if an error reports a missing file.
func IsNotFound(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsSyntax checks if an error comes from parsing a document.
func IsSyntax(err error) bool {
	return hasType(err, ErrorTypeSyntax)
}

// IsCycle checks if an error reports an include cycle.
func IsCycle(err error) bool {
	var ye *YamlincError
	if errors.As(err, &ye) {
		return ye.Code == ErrCodeIncludeCycle
	}

	return false
}
