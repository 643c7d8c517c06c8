package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// OAuth errors

type ErrTokenEndpoint struct {
	Status int
	Body   string
}

func (e *ErrTokenEndpoint) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.Status, e.Body)
}

type ErrAuthorizationDenied struct {
	Code        string
	Description string
}

func (e *ErrAuthorizationDenied) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization denied: %s", e.Code)
}

type ErrStateMismatch struct{}

func (e *ErrStateMismatch) Error() string {
	return "callback state does not match pending authorization"
}

// Native helper errors

type ErrHelperExec struct {
	Helper string
	Err    error
}

func (e *ErrHelperExec) Error() string {
	return fmt.Sprintf("helper %s failed: %v", e.Helper, e.Err)
}

func (e *ErrHelperExec) Unwrap() error {
	return e.Err
}

type ErrHelperOutput struct {
	Helper string
	Err    error
}

func (e *ErrHelperOutput) Error() string {
	return fmt.Sprintf("helper %s produced malformed output: %v", e.Helper, e.Err)
}

func (e *ErrHelperOutput) Unwrap() error {
	return e.Err
}

// Session file errors

type ErrSessionFile struct {
	Path string
	Err  error
}

func (e *ErrSessionFile) Error() string {
	return fmt.Sprintf("session file %s unreadable: %v", e.Path, e.Err)
}

func (e *ErrSessionFile) Unwrap() error {
	return e.Err
}

// Capture errors

type ErrCaptureInProgress struct{}

func (e *ErrCaptureInProgress) Error() string {
	return "a capture is already in progress"
}

type ErrUploadFailed struct {
	Status int
}

func (e *ErrUploadFailed) Error() string {
	return fmt.Sprintf("upload rejected with status %d", e.Status)
}
