// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jeranaias/chatdesk/internal/cloud"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a bad command line.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// CommandError represents a CLI command failure with context.
type CommandError struct {
	Command string // e.g. "config"
	Action  string // e.g. "init"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ConfigError wraps a failure to load or validate the configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var cfgErr *ConfigError
	var cfgInvalid config.ValidateErrors
	var apiErr *cloud.APIError

	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.As(err, &cfgInvalid):
		return ExitConfigError
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return ExitAuthError
		}
		return ExitGeneralError
	}

	switch {
	case !isRequestError(err):
		return ExitGeneralError
	case cloud.KindOf(err) == cloud.KindValidation:
		return ExitUsageError
	case cloud.KindOf(err) == cloud.KindTimeout:
		return ExitTimeoutError
	default:
		return ExitNetworkError
	}
}

// isRequestError reports whether err came out of the request taxonomy.
func isRequestError(err error) bool {
	var unknownErr *cloud.UnknownError
	switch cloud.KindOf(err) {
	case cloud.KindValidation, cloud.KindTimeout, cloud.KindAPI:
		return true
	}
	return errors.As(err, &unknownErr)
}

// errorLine formats err for stderr. Request errors read the same as the
// chat window's trailing note.
func errorLine(err error) string {
	if isRequestError(err) {
		return session.NoteLine(err)
	}
	return fmt.Sprintf("Error: %v", err)
}
