package core

// This file maps technical errors to user-facing messages with support codes.
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Reference data unavailable: the reference directory is missing,
//	         empty or malformed, or the reference table could not be read
//	         Action: Check REFERENCE_DIR and reload reference data
//	         Matched by: reference.ErrConfiguration
//
// # Input Errors (INP001-INP099)
//
//	INP001 - File too large
//	         Matched by: ErrTooLarge
//	INP002 - Unsupported format: only CSV and XLSX are accepted
//	         Patterns: "unsupported file format"
//	INP003 - Invalid file: rows have more fields than the header
//	         Patterns: "invalid csv", "invalid xlsx"
//	INP004 - Empty file: no header or no data rows
//	         Patterns: "empty file"
//	INP005 - No file was provided
//	         Patterns: "no file provided"
//	INP006 - No usable organization name column
//	         Patterns: "no columns"
//	INP000 - Any other ErrInput
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: every run slot is occupied
//	         Matched by: ErrTooManyRuns
//	RUN002 - Run not found or expired
//	         Matched by: ErrRunNotFound
//	RUN003 - Request cancelled or timed out
//	         Patterns: "context canceled", "context deadline exceeded"
//
// # Rate Limiting
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Default
//
//	ERR000 - Unknown error. Check the logs for the original error.
//
// Sentinel errors are checked with errors.Is before any pattern. Patterns are
// matched case-insensitively with strings.Contains; the first match wins.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/orgenrich/internal/reference"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorSentinel struct {
	target error
	msg    UserMessage
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorSentinels = []errorSentinel{
	{
		target: ErrTooLarge,
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "INP001",
		},
	},
	{
		target: reference.ErrConfiguration,
		msg: UserMessage{
			Message: "Reference data is not available",
			Action:  "Check the reference data location and reload it",
			Code:    "CFG001",
		},
	},
	{
		target: ErrTooManyRuns,
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		target: ErrRunNotFound,
		msg: UserMessage{
			Message: "Result not found",
			Action:  "Results expire after a while. Please run the enrichment again",
			Code:    "RUN002",
		},
	},
}

var errorPatterns = []errorPattern{
	// Input errors
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "INP002",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "INP003",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Re-save the file as .xlsx or export it as CSV",
			Code:    "INP003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "INP004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to upload",
			Code:    "INP005",
		},
	},
	{
		pattern: "no columns",
		msg: UserMessage{
			Message: "No suitable column found for organization names",
			Action:  "Add a header row with an organization name column",
			Code:    "INP006",
		},
	},

	// Request lifecycle
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "RUN003",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var inputMessage = UserMessage{
	Message: "The uploaded file could not be processed",
	Action:  "Check the file and try again",
	Code:    "INP000",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Known
// sentinel errors win over text patterns. Unmatched input errors map to
// INP000, everything else to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, es := range errorSentinels {
		if errors.Is(err, es.target) {
			return es.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrInput) {
		return inputMessage
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message. Error returns the
// user message; Unwrap returns the technical error for logging.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError wraps err with its mapped message. It returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
