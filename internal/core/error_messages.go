package core

// error_messages.go maps technical errors to user-facing messages with a code
// for support reference. Codes by category:
//
// # Record Errors (JSONL001-JSONL099)
//
//	JSONL001 - Malformed record: a line is not one valid JSON value
//	JSONL002 - Conversion failure: a field does not fit its column type
//	JSONL003 - Unrecognized value kind: internal decoder mismatch
//	JSONL004 - Source read failure: the request body could not be read
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Table not found
//	TBL002 - Invalid column list: unknown or repeated column
//
// # Transfer Errors (XFER001-XFER099)
//
//	XFER001 - System busy: every transfer slot is taken
//	XFER002 - Transfer cancelled
//	XFER003 - Transfer timed out
//	XFER004 - Body too large
//	XFER005 - Invalid option value
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Not-null constraint
//	DB003 - Foreign key constraint
//	DB004 - Check constraint
//	DB005 - Connection refused
//	DB006 - Connection reset
//	DB007 - Deadlock
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the server log for the original
// error, correlated by request id.
//
// Errors that wrap a known sentinel are classified with errors.Is first, so
// record text quoted inside an error message cannot change its code. The
// rest are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Status  int    // HTTP status for API responses
}

type errorPattern struct {
	pattern string
	is      func(error) bool // structural match, tried before any pattern
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Body limits surface as read failures, so they are matched first.
	{
		pattern: "request body too large",
		is:      isBodyTooLarge,
		msg: UserMessage{
			Message: "Request body exceeds the maximum size",
			Action:  "Split the file into smaller parts",
			Code:    "XFER004",
			Status:  http.StatusRequestEntityTooLarge,
		},
	},

	// Record errors
	{
		pattern: "malformed record",
		is:      errIs(jsonlines.ErrMalformedRecord),
		msg: UserMessage{
			Message: "A line is not valid JSON",
			Action:  "Fix the reported line or retry with on_error=ignore to skip it",
			Code:    "JSONL001",
			Status:  http.StatusUnprocessableEntity,
		},
	},
	{
		pattern: "conversion failure",
		is:      errIs(jsonlines.ErrConversion),
		msg: UserMessage{
			Message: "A field value does not fit its column type",
			Action:  "Fix the reported field or retry with on_error=ignore to skip the row",
			Code:    "JSONL002",
			Status:  http.StatusUnprocessableEntity,
		},
	},
	{
		pattern: "unrecognized value kind",
		is:      errIs(jsonlines.ErrUnrecognizedValueKind),
		msg: UserMessage{
			Message: "The record contains a value that cannot be processed",
			Action:  "Please contact support",
			Code:    "JSONL003",
			Status:  http.StatusInternalServerError,
		},
	},

	// Transfer errors
	{
		pattern: "too many concurrent transfers",
		is:      errIs(ErrTooManyTransfers),
		msg: UserMessage{
			Message: "Too many transfers in progress",
			Action:  "Please wait a moment and try again",
			Code:    "XFER001",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "context canceled",
		is:      errIs(context.Canceled),
		msg: UserMessage{
			Message: "Transfer was cancelled",
			Action:  "Start the transfer again when ready",
			Code:    "XFER002",
			Status:  499,
		},
	},
	{
		pattern: "context deadline exceeded",
		is:      errIs(context.DeadlineExceeded),
		msg: UserMessage{
			Message: "Transfer timed out",
			Action:  "Transfer a smaller file or try again later",
			Code:    "XFER003",
			Status:  http.StatusGatewayTimeout,
		},
	},
	{
		pattern: "invalid on_error value",
		msg: UserMessage{
			Message: "Invalid on_error option",
			Action:  "Use on_error=stop or on_error=ignore",
			Code:    "XFER005",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "source read failure",
		is:      errIs(jsonlines.ErrSourceRead),
		msg: UserMessage{
			Message: "The input could not be read",
			Action:  "Check your connection and try again",
			Code:    "JSONL004",
			Status:  http.StatusBadRequest,
		},
	},

	// Table errors
	{
		pattern: "table not found",
		is:      errIs(ErrTableNotFound),
		msg: UserMessage{
			Message: "Table not found",
			Action:  "Verify the table name is correct",
			Code:    "TBL001",
			Status:  http.StatusNotFound,
		},
	},
	{
		pattern: "invalid table name",
		msg: UserMessage{
			Message: "Table not found",
			Action:  "Use table or schema.table with letters, digits and underscores",
			Code:    "TBL001",
			Status:  http.StatusNotFound,
		},
	},
	{
		pattern: "invalid column list",
		is:      errIs(ErrInvalidColumns),
		msg: UserMessage{
			Message: "Invalid column list",
			Action:  "List each existing column at most once",
			Code:    "TBL002",
			Status:  http.StatusBadRequest,
		},
	},

	// Database errors
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Remove duplicate rows and retry; the whole import was rolled back",
			Code:    "DB001",
			Status:  http.StatusConflict,
		},
	},
	{
		pattern: "violates not-null constraint",
		msg: UserMessage{
			Message: "A required column is missing a value",
			Action:  "Add the field to every record or give the column a default",
			Code:    "DB002",
			Status:  http.StatusUnprocessableEntity,
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure parent records are imported first",
			Code:    "DB003",
			Status:  http.StatusConflict,
		},
	},
	{
		pattern: "violates check constraint",
		msg: UserMessage{
			Message: "A value is outside the allowed range for its column",
			Action:  "Check the table constraints",
			Code:    "DB004",
			Status:  http.StatusUnprocessableEntity,
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB005",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB006",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
			Status:  http.StatusServiceUnavailable,
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, ep := range errorPatterns {
		if ep.is != nil && ep.is(err) {
			return ep.msg
		}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func errIs(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a specific pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
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

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
