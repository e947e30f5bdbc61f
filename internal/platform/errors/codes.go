// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input validation
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Role and lifecycle errors
	CodeForbidden    Code = "FORBIDDEN"
	CodeInvalidState Code = "INVALID_STATE"
	CodeConflict     Code = "CONFLICT"

	// Request creation errors
	CodeDuplicateConnection Code = "DUPLICATE_CONNECTION"
	CodeRateLimited         Code = "RATE_LIMITED"

	// Code redemption errors
	CodeInvalidCode Code = "INVALID_CODE"
	CodeCodeExpired Code = "CODE_EXPIRED"

	// Messaging errors
	CodeEmptyContent Code = "EMPTY_CONTENT"

	// Consent errors
	CodeAlreadyRequested Code = "ALREADY_REQUESTED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidArgument,
		CodeInvalidCode,
		CodeEmptyContent:
		return codes.InvalidArgument

	// PermissionDenied - actor lacks the role for the action
	case CodeForbidden:
		return codes.PermissionDenied

	// FailedPrecondition - action not valid for current state
	case CodeInvalidState,
		CodeCodeExpired:
		return codes.FailedPrecondition

	// Aborted - a concurrent actor changed the record first
	case CodeConflict:
		return codes.Aborted

	// AlreadyExists
	case CodeDuplicateConnection,
		CodeAlreadyRequested:
		return codes.AlreadyExists

	// ResourceExhausted
	case CodeRateLimited:
		return codes.ResourceExhausted

	// NotFound
	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
