package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown             = "UNKNOWN"
	CodeInvalidArgument     = "INVALID_ARGUMENT"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidState        = "INVALID_STATE"
	CodeConflict            = "CONFLICT"
	CodeDuplicateConnection = "DUPLICATE_CONNECTION"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInvalidCode         = "INVALID_CODE"
	CodeCodeExpired         = "CODE_EXPIRED"
	CodeEmptyContent        = "EMPTY_CONTENT"
	CodeAlreadyRequested    = "ALREADY_REQUESTED"
	CodeNotFound            = "NOT_FOUND"
)

var enUSMessages = map[Code]string{
	CodeUnknown:             "Something went wrong. Please try again.",
	CodeInvalidArgument:     "The request is missing or has invalid information.",
	CodeForbidden:           "You can't do that on this connection.",
	CodeInvalidState:        "This action isn't available right now.",
	CodeConflict:            "This was already handled.",
	CodeDuplicateConnection: "You already have a connection with this person.",
	CodeRateLimited:         "You've sent too many requests. Try again later.",
	CodeInvalidCode:         "That code didn't work.",
	CodeCodeExpired:         "This code has expired. Ask for a new one.",
	CodeEmptyContent:        "Write something before sending.",
	CodeAlreadyRequested:    "You already asked. Waiting for the other person.",
	CodeNotFound:            "We couldn't find that.",
}
