package chat

// ErrorCode identifies why an operation was rejected. Codes are surfaced
// verbatim in acknowledgement payloads, never as process-level failures.
type ErrorCode string

const (
	ErrInvalidName      ErrorCode = "invalid_name"
	ErrUsernameTaken    ErrorCode = "username_taken"
	ErrNotAuthenticated ErrorCode = "not_authenticated"
	ErrEmptyMessage     ErrorCode = "empty_message"
	ErrRecipientOffline ErrorCode = "recipient_offline"
	ErrInvalidRequest   ErrorCode = "invalid_request"
	ErrServerError      ErrorCode = "server_error"
)

// Reject is the error type returned for every expected operation failure.
// Callers inspect Code to build the acknowledgement; the engine guarantees
// that a Reject implies no state was mutated.
type Reject struct {
	Code ErrorCode
}

func (r *Reject) Error() string {
	return string(r.Code)
}

// NewReject builds a rejection for the given code.
func NewReject(code ErrorCode) *Reject {
	return &Reject{Code: code}
}

// CodeOf extracts the error code from err, mapping anything that is not a
// Reject to server_error.
func CodeOf(err error) ErrorCode {
	if r, ok := err.(*Reject); ok {
		return r.Code
	}
	return ErrServerError
}
