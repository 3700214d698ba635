package mailauth

// Error codes surfaced by authentication operations.
const (
	ErrCodeInvalidInput         = "invalid_input"
	ErrCodeDeliveryFailed       = "delivery_failed"
	ErrCodeNoChallenge          = "no_challenge"
	ErrCodeInvalidOrExpiredCode = "invalid_or_expired_code"
	ErrCodeDuplicateUser        = "duplicate_user"
	ErrCodeInvalidCreds         = "invalid_credentials"
	ErrCodeSessionBindFailed    = "session_bind_failed"
)

// AuthError is a structured authentication error with a stable code, a
// human-readable message and an optional offending field. All auth errors
// are request-scoped validation failures; none are retried by the core.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// NewAuthError creates an AuthError with the given code, message and field.
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// ErrCode extracts the code from an error, or "" if it is not an AuthError.
func ErrCode(err error) string {
	if ae, ok := err.(*AuthError); ok {
		return ae.Code
	}
	return ""
}
