// ABOUTME: Error hierarchy for the model client: structured provider errors with
// ABOUTME: status-code classification and per-type retryability.

package llm

// ClientError is the base error type for all model client errors.
type ClientError struct {
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error { return e.Cause }

// IsRetryable returns false for the base ClientError. Subtypes override this.
func (e *ClientError) IsRetryable() bool { return false }

// ProviderError represents an error returned by the model provider's API.
type ProviderError struct {
	ClientError
	StatusCode int
	Retryable  bool
}

func (e *ProviderError) Error() string { return e.ClientError.Error() }
func (e *ProviderError) Unwrap() error { return e.ClientError.Unwrap() }

// IsRetryable returns the Retryable flag set on the provider error.
func (e *ProviderError) IsRetryable() bool { return e.Retryable }

// As enables errors.As to match ClientError from a ProviderError.
func (e *ProviderError) As(target any) bool {
	if t, ok := target.(**ClientError); ok {
		*t = &e.ClientError
		return true
	}
	return false
}

// AuthenticationError represents a 401 or 403 response. Not retryable.
type AuthenticationError struct{ ProviderError }

func (e *AuthenticationError) IsRetryable() bool { return false }

// InvalidRequestError represents a 400, 404, 413, or 422 response. Not retryable.
type InvalidRequestError struct{ ProviderError }

func (e *InvalidRequestError) IsRetryable() bool { return false }

// RateLimitError represents a 429 Too Many Requests response. Retryable.
type RateLimitError struct{ ProviderError }

func (e *RateLimitError) IsRetryable() bool { return true }

// ServerError represents a 5xx server error response. Retryable.
type ServerError struct{ ProviderError }

func (e *ServerError) IsRetryable() bool { return true }

// NetworkError represents a network-level failure (DNS, connection refused,
// client-side timeout). Retryable.
type NetworkError struct{ ClientError }

func (e *NetworkError) IsRetryable() bool { return true }

// MalformedOutputError represents a model response that could not be parsed
// into the expected structure. Retryable: a fresh completion usually parses.
type MalformedOutputError struct{ ClientError }

func (e *MalformedOutputError) IsRetryable() bool { return true }

// ConfigurationError represents a client configuration problem such as a
// missing API key. Not retryable.
type ConfigurationError struct{ ClientError }

func (e *ConfigurationError) IsRetryable() bool { return false }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
// Unknown status codes are treated as retryable provider errors.
func ErrorFromStatusCode(statusCode int, message string) error {
	base := ProviderError{
		ClientError: ClientError{Message: message},
		StatusCode:  statusCode,
	}

	switch {
	case statusCode == 400, statusCode == 404, statusCode == 413, statusCode == 422:
		return &InvalidRequestError{ProviderError: base}
	case statusCode == 401, statusCode == 403:
		return &AuthenticationError{ProviderError: base}
	case statusCode == 429:
		base.Retryable = true
		return &RateLimitError{ProviderError: base}
	case statusCode >= 500 && statusCode <= 599:
		base.Retryable = true
		return &ServerError{ProviderError: base}
	default:
		base.Retryable = true
		return &base
	}
}
