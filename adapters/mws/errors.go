package mws

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dominhhai/mws-sdk/domain/reply"
)

// ErrConfiguration matches every *ConfigurationError.
var ErrConfiguration = errors.New("client configuration incomplete")

// ConfigurationError is returned before any network I/O when a credential
// required for signing is unset.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "accessKeyId, secretAccessKey, and merchantId must be set (missing: " + strings.Join(e.Missing, ", ") + ")"
}

// Is makes errors.Is(err, ErrConfiguration) work.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// TransportError wraps a failure of the HTTP exchange itself: connection,
// timeout, or a truncated body. The wrapped error is unchanged.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// Retryable reports whether err is worth another attempt: transport
// failures, and vendor errors flagged retryable by the service.
func Retryable(err error) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		return true
	}
	var verr *reply.VendorError
	if errors.As(err, &verr) {
		return verr.Retryable()
	}
	return false
}
