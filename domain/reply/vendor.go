package reply

import "fmt"

// ErrorEnvelope is the root tag of a vendor error document.
const ErrorEnvelope = "ErrorResponse"

// VendorError is a well-formed error document returned by the service.
type VendorError struct {
	Type       string
	Code       string
	Message    string
	RequestID  string
	StatusCode int
	// Tree is the full decoded document.
	Tree Tree
}

func (e *VendorError) Error() string {
	msg := fmt.Sprintf("vendor error %s: %s", e.Code, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return msg
}

// Throttled reports whether the service asked the caller to back off.
func (e *VendorError) Throttled() bool {
	return e.Code == "RequestThrottled" || e.Code == "QuotaExceeded"
}

// Retryable reports whether repeating the same call may succeed.
func (e *VendorError) Retryable() bool {
	switch e.Code {
	case "RequestThrottled", "ServiceUnavailable", "InternalError":
		return true
	}
	return false
}

// VendorError returns the error carried by an ErrorResponse document, or nil.
func (r *Reply) VendorError() *VendorError {
	if r.Tree == nil {
		return nil
	}
	if _, ok := r.Tree[ErrorEnvelope]; !ok {
		return nil
	}

	requestID := r.Tree.Text(ErrorEnvelope, "RequestID")
	if requestID == "" {
		requestID = r.Tree.Text(ErrorEnvelope, "RequestId")
	}
	return &VendorError{
		Type:      r.Tree.Text(ErrorEnvelope, "Error", "Type"),
		Code:      r.Tree.Text(ErrorEnvelope, "Error", "Code"),
		Message:   r.Tree.Text(ErrorEnvelope, "Error", "Message"),
		RequestID: requestID,
		Tree:      r.Tree,
	}
}
