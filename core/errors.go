package core

import (
	"errors"
	"fmt"
)

// ErrNotYetAvailable marks a result the network has not finished
// computing. The poller treats it as transient until the poll window
// closes.
var ErrNotYetAvailable = errors.New("result not yet available")

type InvalidTagError struct {
	Name   string
	Reason string
}

func (e InvalidTagError) Error() string {
	if e.Name == "" {
		return "invalid tag set: " + e.Reason
	}
	return fmt.Sprintf("invalid tag %q: %s", e.Name, e.Reason)
}

func NewInvalidTagError(name, reason string) InvalidTagError {
	return InvalidTagError{Name: name, Reason: reason}
}

type SigningError struct {
	Reason string
	cause  error
}

func (e SigningError) Error() string {
	if e.cause != nil {
		return "signing failed: " + e.Reason + ": " + e.cause.Error()
	}
	return "signing failed: " + e.Reason
}

func (e SigningError) Unwrap() error {
	return e.cause
}

func NewSigningError(reason string, cause error) SigningError {
	return SigningError{Reason: reason, cause: cause}
}

type ResolutionError struct {
	ProcessID string
	cause     error
}

func (e ResolutionError) Error() string {
	msg := "failed to resolve scheduler for " + e.ProcessID
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e ResolutionError) Unwrap() error {
	return e.cause
}

func NewResolutionError(processID string, cause error) ResolutionError {
	return ResolutionError{ProcessID: processID, cause: cause}
}

// NetworkError covers transport failures and non-2xx responses.
// Transient errors are eligible for retry, client errors are not.
type NetworkError struct {
	Status    int
	Transient bool
	cause     error
}

func (e NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("network error: unexpected status %d", e.Status)
	}
	if e.cause != nil {
		return "network error: " + e.cause.Error()
	}
	return "network error"
}

func (e NetworkError) Unwrap() error {
	return e.cause
}

func NewNetworkError(status int, cause error) NetworkError {
	return NetworkError{
		Status:    status,
		Transient: status == 0 || status >= 500,
		cause:     cause,
	}
}

type ProtocolViolationError struct {
	Reason string
	cause  error
}

func (e ProtocolViolationError) Error() string {
	if e.cause != nil {
		return "protocol violation: " + e.Reason + ": " + e.cause.Error()
	}
	return "protocol violation: " + e.Reason
}

func (e ProtocolViolationError) Unwrap() error {
	return e.cause
}

func NewProtocolViolationError(reason string, cause error) ProtocolViolationError {
	return ProtocolViolationError{Reason: reason, cause: cause}
}

type ResultUnavailableError struct {
	ProcessID string
	MessageID string
}

func (e ResultUnavailableError) Error() string {
	return fmt.Sprintf("result for message %s on process %s did not become available", e.MessageID, e.ProcessID)
}

func NewResultUnavailableError(processID, messageID string) ResultUnavailableError {
	return ResultUnavailableError{ProcessID: processID, MessageID: messageID}
}

type CancelledError struct {
	cause error
}

func (e CancelledError) Error() string {
	if e.cause != nil {
		return "operation cancelled: " + e.cause.Error()
	}
	return "operation cancelled"
}

func (e CancelledError) Unwrap() error {
	return e.cause
}

func NewCancelledError(cause error) CancelledError {
	return CancelledError{cause: cause}
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	var netErr NetworkError
	if errors.As(err, &netErr) {
		return netErr.Transient
	}
	return errors.Is(err, ErrNotYetAvailable)
}
