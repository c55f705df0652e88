package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/gorilla/websocket"
)

var (
	ErrHandshakePending = errors.New("handshake has not been sent")
	ErrConnectionClosed = errors.New("connection closed")
)

const (
	OperationConnect = "connect"
	OperationSend    = "send"
	OperationReceive = "receive"
	OperationSpeak   = "speak"
	OperationText    = "text input"
)

// TransportError is an I/O or protocol failure of a realtime connection.
// Retryable failures (resets, timeouts, overloaded peers) may be recovered by
// reconnecting, fatal ones (rejected credentials or configuration) may not.
type TransportError struct {
	Provider   Provider
	Op         string
	Retryable  bool
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}

	msg := fmt.Sprintf("%s %s failed (%s)", e.Provider, e.Op, kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether the peer rejected the credential.
func (e *TransportError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func NewRetryableError(provider Provider, op string, err error) *TransportError {
	return &TransportError{Provider: provider, Op: op, Retryable: true, Err: err}
}

func NewFatalError(provider Provider, op string, err error) *TransportError {
	return &TransportError{Provider: provider, Op: op, Err: err}
}

// IsRetryable reports whether err is a retryable TransportError.
func IsRetryable(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) && transportErr.Retryable
}

// AsTransportError extracts a TransportError from err's chain.
func AsTransportError(err error) (*TransportError, bool) {
	var transportErr *TransportError
	ok := errors.As(err, &transportErr)
	return transportErr, ok
}

// ClassifyError wraps err in a TransportError unless it already is one or is
// a context cancellation, which is returned unchanged.
func ClassifyError(provider Provider, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsTransportError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	return &TransportError{
		Provider:  provider,
		Op:        op,
		Retryable: isRetryableCause(err),
		Err:       err,
	}
}

// ClassifyStatus wraps a failed HTTP exchange, such as a rejected websocket
// upgrade, by its status code.
func ClassifyStatus(provider Provider, op string, statusCode int, err error) *TransportError {
	return &TransportError{
		Provider:   provider,
		Op:         op,
		Retryable:  isRetryableStatus(statusCode),
		StatusCode: statusCode,
		Err:        err,
	}
}

func isRetryableStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	case statusCode >= 500:
		return true
	}
	return false
}

func isRetryableCause(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseGoingAway,
			websocket.CloseAbnormalClosure,
			websocket.CloseInternalServerErr,
			websocket.CloseServiceRestart,
			websocket.CloseTryAgainLater:
			return true
		}
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Dial failures wrap the lookup error, an unknown host stays unknown.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// RemoteError is a turn failure reported by the provider in band.
type RemoteError struct {
	Code   string
	Reason string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Reason
	}
	return e.Code + ": " + e.Reason
}

// CapabilityError reports an operation the active provider does not
// support. It matches errors.ErrUnsupported.
type CapabilityError struct {
	Provider  Provider
	Operation string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("provider %s does not support %s", e.Provider, e.Operation)
}

func (e *CapabilityError) Is(target error) bool {
	return target == errors.ErrUnsupported
}
