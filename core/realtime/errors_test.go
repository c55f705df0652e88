package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/gorilla/websocket"
)

func TestClassifyErrorRetryableCauses(t *testing.T) {
	causes := []error{
		io.EOF,
		io.ErrUnexpectedEOF,
		syscall.ECONNRESET,
		context.DeadlineExceeded,
		&websocket.CloseError{Code: websocket.CloseAbnormalClosure},
		&websocket.CloseError{Code: websocket.CloseTryAgainLater},
		fmt.Errorf("failed to read: %w", syscall.EPIPE),
		&net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "server misbehaving", Name: "api.openai.com", IsTemporary: true}},
		&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection lost")},
	}

	for _, cause := range causes {
		err := ClassifyError(ProviderOpenAI, OperationReceive, cause)
		if !IsRetryable(err) {
			t.Fatalf("expected %v to be retryable, got %v", cause, err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("expected classified error to wrap %v", cause)
		}
	}
}

func TestClassifyErrorFatalCauses(t *testing.T) {
	causes := []error{
		errors.New("invalid api key"),
		&websocket.CloseError{Code: websocket.ClosePolicyViolation},
		&websocket.CloseError{Code: websocket.CloseUnsupportedData},
		&net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "realtime.invalid", IsNotFound: true}},
	}

	for _, cause := range causes {
		err := ClassifyError(ProviderGemini, OperationConnect, cause)
		transportErr, ok := AsTransportError(err)
		if !ok {
			t.Fatalf("expected a transport error for %v, got %T", cause, err)
		}
		if transportErr.Retryable {
			t.Fatalf("expected %v to be fatal", cause)
		}
	}
}

func TestClassifyErrorKeepsCancellationAndExistingErrors(t *testing.T) {
	if err := ClassifyError(ProviderOpenAI, OperationSend, context.Canceled); err != context.Canceled {
		t.Fatalf("expected context.Canceled unchanged, got %v", err)
	}

	existing := NewFatalError(ProviderDeepgram, OperationConnect, errors.New("boom"))
	if err := ClassifyError(ProviderOpenAI, OperationSend, existing); err != existing {
		t.Fatalf("expected existing transport error unchanged, got %v", err)
	}

	if err := ClassifyError(ProviderOpenAI, OperationSend, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]bool{
		http.StatusUnauthorized:        false,
		http.StatusForbidden:           false,
		http.StatusBadRequest:          false,
		http.StatusTooManyRequests:     true,
		http.StatusServiceUnavailable:  true,
		http.StatusInternalServerError: true,
	}

	for status, retryable := range cases {
		err := ClassifyStatus(ProviderOpenAI, OperationConnect, status, errors.New("bad handshake"))
		if err.Retryable != retryable {
			t.Fatalf("status %d: expected retryable=%v", status, retryable)
		}
	}

	if !ClassifyStatus(ProviderOpenAI, OperationConnect, http.StatusUnauthorized, nil).IsAuth() {
		t.Fatalf("expected 401 to be an auth failure")
	}
}

func TestCapabilityErrorIsUnsupported(t *testing.T) {
	err := fmt.Errorf("failed to speak: %w", &CapabilityError{Provider: ProviderGemini, Operation: OperationSpeak})
	if !errors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("expected capability error to match errors.ErrUnsupported")
	}

	var capabilityErr *CapabilityError
	if !errors.As(err, &capabilityErr) || capabilityErr.Provider != ProviderGemini {
		t.Fatalf("expected to extract capability error, got %v", err)
	}
}
