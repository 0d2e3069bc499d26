package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"configuration", NewConfigurationError("bad setup"), IsConfigurationError},
		{"not found", NewNotFoundError("no such agent"), IsNotFound},
		{"protocol", NewProtocolError("missing selections"), IsProtocolError},
		{"transport", NewTransportError("request failed", 3, errors.New("boom")), IsTransportError},
		{"data format", NewDataFormatError("not json", errors.New("bad char")), IsDataFormatError},
	}

	for _, tt := range tests {
		if !tt.pred(tt.err) {
			t.Errorf("Expected %s predicate to match its own error", tt.name)
		}
		for _, other := range tests {
			if other.name == tt.name {
				continue
			}
			if tt.pred(other.err) {
				t.Errorf("Expected %s predicate to reject %s error", tt.name, other.name)
			}
		}
	}
}

func TestErrorPredicatesRejectPlainErrors(t *testing.T) {
	err := errors.New("plain")
	if IsConfigurationError(err) || IsNotFound(err) || IsProtocolError(err) ||
		IsTransportError(err) || IsDataFormatError(err) {
		t.Error("Expected predicates to reject a plain error")
	}
}

func TestErrorPredicatesSeeThroughWrapping(t *testing.T) {
	inner := NewNotFoundError("agent %q not registered", "scout")
	wrapped := fmt.Errorf("resolving selection: %w", inner)
	if !IsNotFound(wrapped) {
		t.Error("Expected IsNotFound to match a wrapped not-found error")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransportError("request failed", 2, cause)
	if !errors.Is(err, cause) {
		t.Error("Expected transport error to unwrap to its cause")
	}
	if err.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", err.Attempts)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewTransportError("chat failed", 1, cause)
	want := "chat failed: dial tcp: timeout"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	bare := NewProtocolError("no selections key")
	if bare.Error() != "no selections key" {
		t.Errorf("Expected bare message, got %q", bare.Error())
	}
}
