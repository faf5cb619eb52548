package lrdperr

import (
	stderrors "errors"
	"testing"
)

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(CodeRuntimeTransport, "failed to call checkBreakpoint", cause)

	got := err.Error()
	if got != "RUNTIME_TRANSPORT_FAILURE: failed to call checkBreakpoint: connection reset" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(CodeUnknownStep, "step id is not currently available: s9")
	got := err.Error()
	if got != "UNKNOWN_STEP: step id is not currently available: s9" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(CodeRuntimeTransport, "x", cause)
	if err.Unwrap() != cause {
		t.Error("expected Unwrap to return the wrapped cause")
	}
}

func TestAsFindsWrappedError(t *testing.T) {
	var err error = New(CodeNotInitialized, "execution not yet initialized")
	lerr, ok := As(err)
	if !ok || lerr.Code != CodeNotInitialized {
		t.Fatalf("expected As to recover the *Error, got %v ok=%v", lerr, ok)
	}

	if _, ok := As(stderrors.New("plain")); ok {
		t.Error("expected As to reject a plain error")
	}
}

func TestIsFatalTable(t *testing.T) {
	fatal := []Code{CodeRuntimeTransport, CodeNoSelectedStep, CodeStepNotComposite, CodeStepNotAtomic, CodeSessionClosed}
	for _, c := range fatal {
		if !New(c, "x").IsFatal() {
			t.Errorf("expected %s to be fatal", c)
		}
	}

	nonFatal := []Code{CodeMalformedArguments, CodeUnknownCommand, CodeNotInitialized, CodeAlreadyInitialized, CodeUnknownStep, CodeMalformedResponse}
	for _, c := range nonFatal {
		if New(c, "x").IsFatal() {
			t.Errorf("expected %s to not be fatal", c)
		}
	}
}
