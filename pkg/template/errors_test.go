package template

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseErrorFormat(t *testing.T) {
	err := &ParseError{Name: "page", Line: 3, Column: 7, Message: "unexpected EOF"}
	if got, want := err.Error(), "page:3:7: unexpected EOF"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	err = &ParseError{Name: "page", Line: 3, Message: "boom"}
	if got, want := err.Error(), "page:3: boom"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	err = &ParseError{Name: "page", Message: "boom"}
	if got, want := err.Error(), "page: boom"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExecErrorFormat(t *testing.T) {
	err := &ExecError{Name: "page", Location: "page:2:1", Context: ".x", Message: "boom"}
	if got, want := err.Error(), "template: page:2:1: executing page at <.x>: boom"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	err = &ExecError{Name: "page", Message: "boom"}
	if got, want := err.Error(), "template: page: boom"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExecErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &ExecError{Name: "page", Message: "boom", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ExecError does not unwrap its cause")
	}
}

func TestErrorPredicates(t *testing.T) {
	pe := &ParseError{Name: "x", Message: "m"}
	ee := &ExecError{Name: "x", Message: "m"}
	if !IsParseError(pe) || IsParseError(ee) {
		t.Error("IsParseError misbehaves")
	}
	if !IsExecError(ee) || IsExecError(pe) {
		t.Error("IsExecError misbehaves")
	}
	wrapped := fmt.Errorf("outer: %w", pe)
	if !IsParseError(wrapped) {
		t.Error("IsParseError should see through wrapping")
	}
}

func TestInternalErrorDistinct(t *testing.T) {
	ie := &InternalError{Message: "bad state"}
	if !strings.HasPrefix(ie.Error(), "internal error: ") {
		t.Errorf("got %q", ie.Error())
	}
	if IsParseError(ie) || IsExecError(ie) {
		t.Error("internal errors must not classify as user errors")
	}
}
