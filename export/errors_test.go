package export

import (
	"context"
	"errors"
	"fmt"
	"testing"

	errorslib "github.com/goliatone/go-errors"
)

func TestAsGoErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		category errorslib.Category
		code     string
	}{
		{NewError(KindValidation, "bad input", nil), errorslib.CategoryValidation, "validation"},
		{NewError(KindAcquisition, "no browser", nil), errorslib.CategoryExternal, "acquisition"},
		{NewError(KindRender, "print failed", nil), errorslib.CategoryOperation, "render"},
		{NewError(KindTeardown, "close failed", nil), errorslib.CategoryOperation, "teardown"},
		{context.DeadlineExceeded, errorslib.CategoryOperation, "timeout"},
		{context.Canceled, errorslib.CategoryOperation, "canceled"},
		{NewError(KindInternal, "boom", nil), errorslib.CategoryInternal, "internal"},
		{errors.New("plain"), errorslib.CategoryInternal, "internal"},
	}

	for _, tc := range cases {
		mapped := AsGoError(tc.err)
		if mapped == nil {
			t.Fatalf("expected mapping for %v", tc.err)
		}
		if mapped.Category != tc.category {
			t.Fatalf("expected category %s, got %s", tc.category, mapped.Category)
		}
		if mapped.TextCode != tc.code {
			t.Fatalf("expected text code %s, got %s", tc.code, mapped.TextCode)
		}
	}
}

func TestAsGoErrorNil(t *testing.T) {
	if AsGoError(nil) != nil {
		t.Fatalf("expected nil mapping for nil error")
	}
}

func TestKindFromErrorOutermostWins(t *testing.T) {
	err := NewError(KindRender, "page did not reach network idle", context.DeadlineExceeded)
	if got := KindFromError(err); got != KindRender {
		t.Fatalf("expected render kind, got %s", got)
	}

	wrapped := fmt.Errorf("outer: %w", NewError(KindAcquisition, "launch", errEngineCrashed))
	if got := KindFromError(wrapped); got != KindAcquisition {
		t.Fatalf("expected acquisition kind, got %s", got)
	}
	if !errors.Is(wrapped, errEngineCrashed) {
		t.Fatalf("expected cause to stay reachable")
	}
}

func TestClassifyKeepsPipelineKinds(t *testing.T) {
	render := NewError(KindRender, "screenshot", nil)
	if got := classify(KindInternal, "x", render); got != error(render) {
		t.Fatalf("expected render error to pass through, got %v", got)
	}

	timeout := NewError(KindTimeout, "slow", nil)
	got := classify(KindAcquisition, "engine acquisition failed", timeout)
	if KindFromError(got) != KindAcquisition {
		t.Fatalf("expected timeout to be reclassified as acquisition, got %s", KindFromError(got))
	}
	if !errors.Is(got, timeout) {
		t.Fatalf("expected original error to be wrapped")
	}

	if classify(KindRender, "x", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		mode Mode
		want string
	}{
		{NewError(KindValidation, "HTML content is required", nil), ModePDF, "HTML content is required"},
		{NewError(KindRender, "print failed", errEngineCrashed), ModeImage, "Failed to export image"},
		{NewError(KindAcquisition, "launch failed", nil), ModePDF, "Failed to export PDF"},
		{errors.New("boom"), Mode("gif"), "Failed to export calendar"},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err, tc.mode); got != tc.want {
			t.Fatalf("UserMessage(%v, %s) = %q, want %q", tc.err, tc.mode, got, tc.want)
		}
	}
}
