package export

import (
	"testing"
	"time"
)

func TestSuggestedFilename(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*60*60))

	if got := SuggestedFilename(ModePDF, now); got != "calendar-2024-03-02.pdf" {
		t.Fatalf("expected UTC date in pdf name, got %q", got)
	}
	if got := SuggestedFilename(ModeImage, now); got != "calendar-2024-03-02.png" {
		t.Fatalf("expected png name, got %q", got)
	}
}

func TestDispositionFilename(t *testing.T) {
	if got := DispositionFilename(ModeImage); got != "calendar.png" {
		t.Fatalf("expected calendar.png, got %q", got)
	}
	if got := DispositionFilename(ModePDF); got != "calendar.pdf" {
		t.Fatalf("expected calendar.pdf, got %q", got)
	}
	if got := DispositionFilename(Mode("gif")); got != "calendar.bin" {
		t.Fatalf("expected fallback extension, got %q", got)
	}
}

func TestModeMediaTypes(t *testing.T) {
	if ModeImage.MediaType() != "image/png" {
		t.Fatalf("unexpected image media type %q", ModeImage.MediaType())
	}
	if ModePDF.MediaType() != "application/pdf" {
		t.Fatalf("unexpected pdf media type %q", ModePDF.MediaType())
	}
	if Mode("gif").Valid() {
		t.Fatalf("expected gif mode to be invalid")
	}
}

func TestNewRenderRequestRejectsBlankMarkup(t *testing.T) {
	for _, markup := range []string{"", "   ", "\n\t "} {
		_, err := NewRenderRequest(markup, ModeImage)
		if !IsKind(err, KindValidation) {
			t.Fatalf("expected validation error for %q, got %v", markup, err)
		}
	}
	if _, err := NewRenderRequest("<div>ok</div>", Mode("gif")); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error for unknown mode, got %v", err)
	}
	if _, err := NewRenderRequest("<div>ok</div>", ModePDF); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
