package redact

import (
	"strings"
	"testing"
)

func TestTextRedactsWhenEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)

	in := "call me at +62 812 3456 7890 or mail ana@example.com"
	out := Text(in)
	if strings.Contains(out, "ana@example.com") || !strings.Contains(out, "[REDACTED_EMAIL]") {
		t.Fatalf("expected email redaction, got %q", out)
	}
	if strings.Contains(out, "3456") || !strings.Contains(out, "[REDACTED_PHONE]") {
		t.Fatalf("expected phone redaction, got %q", out)
	}
}

func TestTextRedactsSignedURL(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)

	in := "https://b.s3.amazonaws.com/mp3/a.mp3?X-Amz-Credential=AKIA123&X-Amz-Signature=deadbeef"
	want := "https://b.s3.amazonaws.com/mp3/a.mp3?X-Amz-Credential=[REDACTED]&X-Amz-Signature=[REDACTED]"
	if got := Text(in); got != want {
		t.Fatalf("got %q", got)
	}
}

func TestTextPassThroughWhenDisabled(t *testing.T) {
	SetEnabled(false)
	in := "ana@example.com"
	if Text(in) != in {
		t.Fatalf("expected passthrough")
	}
}

func TestPreviewTruncatesRunes(t *testing.T) {
	SetEnabled(false)
	if got := Preview("héllo wörld", 5); got != "héllo..." {
		t.Fatalf("got %q", got)
	}
	if got := Preview("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
}
