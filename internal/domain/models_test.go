package domain_test

import (
	"errors"
	"strings"
	"testing"

	"tryon-cli/internal/domain"
)

func TestValidate_AcceptsMinimalPayload(t *testing.T) {
	payload := domain.SubmissionPayload{
		PersonImageURL:  "https://x/a.jpg",
		GarmentImageURL: "https://x/g.jpg",
	}
	if err := payload.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RequiresAPersonReference(t *testing.T) {
	payload := domain.SubmissionPayload{GarmentImageURL: "https://x/g.jpg"}
	assertValidationError(t, payload.Validate(), "person")
}

func TestValidate_RejectsMultiplePersonVariants(t *testing.T) {
	payload := domain.SubmissionPayload{
		PersonImage:     &domain.FileUpload{Name: "p.png", Content: strings.NewReader("p")},
		PersonImageURL:  "https://x/a.jpg",
		GarmentImageURL: "https://x/g.jpg",
	}
	assertValidationError(t, payload.Validate(), "person")
}

func TestValidate_RequiresExactlyOneGarmentReference(t *testing.T) {
	payload := domain.SubmissionPayload{PersonImageURL: "https://x/a.jpg"}
	assertValidationError(t, payload.Validate(), "garment")

	payload.GarmentImage = &domain.FileUpload{Name: "g.png", Content: strings.NewReader("g")}
	payload.GarmentImageURL = "https://x/g.jpg"
	assertValidationError(t, payload.Validate(), "garment")
}

func TestValidate_DemoPersonIDFormat(t *testing.T) {
	for _, id := range []string{"1", "42", "9999"} {
		payload := domain.SubmissionPayload{DemoPersonID: id, GarmentImageURL: "https://x/g.jpg"}
		if err := payload.Validate(); err != nil {
			t.Errorf("expected demo id %q to be accepted, got %v", id, err)
		}
	}
	for _, id := range []string{"12ab", "-1", "12345", "1.5"} {
		payload := domain.SubmissionPayload{DemoPersonID: id, GarmentImageURL: "https://x/g.jpg"}
		assertValidationError(t, payload.Validate(), "demoPersonId")
	}
}

func assertValidationError(t *testing.T, err error, field string) {
	t.Helper()
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != field {
		t.Errorf("expected the %q field to be reported, got %q", field, validationErr.Field)
	}
}

func TestParseStatus_AcceptsTheWireVocabulary(t *testing.T) {
	cases := map[string]domain.Status{
		"pending":    domain.StatusPending,
		"processing": domain.StatusProcessing,
		"COMPLETED":  domain.StatusCompleted,
		" failed ":   domain.StatusFailed,
	}
	for raw, want := range cases {
		got, err := domain.ParseStatus(raw)
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error: %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("ParseStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseStatus_RejectsAnythingElse(t *testing.T) {
	for _, raw := range []string{"", "paused", "done", "error"} {
		_, err := domain.ParseStatus(raw)
		var unknownErr *domain.UnknownStatusError
		if !errors.As(err, &unknownErr) {
			t.Errorf("ParseStatus(%q): expected UnknownStatusError, got %v", raw, err)
		}
	}
}

func TestFingerprint_StableForIdenticalInputs(t *testing.T) {
	a := domain.SubmissionPayload{PersonImageURL: "https://x/a.jpg", GarmentImageURL: "https://x/g.jpg"}
	b := domain.SubmissionPayload{PersonImageURL: "https://x/a.jpg", GarmentImageURL: "https://x/g.jpg"}

	fpA, okA := a.Fingerprint()
	fpB, okB := b.Fingerprint()
	if !okA || !okB {
		t.Fatal("expected URL-based payloads to be fingerprintable")
	}
	if fpA != fpB {
		t.Errorf("identical payloads must fingerprint identically: %q vs %q", fpA, fpB)
	}
}

func TestFingerprint_DistinguishesDifferentInputs(t *testing.T) {
	a := domain.SubmissionPayload{PersonImageURL: "https://x/a.jpg", GarmentImageURL: "https://x/g.jpg"}
	b := domain.SubmissionPayload{PersonImageURL: "https://x/b.jpg", GarmentImageURL: "https://x/g.jpg"}

	fpA, _ := a.Fingerprint()
	fpB, _ := b.Fingerprint()
	if fpA == fpB {
		t.Error("different inputs must not collide")
	}
}

func TestFingerprint_RefusesFileUploads(t *testing.T) {
	payload := domain.SubmissionPayload{
		PersonImage:     &domain.FileUpload{Name: "p.png", Content: strings.NewReader("p")},
		GarmentImageURL: "https://x/g.jpg",
	}
	if _, ok := payload.Fingerprint(); ok {
		t.Error("payloads with file uploads must not be fingerprintable")
	}
}

func TestTerminal(t *testing.T) {
	if domain.StatusPending.Terminal() || domain.StatusProcessing.Terminal() {
		t.Error("pending and processing are non-terminal")
	}
	if !domain.StatusCompleted.Terminal() || !domain.StatusFailed.Terminal() {
		t.Error("completed and failed are terminal")
	}
}
