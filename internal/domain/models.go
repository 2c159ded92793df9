package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Status is the wire vocabulary for job states. Anything outside these four
// strings is a protocol violation and must be rejected, not ignored.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further status transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus maps a raw wire string onto the known vocabulary.  Unknown
// strings yield an UnknownStatusError so callers stop instead of polling a
// state they cannot interpret.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusProcessing:
		return StatusProcessing, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusFailed:
		return StatusFailed, nil
	}
	return "", &UnknownStatusError{Status: raw}
}

// Job is one server-side asynchronous generation task. It is created on
// submission, mutated only by status responses, and discarded once the
// caller consumes the result; nothing is persisted across runs.
type Job struct {
	ID                string
	Status            Status
	StatusDescription string
	Message           string
	ResultURL         string
	Err               *RemoteError
}

// FileUpload is a file to be sent as a multipart part.
type FileUpload struct {
	Name    string
	Content io.Reader
}

// CropRegion selects the garment area within the person image.
type CropRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SubmissionPayload carries the inputs of one try-on generation. Exactly one
// person-reference variant and exactly one garment-reference variant must be
// set; everything else is optional context attached to the request only when
// present.
type SubmissionPayload struct {
	PersonImage    *FileUpload
	PersonImageURL string
	DemoPersonID   string

	GarmentImage    *FileUpload
	GarmentImageURL string

	Shop          string
	SessionID     string
	CustomerEmail string
	ProductID     string
	Locale        string
	Crop          *CropRegion
}

// Demo person identifiers are short opaque numeric ids.
var demoPersonIDPattern = regexp.MustCompile(`^[0-9]{1,4}$`)

// Validate checks the payload invariants before any network call is made.
func (p *SubmissionPayload) Validate() error {
	persons := 0
	if p.PersonImage != nil {
		persons++
	}
	if p.PersonImageURL != "" {
		persons++
	}
	if p.DemoPersonID != "" {
		persons++
	}
	if persons == 0 {
		return &ValidationError{Field: "person", Reason: "a person image, person image URL or demo person id is required"}
	}
	if persons > 1 {
		return &ValidationError{Field: "person", Reason: "person image, person image URL and demo person id are mutually exclusive"}
	}

	garments := 0
	if p.GarmentImage != nil {
		garments++
	}
	if p.GarmentImageURL != "" {
		garments++
	}
	if garments == 0 {
		return &ValidationError{Field: "garment", Reason: "a garment image or garment image URL is required"}
	}
	if garments > 1 {
		return &ValidationError{Field: "garment", Reason: "garment image and garment image URL are mutually exclusive"}
	}

	if p.DemoPersonID != "" && !demoPersonIDPattern.MatchString(p.DemoPersonID) {
		return &ValidationError{Field: "demoPersonId", Reason: fmt.Sprintf("%q is not a valid demo person id", p.DemoPersonID)}
	}
	return nil
}

// Fingerprint derives a stable key over the payload's distinguishing inputs,
// used to coalesce concurrent identical submissions. Payloads carrying file
// uploads cannot be fingerprinted without consuming the readers, so the
// second return value is false for those.
func (p *SubmissionPayload) Fingerprint() (string, bool) {
	if p.PersonImage != nil || p.GarmentImage != nil {
		return "", false
	}
	h := sha256.New()
	for _, part := range []string{
		p.PersonImageURL, p.DemoPersonID, p.GarmentImageURL,
		p.Shop, p.CustomerEmail, p.ProductID, p.Locale,
	} {
		io.WriteString(h, part)
		h.Write([]byte{0})
	}
	if p.Crop != nil {
		fmt.Fprintf(h, "%d:%d:%d:%d", p.Crop.X, p.Crop.Y, p.Crop.Width, p.Crop.Height)
	}
	return hex.EncodeToString(h.Sum(nil)), true
}

// ResultRef points at one generated asset.
type ResultRef struct {
	ID        string
	SourceURL string
	Crop      *CropRegion
}

// Submission is the outcome of posting a payload: either an asynchronous job
// handle (HTTP 202) or, on legacy deployments, the finished result directly.
type Submission struct {
	JobID  string
	Result *ResultRef
}

// Async reports whether the submission must be polled to completion.
func (s Submission) Async() bool {
	return s.Result == nil
}

// StatusEvent is one observation of a job's progress. Intermediate events
// carry the server-supplied human-readable description; the terminal event
// additionally carries either the result or the error.
type StatusEvent struct {
	Status      Status
	Description string
	Result      *ResultRef
	Err         error
}

// HistoryQuery selects a page of a customer's previously generated results.
type HistoryQuery struct {
	Email string
	Store string
	Page  int
	Limit int
}

// HistoryPage is one page of the customer history listing.
type HistoryPage struct {
	Items   []ResultRef
	Page    int
	Limit   int
	Total   int
	HasMore bool
}
