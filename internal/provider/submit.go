package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/ports"
)

// Submit implements ports.SubmissionClient. The payload is validated before
// any I/O, encoded as a multipart body and posted to the generate endpoint.
// A 202 yields an asynchronous job handle; any other 2xx carrying a
// synthesized image yields the result directly (legacy synchronous path).
func (c *APIClient) Submit(ctx context.Context, payload domain.SubmissionPayload) (domain.Submission, error) {
	if err := payload.Validate(); err != nil {
		return domain.Submission{}, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writeSubmissionForm(writer, payload); err != nil {
		return domain.Submission{}, err
	}
	if err := writer.Close(); err != nil {
		return domain.Submission{}, fmt.Errorf("finalizing multipart body: %w", err)
	}

	shop := payload.Shop
	if shop == "" {
		shop = c.shop
	}
	endpoint := c.baseURL + "/api/tryon/generate"
	if shop != "" {
		endpoint += "?shop=" + url.QueryEscape(shop)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	requestID := c.newRequestID()
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug().Str("request_id", requestID).Str("shop", shop).Msg("submitting generation job")

	resp, err := c.auth.Do(req)
	if err != nil {
		return domain.Submission{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Submission{}, &domain.NetworkError{Op: "reading submit response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		var decoded struct {
			JobID string `json:"jobId"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return domain.Submission{}, &domain.ParseError{Op: "decoding submit response", Err: err}
		}
		if decoded.JobID == "" {
			return domain.Submission{}, &domain.ParseError{Op: "decoding submit response", Err: errors.New("202 response without a job id")}
		}
		c.logger.Info().Str("request_id", requestID).Str("job_id", decoded.JobID).Msg("job accepted")
		return domain.Submission{JobID: decoded.JobID}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var decoded struct {
			Status string `json:"status"`
			Image  string `json:"image"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return domain.Submission{}, &domain.ParseError{Op: "decoding submit response", Err: err}
		}
		if decoded.Status != "success" || decoded.Image == "" {
			return domain.Submission{}, &domain.ParseError{Op: "decoding submit response", Err: errors.New("2xx response carried neither a job id nor an image")}
		}
		return domain.Submission{Result: &domain.ResultRef{SourceURL: decoded.Image}}, nil

	default:
		return domain.Submission{}, decodeRemoteError(resp.StatusCode, data)
	}
}

// writeSubmissionForm encodes the payload fields. Optional context travels
// only when present; the server treats an empty field as set.
func writeSubmissionForm(writer *multipart.Writer, payload domain.SubmissionPayload) error {
	switch {
	case payload.PersonImage != nil:
		part, err := writer.CreateFormFile("personImage", payload.PersonImage.Name)
		if err != nil {
			return fmt.Errorf("encoding person image: %w", err)
		}
		if _, err := io.Copy(part, payload.PersonImage.Content); err != nil {
			return fmt.Errorf("encoding person image: %w", err)
		}
	case payload.PersonImageURL != "":
		if err := writer.WriteField("personImageUrl", payload.PersonImageURL); err != nil {
			return fmt.Errorf("encoding person image URL: %w", err)
		}
	default:
		if err := writer.WriteField("demoPersonId", payload.DemoPersonID); err != nil {
			return fmt.Errorf("encoding demo person id: %w", err)
		}
	}

	if payload.GarmentImage != nil {
		part, err := writer.CreateFormFile("clothingImage", payload.GarmentImage.Name)
		if err != nil {
			return fmt.Errorf("encoding garment image: %w", err)
		}
		if _, err := io.Copy(part, payload.GarmentImage.Content); err != nil {
			return fmt.Errorf("encoding garment image: %w", err)
		}
	} else {
		if err := writer.WriteField("clothingImageUrl", payload.GarmentImageURL); err != nil {
			return fmt.Errorf("encoding garment image URL: %w", err)
		}
	}

	if err := writer.WriteField("aspectRatio", defaultAspectRatio); err != nil {
		return fmt.Errorf("encoding aspect ratio: %w", err)
	}

	optional := map[string]string{
		"sessionId":     payload.SessionID,
		"customerEmail": payload.CustomerEmail,
		"productId":     payload.ProductID,
		"locale":        payload.Locale,
	}
	for field, value := range optional {
		if value == "" {
			continue
		}
		if err := writer.WriteField(field, value); err != nil {
			return fmt.Errorf("encoding %s: %w", field, err)
		}
	}

	if payload.Crop != nil {
		crop, err := json.Marshal(payload.Crop)
		if err != nil {
			return fmt.Errorf("encoding crop region: %w", err)
		}
		if err := writer.WriteField("cropRegion", string(crop)); err != nil {
			return fmt.Errorf("encoding crop region: %w", err)
		}
	}
	return nil
}

var _ ports.SubmissionClient = (*APIClient)(nil)
