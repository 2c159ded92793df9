package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/ports"
)

// JobStatus implements ports.StatusClient. It reads the status endpoint once
// and normalizes the response into a Job. An unrecognized status string is a
// protocol violation and surfaces as UnknownStatusError.
func (c *APIClient) JobStatus(ctx context.Context, jobID string) (domain.Job, error) {
	endpoint := fmt.Sprintf("%s/api/tryon/status/%s", c.baseURL, url.PathEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Job{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.auth.Do(req)
	if err != nil {
		return domain.Job{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Job{}, &domain.NetworkError{Op: "reading status response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Job{}, decodeRemoteError(resp.StatusCode, data)
	}

	var decoded struct {
		Status            string `json:"status"`
		StatusDescription string `json:"statusDescription"`
		Message           string `json:"message"`
		ImageURL          string `json:"imageUrl"`
		Error             *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return domain.Job{}, &domain.ParseError{Op: "decoding status response", Err: err}
	}

	status, err := domain.ParseStatus(decoded.Status)
	if err != nil {
		return domain.Job{}, err
	}

	job := domain.Job{
		ID:                jobID,
		Status:            status,
		StatusDescription: decoded.StatusDescription,
		Message:           decoded.Message,
		ResultURL:         decoded.ImageURL,
	}
	if decoded.Error != nil {
		job.Err = &domain.RemoteError{Code: decoded.Error.Code, Message: decoded.Error.Message}
	}
	return job, nil
}

var _ ports.StatusClient = (*APIClient)(nil)
