package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/ports"
)

// defaultHistoryLimit is the page size requested when the query does not
// specify one. The recency cache trims the page down after deduplication.
const defaultHistoryLimit = 20

// CustomerHistory implements ports.HistoryClient. Results come back in the
// server's recency order.
func (c *APIClient) CustomerHistory(ctx context.Context, query domain.HistoryQuery) (domain.HistoryPage, error) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	params := url.Values{}
	params.Set("email", query.Email)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	if query.Store != "" {
		params.Set("store", query.Store)
	}

	endpoint := c.baseURL + "/api/tryon/customer?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.auth.Do(req)
	if err != nil {
		return domain.HistoryPage{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.HistoryPage{}, &domain.NetworkError{Op: "reading history response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.HistoryPage{}, decodeRemoteError(resp.StatusCode, data)
	}

	var decoded struct {
		Success bool `json:"success"`
		Data    []struct {
			ID             string             `json:"id"`
			ImageURL       string             `json:"imageUrl"`
			OutputImageURL string             `json:"outputImageUrl"`
			CropRegion     *domain.CropRegion `json:"cropRegion"`
		} `json:"data"`
		Pagination struct {
			Page    int  `json:"page"`
			Limit   int  `json:"limit"`
			Total   int  `json:"total"`
			HasMore bool `json:"hasMore"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return domain.HistoryPage{}, &domain.ParseError{Op: "decoding history response", Err: err}
	}
	if !decoded.Success {
		return domain.HistoryPage{}, &domain.RemoteError{
			Code:       "HISTORY_FAILED",
			Message:    "history endpoint reported failure",
			HTTPStatus: resp.StatusCode,
		}
	}

	items := make([]domain.ResultRef, 0, len(decoded.Data))
	for _, rec := range decoded.Data {
		src := rec.OutputImageURL
		if src == "" {
			src = rec.ImageURL
		}
		if src == "" {
			continue
		}
		items = append(items, domain.ResultRef{ID: rec.ID, SourceURL: src, Crop: rec.CropRegion})
	}

	return domain.HistoryPage{
		Items:   items,
		Page:    decoded.Pagination.Page,
		Limit:   decoded.Pagination.Limit,
		Total:   decoded.Pagination.Total,
		HasMore: decoded.Pagination.HasMore,
	}, nil
}

var _ ports.HistoryClient = (*APIClient)(nil)
