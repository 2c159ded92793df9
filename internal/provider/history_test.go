package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"tryon-cli/internal/domain"
)

func TestCustomerHistory_SendsQueryParameters(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true,"data":[],"pagination":{"page":2,"limit":10,"total":0,"hasMore":false}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	page, err := client.CustomerHistory(context.Background(), domain.HistoryQuery{
		Email: "jo@example.com",
		Store: "store-1",
		Page:  2,
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query.Get("email") != "jo@example.com" || query.Get("store") != "store-1" {
		t.Errorf("expected identity parameters, got %v", query)
	}
	if query.Get("page") != "2" || query.Get("limit") != "10" {
		t.Errorf("expected paging parameters, got %v", query)
	}
	if page.Page != 2 || page.Limit != 10 {
		t.Errorf("expected pagination echoed back, got %+v", page)
	}
}

func TestCustomerHistory_MapsRecordsInRecencyOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"success": true,
			"data": [
				{"id":"r1","outputImageUrl":"https://r/1.png","cropRegion":{"x":1,"y":2,"width":3,"height":4}},
				{"id":"r2","imageUrl":"https://r/2.png"},
				{"id":"r3"}
			],
			"pagination": {"page":1,"limit":20,"total":3,"hasMore":false}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	page, err := client.CustomerHistory(context.Background(), domain.HistoryQuery{Email: "jo@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected a URL-less record to be dropped, got %d items", len(page.Items))
	}
	if page.Items[0].SourceURL != "https://r/1.png" || page.Items[1].SourceURL != "https://r/2.png" {
		t.Errorf("expected server ordering preserved, got %+v", page.Items)
	}
	if page.Items[0].Crop == nil || page.Items[0].Crop.Width != 3 {
		t.Errorf("expected the crop region decoded, got %+v", page.Items[0].Crop)
	}
}

func TestCustomerHistory_ReportedFailureIsRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":false,"data":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.CustomerHistory(context.Background(), domain.HistoryQuery{Email: "jo@example.com"})
	var remoteErr *domain.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %T: %v", err, err)
	}
}
