package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/product-extractor/internal/archive"
	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/extractor"
	"github.com/maltedev/product-extractor/internal/fetch"
	"github.com/maltedev/product-extractor/internal/metrics"
	"github.com/maltedev/product-extractor/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ExtractProduct(ctx context.Context, url string) (*models.CanonicalProduct, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CanonicalProduct), args.Error(1)
}

func (m *MockService) ScrapeImages(ctx context.Context, url string) ([]models.ExtractedImage, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExtractedImage), args.Error(1)
}

func (m *MockService) BuildArchive(ctx context.Context, images []models.ExtractedImage) (*archive.Result, error) {
	args := m.Called(ctx, images)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*archive.Result), args.Error(1)
}

type stubStats struct {
	stats database.OutboxStats
	err   error
}

func (s stubStats) Stats(context.Context) (database.OutboxStats, error) {
	return s.stats, s.err
}

func newTestServer(t *testing.T, svc Service, outbox OutboxStats) (*httptest.Server, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	h := NewHandlers(svc, outbox, slog.Default())
	server := httptest.NewServer(NewRouter(h, RouterOptions{
		AllowedOrigins: []string{"*"},
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
	}))
	t.Cleanup(server.Close)

	return server, reg
}

func post(t *testing.T, server *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestExtractProduct(t *testing.T) {
	svc := new(MockService)
	server, _ := newTestServer(t, svc, nil)

	product := &models.CanonicalProduct{
		ID:          "p-1",
		Marketplace: "amazon",
		Title:       "Desk Lamp",
		Price:       models.Price{Current: 25, Currency: "EUR"},
		Images:      []models.ExtractedImage{{URL: "https://m.media-amazon.com/images/I/lamp.jpg", Filename: "image-1.jpg"}},
	}
	svc.On("ExtractProduct", mock.Anything, "https://www.amazon.de/dp/B000000001").Return(product, nil)

	resp := post(t, server, "/api/v1/extract", `{"url":"https://www.amazon.de/dp/B000000001"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got models.CanonicalProduct
	decodeBody(t, resp, &got)
	assert.Equal(t, "Desk Lamp", got.Title)
	assert.Equal(t, 25.0, got.Price.Current)

	svc.AssertExpectations(t)
}

func TestExtractProduct_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid url", fmt.Errorf("%w: missing host", extractor.ErrInvalidURL), http.StatusBadRequest},
		{"not found", &fetch.Error{Kind: fetch.ErrNotFound}, http.StatusNotFound},
		{"timeout", &fetch.Error{Kind: fetch.ErrTimeout, Exhausted: true}, http.StatusGatewayTimeout},
		{"forbidden", &fetch.Error{Kind: fetch.ErrForbidden, Exhausted: true}, http.StatusBadGateway},
		{"exhausted", &fetch.Error{Kind: fetch.ErrAllTransportsExhausted, Exhausted: true}, http.StatusBadGateway},
		{"incomplete", fmt.Errorf("%w: missing title", extractor.ErrExtractionIncomplete), http.StatusUnprocessableEntity},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			server, _ := newTestServer(t, svc, nil)
			svc.On("ExtractProduct", mock.Anything, mock.Anything).Return(nil, tt.err)

			resp := post(t, server, "/api/v1/extract", `{"url":"https://www.aliexpress.com/item/1.html"}`)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestExtractProduct_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"url":`, "invalid request body"},
		{"unknown field", `{"link":"https://x"}`, "invalid request body"},
		{"missing url", `{"url":"  "}`, "url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			server, _ := newTestServer(t, svc, nil)

			resp := post(t, server, "/api/v1/extract", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.want, body["error"])

			svc.AssertNotCalled(t, "ExtractProduct", mock.Anything, mock.Anything)
		})
	}
}

func TestScrapeImages(t *testing.T) {
	svc := new(MockService)
	server, _ := newTestServer(t, svc, nil)

	images := []models.ExtractedImage{
		{URL: "https://shop.example.com/a.jpg", Filename: "image-1.jpg"},
		{URL: "https://shop.example.com/b.png", Filename: "image-2.png"},
	}
	svc.On("ScrapeImages", mock.Anything, "https://shop.example.com/p/1").Return(images, nil)

	resp := post(t, server, "/api/v1/images", `{"url":"https://shop.example.com/p/1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got ImagesResponse
	decodeBody(t, resp, &got)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, images, got.Images)
}

func TestScrapeImages_NoImages(t *testing.T) {
	svc := new(MockService)
	server, _ := newTestServer(t, svc, nil)
	svc.On("ScrapeImages", mock.Anything, mock.Anything).Return(nil, extractor.ErrNoImagesFound)

	resp := post(t, server, "/api/v1/images", `{"url":"https://shop.example.com/p/1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBuildArchive_WithImages(t *testing.T) {
	svc := new(MockService)
	server, _ := newTestServer(t, svc, nil)

	images := []models.ExtractedImage{
		{URL: "https://cdn.example.com/a.jpg", Filename: "image-1.jpg"},
		{URL: "https://cdn.example.com/b.jpg", Filename: "image-2.jpg"},
		{URL: "https://cdn.example.com/c.jpg", Filename: "image-3.jpg"},
	}
	svc.On("BuildArchive", mock.Anything, images[:2]).Return(&archive.Result{
		ID:        "a-1",
		Data:      []byte("PK-zip-bytes"),
		Folder:    "product-images",
		Filenames: []string{"image-1.jpg"},
		Failed:    1,
	}, nil)

	body, err := json.Marshal(ArchiveRequest{Images: images, Limit: 2})
	require.NoError(t, err)

	resp := post(t, server, "/api/v1/archive", string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="product-images.zip"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "1", resp.Header.Get("X-Archive-Files"))
	assert.Equal(t, "1", resp.Header.Get("X-Failed-Count"))

	svc.AssertExpectations(t)
}

func TestBuildArchive_FromURL(t *testing.T) {
	svc := new(MockService)
	server, _ := newTestServer(t, svc, nil)

	images := []models.ExtractedImage{{URL: "https://shop.example.com/a.jpg", Filename: "image-1.jpg"}}
	svc.On("ScrapeImages", mock.Anything, "https://shop.example.com/p/1").Return(images, nil)
	svc.On("BuildArchive", mock.Anything, images).Return(nil, archive.ErrArchiveEmpty)

	resp := post(t, server, "/api/v1/archive", `{"url":"https://shop.example.com/p/1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	svc.AssertExpectations(t)
}

func TestBuildArchive_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nothing selected", `{}`, "images or url is required"},
		{"negative limit", `{"url":"https://shop.example.com/p/1","limit":-1}`, "limit cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			server, _ := newTestServer(t, svc, nil)

			resp := post(t, server, "/api/v1/archive", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		outbox     OutboxStats
		wantCode   int
		wantStatus string
	}{
		{"events disabled", nil, http.StatusOK, "ok"},
		{"healthy outbox", stubStats{stats: database.OutboxStats{Pending: 2}}, http.StatusOK, "ok"},
		{"dead letters piling up", stubStats{stats: database.OutboxStats{DeadLetter: 101}}, http.StatusOK, "warning"},
		{"outbox unavailable", stubStats{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, new(MockService), tt.outbox)

			resp, err := http.Get(server.URL + "/health")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantCode, resp.StatusCode)

			var body map[string]any
			decodeBody(t, resp, &body)
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t, new(MockService), nil)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `path="/health"`)
}
