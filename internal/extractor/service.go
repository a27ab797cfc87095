package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/maltedev/product-extractor/internal/archive"
	"github.com/maltedev/product-extractor/internal/catalog"
	"github.com/maltedev/product-extractor/internal/document"
	"github.com/maltedev/product-extractor/internal/fetch"
	"github.com/maltedev/product-extractor/internal/marketplace"
	"github.com/maltedev/product-extractor/internal/metrics"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/normalize"
	"github.com/maltedev/product-extractor/internal/parser"
)

var (
	ErrInvalidURL           = errors.New("invalid product url")
	ErrExtractionIncomplete = errors.New("extraction incomplete")
	ErrNoImagesFound        = errors.New("no images found")
)

// Fetcher retrieves a page. *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, target string, headers http.Header) (*fetch.Result, error)
}

// ArchiveBuilder packs images into a ZIP. *archive.Builder satisfies it.
type ArchiveBuilder interface {
	Build(ctx context.Context, images []models.ExtractedImage) (*archive.Result, error)
}

// Publisher announces successful extractions.
type Publisher interface {
	PublishProductExtracted(ctx context.Context, product *models.CanonicalProduct) error
}

type Options struct {
	Fetcher    Fetcher
	Archive    ArchiveBuilder
	Publisher  Publisher
	UserAgents []string
	Headers    http.Header
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Service runs the fetch, parse, normalize pipeline.
type Service struct {
	fetcher    Fetcher
	archive    ArchiveBuilder
	publisher  Publisher
	parser     *parser.Extractor
	userAgents []string
	headers    http.Header
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	builder := opts.Archive
	if builder == nil {
		builder = archive.NewBuilder(archive.Options{Logger: logger, Metrics: opts.Metrics})
	}

	return &Service{
		fetcher:    opts.Fetcher,
		archive:    builder,
		publisher:  opts.Publisher,
		parser:     parser.NewExtractor(logger, opts.Metrics),
		userAgents: opts.UserAgents,
		headers:    opts.Headers,
		logger:     logger.With("component", "extractor"),
		metrics:    opts.Metrics,
	}
}

// ExtractProduct fetches a marketplace product page and returns the
// normalized product. Only known product-page URL shapes are accepted.
func (s *Service) ExtractProduct(ctx context.Context, rawURL string) (*models.CanonicalProduct, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	m := marketplace.Detect(target)
	productID, ok := m.ProductID(target)
	if !ok {
		return nil, fmt.Errorf("%w: not a recognised product page: %s", ErrInvalidURL, target)
	}

	logger := s.logger.With("marketplace", m.ID, "url", target)
	logger.Info("extracting product")

	doc, err := s.load(ctx, target, m)
	if err != nil {
		s.metrics.ObserveExtraction(string(m.ID), "fetch_failed")
		return nil, err
	}

	partial := s.parser.Extract(doc, s.parser.Profile(m))
	if partial.ExternalID == "" {
		partial.ExternalID = productID
	}

	product := normalize.Normalize(partial, m.ID, doc.BaseURL())

	if missing := product.Missing(); len(missing) > 0 {
		s.metrics.ObserveExtraction(string(m.ID), "incomplete")
		logger.Warn("extraction incomplete", "missing", missing)
		return nil, fmt.Errorf("%w: missing %s", ErrExtractionIncomplete, strings.Join(missing, ", "))
	}

	product.ID = uuid.New().String()
	s.metrics.ObserveExtraction(string(m.ID), "success")

	logger.Info("product extracted",
		"product_id", product.ID,
		"external_id", product.ExternalID,
		"images", len(product.Images),
		"resolved_by", partial.ResolvedBy,
	)

	if s.publisher != nil {
		if err := s.publisher.PublishProductExtracted(ctx, &product); err != nil {
			logger.Error("failed to publish extraction event", "product_id", product.ID, "error", err)
		}
	}

	return &product, nil
}

// ScrapeImages catalogues every product image on the page at rawURL. Any
// http(s) page is accepted.
func (s *Service) ScrapeImages(ctx context.Context, rawURL string) ([]models.ExtractedImage, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	m := marketplace.Detect(target)

	doc, err := s.load(ctx, target, m)
	if err != nil {
		return nil, err
	}

	c := catalog.New(doc.BaseURL(), m.RewriteImage).Collect(doc)

	// Marketplaces that render galleries from script data leave few <img> tags.
	if m.ID != marketplace.Generic {
		partial := s.parser.Extract(doc, s.parser.Profile(m))
		for _, raw := range partial.Images {
			c.Add(raw, partial.ImageAlts[raw])
		}
	}

	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImagesFound, target)
	}

	images := c.Images()
	s.logger.Info("images scraped", "url", target, "marketplace", m.ID, "count", len(images))

	return images, nil
}

// BuildArchive downloads images into a ZIP archive.
func (s *Service) BuildArchive(ctx context.Context, images []models.ExtractedImage) (*archive.Result, error) {
	return s.archive.Build(ctx, images)
}

func (s *Service) load(ctx context.Context, target string, m *marketplace.Marketplace) (document.Document, error) {
	headers := marketplace.MergeHeaders(m.Headers(s.userAgents), s.headers)

	result, err := s.fetcher.Fetch(ctx, target, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}

	finalURL := result.FinalURL
	if finalURL == "" {
		finalURL = target
	}
	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse final url: %w", err)
	}

	doc, err := document.Parse(result.Body, base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	return doc, nil
}

func validateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return u.String(), nil
}
