package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/product-extractor/internal/metrics"
	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/netguard"
	"github.com/maltedev/product-extractor/internal/ratelimit"
)

var (
	ErrArchiveEmpty      = errors.New("archive is empty")
	ErrUnsupportedScheme = errors.New("image url must be http or https")
)

const (
	DefaultFolder        = "product-images"
	DefaultConcurrency   = 4
	DefaultTimeout       = 20 * time.Second
	DefaultMaxImageBytes = 20 << 20
)

type Options struct {
	HTTPClient    *http.Client
	Concurrency   int
	Timeout       time.Duration
	Folder        string
	MaxImageBytes int64
	Headers       http.Header
	Pacer         ratelimit.Pacer

	// AllowPrivateNetworks permits image hosts on loopback, private and
	// link-local addresses. Ignored when HTTPClient is set.
	AllowPrivateNetworks bool
	Logger               *slog.Logger
	Metrics              *metrics.Metrics
}

// Builder downloads images and packs them into a ZIP under one folder.
type Builder struct {
	client      *http.Client
	concurrency int
	timeout     time.Duration
	folder      string
	maxBytes    int64
	headers     http.Header
	pacer       ratelimit.Pacer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Failure describes one image that could not be downloaded.
type Failure struct {
	URL      string
	Filename string
	Err      error
}

type Result struct {
	ID        string
	Data      []byte
	Folder    string
	Filenames []string
	Failed    int
	Failures  []Failure
}

func NewBuilder(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Builder{
		client:      opts.HTTPClient,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		folder:      strings.Trim(opts.Folder, "/"),
		maxBytes:    opts.MaxImageBytes,
		headers:     opts.Headers,
		pacer:       opts.Pacer,
		logger:      logger.With("component", "archive"),
		metrics:     opts.Metrics,
	}

	if b.client == nil {
		b.client = &http.Client{Transport: netguard.RoundTripper(opts.AllowPrivateNetworks)}
	}
	if b.concurrency < 1 {
		b.concurrency = DefaultConcurrency
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	if b.folder == "" {
		b.folder = DefaultFolder
	}
	if b.maxBytes <= 0 {
		b.maxBytes = DefaultMaxImageBytes
	}

	return b
}

type download struct {
	data []byte
	err  error
}

// Build downloads every image independently. Failed downloads are counted and
// skipped; ErrArchiveEmpty is returned when nothing could be packed.
func (b *Builder) Build(ctx context.Context, images []models.ExtractedImage) (*Result, error) {
	if len(images) == 0 {
		return nil, ErrArchiveEmpty
	}

	results := make([]download, len(images))

	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			data, err := b.download(ctx, img.URL)
			results[i] = download{data: data, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		ID:     uuid.New().String(),
		Folder: b.folder,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := newNameSet()

	for i, img := range images {
		if err := results[i].err; err != nil {
			result.Failed++
			result.Failures = append(result.Failures, Failure{URL: img.URL, Filename: img.Filename, Err: err})
			b.metrics.ObserveDownload("failed")
			b.logger.Warn("image download failed",
				"url", img.URL,
				"filename", img.Filename,
				"error", err,
			)
			continue
		}
		b.metrics.ObserveDownload("success")

		name := names.claim(img.Filename, i)
		header := &zip.FileHeader{
			Name:     b.folder + "/" + name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		}

		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive entry %s: %w", name, err)
		}
		if _, err := w.Write(results[i].data); err != nil {
			return nil, fmt.Errorf("failed to write archive entry %s: %w", name, err)
		}

		result.Filenames = append(result.Filenames, name)
	}

	if len(result.Filenames) == 0 {
		return nil, fmt.Errorf("%w: all %d downloads failed", ErrArchiveEmpty, len(images))
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	result.Data = buf.Bytes()

	b.logger.Info("archive built",
		"archive_id", result.ID,
		"files", len(result.Filenames),
		"failed", result.Failed,
		"bytes", len(result.Data),
	)

	return result, nil
}

func (b *Builder) download(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	if b.pacer != nil {
		if err := b.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	data, err := b.get(ctx, u.String())
	if b.pacer != nil {
		if err != nil {
			b.pacer.RecordError()
		} else {
			b.pacer.RecordSuccess()
		}
	}
	return data, err
}

func (b *Builder) get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range b.headers {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		return nil, fmt.Errorf("unexpected content type: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > b.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", b.maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image body")
	}

	return data, nil
}

// nameSet keeps archive entry names unique and free of path components.
type nameSet map[string]bool

func newNameSet() nameSet {
	return nameSet{}
}

func (s nameSet) claim(filename string, index int) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		name = fmt.Sprintf("image-%d.jpg", index+1)
	}

	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; s[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}

	s[candidate] = true
	return candidate
}
