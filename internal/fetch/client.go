package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/motemen/go-loghttp"

	"github.com/maltedev/product-extractor/internal/metrics"
	"github.com/maltedev/product-extractor/internal/netguard"
	"github.com/maltedev/product-extractor/internal/ratelimit"
)

const Direct = "direct"

const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

// DefaultRelays are public pass-through endpoints; the target URL is appended query-escaped.
func DefaultRelays() []string {
	return []string{
		"https://api.allorigins.win/raw?url=",
		"https://corsproxy.io/?",
		"https://api.codetabs.com/v1/proxy?quest=",
	}
}

// Result is a successfully retrieved page.
type Result struct {
	Body       string
	FinalURL   string
	StatusCode int
	Transport  string
}

type Options struct {
	Relays       []string
	Timeout      time.Duration
	MaxBodyBytes int64
	Pacer        ratelimit.Pacer
	HTTPClient   *http.Client

	// AllowPrivateNetworks permits loopback, private and link-local
	// destinations. Ignored when HTTPClient carries its own transport.
	AllowPrivateNetworks bool
	Logger               *slog.Logger
	Metrics              *metrics.Metrics
}

// Client retrieves pages directly and falls back to relays in order.
type Client struct {
	relays   []string
	timeout  time.Duration
	maxBody  int64
	pacer    ratelimit.Pacer
	http     *http.Client
	detector *BotDetector
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "fetch")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	base := netguard.RoundTripper(opts.AllowPrivateNetworks)
	var jar http.CookieJar
	if opts.HTTPClient != nil {
		if opts.HTTPClient.Transport != nil {
			base = opts.HTTPClient.Transport
		}
		jar = opts.HTTPClient.Jar
	}

	transport := &loghttp.Transport{
		Transport: base,
		LogRequest: func(req *http.Request) {
			logger.Debug("HTTP request",
				"method", req.Method,
				"url", req.URL.String(),
			)
		},
		LogResponse: func(resp *http.Response) {
			logger.Debug("HTTP response",
				"method", resp.Request.Method,
				"url", resp.Request.URL.String(),
				"status_code", resp.StatusCode,
				"content_length", resp.ContentLength,
			)
		},
	}

	return &Client{
		relays:   append([]string(nil), opts.Relays...),
		timeout:  timeout,
		maxBody:  maxBody,
		pacer:    opts.Pacer,
		http:     &http.Client{Transport: transport, Jar: jar},
		detector: NewBotDetector(),
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// Relays returns the configured relay bases in attempt order.
func (c *Client) Relays() []string {
	return append([]string(nil), c.relays...)
}

// Fetch retrieves target. The direct attempt runs first, then each relay once.
// A direct 404 stops the chain with ErrNotFound.
func (c *Client) Fetch(ctx context.Context, target string, headers http.Header) (*Result, error) {
	transports := append([]string{Direct}, c.relays...)
	attempts := make([]Attempt, 0, len(transports))

	for _, transport := range transports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		result, attempt := c.attempt(ctx, transport, target, headers)
		c.metrics.ObserveFetch(transportLabel(transport), outcome(attempt), time.Since(start))

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if result != nil {
			if c.pacer != nil {
				c.pacer.RecordSuccess()
			}
			if len(attempts) > 0 {
				c.logger.Info("fetched via fallback transport",
					"url", target,
					"transport", transport,
					"failed_attempts", len(attempts),
				)
			}
			return result, nil
		}

		attempts = append(attempts, attempt)
		if c.pacer != nil {
			c.pacer.RecordError()
		}

		c.logger.Warn("fetch attempt failed",
			"url", target,
			"transport", transport,
			"status", attempt.Status,
			"error", attempt.Err,
		)

		if transport == Direct && attempt.Status == http.StatusNotFound {
			return nil, &Error{URL: target, Kind: ErrNotFound, Attempts: attempts}
		}
	}

	return nil, &Error{
		URL:       target,
		Kind:      classify(attempts),
		Exhausted: true,
		Attempts:  attempts,
	}
}

func (c *Client) attempt(ctx context.Context, transport, target string, headers http.Header) (*Result, Attempt) {
	attempt := Attempt{Transport: transport}

	reqURL := target
	if transport != Direct {
		reqURL = transport + url.QueryEscape(target)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		attempt.Err = fmt.Errorf("failed to create request: %w", err)
		return nil, attempt
	}
	for k, v := range headers {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		attempt.Err = attemptError(attemptCtx, err)
		return nil, attempt
	}
	defer resp.Body.Close()

	attempt.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		attempt.Err = fmt.Errorf("unexpected status: %s", resp.Status)
		return nil, attempt
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		attempt.Err = attemptError(attemptCtx, err)
		return nil, attempt
	}
	if int64(len(body)) > c.maxBody {
		attempt.Err = ErrBodyTooLarge
		return nil, attempt
	}

	content := string(body)
	if strings.TrimSpace(content) == "" {
		attempt.Err = ErrEmptyBody
		return nil, attempt
	}

	if blocked, reason := c.detector.Detect(content); blocked {
		attempt.Err = fmt.Errorf("%w: %s", ErrBlocked, reason)
		return nil, attempt
	}

	finalURL := target
	if transport == Direct && resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:       content,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Transport:  transport,
	}, attempt
}

func attemptError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return err
}

func transportLabel(transport string) string {
	if transport == Direct {
		return Direct
	}
	if u, err := url.Parse(transport); err == nil && u.Host != "" {
		return u.Host
	}
	return "relay"
}

func outcome(a Attempt) string {
	switch {
	case a.Err == nil:
		return "success"
	case errors.Is(a.Err, ErrTimeout):
		return "timeout"
	case errors.Is(a.Err, ErrBlocked):
		return "blocked"
	case errors.Is(a.Err, ErrEmptyBody):
		return "empty"
	case errors.Is(a.Err, ErrBodyTooLarge):
		return "too_large"
	case a.Status == http.StatusForbidden:
		return "forbidden"
	case a.Status == http.StatusNotFound:
		return "not_found"
	case a.Status == http.StatusTooManyRequests:
		return "rate_limited"
	case a.Status >= 500:
		return "server_error"
	case a.Status != 0:
		return "http_error"
	default:
		return "network_error"
	}
}
