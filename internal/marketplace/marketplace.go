package marketplace

import (
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

type ID string

const (
	AliExpress ID = "aliexpress"
	Alibaba    ID = "alibaba"
	Amazon     ID = "amazon"
	Site1688   ID = "1688"
	Generic    ID = "generic"
)

// Marketplace describes the URL shapes and request defaults of one source site.
type Marketplace struct {
	ID              ID
	Name            string
	HostPattern     *regexp.Regexp
	ProductPattern  *regexp.Regexp
	CDNPattern      *regexp.Regexp
	ShippingDefault string
	AcceptLanguage  string
	Referer         string
}

var registry = []*Marketplace{
	{
		ID:              AliExpress,
		Name:            "AliExpress",
		HostPattern:     regexp.MustCompile(`(?i)(^|\.)aliexpress\.(com|us|ru)$`),
		ProductPattern:  regexp.MustCompile(`(?i)^/(item|i)/(\d+)\.html`),
		CDNPattern:      regexp.MustCompile(`https?://ae\d*\.alicdn\.com/kf/[A-Za-z0-9_\-./]+?\.(?:jpe?g|png|webp)`),
		ShippingDefault: "15-45 days",
		AcceptLanguage:  "en-US,en;q=0.9",
		Referer:         "https://www.aliexpress.com/",
	},
	{
		ID:              Alibaba,
		Name:            "Alibaba",
		HostPattern:     regexp.MustCompile(`(?i)(^|\.)alibaba\.com$`),
		ProductPattern:  regexp.MustCompile(`(?i)^/product-detail/.*?_(\d+)\.html`),
		CDNPattern:      regexp.MustCompile(`https?://s\.alicdn\.com/@sc\d+/kf/[A-Za-z0-9_\-./]+?\.(?:jpe?g|png|webp)`),
		ShippingDefault: "7-20 days",
		AcceptLanguage:  "en-US,en;q=0.9",
		Referer:         "https://www.alibaba.com/",
	},
	{
		ID:              Amazon,
		Name:            "Amazon",
		HostPattern:     regexp.MustCompile(`(?i)(^|\.)amazon\.(com|de|co\.uk|fr|it|es|ca|co\.jp|com\.au|in|nl)$`),
		ProductPattern:  regexp.MustCompile(`(?:/dp/|/gp/product/)([A-Z0-9]{10})`),
		CDNPattern:      regexp.MustCompile(`https?://m\.media-amazon\.com/images/I/[A-Za-z0-9_\-.+%]+?\.(?:jpe?g|png|webp)`),
		ShippingDefault: "3-7 days",
		AcceptLanguage:  "en-US,en;q=0.9,de;q=0.8",
		Referer:         "https://www.google.com/",
	},
	{
		ID:              Site1688,
		Name:            "1688",
		HostPattern:     regexp.MustCompile(`(?i)^detail\.1688\.com$`),
		ProductPattern:  regexp.MustCompile(`(?i)^/offer/(\d+)\.html`),
		CDNPattern:      regexp.MustCompile(`https?://cbu01\.alicdn\.com/img/[A-Za-z0-9_\-./!]+?\.(?:jpe?g|png|webp)`),
		ShippingDefault: "10-30 days",
		AcceptLanguage:  "zh-CN,zh;q=0.9,en;q=0.8",
		Referer:         "https://www.1688.com/",
	},
}

var generic = &Marketplace{
	ID:              Generic,
	Name:            "Generic",
	ShippingDefault: "7-30 days",
	AcceptLanguage:  "en-US,en;q=0.9",
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// DefaultUserAgents returns a copy of the built-in user agent pool.
func DefaultUserAgents() []string {
	return append([]string(nil), defaultUserAgents...)
}

// Detect identifies the marketplace that hosts rawURL. Unknown hosts map to Generic.
func Detect(rawURL string) *Marketplace {
	u, err := url.Parse(rawURL)
	if err != nil {
		return generic
	}

	host := strings.ToLower(u.Hostname())
	for _, m := range registry {
		if m.HostPattern.MatchString(host) {
			return m
		}
	}

	return generic
}

// Lookup returns the marketplace with the given id, or Generic.
func Lookup(id ID) *Marketplace {
	for _, m := range registry {
		if m.ID == id {
			return m
		}
	}
	return generic
}

// ProductID returns the marketplace's item identifier when rawURL is a
// recognised product page.
func (m *Marketplace) ProductID(rawURL string) (string, bool) {
	if m.ProductPattern == nil {
		return "", false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	match := m.ProductPattern.FindStringSubmatch(u.EscapedPath())
	if match == nil {
		return "", false
	}

	return match[len(match)-1], true
}

// IsProductURL reports whether rawURL has a known marketplace product-page shape.
func IsProductURL(rawURL string) bool {
	m := Detect(rawURL)
	_, ok := m.ProductID(rawURL)
	return ok
}

// Headers returns the default request headers for this marketplace using
// one user agent picked from agents.
func (m *Marketplace) Headers(agents []string) http.Header {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}

	h := http.Header{}
	h.Set("User-Agent", agents[rand.Intn(len(agents))])
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", m.AcceptLanguage)
	h.Set("Cache-Control", "no-cache")
	if m.Referer != "" {
		h.Set("Referer", m.Referer)
	}
	return h
}

// MergeHeaders layers override on top of base. Keys in override win.
func MergeHeaders(base, override http.Header) http.Header {
	out := base.Clone()
	if out == nil {
		out = http.Header{}
	}
	for k, v := range override {
		out[k] = append([]string(nil), v...)
	}
	return out
}
