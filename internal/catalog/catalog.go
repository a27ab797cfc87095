package catalog

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/maltedev/product-extractor/internal/document"
	"github.com/maltedev/product-extractor/internal/models"
)

var (
	imageExtension  = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp)$`)
	backgroundImage = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)
	nameTokens      = regexp.MustCompile(`[^a-z0-9]+`)
)

// Filename tokens that mark decoration rather than product imagery.
var decorativeTokens = map[string]bool{
	"icon":        true,
	"icons":       true,
	"favicon":     true,
	"logo":        true,
	"logos":       true,
	"sprite":      true,
	"sprites":     true,
	"placeholder": true,
}

// Stems that only mark decoration as the whole name, so blank-hoodie.jpg
// stays while blank.gif goes.
var decorativeStems = map[string]bool{
	"blank":   true,
	"spacer":  true,
	"loading": true,
	"loader":  true,
	"pixel":   true,
}

// Catalog accumulates unique product images in discovery order.
type Catalog struct {
	base    *url.URL
	rewrite func(string) string
	seen    map[string]bool
	images  []models.ExtractedImage
}

// New creates an empty catalog. rewrite, when set, is applied to every
// absolute URL before deduplication.
func New(base *url.URL, rewrite func(string) string) *Catalog {
	return &Catalog{
		base:    base,
		rewrite: rewrite,
		seen:    make(map[string]bool),
	}
}

// CollectImages scans doc for product images.
func CollectImages(doc document.Document, base *url.URL) []models.ExtractedImage {
	return New(base, nil).Collect(doc).Images()
}

// FromURLs catalogues an already extracted URL list with the same rules as CollectImages.
func FromURLs(urls []string, base *url.URL, alts map[string]string) []models.ExtractedImage {
	c := New(base, nil)
	for _, raw := range urls {
		c.Add(raw, alts[raw])
	}
	return c.Images()
}

// Collect walks the image sources of doc in a fixed order.
func (c *Catalog) Collect(doc document.Document) *Catalog {
	for _, n := range doc.FindAll("img[src]") {
		src, _ := n.Attr("src")
		alt, _ := n.Attr("alt")
		c.Add(src, alt)
	}

	for _, n := range doc.FindAll(`[style*="background-image"]`) {
		style, _ := n.Attr("style")
		for _, m := range backgroundImage.FindAllStringSubmatch(style, -1) {
			c.Add(m[1], "")
		}
	}

	for _, n := range doc.FindAll("img[srcset], source[srcset]") {
		srcset, _ := n.Attr("srcset")
		alt, _ := n.Attr("alt")
		for _, candidate := range strings.Split(srcset, ",") {
			if fields := strings.Fields(candidate); len(fields) > 0 {
				c.Add(fields[0], alt)
			}
		}
	}

	for _, n := range doc.FindAll(`meta[property="og:image"]`) {
		content, _ := n.Attr("content")
		c.Add(content, "")
	}

	for _, attr := range []string{"data-src", "data-original"} {
		for _, n := range doc.FindAll("[" + attr + "]") {
			src, _ := n.Attr(attr)
			alt, _ := n.Attr("alt")
			c.Add(src, alt)
		}
	}

	return c
}

// Add registers raw if it is an acceptable, not yet seen image. It reports
// whether the image was added.
func (c *Catalog) Add(raw, alt string) bool {
	u, ok := resolve(raw, c.base)
	if !ok {
		return false
	}

	if c.rewrite != nil {
		rewritten, err := url.Parse(c.rewrite(u.String()))
		if err != nil {
			return false
		}
		u = rewritten
	}

	key := canonicalize(u)
	if c.seen[key] {
		return false
	}

	name := path.Base(u.Path)
	match := imageExtension.FindStringSubmatch(name)
	if match == nil || isDecorative(name) {
		return false
	}

	c.seen[key] = true

	alt = strings.TrimSpace(alt)
	if alt == "" {
		alt = name
	}

	c.images = append(c.images, models.ExtractedImage{
		URL:      key,
		Filename: fmt.Sprintf("image-%d.%s", len(c.images)+1, strings.ToLower(match[1])),
		Alt:      alt,
	})
	return true
}

func (c *Catalog) Images() []models.ExtractedImage {
	out := make([]models.ExtractedImage, len(c.images))
	copy(out, c.images)
	return out
}

func (c *Catalog) Len() int {
	return len(c.images)
}

// Canonical returns the canonical form of raw resolved against base.
func Canonical(raw string, base *url.URL) (string, bool) {
	u, ok := resolve(raw, base)
	if !ok {
		return "", false
	}
	return canonicalize(u), true
}

func resolve(raw string, base *url.URL) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return nil, false
	}

	var (
		u   *url.URL
		err error
	)
	if base != nil {
		u, err = base.Parse(raw)
	} else {
		u, err = url.Parse(raw)
	}
	if err != nil {
		return nil, false
	}

	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, false
	}

	return u, true
}

func canonicalize(u *url.URL) string {
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	c.Fragment = ""
	c.RawFragment = ""
	if c.RawQuery != "" {
		// Encode sorts by key
		c.RawQuery = c.Query().Encode()
	}
	return c.String()
}

func isDecorative(name string) bool {
	stem := strings.TrimSuffix(strings.ToLower(name), path.Ext(name))
	if decorativeStems[stem] {
		return true
	}
	for _, token := range nameTokens.Split(stem, -1) {
		if decorativeTokens[token] {
			return true
		}
	}
	return false
}
