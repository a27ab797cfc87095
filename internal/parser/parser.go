package parser

import (
	"fmt"
	"log/slog"

	"github.com/maltedev/product-extractor/internal/document"
	"github.com/maltedev/product-extractor/internal/marketplace"
	"github.com/maltedev/product-extractor/internal/metrics"
	"github.com/maltedev/product-extractor/internal/models"
)

const (
	TierEmbeddedGlobal = "embedded-global"
	TierJSONLD         = "json-ld"
	TierSelectors      = "selectors"
	TierHeuristics     = "heuristics"
)

// Tier is one extraction strategy. It returns whatever fields it could find, or nil.
type Tier struct {
	Name    string
	Extract func(doc document.Document) *models.PartialProduct
}

// Profile is the ordered tier list used for one marketplace.
type Profile struct {
	Marketplace  marketplace.ID
	Tiers        []Tier
	ImageRewrite func(string) string
}

type Extractor struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	numbers numbers
}

func NewExtractor(logger *slog.Logger, m *metrics.Metrics) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "parser")

	return &Extractor{
		logger:  logger,
		metrics: m,
		numbers: numbers{logger: logger},
	}
}

// Extract runs the profile's tiers in order. Each field keeps the value of the
// first tier that resolved it.
func (e *Extractor) Extract(doc document.Document, profile Profile) *models.PartialProduct {
	b := newFieldBuilder()

	for _, tier := range profile.Tiers {
		if b.complete() {
			break
		}

		partial := e.runTier(tier, doc)
		if partial == nil {
			continue
		}

		resolved := b.merge(tier.Name, partial)
		if len(resolved) > 0 {
			e.logger.Debug("tier resolved fields",
				"marketplace", profile.Marketplace,
				"tier", tier.Name,
				"fields", resolved,
			)
		}
	}

	product := b.product
	if profile.ImageRewrite != nil {
		for i, img := range product.Images {
			rewritten := profile.ImageRewrite(img)
			if alt, ok := product.ImageAlts[img]; ok && rewritten != img {
				product.ImageAlts[rewritten] = alt
			}
			product.Images[i] = rewritten
		}
	}

	for _, f := range models.AllFields {
		if tier, ok := product.ResolvedBy[f]; ok {
			e.metrics.ObserveField(string(f), tier)
		}
	}

	return product
}

func (e *Extractor) runTier(tier Tier, doc document.Document) (partial *models.PartialProduct) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction tier failed",
				"tier", tier.Name,
				"error", fmt.Sprint(r),
			)
			partial = nil
		}
	}()

	return tier.Extract(doc)
}

// fieldBuilder accumulates a PartialProduct where every field moves from
// unresolved to resolved at most once.
type fieldBuilder struct {
	product *models.PartialProduct
}

func newFieldBuilder() *fieldBuilder {
	return &fieldBuilder{
		product: &models.PartialProduct{ResolvedBy: make(map[models.Field]string)},
	}
}

func (b *fieldBuilder) merge(tier string, src *models.PartialProduct) []models.Field {
	var resolved []models.Field
	for _, f := range models.AllFields {
		if b.product.Has(f) || !src.Has(f) {
			continue
		}
		b.product.CopyField(f, src)
		b.product.ResolvedBy[f] = tier
		resolved = append(resolved, f)
	}
	return resolved
}

func (b *fieldBuilder) complete() bool {
	for _, f := range models.AllFields {
		if !b.product.Has(f) {
			return false
		}
	}
	return true
}
