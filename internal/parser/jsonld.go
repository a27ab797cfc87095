package parser

import (
	"encoding/json"
	"strings"

	"github.com/maltedev/product-extractor/internal/document"
	"github.com/maltedev/product-extractor/internal/models"
)

func (e *Extractor) jsonLDTier() Tier {
	return Tier{
		Name: TierJSONLD,
		Extract: func(doc document.Document) *models.PartialProduct {
			for _, block := range doc.ScriptsOfType("application/ld+json") {
				var data any
				if err := json.Unmarshal([]byte(strings.TrimSpace(block)), &data); err != nil {
					e.logger.Debug("skipping malformed ld+json block", "error", err)
					continue
				}

				if product := findProduct(data); product != nil {
					return e.mapJSONLDProduct(product)
				}
			}
			return nil
		},
	}
}

// findProduct locates a Product node at the top level, inside an array or under @graph.
func findProduct(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if p := findProduct(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if isProductType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findProduct(graph)
		}
		if main, ok := node["mainEntity"]; ok {
			return findProduct(main)
		}
	}
	return nil
}

func isProductType(t any) bool {
	switch val := t.(type) {
	case string:
		return val == "Product" || strings.HasSuffix(val, "/Product")
	case []any:
		for _, item := range val {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

func (e *Extractor) mapJSONLDProduct(node map[string]any) *models.PartialProduct {
	n := e.numbers
	p := &models.PartialProduct{
		Title:       firstString(node, "name"),
		Description: firstString(node, "description"),
		ExternalID:  firstString(node, "sku", "productID", "mpn"),
	}

	switch img := node["image"].(type) {
	case string:
		p.Images = imageURLs([]any{img})
	case []any:
		p.Images = imageURLs(img, "url", "contentUrl")
	case map[string]any:
		p.Images = imageURLs([]any{img}, "url", "contentUrl")
	}

	offer := node["offers"]
	if list, ok := offer.([]any); ok && len(list) > 0 {
		offer = list[0]
	}
	if offer != nil {
		p.Price = firstNumber(n, "price", offer, "price", "lowPrice", "priceSpecification.price", "offers.0.price")
		p.Currency = firstString(offer, "priceCurrency", "priceSpecification.priceCurrency", "offers.0.priceCurrency")
		if seller := firstString(offer, "seller.name"); seller != "" {
			p.Seller = &models.Seller{Name: seller}
		}
	}

	p.Ratings = ratingsFrom(n, node,
		[]string{"aggregateRating.ratingValue"},
		[]string{"aggregateRating.reviewCount", "aggregateRating.ratingCount"},
	)

	if props, ok := node["additionalProperty"].([]any); ok {
		p.Specs = specPairs(props, []string{"name"}, []string{"value"})
	}

	return p
}
