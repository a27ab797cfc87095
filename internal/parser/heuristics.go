package parser

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/maltedev/product-extractor/internal/document"
	"github.com/maltedev/product-extractor/internal/models"
)

var (
	pricePattern = regexp.MustCompile(`(?:US\s?\$|[$€£¥￥]|\b(?:USD|EUR|GBP|CNY)\b)\s?\d[\d.,]*`)
	siteSuffix   = regexp.MustCompile(`(?i)\s+[-|–]\s+[^-|–]*(aliexpress|alibaba|amazon|1688)[^-|–]*$`)
)

// heuristicTier uses page-wide signals; cdn, when set, matches product image URLs in raw markup.
func (e *Extractor) heuristicTier(cdn *regexp.Regexp) Tier {
	return Tier{
		Name: TierHeuristics,
		Extract: func(doc document.Document) *models.PartialProduct {
			p := &models.PartialProduct{}

			if title, ok := doc.FindFirst("h1"); ok {
				p.Title = title
			} else if title, ok := doc.AttrFirst("content", `meta[property="og:title"]`); ok {
				p.Title = trimSiteSuffix(title)
			} else if title, ok := doc.FindFirst("title"); ok {
				p.Title = trimSiteSuffix(title)
			}

			if desc, ok := doc.AttrFirst("content", `meta[name="description"]`, `meta[property="og:description"]`); ok {
				p.Description = desc
			}

			if cdn != nil {
				raw := strings.ReplaceAll(doc.HTML(), `\/`, `/`)
				p.Images = lo.Uniq(cdn.FindAllString(raw, -1))
			}
			if len(p.Images) == 0 {
				if og, ok := doc.AttrFirst("content", `meta[property="og:image"]`); ok {
					p.Images = []string{og}
				}
			}

			if body, ok := doc.FindFirst("body"); ok {
				if match := pricePattern.FindString(body); match != "" {
					if price := e.numbers.float("price", match); price > 0 {
						p.Price = &price
						p.Currency = DetectCurrency(match)
					}
				}
			}

			return p
		},
	}
}

func trimSiteSuffix(title string) string {
	trimmed := strings.TrimSpace(siteSuffix.ReplaceAllString(title, ""))
	if trimmed == "" {
		return strings.TrimSpace(title)
	}
	return trimmed
}
