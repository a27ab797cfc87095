package parser

import (
	"strings"

	"github.com/samber/lo"

	"github.com/maltedev/product-extractor/internal/document"
	"github.com/maltedev/product-extractor/internal/models"
)

// Sel reads the text of CSS, or the named attribute when Attr is set.
type Sel struct {
	CSS  string
	Attr string
}

func text(css string) Sel {
	return Sel{CSS: css}
}

func attr(css, name string) Sel {
	return Sel{CSS: css, Attr: name}
}

// SpecRow locates key/value rows of a specification table.
type SpecRow struct {
	Row   string
	Name  string
	Value string
}

// SelectorSet lists the CSS aliases for each field in priority order.
type SelectorSet struct {
	Title         []Sel
	Description   []Sel
	Price         []Sel
	OriginalPrice []Sel
	Currency      []Sel
	Images        []Sel
	SpecRows      []SpecRow
	Seller        []Sel
	Rating        []Sel
	ReviewCount   []Sel

	// CleanSeller normalises a raw seller string, e.g. stripping "Visit the ... Store".
	CleanSeller func(string) string
}

// Merge appends the aliases of other after those of s.
func (s SelectorSet) Merge(other SelectorSet) SelectorSet {
	merged := SelectorSet{
		Title:         append(append([]Sel(nil), s.Title...), other.Title...),
		Description:   append(append([]Sel(nil), s.Description...), other.Description...),
		Price:         append(append([]Sel(nil), s.Price...), other.Price...),
		OriginalPrice: append(append([]Sel(nil), s.OriginalPrice...), other.OriginalPrice...),
		Currency:      append(append([]Sel(nil), s.Currency...), other.Currency...),
		Images:        append(append([]Sel(nil), s.Images...), other.Images...),
		SpecRows:      append(append([]SpecRow(nil), s.SpecRows...), other.SpecRows...),
		Seller:        append(append([]Sel(nil), s.Seller...), other.Seller...),
		Rating:        append(append([]Sel(nil), s.Rating...), other.Rating...),
		ReviewCount:   append(append([]Sel(nil), s.ReviewCount...), other.ReviewCount...),
		CleanSeller:   s.CleanSeller,
	}
	if merged.CleanSeller == nil {
		merged.CleanSeller = other.CleanSeller
	}
	return merged
}

// first returns the first non-empty value across sels in order.
func first(doc document.Document, sels []Sel) string {
	for _, sel := range sels {
		var (
			v  string
			ok bool
		)
		if sel.Attr == "" {
			v, ok = doc.FindFirst(sel.CSS)
		} else {
			v, ok = doc.AttrFirst(sel.Attr, sel.CSS)
		}
		if ok && v != "" {
			return v
		}
	}
	return ""
}

// all returns every non-empty value of the first selector that yields any.
func all(doc document.Document, sels []Sel) []string {
	for _, sel := range sels {
		values := lo.FilterMap(doc.FindAll(sel.CSS), func(n document.Node, _ int) (string, bool) {
			if sel.Attr == "" {
				t := n.Text()
				return t, t != ""
			}
			v, ok := n.Attr(sel.Attr)
			return v, ok && v != ""
		})
		if len(values) > 0 {
			return lo.Uniq(values)
		}
	}
	return nil
}

func (e *Extractor) selectorTier(set SelectorSet) Tier {
	return Tier{
		Name: TierSelectors,
		Extract: func(doc document.Document) *models.PartialProduct {
			p := &models.PartialProduct{
				Title:       first(doc, set.Title),
				Description: first(doc, set.Description),
				Images:      all(doc, set.Images),
			}

			priceText := first(doc, set.Price)
			if priceText != "" {
				if price := e.numbers.float("price", priceText); price > 0 {
					p.Price = &price
				}
				p.Currency = DetectCurrency(priceText)
			}

			if original := first(doc, set.OriginalPrice); original != "" {
				if price := e.numbers.float("original_price", original); price > 0 {
					p.OriginalPrice = &price
				}
			}

			if p.Currency == "" {
				p.Currency = DetectCurrency(first(doc, set.Currency))
			}

			p.Specs = specRows(doc, set.SpecRows)

			if seller := first(doc, set.Seller); seller != "" {
				if set.CleanSeller != nil {
					seller = set.CleanSeller(seller)
				}
				if seller != "" {
					p.Seller = &models.Seller{Name: seller}
				}
			}

			ratings := &models.Ratings{}
			if rating := first(doc, set.Rating); rating != "" {
				ratings.Average = e.numbers.float("rating_average", rating)
			}
			if count := first(doc, set.ReviewCount); count != "" {
				ratings.Count = e.numbers.int("rating_count", count)
			}
			if ratings.Average > 0 || ratings.Count > 0 {
				p.Ratings = ratings
			}

			return p
		},
	}
}

func specRows(doc document.Document, rows []SpecRow) map[string]string {
	specs := make(map[string]string)
	for _, row := range rows {
		for _, n := range doc.FindAll(row.Row) {
			name := firstChildText(n, row.Name)
			value := firstChildText(n, row.Value)
			name = strings.TrimSpace(strings.TrimRight(name, ": \u200e\u200f"))
			if name == "" || value == "" {
				continue
			}
			if _, exists := specs[name]; !exists {
				specs[name] = value
			}
		}
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}

func firstChildText(n document.Node, selector string) string {
	for _, child := range n.Find(selector) {
		if t := child.Text(); t != "" {
			return t
		}
	}
	return ""
}

var genericSelectors = SelectorSet{
	Title: []Sel{
		text(`[itemprop="name"]`),
		text(".product-title"),
		text(".product_title"),
		text(".product-name"),
	},
	Description: []Sel{
		attr(`[itemprop="description"]`, "content"),
		text(`[itemprop="description"]`),
		text(".product-description"),
	},
	Price: []Sel{
		attr(`[itemprop="price"]`, "content"),
		text(`[itemprop="price"]`),
		attr(`meta[property="product:price:amount"]`, "content"),
		text(".price"),
	},
	Currency: []Sel{
		attr(`[itemprop="priceCurrency"]`, "content"),
		attr(`meta[property="product:price:currency"]`, "content"),
	},
	Images: []Sel{
		attr(`[itemprop="image"]`, "src"),
		attr(`[itemprop="image"]`, "content"),
	},
	SpecRows: []SpecRow{
		{Row: "table.specs tr", Name: "th", Value: "td"},
	},
	Rating: []Sel{
		attr(`[itemprop="ratingValue"]`, "content"),
		text(`[itemprop="ratingValue"]`),
	},
	ReviewCount: []Sel{
		attr(`[itemprop="reviewCount"]`, "content"),
		text(`[itemprop="reviewCount"]`),
	},
}
