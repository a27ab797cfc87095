package normalize

import (
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/maltedev/product-extractor/internal/catalog"
	"github.com/maltedev/product-extractor/internal/marketplace"
	"github.com/maltedev/product-extractor/internal/models"
)

const (
	DefaultCurrency       = "USD"
	DefaultSeller         = "Unknown Seller"
	DefaultDestination    = "Worldwide"
	DefaultShippingMethod = "Standard Shipping"
)

// Normalize builds a CanonicalProduct from partial with per-marketplace defaults
// for every unresolved field. It does not mutate partial.
func Normalize(partial *models.PartialProduct, id marketplace.ID, base *url.URL) models.CanonicalProduct {
	if partial == nil {
		partial = &models.PartialProduct{}
	}
	m := marketplace.Lookup(id)

	product := models.CanonicalProduct{
		Marketplace: string(m.ID),
		ExternalID:  strings.TrimSpace(partial.ExternalID),
		Title:       strings.TrimSpace(partial.Title),
		Description: strings.Join(strings.Fields(partial.Description), " "),
		Price:       normalizePrice(partial),
		Images:      catalog.FromURLs(partial.Images, base, partial.ImageAlts),
		Specs:       normalizeSpecs(partial.Specs),
		Variations:  normalizeVariations(partial.Variations),
		Shipping:    normalizeShipping(partial.Shipping, m),
		Seller:      normalizeSeller(partial.Seller),
		Ratings:     normalizeRatings(partial.Ratings),
	}

	if base != nil {
		product.SourceURL = base.String()
	}

	return product
}

func normalizePrice(p *models.PartialProduct) models.Price {
	price := models.Price{Currency: strings.ToUpper(strings.TrimSpace(p.Currency))}
	if price.Currency == "" {
		price.Currency = DefaultCurrency
	}

	if p.Price != nil && *p.Price > 0 {
		price.Current = *p.Price
	}

	if p.OriginalPrice != nil && *p.OriginalPrice > price.Current {
		price.Original = models.Float(*p.OriginalPrice)
	}

	return price
}

func normalizeSpecs(specs map[string]string) map[string]string {
	out := make(map[string]string, len(specs))
	for k, v := range specs {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func normalizeVariations(variations []models.Variation) []models.Variation {
	out := lo.FilterMap(variations, func(v models.Variation, _ int) (models.Variation, bool) {
		options := lo.FilterMap(v.Options, func(o models.VariationOption, _ int) (models.VariationOption, bool) {
			o.Name = strings.TrimSpace(o.Name)
			if o.Price != nil {
				o.Price = models.Float(lo.Max([]float64{*o.Price, 0}))
			}
			return o, o.Name != ""
		})
		options = lo.UniqBy(options, func(o models.VariationOption) string { return o.Name })

		return models.Variation{Name: strings.TrimSpace(v.Name), Options: options},
			strings.TrimSpace(v.Name) != "" && len(options) > 0
	})

	if out == nil {
		return []models.Variation{}
	}
	return out
}

func normalizeShipping(s *models.Shipping, m *marketplace.Marketplace) models.Shipping {
	shipping := models.Shipping{Destination: DefaultDestination}

	if s != nil {
		if d := strings.TrimSpace(s.Destination); d != "" {
			shipping.Destination = d
		}
		shipping.Methods = lo.FilterMap(s.Methods, func(method models.ShippingMethod, _ int) (models.ShippingMethod, bool) {
			method.Name = strings.TrimSpace(method.Name)
			method.Price = lo.Max([]float64{method.Price, 0})
			if method.Duration == "" {
				method.Duration = m.ShippingDefault
			}
			return method, method.Name != ""
		})
	}

	if len(shipping.Methods) == 0 {
		shipping.Methods = []models.ShippingMethod{{
			Name:     DefaultShippingMethod,
			Price:    0,
			Duration: m.ShippingDefault,
		}}
	}

	return shipping
}

func normalizeSeller(s *models.Seller) models.Seller {
	seller := models.Seller{Name: DefaultSeller}
	if s == nil {
		return seller
	}

	if name := strings.TrimSpace(s.Name); name != "" {
		seller.Name = name
	}
	if s.Rating != nil {
		seller.Rating = models.Float(*s.Rating)
	}
	if s.FollowerCount != nil {
		seller.FollowerCount = models.Int(*s.FollowerCount)
	}
	return seller
}

func normalizeRatings(r *models.Ratings) models.Ratings {
	ratings := models.Ratings{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	if r == nil {
		return ratings
	}

	ratings.Average = lo.Clamp(r.Average, 0, 5)
	ratings.Count = lo.Max([]int{r.Count, 0})
	for star, count := range r.Distribution {
		if star >= 1 && star <= 5 {
			ratings.Distribution[star] = count
		}
	}
	return ratings
}
