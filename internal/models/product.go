package models

// ExtractedImage is one catalogued image of a product page.
type ExtractedImage struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Alt      string `json:"alt,omitempty"`
}

// CanonicalProduct is the marketplace-agnostic record produced by one extraction.
// It is built once by the normalizer and never mutated afterwards.
type CanonicalProduct struct {
	ID          string            `json:"id"`
	Marketplace string            `json:"marketplace"`
	SourceURL   string            `json:"source_url"`
	ExternalID  string            `json:"external_id,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Price       Price             `json:"price"`
	Images      []ExtractedImage  `json:"images"`
	Specs       map[string]string `json:"specs"`
	Variations  []Variation       `json:"variations"`
	Shipping    Shipping          `json:"shipping"`
	Seller      Seller            `json:"seller"`
	Ratings     Ratings           `json:"ratings"`
}

type Price struct {
	Current  float64  `json:"current"`
	Original *float64 `json:"original,omitempty"`
	Currency string   `json:"currency"`
}

type Variation struct {
	Name    string            `json:"name"`
	Options []VariationOption `json:"options"`
}

type VariationOption struct {
	Name  string   `json:"name"`
	Image string   `json:"image,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

type Shipping struct {
	Methods     []ShippingMethod `json:"methods"`
	Destination string           `json:"destination"`
}

type ShippingMethod struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Duration string  `json:"duration"`
}

type Seller struct {
	Name          string   `json:"name"`
	Rating        *float64 `json:"rating,omitempty"`
	FollowerCount *int     `json:"follower_count,omitempty"`
}

type Ratings struct {
	Average      float64     `json:"average"`
	Count        int         `json:"count"`
	Distribution map[int]int `json:"distribution"`
}

// Missing lists the fields an extraction must resolve before the product is
// returned: a title and at least one image. Price data may stay partial.
func (p *CanonicalProduct) Missing() []string {
	var missing []string

	if p.Title == "" {
		missing = append(missing, "title")
	}

	if len(p.Images) == 0 {
		missing = append(missing, "images")
	}

	return missing
}
