package models

// Field names one attribute of a product that the extractor resolves independently.
type Field string

const (
	FieldTitle         Field = "title"
	FieldDescription   Field = "description"
	FieldPrice         Field = "price"
	FieldOriginalPrice Field = "original_price"
	FieldCurrency      Field = "currency"
	FieldImages        Field = "images"
	FieldSpecs         Field = "specs"
	FieldVariations    Field = "variations"
	FieldShipping      Field = "shipping"
	FieldSeller        Field = "seller"
	FieldRatings       Field = "ratings"
	FieldExternalID    Field = "external_id"
)

// AllFields lists every field in the order the extractor reports them.
var AllFields = []Field{
	FieldTitle,
	FieldDescription,
	FieldPrice,
	FieldOriginalPrice,
	FieldCurrency,
	FieldImages,
	FieldSpecs,
	FieldVariations,
	FieldShipping,
	FieldSeller,
	FieldRatings,
	FieldExternalID,
}

// PartialProduct holds whatever the extraction tiers managed to resolve.
// Zero values mean "unresolved"; images are raw URLs as found in the page.
type PartialProduct struct {
	Title         string
	Description   string
	Price         *float64
	OriginalPrice *float64
	Currency      string
	Images        []string
	ImageAlts     map[string]string
	Specs         map[string]string
	Variations    []Variation
	Shipping      *Shipping
	Seller        *Seller
	Ratings       *Ratings
	ExternalID    string

	// ResolvedBy maps each resolved field to the name of the tier that filled it.
	ResolvedBy map[Field]string
}

// Has reports whether the field carries a value.
func (p *PartialProduct) Has(f Field) bool {
	if p == nil {
		return false
	}

	switch f {
	case FieldTitle:
		return p.Title != ""
	case FieldDescription:
		return p.Description != ""
	case FieldPrice:
		return p.Price != nil
	case FieldOriginalPrice:
		return p.OriginalPrice != nil
	case FieldCurrency:
		return p.Currency != ""
	case FieldImages:
		return len(p.Images) > 0
	case FieldSpecs:
		return len(p.Specs) > 0
	case FieldVariations:
		return len(p.Variations) > 0
	case FieldShipping:
		return p.Shipping != nil && len(p.Shipping.Methods) > 0
	case FieldSeller:
		return p.Seller != nil && p.Seller.Name != ""
	case FieldRatings:
		return p.Ratings != nil && (p.Ratings.Average > 0 || p.Ratings.Count > 0)
	case FieldExternalID:
		return p.ExternalID != ""
	}

	return false
}

// CopyField copies one field from src into p.
func (p *PartialProduct) CopyField(f Field, src *PartialProduct) {
	switch f {
	case FieldTitle:
		p.Title = src.Title
	case FieldDescription:
		p.Description = src.Description
	case FieldPrice:
		p.Price = src.Price
	case FieldOriginalPrice:
		p.OriginalPrice = src.OriginalPrice
	case FieldCurrency:
		p.Currency = src.Currency
	case FieldImages:
		p.Images = append([]string(nil), src.Images...)
		if len(src.ImageAlts) > 0 {
			p.ImageAlts = make(map[string]string, len(src.ImageAlts))
			for k, v := range src.ImageAlts {
				p.ImageAlts[k] = v
			}
		}
	case FieldSpecs:
		p.Specs = make(map[string]string, len(src.Specs))
		for k, v := range src.Specs {
			p.Specs[k] = v
		}
	case FieldVariations:
		p.Variations = append([]Variation(nil), src.Variations...)
	case FieldShipping:
		s := *src.Shipping
		p.Shipping = &s
	case FieldSeller:
		s := *src.Seller
		p.Seller = &s
	case FieldRatings:
		r := *src.Ratings
		p.Ratings = &r
	case FieldExternalID:
		p.ExternalID = src.ExternalID
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
