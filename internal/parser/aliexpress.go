package parser

import (
	"github.com/maltedev/product-extractor/internal/models"
)

// runParams nests modules under "data" on most storefronts; newer pages use
// *Component keys at the top level.
var aeModules = []string{"data.", ""}

func mapAliExpressRunParams(n numbers, data map[string]any) *models.PartialProduct {
	p := &models.PartialProduct{
		Title: firstString(data, append(
			prefixed(aeModules, "titleModule.subject"),
			"productInfoComponent.subject",
		)...),
		Description: firstString(data, append(
			prefixed(aeModules, "pageModule.description"),
			"metaDataComponent.description",
		)...),
		ExternalID: firstString(data, append(
			prefixed(aeModules, "actionModule.productId", "storeModule.productId"),
			"productInfoComponent.id",
		)...),
	}

	activityPrice := append(
		prefixed(aeModules, "priceModule.minActivityAmount.value"),
		"priceComponent.discountPrice.minActivityAmount.value",
	)
	listPrice := append(
		prefixed(aeModules, "priceModule.minAmount.value"),
		"priceComponent.origPrice.minAmount.value",
	)

	if price := firstNumber(n, "price", data, activityPrice...); price != nil {
		p.Price = price
		p.OriginalPrice = firstNumber(n, "original_price", data, listPrice...)
	} else {
		p.Price = firstNumber(n, "price", data, listPrice...)
	}

	p.Currency = firstString(data, append(
		prefixed(aeModules,
			"priceModule.minActivityAmount.currency",
			"priceModule.minAmount.currency",
		),
		"currencyComponent.currencyCode",
		"priceComponent.discountPrice.minActivityAmount.currency",
		"priceComponent.origPrice.minAmount.currency",
	)...)

	p.Images = imageURLs(firstList(data, append(
		prefixed(aeModules, "imageModule.imagePathList"),
		"imageComponent.imagePathList",
	)...))

	p.Specs = specPairs(
		firstList(data, append(prefixed(aeModules, "specsModule.props"), "productPropComponent.props")...),
		[]string{"attrName"},
		[]string{"attrValue"},
	)

	p.Variations = variations(n,
		firstList(data, append(prefixed(aeModules, "skuModule.productSKUPropertyList"), "skuComponent.productSKUPropertyList")...),
		variationKeys{
			name:        []string{"skuPropertyName"},
			options:     []string{"skuPropertyValues"},
			optionName:  []string{"propertyValueDisplayName", "propertyValueName"},
			optionImage: []string{"skuPropertyImagePath"},
		},
	)

	if name := firstString(data, append(prefixed(aeModules, "storeModule.storeName"), "sellerComponent.storeName")...); name != "" {
		p.Seller = &models.Seller{
			Name:   name,
			Rating: firstNumber(n, "seller_rating", data, append(prefixed(aeModules, "storeModule.positiveRate"), "storeFeedbackComponent.sellerPositiveRate")...),
		}
		if followers := firstNumber(n, "seller_followers", data, append(prefixed(aeModules, "storeModule.followingNumber"), "sellerComponent.followingNumber")...); followers != nil {
			p.Seller.FollowerCount = models.Int(int(*followers))
		}
	}

	p.Ratings = ratingsFrom(n, data,
		append(prefixed(aeModules, "titleModule.feedbackRating.averageStar"), "feedbackComponent.evarageStar", "feedbackComponent.averageStar"),
		append(prefixed(aeModules, "titleModule.feedbackRating.totalValidNum"), "feedbackComponent.totalValidNum"),
	)

	return p
}

// mapAliExpressDCData reads the lighter _d_c_.DCData global, which mostly
// carries the image gallery.
func mapAliExpressDCData(n numbers, data map[string]any) *models.PartialProduct {
	return &models.PartialProduct{
		Title:  firstString(data, "subject", "title"),
		Images: imageURLs(firstList(data, "imagePathList", "summImagePathList")),
		Price:  firstNumber(n, "price", data, "minPrice", "price"),
	}
}

var aliExpressSelectors = SelectorSet{
	Title: []Sel{
		text(`h1[data-pl="product-title"]`),
		text(".product-title-text"),
		text(`[class*="title--wrap"] h1`),
	},
	Description: []Sel{
		text("#product-description"),
		text(`[class*="description--product-description"]`),
	},
	Price: []Sel{
		text(".product-price-value"),
		text(".product-price-current"),
		text(`[class*="price--currentPriceText"]`),
		text(`[class*="price--current"]`),
	},
	OriginalPrice: []Sel{
		text(".product-price-del .product-price-value"),
		text(`[class*="price--originalText"]`),
	},
	Images: []Sel{
		attr(".images-view-item img", "src"),
		attr(`[class*="slider--img"] img`, "src"),
		attr(".magnifier-image", "src"),
	},
	SpecRows: []SpecRow{
		{Row: ".product-prop", Name: ".property-title", Value: ".property-desc"},
		{Row: `[class*="specification--prop"]`, Name: `[class*="specification--title"]`, Value: `[class*="specification--desc"]`},
	},
	Seller: []Sel{
		text(".shop-name a"),
		text(`[class*="store-header--storeName"]`),
		text(`[class*="store-info--name"]`),
	},
	Rating: []Sel{
		text(".overview-rating-average"),
		text(`[class*="reviewer--rating"] strong`),
	},
	ReviewCount: []Sel{
		text(".product-reviewer-reviews"),
		text(`[class*="reviewer--reviews"]`),
	},
}
