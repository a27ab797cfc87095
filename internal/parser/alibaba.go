package parser

import (
	"github.com/maltedev/product-extractor/internal/models"
)

var imageKeys = []string{"imageUrl.big", "imageUrl", "big", "fullPathImageURI", "originalImageURI", "url", "src"}

func mapAlibabaDetailData(n numbers, data map[string]any) *models.PartialProduct {
	p := &models.PartialProduct{
		Title:      firstString(data, "globalData.product.subject", "product.subject"),
		ExternalID: firstString(data, "globalData.product.productId", "product.productId"),
		Currency:   firstString(data, "globalData.product.price.currency", "globalData.trade.currency"),
	}

	p.Price = firstNumber(n, "price", data,
		"globalData.product.price.productLadderPrices.0.price",
		"globalData.product.price.productRangePrices.dollarPriceRangeLow",
		"globalData.product.price.productRangePrices.priceRangeLow",
	)

	p.Images = imageURLs(firstList(data,
		"globalData.product.mediaItems",
		"globalData.product.images",
	), imageKeys...)

	p.Specs = specPairs(
		firstList(data,
			"globalData.product.productBasicProperties",
			"globalData.product.productKeyIndustryProperties",
		),
		[]string{"attrName", "name"},
		[]string{"attrValue", "value"},
	)

	p.Variations = variations(n,
		firstList(data, "globalData.product.sku.skuAttrs"),
		variationKeys{
			name:        []string{"name"},
			options:     []string{"values"},
			optionName:  []string{"name"},
			optionImage: []string{"largeImage", "originImage", "imageUrl"},
		},
	)

	if name := firstString(data, "globalData.seller.companyName", "globalData.seller.supplierName"); name != "" {
		p.Seller = &models.Seller{
			Name:   name,
			Rating: firstNumber(n, "seller_rating", data, "globalData.seller.supplierRatingScore", "globalData.seller.companyRating"),
		}
	}

	p.Ratings = ratingsFrom(n, data,
		[]string{"globalData.review.averageStar", "globalData.product.reviewScore"},
		[]string{"globalData.review.totalReviews", "globalData.product.reviewCount"},
	)

	return p
}

var alibabaSelectors = SelectorSet{
	Title: []Sel{
		text(".product-title h1"),
		text(".module-pdp-title h1"),
		text(`[class*="product-title"] h1`),
	},
	Description: []Sel{
		text(".do-overview"),
		text(`[class*="product-overview"]`),
	},
	Price: []Sel{
		text(".price-item .price"),
		text(".promotion-price .price"),
		text(`[class*="price-list"] .price`),
		text(`[class*="price-range"]`),
	},
	Images: []Sel{
		attr(".main-image img", "src"),
		attr(".detail-next-slick-slide img", "src"),
		attr(`[class*="main-image"] img`, "src"),
	},
	SpecRows: []SpecRow{
		{Row: ".do-entry-item", Name: ".do-entry-item-key", Value: ".do-entry-item-val"},
		{Row: `[class*="attribute-item"]`, Name: `[class*="attribute-left"]`, Value: `[class*="attribute-right"]`},
	},
	Seller: []Sel{
		text(".company-name a"),
		text(`[class*="company-name"]`),
	},
	Rating: []Sel{
		text(`[class*="review-score"]`),
	},
	ReviewCount: []Sel{
		text(`[class*="review-count"]`),
	},
}
