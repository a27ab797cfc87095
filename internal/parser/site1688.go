package parser

import (
	"github.com/maltedev/product-extractor/internal/models"
)

func map1688InitData(n numbers, data map[string]any) *models.PartialProduct {
	p := &models.PartialProduct{
		Title:      firstString(data, "globalData.tempModel.offerTitle", "data.offerTitle"),
		ExternalID: firstString(data, "globalData.tempModel.offerId", "data.offerId"),
	}

	p.Price = firstNumber(n, "price", data,
		"globalData.orderParamModel.orderParam.skuParam.skuRangePrices.0.price",
		"globalData.skuModel.skuPriceScale",
		"globalData.tempModel.priceDisplay",
	)
	if p.Price != nil {
		p.Currency = "CNY"
	}

	p.Images = imageURLs(firstList(data, "globalData.images", "data.images"), imageKeys...)

	p.Specs = specPairs(
		firstList(data, "globalData.offerDetail.featureAttributes", "data.featureAttributes"),
		[]string{"name", "prop"},
		[]string{"value", "values"},
	)

	p.Variations = variations(n,
		firstList(data, "globalData.skuModel.skuProps"),
		variationKeys{
			name:        []string{"prop"},
			options:     []string{"value"},
			optionName:  []string{"name"},
			optionImage: []string{"imageUrl"},
		},
	)

	if name := firstString(data, "globalData.tempModel.companyName", "globalData.offerBaseInfo.sellerLoginId"); name != "" {
		p.Seller = &models.Seller{Name: name}
	}

	return p
}

var site1688Selectors = SelectorSet{
	Title: []Sel{
		text(".title-text"),
		text(".d-title h1"),
		text(".od-pc-offer-title-contain h1"),
	},
	Price: []Sel{
		text(".price-text"),
		text(".price-now"),
		text(`[class*="price-content"] .price`),
	},
	Images: []Sel{
		attr(".detail-gallery-img", "src"),
		attr(".vertical-img img", "src"),
		attr(".od-gallery-img", "src"),
	},
	SpecRows: []SpecRow{
		{Row: ".offer-attr-item", Name: ".offer-attr-item-name", Value: ".offer-attr-item-value"},
		{Row: ".od-pc-attribute tr", Name: "th", Value: "td"},
	},
	Seller: []Sel{
		text(".company-name"),
		text(".shop-company-name"),
	},
}
