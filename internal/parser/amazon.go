package parser

import (
	"strings"
)

var amazonSelectors = SelectorSet{
	Title: []Sel{
		text("#productTitle"),
		text("#title"),
	},
	Description: []Sel{
		text("#productDescription"),
		text("#feature-bullets"),
		text("#bookDescription_feature_div"),
	},
	Price: []Sel{
		text("#corePrice_feature_div .a-offscreen"),
		text("#corePriceDisplay_desktop_feature_div .a-price .a-offscreen"),
		text("span.a-price.a-text-price.a-size-medium.apexPriceToPay"),
		text("#priceblock_dealprice"),
		text("#priceblock_ourprice"),
		text(".a-price-range"),
		text(".a-price.a-text-price.header-price"),
		text(".a-price-whole"),
	},
	OriginalPrice: []Sel{
		text(`.a-price.a-text-price[data-a-strike="true"] .a-offscreen`),
		text(".basisPrice .a-offscreen"),
		text("#listPrice"),
	},
	Images: []Sel{
		attr("#altImages ul li img", "src"),
		attr("#landingImage", "data-old-hires"),
		attr("#landingImage", "src"),
		attr("#imgTagWrapperId img", "src"),
	},
	SpecRows: []SpecRow{
		{Row: "#productDetails_techSpec_section_1 tr", Name: "th", Value: "td"},
		{Row: "#productDetails_detailBullets_sections1 tr", Name: "th", Value: "td"},
		{Row: "#detailBullets_feature_div li", Name: "span.a-text-bold", Value: "span.a-list-item > span:not(.a-text-bold)"},
		{Row: ".a-fixed-left-grid-inner", Name: ".a-col-left .a-color-base", Value: ".a-col-right .a-color-base"},
	},
	Seller: []Sel{
		text("#sellerProfileTriggerId"),
		text("#merchant-info a"),
		text("#bylineInfo"),
	},
	Rating: []Sel{
		text("#acrPopover span.a-icon-alt"),
		text("span.a-icon-alt"),
	},
	ReviewCount: []Sel{
		text("#acrCustomerReviewText"),
	},
	CleanSeller: cleanAmazonByline,
}

// cleanAmazonByline strips the storefront boilerplate around a brand or seller name.
func cleanAmazonByline(s string) string {
	for _, prefix := range []string{"Marke: ", "Brand: ", "Besuchen Sie den ", "Visit the "} {
		s = strings.TrimPrefix(s, prefix)
	}
	for _, suffix := range []string{"-Store", " Store"} {
		s = strings.TrimSuffix(s, suffix)
	}
	return strings.TrimSpace(s)
}
