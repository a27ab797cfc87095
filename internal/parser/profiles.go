package parser

import (
	"github.com/maltedev/product-extractor/internal/marketplace"
)

var marketplaceGlobals = map[marketplace.ID][]pageGlobal{
	marketplace.AliExpress: {
		{name: "window.runParams", mapper: mapAliExpressRunParams},
		{name: "window._d_c_.DCData", mapper: mapAliExpressDCData},
	},
	marketplace.Alibaba: {
		{name: "window.detailData", mapper: mapAlibabaDetailData},
	},
	marketplace.Site1688: {
		{name: "window.__INIT_DATA__", mapper: map1688InitData},
	},
}

var marketplaceSelectors = map[marketplace.ID]SelectorSet{
	marketplace.AliExpress: aliExpressSelectors,
	marketplace.Alibaba:    alibabaSelectors,
	marketplace.Amazon:     amazonSelectors,
	marketplace.Site1688:   site1688Selectors,
}

// Profile builds the tier list for m: embedded globals (where the marketplace
// ships them), JSON-LD, CSS selector aliases, then page heuristics.
func (e *Extractor) Profile(m *marketplace.Marketplace) Profile {
	var tiers []Tier

	if globals, ok := marketplaceGlobals[m.ID]; ok {
		tiers = append(tiers, e.embeddedGlobalTier(globals))
	}

	tiers = append(tiers, e.jsonLDTier())

	selectors := genericSelectors
	if set, ok := marketplaceSelectors[m.ID]; ok {
		selectors = set.Merge(genericSelectors)
	}
	tiers = append(tiers, e.selectorTier(selectors))

	tiers = append(tiers, e.heuristicTier(m.CDNPattern))

	return Profile{
		Marketplace:  m.ID,
		Tiers:        tiers,
		ImageRewrite: m.RewriteImage,
	}
}
