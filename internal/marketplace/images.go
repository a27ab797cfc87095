package marketplace

import "regexp"

var (
	amazonSizeModifier = regexp.MustCompile(`\._[A-Z0-9_,]+_\.(jpe?g|png|webp)$`)
	aliSizeSuffix      = regexp.MustCompile(`(\.(?:jpe?g|png|webp))_[^/]+$`)
	cbuSizeSuffix      = regexp.MustCompile(`\.\d+x\d+(\.(?:jpe?g|png|webp))$`)
)

// RewriteImage upgrades a thumbnail URL to the full-size variant served by the
// marketplace CDN. URLs the marketplace does not recognise are returned as-is.
func (m *Marketplace) RewriteImage(raw string) string {
	switch m.ID {
	case Amazon:
		// _AC_US40_ thumbnails become _AC_SL1500_
		return amazonSizeModifier.ReplaceAllString(raw, "._AC_SL1500_.$1")
	case AliExpress, Alibaba:
		return aliSizeSuffix.ReplaceAllString(raw, "$1")
	case Site1688:
		return cbuSizeSuffix.ReplaceAllString(raw, "$1")
	}
	return raw
}
