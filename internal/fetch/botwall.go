package fetch

import (
	"regexp"
	"strings"
)

// Challenge pages are small; full product pages that merely mention a
// captcha, in markup or in the product title, are far larger than this.
const botWallMaxBytes = 64 * 1024

// BotDetector recognises captcha and robot-check interstitials served with a 200.
type BotDetector struct {
	titlePatterns   []*regexp.Regexp
	captchaPatterns []*regexp.Regexp
}

func NewBotDetector() *BotDetector {
	return &BotDetector{
		titlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)robot check`),
			regexp.MustCompile(`(?i)captcha`),
			regexp.MustCompile(`(?i)access denied`),
			regexp.MustCompile(`(?i)attention required`),
			regexp.MustCompile(`(?i)just a moment`),
			regexp.MustCompile(`(?i)security verification`),
		},
		captchaPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)/errors/validatecaptcha`),
			regexp.MustCompile(`(?i)type the characters you see in this image`),
			regexp.MustCompile(`(?i)id="captchacharacters"`),
			regexp.MustCompile(`(?i)verify you are human`),
			regexp.MustCompile(`(?i)checking your browser`),
			regexp.MustCompile(`(?i)_____tmd_____/punish`),
			regexp.MustCompile(`(?i)x5secdata`),
			regexp.MustCompile(`(?i)nc_1_n1z`),
			regexp.MustCompile(`(?i)unusual traffic from your computer`),
		},
	}
}

var titleTag = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// Detect reports whether body is a bot wall and which pattern matched.
func (bd *BotDetector) Detect(body string) (bool, string) {
	if len(body) > botWallMaxBytes {
		return false, ""
	}

	if m := titleTag.FindStringSubmatch(body); m != nil {
		title := strings.TrimSpace(m[1])
		for _, p := range bd.titlePatterns {
			if p.MatchString(title) {
				return true, "title: " + p.String()
			}
		}
	}

	for _, p := range bd.captchaPatterns {
		if p.MatchString(body) {
			return true, p.String()
		}
	}

	return false, ""
}
