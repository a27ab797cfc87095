package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	numericToken = regexp.MustCompile(`\d[\d.,]*`)
	isoCurrency  = regexp.MustCompile(`\b(USD|EUR|GBP|CNY|RMB|JPY|RUB|CAD|AUD|BRL|INR)\b`)
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US $", "USD"},
	{"US$", "USD"},
	{"R$", "BRL"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"￥", "CNY"},
	{"¥", "CNY"},
	{"₽", "RUB"},
	{"₹", "INR"},
	{"$", "USD"},
}

// ParseNumber reads the first numeric token of s. Thousands and decimal
// separators are resolved by position; anything unparsable yields 0.
func ParseNumber(s string) float64 {
	token := numericToken.FindString(s)
	if token == "" {
		return 0
	}
	token = strings.TrimRight(token, ".,")

	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			token = strings.ReplaceAll(token, ".", "")
			token = strings.Replace(token, ",", ".", 1)
		} else {
			// 1,234.56
			token = strings.ReplaceAll(token, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(token, ",") > 1 || grouped(token, ",") {
			token = strings.ReplaceAll(token, ",", "")
		} else {
			token = strings.Replace(token, ",", ".", 1)
		}
	case lastDot >= 0:
		// 12.345 and 1.299 are grouped thousands; 4.5 and 0.125 are decimals
		if strings.Count(token, ".") > 1 || grouped(token, ".") {
			token = strings.ReplaceAll(token, ".", "")
		}
	}

	val, _ := strconv.ParseFloat(token, 64)
	return val
}

// grouped reports whether sep splits token into digit groups of the form
// 1-3 digits without a leading zero followed by groups of exactly three.
func grouped(token, sep string) bool {
	parts := strings.Split(token, sep)
	if len(parts) < 2 {
		return false
	}
	if lead := parts[0]; len(lead) == 0 || len(lead) > 3 || lead[0] == '0' {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// DetectCurrency returns the ISO code for the first currency marker in s.
func DetectCurrency(s string) string {
	if m := isoCurrency.FindString(strings.ToUpper(s)); m != "" {
		if m == "RMB" {
			return "CNY"
		}
		return m
	}

	for _, c := range currencySymbols {
		if strings.Contains(s, c.symbol) {
			return c.code
		}
	}

	return ""
}

// numbers applies ParseNumber and reports text that carried no usable value.
type numbers struct {
	logger *slog.Logger
}

func (n numbers) float(field, text string) float64 {
	val := ParseNumber(text)
	if val == 0 && strings.TrimSpace(text) != "" {
		n.logger.Warn("numeric field unparsable", "field", field, "text", truncate(text, 80))
	}
	return val
}

func (n numbers) int(field, text string) int {
	return int(n.float(field, text))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
