package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/maltedev/product-extractor/internal/document"
	"github.com/maltedev/product-extractor/internal/models"
)

var (
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_$][\w$]*)\s*:`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// globalMapper turns a decoded page global into product fields.
type globalMapper func(n numbers, data map[string]any) *models.PartialProduct

type pageGlobal struct {
	name   string
	mapper globalMapper
}

// embeddedGlobalTier reads the first decodable global among globals.
func (e *Extractor) embeddedGlobalTier(globals []pageGlobal) Tier {
	return Tier{
		Name: TierEmbeddedGlobal,
		Extract: func(doc document.Document) *models.PartialProduct {
			scripts := doc.Scripts()
			result := &models.PartialProduct{}
			found := false

			for _, g := range globals {
				for _, script := range scripts {
					data, ok := decodeGlobal(script, g.name)
					if !ok {
						continue
					}
					partial := g.mapper(e.numbers, data)
					if partial == nil {
						continue
					}
					found = true
					for _, f := range models.AllFields {
						if !result.Has(f) && partial.Has(f) {
							result.CopyField(f, partial)
						}
					}
				}
			}

			if !found {
				return nil
			}
			return result
		},
	}
}

// decodeGlobal finds `name = {...}` in script and decodes the object literal.
func decodeGlobal(script, name string) (map[string]any, bool) {
	offset := 0
	for {
		idx := strings.Index(script[offset:], name)
		if idx < 0 {
			return nil, false
		}
		pos := offset + idx + len(name)
		offset = pos

		rest := strings.TrimLeft(script[pos:], " \t\r\n")
		if !strings.HasPrefix(rest, "=") || strings.HasPrefix(rest, "==") {
			continue
		}

		start := strings.Index(rest, "{")
		if start < 0 {
			return nil, false
		}
		if strings.TrimSpace(rest[1:start]) != "" {
			continue
		}

		literal, ok := cutObject(rest[start:])
		if !ok {
			return nil, false
		}

		if data, ok := decodeObject(literal); ok {
			return data, true
		}
	}
}

// cutObject returns the balanced {...} prefix of s, honouring string literals.
func cutObject(s string) (string, bool) {
	depth := 0
	var quote byte
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}

	return "", false
}

func decodeObject(literal string) (map[string]any, bool) {
	var data map[string]any
	if err := json.Unmarshal([]byte(literal), &data); err == nil {
		return data, true
	}

	relaxed := bareKey.ReplaceAllString(literal, `$1"$2":`)
	relaxed = trailingComma.ReplaceAllString(relaxed, "$1")
	if err := json.Unmarshal([]byte(relaxed), &data); err == nil {
		return data, true
	}

	return nil, false
}

// lookup walks a dotted path through maps and arrays; numeric segments index arrays.
func lookup(v any, path string) any {
	for _, key := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			v = node[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			v = node[i]
		default:
			return nil
		}
	}
	return v
}

func firstValue(v any, paths ...string) any {
	for _, p := range paths {
		if found := lookup(v, p); found != nil {
			if s, ok := found.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			return found
		}
	}
	return nil
}

func asString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

func firstString(v any, paths ...string) string {
	return asString(firstValue(v, paths...))
}

// firstNumber resolves a numeric value that may be encoded as a JSON number or as text.
func firstNumber(n numbers, field string, v any, paths ...string) *float64 {
	switch val := firstValue(v, paths...).(type) {
	case float64:
		if val > 0 {
			return &val
		}
	case string:
		if f := n.float(field, val); f > 0 {
			return &f
		}
	}
	return nil
}

func firstList(v any, paths ...string) []any {
	for _, p := range paths {
		if list, ok := lookup(v, p).([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

// prefixed expands each path under every prefix, in prefix order.
func prefixed(prefixes []string, paths ...string) []string {
	out := make([]string, 0, len(prefixes)*len(paths))
	for _, prefix := range prefixes {
		for _, p := range paths {
			out = append(out, prefix+p)
		}
	}
	return out
}

// imageURLs accepts a list of strings or of objects carrying a URL under one of keys.
func imageURLs(list []any, keys ...string) []string {
	urls := lo.FilterMap(list, func(item any, _ int) (string, bool) {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			return s, s != ""
		}
		s := firstString(item, keys...)
		return s, s != ""
	})
	return lo.Uniq(urls)
}

// specPairs decodes a [{name, value}] style property list.
func specPairs(list []any, nameKeys, valueKeys []string) map[string]string {
	specs := make(map[string]string)
	for _, item := range list {
		name := firstString(item, nameKeys...)
		if name == "" {
			continue
		}

		var value string
		switch v := firstValue(item, valueKeys...).(type) {
		case []any:
			value = strings.Join(lo.FilterMap(v, func(x any, _ int) (string, bool) {
				s := asString(x)
				return s, s != ""
			}), ", ")
		default:
			value = asString(v)
		}

		if value != "" {
			if _, exists := specs[name]; !exists {
				specs[name] = value
			}
		}
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}

type variationKeys struct {
	name        []string
	options     []string
	optionName  []string
	optionImage []string
	optionPrice []string
}

func variations(n numbers, list []any, keys variationKeys) []models.Variation {
	var out []models.Variation
	for _, item := range list {
		name := firstString(item, keys.name...)
		if name == "" {
			continue
		}

		var options []models.VariationOption
		for _, opt := range firstList(item, keys.options...) {
			optName := firstString(opt, keys.optionName...)
			if optName == "" {
				continue
			}
			option := models.VariationOption{
				Name:  optName,
				Image: firstString(opt, keys.optionImage...),
			}
			if len(keys.optionPrice) > 0 {
				option.Price = firstNumber(n, "variation_price", opt, keys.optionPrice...)
			}
			options = append(options, option)
		}

		if len(options) > 0 {
			out = append(out, models.Variation{Name: name, Options: options})
		}
	}
	return out
}

func ratingsFrom(n numbers, v any, averagePaths, countPaths []string) *models.Ratings {
	r := &models.Ratings{}
	if avg := firstNumber(n, "rating_average", v, averagePaths...); avg != nil {
		r.Average = *avg
	}
	if count := firstNumber(n, "rating_count", v, countPaths...); count != nil {
		r.Count = int(*count)
	}
	if r.Average == 0 && r.Count == 0 {
		return nil
	}
	return r
}
