// Package document wraps a parsed HTML page behind the narrow set of
// queries the extraction tiers and the image catalog need.
package document

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is one matched element.
type Node interface {
	Text() string
	Attr(name string) (string, bool)
	Find(selector string) []Node
}

// Document is a parsed page.
type Document interface {
	// FindAll returns every element matching selector in document order.
	FindAll(selector string) []Node
	// FindFirst returns the trimmed text of the first selector that yields non-empty text.
	FindFirst(selectors ...string) (string, bool)
	// AttrFirst returns the first non-empty attr value across selectors.
	AttrFirst(attr string, selectors ...string) (string, bool)
	// Scripts returns the bodies of inline scripts without a src attribute.
	Scripts() []string
	// ScriptsOfType returns script bodies whose type attribute equals typ.
	ScriptsOfType(typ string) []string
	HTML() string
	BaseURL() *url.URL
}

type goqueryDocument struct {
	doc  *goquery.Document
	raw  string
	base *url.URL
}

// Parse builds a Document from markup. base is used to resolve relative URLs
// and may be nil.
func Parse(markup string, base *url.URL) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &goqueryDocument{doc: doc, raw: markup, base: base}, nil
}

func (d *goqueryDocument) FindAll(selector string) []Node {
	return wrap(d.doc.Find(selector))
}

func (d *goqueryDocument) FindFirst(selectors ...string) (string, bool) {
	for _, selector := range selectors {
		var found string
		d.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = collapse(s.Text())
			return found == ""
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func (d *goqueryDocument) AttrFirst(attr string, selectors ...string) (string, bool) {
	for _, selector := range selectors {
		var found string
		d.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr(attr); ok {
				found = strings.TrimSpace(v)
			}
			return found == ""
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func (d *goqueryDocument) Scripts() []string {
	var scripts []string
	d.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if body := s.Text(); strings.TrimSpace(body) != "" {
			scripts = append(scripts, body)
		}
	})
	return scripts
}

func (d *goqueryDocument) ScriptsOfType(typ string) []string {
	var scripts []string
	d.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if t, _ := s.Attr("type"); strings.EqualFold(strings.TrimSpace(t), typ) {
			scripts = append(scripts, s.Text())
		}
	})
	return scripts
}

func (d *goqueryDocument) HTML() string {
	return d.raw
}

func (d *goqueryDocument) BaseURL() *url.URL {
	return d.base
}

type node struct {
	sel *goquery.Selection
}

func (n node) Text() string {
	return collapse(n.sel.Text())
}

func (n node) Attr(name string) (string, bool) {
	v, ok := n.sel.Attr(name)
	return strings.TrimSpace(v), ok
}

func (n node) Find(selector string) []Node {
	return wrap(n.sel.Find(selector))
}

func wrap(sel *goquery.Selection) []Node {
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, node{sel: s})
	})
	return nodes
}

// collapse trims and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
