package server

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// droppedSummaryElements are removed together with their content.
const droppedSummaryElements = "script, style, iframe, object, embed, noscript, template"

// allowedSummaryElements mirrors the tags the summary prompt asks for plus a
// few harmless inline ones. Anything else is unwrapped to its content.
var allowedSummaryElements = map[string]struct{}{
	"h2":         {},
	"h3":         {},
	"h4":         {},
	"p":          {},
	"ul":         {},
	"ol":         {},
	"li":         {},
	"strong":     {},
	"em":         {},
	"b":          {},
	"i":          {},
	"br":         {},
	"blockquote": {},
}

func sanitizeSummary(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse summary: %w", err)
	}

	body := doc.Find("body")
	body.Find(droppedSummaryElements).Remove()
	removeComments(body)

	// Reverse document order visits children before their parents.
	elements := body.Find("*")
	for i := elements.Length() - 1; i >= 0; i-- {
		el := elements.Eq(i)

		if _, ok := allowedSummaryElements[goquery.NodeName(el)]; !ok {
			unwrap(el)
			continue
		}

		stripAttributes(el)
	}

	rendered, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}

	return strings.TrimSpace(rendered), nil
}

func removeComments(root *goquery.Selection) {
	root.Find("*").AddBack().Contents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Get(0).Type == html.CommentNode
	}).Remove()
}

func unwrap(el *goquery.Selection) {
	contents := el.Contents()
	if contents.Length() == 0 {
		el.Remove()
		return
	}

	el.ReplaceWithSelection(contents)
}

func stripAttributes(el *goquery.Selection) {
	node := el.Get(0)

	keys := make([]string, 0, len(node.Attr))
	for _, attr := range node.Attr {
		keys = append(keys, attr.Key)
	}

	for _, key := range keys {
		el.RemoveAttr(key)
	}
}
