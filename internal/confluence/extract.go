package confluence

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockTags are elements whose end marks a line break in the extracted
// text, so headings, paragraphs, and list items don't run together.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "dt": true, "dd": true,
	"table": true, "tr": true, "blockquote": true, "pre": true,
}

// ExtractText converts a page's storage-format markup into plain text
// suitable for embedding. The page title is prefixed so the embedding
// keeps topical context even if the body is later truncated.
//
// Returns false when the page has no body markup or the markup strips
// down to nothing.
func ExtractText(page *Page) (string, bool) {
	if page.Body == nil || page.Body.Storage == nil || page.Body.Storage.Value == "" {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body.Storage.Value))
	if err != nil {
		return "", false
	}

	var sb strings.Builder
	for _, node := range doc.Find("body").Nodes {
		appendNodeText(node, &sb)
	}

	text := normalizeWhitespace(sb.String())
	if text == "" {
		return "", false
	}

	return page.Title + "\n\n" + text, true
}

// appendNodeText walks the parsed markup depth-first, decoding text
// nodes and inserting line breaks at block boundaries.
func appendNodeText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
	case html.ElementNode:
		if n.Data == "br" {
			sb.WriteString("\n")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			appendNodeText(c, sb)
		}
		if blockTags[n.Data] {
			sb.WriteString("\n")
		}
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			appendNodeText(c, sb)
		}
	}
}

// normalizeWhitespace collapses runs of whitespace within each line and
// drops empty lines.
func normalizeWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}
	return strings.Join(lines, "\n")
}
