package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockTags are elements whose boundaries separate words when text is
// flattened. Without them "<p>foo</p><p>bar</p>" would read "foobar".
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"table": true, "tr": true, "td": true, "th": true,
	"blockquote": true, "pre": true, "figcaption": true, "figure": true,
	"br": true, "hr": true,
}

// blockText flattens sel into plain text, inserting word breaks at
// block-element boundaries and collapsing all whitespace runs.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		appendNodeText(&b, n)
	}
	return collapseWhitespace(b.String())
}

func appendNodeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if blockTags[n.Data] {
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendNodeText(b, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteByte(' ')
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
