package fetch

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Elements whose text never belongs to an excerpt.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"noscript": true,
	"header":   true,
	"footer":   true,
	"form":     true,
	"button":   true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"blockquote": true, "pre": true, "ul": true, "ol": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "tr": true,
}

// BlockText returns the readable text of a selection with line and paragraph
// structure preserved: <br> becomes a line break and block elements become
// paragraph breaks.
func BlockText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	return Normalize(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(collapseSpace(n.Data))
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
		if n.Data == "br" {
			b.WriteString("\n")
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteString("\n\n")
	}
}

// collapseSpace folds source formatting (indentation, newlines) into single spaces.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize trims every line, collapses inner whitespace and keeps paragraphs
// separated by exactly one blank line.
func Normalize(text string) string {
	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = inlineText(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

// inlineText collapses all whitespace, including line breaks, into single spaces.
func inlineText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
