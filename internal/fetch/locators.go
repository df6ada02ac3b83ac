package fetch

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"gospeldiary/internal/citations"
	"gospeldiary/internal/core"
)

// maxCitationRunes bounds how long a bare line may be and still count as a citation.
const maxCitationRunes = 120

// Locator finds the Gospel passage on a parsed readings page.
// Locate reports false when the locator has nothing to offer; a partial
// record is treated the same way by Extract.
type Locator struct {
	Name   string
	Locate func(doc *goquery.Document, base *url.URL) (core.ExcerptRecord, bool)
}

// DefaultLocators returns the locators tried against the USCCB readings page, in order.
func DefaultLocators() []Locator {
	return []Locator{
		{Name: "usccb-verse-block", Locate: locateVerseBlock},
		{Name: "gospel-heading", Locate: locateGospelHeading},
	}
}

// Extract runs the locators in order and returns the first complete record.
// Fields are never combined across locators.
func Extract(doc *goquery.Document, base *url.URL, locators []Locator) (core.ExcerptRecord, bool) {
	for _, loc := range locators {
		record, ok := loc.Locate(doc, base)
		if !ok || !record.Complete() {
			continue
		}
		record.Locator = loc.Name
		if base != nil {
			record.PageURL = base.String()
		}
		return record, true
	}
	return core.ExcerptRecord{}, false
}

// locateVerseBlock handles the current USCCB markup:
//
//	<div class="b-verse">
//	  <div class="content-header"><h3 class="name">Gospel</h3>
//	    <div class="address"><a href="...">Mt 5:1-12a</a></div></div>
//	  <div class="content-body">...</div>
//	</div>
//
// A block titled exactly "Gospel" wins over titles such as "Gospel at the
// Procession with Palms".
func locateVerseBlock(doc *goquery.Document, base *url.URL) (core.ExcerptRecord, bool) {
	for _, match := range []func(string) bool{isMassGospelHeading, isGospelHeading} {
		if record, ok := verseBlock(doc, base, match); ok {
			return record, true
		}
	}
	return core.ExcerptRecord{}, false
}

func verseBlock(doc *goquery.Document, base *url.URL, match func(string) bool) (core.ExcerptRecord, bool) {
	var record core.ExcerptRecord
	found := false

	doc.Find("div.b-verse").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		heading := inlineText(block.Find("h3.name, .content-header h3, h3").First().Text())
		if !match(heading) {
			return true
		}

		address := block.Find(".address").First()
		href, _ := address.Find("a[href]").First().Attr("href")

		candidate := core.ExcerptRecord{
			Citation:   inlineText(address.Text()),
			SourceLink: resolveLink(base, href),
			Body:       BlockText(block.Find(".content-body").First()),
		}
		if candidate.Complete() {
			record = candidate
			found = true
			return false
		}
		return true
	})

	return record, found
}

// locateGospelHeading handles pages without the verse-block wrapper: a heading
// reading "Gospel" followed by the citation and the passage itself.
func locateGospelHeading(doc *goquery.Document, base *url.URL) (core.ExcerptRecord, bool) {
	for _, match := range []func(string) bool{isMassGospelHeading, isGospelHeading} {
		if record, ok := headingBlock(doc, base, match); ok {
			return record, true
		}
	}
	return core.ExcerptRecord{}, false
}

func headingBlock(doc *goquery.Document, base *url.URL, match func(string) bool) (core.ExcerptRecord, bool) {
	var record core.ExcerptRecord
	found := false

	doc.Find("h1, h2, h3, h4, strong, b").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		text := inlineText(heading.Text())
		if !match(text) {
			return true
		}

		candidate := fromHeading(heading, text, base)
		if candidate.Complete() {
			record = candidate
			found = true
			return false
		}
		return true
	})

	return record, found
}

func fromHeading(heading *goquery.Selection, text string, base *url.URL) core.ExcerptRecord {
	anchor := heading
	if name := goquery.NodeName(heading); name == "strong" || name == "b" {
		// Inline labels are walked from their paragraph, whose remaining
		// text or first link may carry the citation.
		block := heading.Closest("p, div")
		if block.Length() == 0 {
			return core.ExcerptRecord{}
		}
		blockText := inlineText(block.Text())
		if !strings.HasPrefix(strings.ToLower(blockText), strings.ToLower(text)) {
			return core.ExcerptRecord{}
		}
		anchor, text = block, blockText
	}

	var citation, link string
	if a := anchor.Find("a[href]").First(); a.Length() > 0 {
		citation = inlineText(a.Text())
		href, _ := a.Attr("href")
		link = resolveLink(base, href)
	}
	if rest := headingRemainder(text); rest != "" && utf8.RuneCountInString(rest) < maxCitationRunes {
		citation = rest
	}

	var parts []string
	anchor.NextUntil("h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		body := BlockText(s)
		if body == "" {
			return
		}
		if link == "" {
			if a := s.Find("a[href]").AddBackFiltered("a[href]").First(); a.Length() > 0 {
				href, _ := a.Attr("href")
				link = resolveLink(base, href)
				linkText := inlineText(a.Text())
				if citation == "" {
					citation = linkText
				}
				// A paragraph holding only the link is not passage text.
				if body == linkText {
					return
				}
			}
		}
		if citation == "" && !strings.Contains(body, "\n") && utf8.RuneCountInString(body) < maxCitationRunes {
			citation = body
			return
		}
		if body == citation {
			return
		}
		parts = append(parts, body)
	})

	return core.ExcerptRecord{
		Citation:   citation,
		SourceLink: link,
		Body:       strings.Join(parts, "\n\n"),
	}
}

// isGospelHeading accepts "Gospel" and "Gospel Mt 5:1-12" but not the
// acclamation sections that precede it.
func isGospelHeading(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(lower, "gospel") {
		return false
	}
	return !strings.HasPrefix(lower, "gospel acclamation")
}

// isMassGospelHeading accepts a Gospel heading that is bare or followed only
// by its citation.
func isMassGospelHeading(text string) bool {
	if !isGospelHeading(text) {
		return false
	}
	rest := headingRemainder(text)
	if rest == "" {
		return true
	}
	ref, ok := citations.First(rest)
	return ok && strings.HasPrefix(rest, ref.Original)
}

// headingRemainder returns what follows "Gospel" in a heading, e.g. a citation.
func headingRemainder(text string) string {
	text = strings.TrimSpace(text)
	if len(text) < len("gospel") {
		return ""
	}
	rest := strings.TrimSpace(text[len("gospel"):])
	return strings.TrimSpace(strings.TrimLeft(rest, ":-–— "))
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return u.String()
}
