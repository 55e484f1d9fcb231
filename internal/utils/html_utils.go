package utils

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// StripTags removes every tag from s, leaving trimmed plain text. Used on
// titles, comments and other fields that are never rendered as HTML.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// EnhanceHTMLContent adds loading and referrer attributes to images and turns
// bare links to maps into plain anchors that open in a new tab.
func EnhanceHTMLContent(htmlStr string) string {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
		if _, ok := s.Attr("alt"); !ok {
			s.SetAttr("alt", "grievance photo")
		}
	})

	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isMapLink(href) {
			s.AddClass("map-link")
		}
	})

	out, _ := doc.Find("body").Html()
	if out == "" {
		out, _ = doc.Html()
	}
	return out
}

func isMapLink(href string) bool {
	return strings.Contains(href, "google.com/maps") ||
		strings.Contains(href, "maps.app.goo.gl") ||
		strings.Contains(href, "openstreetmap.org")
}

// ExtractText returns the visible text of an HTML fragment, collapsing
// whitespace. Feed summaries pass through here before being cached.
func ExtractText(htmlStr string, max int) string {
	if htmlStr == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return StripTags(htmlStr)
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	if max > 0 {
		if r := []rune(text); len(r) > max {
			text = string(r[:max]) + "..."
		}
	}
	return text
}
