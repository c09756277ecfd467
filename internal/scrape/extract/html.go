package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContentSelectors lists elements stripped before pulling body text.
const nonContentSelectors = "script, style, nav, header, footer"

// BodyText extracts readable text from an HTML page, preferring <article>
// over the full <body>. Non-HTML input (reader services return markdown)
// comes back unchanged.
func BodyText(raw string) string {
	if !strings.Contains(raw, "<") || !strings.Contains(raw, ">") {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	article := doc.Find("article").First()
	if article.Length() > 0 {
		article.Find(nonContentSelectors).Remove()
		return strings.TrimSpace(article.Text())
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		body.Find(nonContentSelectors).Remove()
		if text := strings.TrimSpace(body.Text()); text != "" {
			return text
		}
	}
	return raw
}

// SameDomainLinks returns absolute links on the page that share the seed's
// host, deduplicated, capped at max, in document order.
func SameDomainLinks(seedURL string, raw string, max int) []string {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}

	seen := map[string]bool{seedURL: true}
	var links []string

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}

		resolved, err := seed.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		if resolved.Host != seed.Host {
			return true
		}

		resolved.Fragment = ""
		link := resolved.String()
		if seen[link] {
			return true
		}
		seen[link] = true
		links = append(links, link)

		return len(links) < max
	})

	return links
}
