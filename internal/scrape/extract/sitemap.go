package extract

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// xmlURLSet is the root element of a standard sitemap XML file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc string `xml:"loc"`
}

// SitemapLocations parses sitemap XML and returns the contained <loc> URLs.
// Only http(s) locations are accepted, capped at max, in document order.
func SitemapLocations(body string, max int) ([]string, error) {
	var urlset xmlURLSet
	if err := xml.Unmarshal([]byte(body), &urlset); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	var locations []string
	for _, entry := range urlset.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
			continue
		}
		locations = append(locations, loc)
		if len(locations) == max {
			break
		}
	}
	return locations, nil
}
