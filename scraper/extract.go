package scraper

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/jbscrape/pipeline"
)

var (
	ebayLinkSelectors  = []string{`a[href*="/itm/"]`, "a.s-card__link", "a"}
	ebayTitleSelectors = []string{".s-card__title", ".s-item__title", `[class*="title"]`, "h3", "span"}
	ebayPriceSelectors = []string{".s-card__price", ".s-item__price", `[class*="price"]`}
)

// minTitleLength skips badge and label spans that precede the real title.
const minTitleLength = 6

type ebayItem struct {
	ID    string
	URL   string
	Title string
	Price string
}

// parseEbayResults reads the items of a search result page. abs resolves
// relative links against the page URL.
func parseEbayResults(doc *goquery.Selection, abs func(string) string) []ebayItem {
	items := doc.Find("li[data-listingid]")
	if items.Length() == 0 {
		items = doc.Find(".srp-list > li.s-card")
	}

	var out []ebayItem
	items.Each(func(_ int, s *goquery.Selection) {
		item := ebayItem{ID: strings.TrimSpace(s.AttrOr("data-listingid", ""))}

		for _, sel := range ebayLinkSelectors {
			href, ok := s.Find(sel).First().Attr("href")
			if !ok || !strings.Contains(href, "/itm/") {
				continue
			}
			item.URL = abs(href)
			if item.ID == "" {
				item.ID = pipeline.IdentifierFromURL(item.URL)
			}
			break
		}

		for _, sel := range ebayTitleSelectors {
			text := strings.TrimSpace(s.Find(sel).First().Text())
			if len(text) >= minTitleLength {
				item.Title = text
				break
			}
		}

		for _, sel := range ebayPriceSelectors {
			text := strings.TrimSpace(s.Find(sel).First().Text())
			if strings.Contains(text, "$") {
				item.Price = firstLine(text)
				break
			}
		}

		if item.Title != "" {
			out = append(out, item)
		}
	})
	return out
}

// swappaListingLinks returns listing detail links in page order.
func swappaListingLinks(doc *goquery.Selection, abs func(string) string) []string {
	var links []string
	doc.Find(`a[href*="/listing/view/"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, abs(href))
		}
	})
	return links
}

// swappaSellerText joins the seller-authored parts of a listing page: the
// JSON-LD description, the damage description and the heading. Buyer
// comments are deliberately left out.
func swappaSellerText(doc *goquery.Selection) string {
	var parts []string

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, jsonLDDescriptions(s.Text())...)
	})

	doc.Find("h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), "Damage Description") {
			return true
		}
		if text := strings.TrimSpace(s.NextAllFiltered("div").First().Text()); text != "" {
			parts = append(parts, text)
		}
		return false
	})

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		parts = append(parts, h1)
	}

	return strings.Join(parts, " ")
}

// swappaPrice reads the schema.org price, preferring the content attribute.
func swappaPrice(doc *goquery.Selection) string {
	el := doc.Find(`[itemprop="price"]`).First()
	if el.Length() == 0 {
		return ""
	}
	price := strings.TrimSpace(el.AttrOr("content", ""))
	if price == "" {
		price = strings.TrimSpace(el.Text())
	}
	if price == "" {
		return ""
	}
	return "$" + strings.TrimPrefix(price, "$")
}

// jsonLDDescriptions returns every "description" string in a JSON-LD
// block, visiting object keys in sorted order.
func jsonLDDescriptions(content string) []string {
	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch node := v.(type) {
		case map[string]any:
			keys := make([]string, 0, len(node))
			for k := range node {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if s, ok := node[k].(string); ok && k == "description" {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
					continue
				}
				walk(node[k])
			}
		case []any:
			for _, child := range node {
				walk(child)
			}
		}
	}
	walk(doc)
	return out
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
