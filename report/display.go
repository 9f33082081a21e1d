package report

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/aluiziolira/jbscrape/models"
)

const (
	perDeviceRows = 5
	noteFooter    = "JB = Jailbroken | Generated by JBScrape"
	ebayItemURL   = "https://www.ebay.com/itm/"
)

// Display prints up to limit listings grouped by device, at most five per
// device.
func Display(w io.Writer, r *models.Report, limit int) {
	separator := strings.Repeat("=", 70)
	fmt.Fprintf(w, "\n%s\nRESULTS: %d listings\n%s\n", separator, r.TotalCount, separator)

	count := 0
	for _, group := range r.Grouped.Groups() {
		if count >= limit {
			break
		}
		fmt.Fprintf(w, "\n%s (%d)\n%s\n", group.Device, len(group.Listings), strings.Repeat("-", 40))
		for i, l := range group.Listings {
			if i >= perDeviceRows || count >= limit {
				break
			}
			fmt.Fprintf(w, "  %-12s | %-6s | %-12s | %s%s\n",
				priceOrNA(l.PriceText), l.Storage, l.IOSVersion, l.Source, jailbrokenTag(l))
			count++
		}
	}
}

// NoteHTML renders the report as the HTML body of a note.
func NoteHTML(r *models.Report, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p><b>%d listings</b> | %s</p>\n<hr>\n", r.TotalCount, now.Format("Jan 02, 2006 15:04"))

	for _, group := range r.Grouped.Groups() {
		fmt.Fprintf(&b, "<h2>%s (%d)</h2>\n", html.EscapeString(group.Device), len(group.Listings))
		for _, l := range group.Listings {
			fmt.Fprintf(&b, "<p><b>%s</b> - %s - %s%s - <a href=\"%s\">%s</a></p>\n",
				html.EscapeString(priceOrNA(l.PriceText)),
				html.EscapeString(l.Storage),
				html.EscapeString(l.IOSVersion),
				jailbrokenTag(l),
				html.EscapeString(ListingURL(l)),
				l.Source,
			)
		}
		b.WriteString("<br><br>\n")
	}

	b.WriteString("<hr>\n<p><i>" + noteFooter + "</i></p>")
	return b.String()
}

// ListingURL returns a stable link for the listing. eBay search results
// carry tracking parameters, so their links are rebuilt from the item id.
func ListingURL(l *models.EnrichedListing) string {
	if l.Source == models.SourceEbay && l.Identifier != "" {
		return ebayItemURL + l.Identifier
	}
	return l.URL
}

func priceOrNA(price string) string {
	if price == "" {
		return "N/A"
	}
	return price
}

func jailbrokenTag(l *models.EnrichedListing) string {
	if l.IsJailbroken {
		return " [JB]"
	}
	return ""
}
