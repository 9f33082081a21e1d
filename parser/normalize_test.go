package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/jbscrape/models"
)

func TestClassify(t *testing.T) {
	majors := []int{16, 17}
	tests := []struct {
		name string
		text string
		want RejectReason
	}{
		{name: "accepted", text: "iPhone 13 Pro 128GB iOS 16.5.1 Unlocked", want: Accepted},
		{name: "empty", text: "   ", want: RejectEmptyText},
		{name: "no version", text: "iPhone 13 Pro 128GB Unlocked", want: RejectNoVersion},
		{name: "wrong major", text: "iPhone 13 iOS 15.7", want: RejectTargetMajor},
		{name: "uncertain claim", text: "iPhone 13 iOS 16.2?", want: RejectTargetMajor},
		{name: "impossible device", text: `iPhone 8 Plus 64GB "iOS 17.0" Unlocked $120`, want: RejectIncompatible},
		{name: "patched version", text: "iPhone 14 iOS 16.7.2", want: RejectNotJailbroken},
		{name: "late 17", text: "iPhone 15 iOS 17.1", want: RejectNotJailbroken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &models.RawRecord{Source: models.SourceEbay, SourceText: tt.text, Identifier: "1"}
			listing, reason := Classify(rec, majors)
			if reason != tt.want {
				t.Fatalf("Classify(%q) reason = %q, want %q", tt.text, reason, tt.want)
			}
			if (listing != nil) != (tt.want == Accepted) {
				t.Fatalf("Classify(%q) listing = %v, want present=%v", tt.text, listing, tt.want == Accepted)
			}
		})
	}
}

func TestNormalizeBuildsListing(t *testing.T) {
	scrapedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := &models.RawRecord{
		Source:     models.SourceEbay,
		SourceText: "Apple iPhone 12 mini 64GB - iOS 16.1.2 - Jailbroken",
		Identifier: "12345",
		URL:        " https://www.ebay.com/itm/12345 ",
		PriceText:  "$210.00",
		ScrapedAt:  scrapedAt,
	}

	listing, ok := Normalize(rec, []int{16})
	if !ok {
		t.Fatalf("expected listing")
	}
	if listing.IOSVersion != "iOS 16.1.2" {
		t.Fatalf("version = %q", listing.IOSVersion)
	}
	if listing.Identifier != "12345" || listing.URL != "https://www.ebay.com/itm/12345" {
		t.Fatalf("identity = %q %q", listing.Identifier, listing.URL)
	}
	if listing.Title != rec.SourceText || listing.Source != models.SourceEbay {
		t.Fatalf("title/source = %q %q", listing.Title, listing.Source)
	}
	if listing.PriceText != "$210.00" || !listing.ScrapedAt.Equal(scrapedAt) {
		t.Fatalf("price/scraped = %q %v", listing.PriceText, listing.ScrapedAt)
	}
}

func TestNormalizeToleratesMissingOptionalFields(t *testing.T) {
	listing, ok := Normalize(&models.RawRecord{SourceText: "iPhone 11 iOS 16.0"}, []int{16})
	if !ok {
		t.Fatalf("expected listing without price or url")
	}
	if listing.PriceText != "" || listing.URL != "" {
		t.Fatalf("unexpected optional fields: %+v", listing)
	}
}

func TestNormalizeTruncatesSellerDescriptions(t *testing.T) {
	text := "Apple iPhone 13 on iOS 16.3 " + strings.Repeat("very clean ", 20)
	listing, ok := Normalize(&models.RawRecord{Source: models.SourceSwappa, SourceText: text}, []int{16})
	if !ok {
		t.Fatalf("expected listing")
	}
	if n := len([]rune(listing.Title)); n > MaxDescriptionTitle {
		t.Fatalf("title length = %d, want <= %d", n, MaxDescriptionTitle)
	}

	ebay, ok := Normalize(&models.RawRecord{Source: models.SourceEbay, SourceText: text}, []int{16})
	if !ok {
		t.Fatalf("expected listing")
	}
	if ebay.Title != strings.TrimSpace(text) {
		t.Fatalf("ebay titles should not be truncated")
	}
}

func TestNormalizeNilRecord(t *testing.T) {
	if _, ok := Normalize(nil, []int{16}); ok {
		t.Fatalf("nil record should be rejected")
	}
}
