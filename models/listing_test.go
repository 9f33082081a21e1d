package models

import "testing"

func TestGroupedReportKeepsInsertionOrder(t *testing.T) {
	g := NewGroupedReport()
	g.Append(&EnrichedListing{Device: "iPhone 13", Listing: Listing{Identifier: "a"}})
	g.Append(&EnrichedListing{Device: "iPhone 11", Listing: Listing{Identifier: "b"}})
	g.Append(&EnrichedListing{Device: "iPhone 13", Listing: Listing{Identifier: "c"}})

	devices := g.Devices()
	if g.Len() != 2 || devices[0] != "iPhone 13" || devices[1] != "iPhone 11" {
		t.Fatalf("devices = %v", devices)
	}
	got := g.Listings("iPhone 13")
	if len(got) != 2 || got[0].Identifier != "a" || got[1].Identifier != "c" {
		t.Fatalf("iPhone 13 listings = %+v", got)
	}
	if g.Listings("iPhone 4") != nil {
		t.Fatalf("unknown device should have no listings")
	}
}

func TestParseSource(t *testing.T) {
	if src, ok := ParseSource("swappa"); !ok || src != SourceSwappa {
		t.Fatalf("ParseSource(swappa) = %q, %v", src, ok)
	}
	if _, ok := ParseSource("EBAY"); ok {
		t.Fatalf("ParseSource is case sensitive")
	}
}
