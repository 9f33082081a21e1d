package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aluiziolira/jbscrape/models"
)

func TestBuildGroupsByDeviceOrder(t *testing.T) {
	listings := []*models.Listing{
		{Identifier: "a", Title: "iPhone 13, iOS 16.2, $300", IOSVersion: "iOS 16.2", Source: models.SourceEbay},
		{Identifier: "b", Title: "iPhone 14 Pro, iOS 16.4, $450", IOSVersion: "iOS 16.4", Source: models.SourceEbay},
	}

	r := Build(listings, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))

	if diff := cmp.Diff([]string{"iPhone 14 Pro", "iPhone 13"}, r.Grouped.Devices()); diff != "" {
		t.Fatalf("device order mismatch (-want +got):\n%s", diff)
	}
	pro := r.Grouped.Listings("iPhone 14 Pro")
	base := r.Grouped.Listings("iPhone 13")
	if len(pro) != 1 || len(base) != 1 {
		t.Fatalf("group sizes = %d/%d, want 1/1", len(pro), len(base))
	}
	if pro[0].PriceNumeric != 450 || base[0].PriceNumeric != 300 {
		t.Fatalf("prices = %v/%v, want 450/300", pro[0].PriceNumeric, base[0].PriceNumeric)
	}
	if pro[0].DeviceOrder != 6 || base[0].DeviceOrder != 12 {
		t.Fatalf("orders = %d/%d", pro[0].DeviceOrder, base[0].DeviceOrder)
	}
	if r.TotalCount != 2 {
		t.Fatalf("total = %d", r.TotalCount)
	}
}

func TestSortAndGroupOrdersByPriceWithinDevice(t *testing.T) {
	listings := []*models.EnrichedListing{
		{Listing: models.Listing{Identifier: "1"}, Device: "iPhone 12", DeviceOrder: 16, PriceNumeric: 320},
		{Listing: models.Listing{Identifier: "2"}, Device: "Other iPhone", DeviceOrder: 50, PriceNumeric: 10},
		{Listing: models.Listing{Identifier: "3"}, Device: "iPhone 12", DeviceOrder: 16, PriceNumeric: 999999},
		{Listing: models.Listing{Identifier: "4"}, Device: "iPhone 11", DeviceOrder: 19, PriceNumeric: 150},
		{Listing: models.Listing{Identifier: "5"}, Device: "iPhone 12", DeviceOrder: 16, PriceNumeric: 280},
		{Listing: models.Listing{Identifier: "6"}, Device: "iPhone 12", DeviceOrder: 16, PriceNumeric: 320},
	}

	grouped := SortAndGroup(listings)

	if diff := cmp.Diff([]string{"iPhone 12", "iPhone 11", "Other iPhone"}, grouped.Devices()); diff != "" {
		t.Fatalf("device order mismatch (-want +got):\n%s", diff)
	}

	var ids []string
	for _, l := range grouped.Listings("iPhone 12") {
		ids = append(ids, l.Identifier)
	}
	// Equal keys keep their input order.
	if diff := cmp.Diff([]string{"5", "1", "6", "3"}, ids); diff != "" {
		t.Fatalf("iPhone 12 order mismatch (-want +got):\n%s", diff)
	}

	var flat []string
	for _, l := range listings {
		flat = append(flat, l.Identifier)
	}
	if diff := cmp.Diff([]string{"5", "1", "6", "3", "4", "2"}, flat); diff != "" {
		t.Fatalf("flat order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIsRepeatable(t *testing.T) {
	listings := []*models.Listing{
		{Identifier: "1", Title: "iPhone 12 Pro 128GB iOS 16.1", PriceText: "$300"},
		{Identifier: "2", Title: "iPhone XR jailbroken iOS 16.0", PriceText: "offer"},
	}
	at := time.Unix(0, 0).UTC()
	first := Build(listings, at)
	second := Build(listings, at)

	if diff := cmp.Diff(first.Listings, second.Listings); diff != "" {
		t.Fatalf("rebuilt report differs (-first +second):\n%s", diff)
	}
}

func TestBuildEmpty(t *testing.T) {
	r := Build(nil, time.Now())
	if r.TotalCount != 0 || r.Grouped.Len() != 0 {
		t.Fatalf("expected empty report, got %+v", r)
	}
}

func TestDisplayLimits(t *testing.T) {
	var listings []*models.Listing
	for i := 0; i < 7; i++ {
		listings = append(listings, &models.Listing{Title: "iPhone 13 iOS 16.2", IOSVersion: "iOS 16.2", PriceText: "$200", Source: models.SourceEbay})
	}
	listings = append(listings, &models.Listing{Title: "iPhone 11 jailbroken", IOSVersion: "iOS 16.0", Source: models.SourceSwappa})
	r := Build(listings, time.Now())

	var buf bytes.Buffer
	Display(&buf, r, 30)
	out := buf.String()

	if !strings.Contains(out, "RESULTS: 8 listings") {
		t.Fatalf("missing header:\n%s", out)
	}
	if got := strings.Count(out, "| ebay"); got != 5 {
		t.Fatalf("ebay rows = %d, want 5 per device cap", got)
	}
	if !strings.Contains(out, "N/A") || !strings.Contains(out, "swappa [JB]") {
		t.Fatalf("missing swappa row:\n%s", out)
	}

	buf.Reset()
	Display(&buf, r, 2)
	if got := strings.Count(buf.String(), "| ebay"); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	if strings.Contains(buf.String(), "iPhone 11") {
		t.Fatalf("limit reached, later devices should be skipped")
	}
}

func TestNoteHTML(t *testing.T) {
	listings := []*models.Listing{
		{Identifier: "123", URL: "https://www.ebay.com/itm/123?hash=abc", Title: "iPhone 14 256GB iOS 16.1 jailbroken", IOSVersion: "iOS 16.1", PriceText: "$500", Source: models.SourceEbay},
		{Identifier: "XYZ", URL: "https://swappa.com/listing/view/XYZ", Title: "iPhone 14 <b>mint</b> iOS 16.2", IOSVersion: "iOS 16.2", Source: models.SourceSwappa},
	}
	r := Build(listings, time.Now())
	body := NoteHTML(r, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC))

	for _, want := range []string{
		"<p><b>2 listings</b> | Jun 01, 2025 09:30</p>",
		"<h2>iPhone 14 (2)</h2>",
		`<a href="https://www.ebay.com/itm/123">ebay</a>`,
		`<a href="https://swappa.com/listing/view/XYZ">swappa</a>`,
		"<b>$500</b> - 256GB - iOS 16.1 [JB]",
		noteFooter,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("note body missing %q:\n%s", want, body)
		}
	}
}
