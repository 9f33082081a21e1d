// Package models defines data structures for the scraper.
package models

import "time"

// Source identifies the marketplace a listing came from.
type Source string

const (
	SourceEbay   Source = "ebay"
	SourceSwappa Source = "swappa"
)

// ParseSource maps a user-supplied site name to a Source.
func ParseSource(name string) (Source, bool) {
	switch Source(name) {
	case SourceEbay, SourceSwappa:
		return Source(name), true
	default:
		return "", false
	}
}

// RawRecord is a single marketplace result as handed over by a source,
// before any classification.
type RawRecord struct {
	Source     Source
	SourceText string
	Identifier string
	URL        string
	PriceText  string
	ScrapedAt  time.Time
}

// Listing is a record whose text carried a jailbreakable, device-compatible
// iOS version claim for one of the requested majors.
type Listing struct {
	Identifier string    `json:"item_id" csv:"item_id"`
	URL        string    `json:"url" csv:"url"`
	Title      string    `json:"title" csv:"title"`
	Source     Source    `json:"source" csv:"source"`
	IOSVersion string    `json:"ios_version" csv:"ios_version"`
	PriceText  string    `json:"price" csv:"price"`
	ScrapedAt  time.Time `json:"scraped_at" csv:"scraped_at"`
}

// EnrichedListing adds presentation fields derived from a Listing.
type EnrichedListing struct {
	Listing
	Device       string  `json:"device" csv:"device"`
	DeviceOrder  int     `json:"device_order" csv:"device_order"`
	PriceNumeric float64 `json:"price_num" csv:"price_num"`
	IsJailbroken bool    `json:"is_jailbroken" csv:"is_jailbroken"`
	Storage      string  `json:"storage,omitempty" csv:"storage"`
}

// DeviceGroup holds the listings of a single device, in sorted order.
type DeviceGroup struct {
	Device   string
	Listings []*EnrichedListing
}

// GroupedReport maps device names to listings, preserving the order in
// which devices were first added.
type GroupedReport struct {
	groups []*DeviceGroup
	index  map[string]int
}

// NewGroupedReport returns an empty report.
func NewGroupedReport() *GroupedReport {
	return &GroupedReport{index: make(map[string]int)}
}

// Append adds a listing to the group for its device, creating the group on
// first encounter.
func (g *GroupedReport) Append(l *EnrichedListing) {
	i, ok := g.index[l.Device]
	if !ok {
		i = len(g.groups)
		g.index[l.Device] = i
		g.groups = append(g.groups, &DeviceGroup{Device: l.Device})
	}
	g.groups[i].Listings = append(g.groups[i].Listings, l)
}

// Devices returns the device names in insertion order.
func (g *GroupedReport) Devices() []string {
	out := make([]string, len(g.groups))
	for i, group := range g.groups {
		out[i] = group.Device
	}
	return out
}

// Groups returns the groups in insertion order.
func (g *GroupedReport) Groups() []*DeviceGroup {
	return g.groups
}

// Listings returns the listings grouped under device, or nil.
func (g *GroupedReport) Listings(device string) []*EnrichedListing {
	i, ok := g.index[device]
	if !ok {
		return nil
	}
	return g.groups[i].Listings
}

// Len returns the number of groups.
func (g *GroupedReport) Len() int {
	return len(g.groups)
}

// Report is the final output of a run.
type Report struct {
	SearchedAt time.Time          `json:"searched_at"`
	TotalCount int                `json:"total_count"`
	Listings   []*EnrichedListing `json:"listings"`
	Grouped    *GroupedReport     `json:"-"`
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	Source       Source
	StartTime    time.Time
	EndTime      time.Time
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
	RecordCount  int
}
