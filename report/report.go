// Package report turns accepted listings into the sorted, device-grouped
// view consumed by the output writers and the terminal.
package report

import (
	"sort"
	"time"

	"github.com/aluiziolira/jbscrape/models"
	"github.com/aluiziolira/jbscrape/parser"
)

// Build enriches listings and returns the sorted, grouped report.
func Build(listings []*models.Listing, searchedAt time.Time) *models.Report {
	enriched := make([]*models.EnrichedListing, 0, len(listings))
	for _, l := range listings {
		if l == nil {
			continue
		}
		enriched = append(enriched, parser.Enrich(l))
	}

	grouped := SortAndGroup(enriched)
	return &models.Report{
		SearchedAt: searchedAt,
		TotalCount: len(enriched),
		Listings:   enriched,
		Grouped:    grouped,
	}
}

// SortAndGroup stable-sorts listings in place by (DeviceOrder, PriceNumeric)
// and groups them by device in order of first appearance.
func SortAndGroup(listings []*models.EnrichedListing) *models.GroupedReport {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i], listings[j]
		if a.DeviceOrder != b.DeviceOrder {
			return a.DeviceOrder < b.DeviceOrder
		}
		return a.PriceNumeric < b.PriceNumeric
	})

	grouped := models.NewGroupedReport()
	for _, l := range listings {
		grouped.Append(l)
	}
	return grouped
}
