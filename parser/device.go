package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/jbscrape/models"
)

const (
	// UnknownDevice is reported when no pattern matches a title.
	UnknownDevice = "Other iPhone"
	// UnknownDeviceOrder sorts unknown devices after every known model.
	UnknownDeviceOrder = 50
	// UnparsedPrice sorts listings without a usable price last.
	UnparsedPrice = 999999
)

type devicePattern struct {
	pattern string
	name    string
	order   int
}

// devicePatterns is matched first-hit-wins against the lower-cased title.
// Specific variants come before their generic superstrings; reordering the
// table changes classification.
var devicePatterns = []devicePattern{
	{"15 pro max", "iPhone 15 Pro Max", 1},
	{"15 pro", "iPhone 15 Pro", 2},
	{"15 plus", "iPhone 15 Plus", 3},
	{"iphone 15", "iPhone 15", 4},
	{"14 pro max", "iPhone 14 Pro Max", 5},
	{"14 pro", "iPhone 14 Pro", 6},
	{"14 plus", "iPhone 14 Plus", 7},
	{"iphone 14", "iPhone 14", 8},
	{"13 pro max", "iPhone 13 Pro Max", 9},
	{"13 pro", "iPhone 13 Pro", 10},
	{"13 mini", "iPhone 13 Mini", 11},
	{"iphone 13", "iPhone 13", 12},
	{"12 pro max", "iPhone 12 Pro Max", 13},
	{"12 pro", "iPhone 12 Pro", 14},
	{"12 mini", "iPhone 12 Mini", 15},
	{"iphone 12", "iPhone 12", 16},
	{"11 pro max", "iPhone 11 Pro Max", 17},
	{"11 pro", "iPhone 11 Pro", 18},
	{"iphone 11", "iPhone 11", 19},
	{"xs max", "iPhone XS Max", 20},
	{"iphone xs", "iPhone XS", 21},
	{"iphone xr", "iPhone XR", 22},
	{"iphone x", "iPhone X", 23},
	{"se 3", "iPhone SE 3rd Gen", 24},
	{"se 2022", "iPhone SE 3rd Gen", 24},
	{"3rd gen", "iPhone SE 3rd Gen", 24},
	{"se 2", "iPhone SE 2nd Gen", 25},
	{"se 2020", "iPhone SE 2nd Gen", 25},
	{"2nd gen", "iPhone SE 2nd Gen", 25},
	{"iphone se", "iPhone SE", 26},
	{"8 plus", "iPhone 8 Plus", 27},
	{"iphone 8", "iPhone 8", 28},
	{"iphone 7", "iPhone 7", 29},
}

var (
	storageRegexp    = regexp.MustCompile(`(?i)(\d+)\s*[GT]B`)
	titlePriceRegexp = regexp.MustCompile(`\$\s*\d[\d,]*(?:\.\d+)?`)
)

// DeviceInfo returns the canonical device name and its sort rank.
func DeviceInfo(title string) (string, int) {
	lower := strings.ToLower(title)
	for _, d := range devicePatterns {
		if strings.Contains(lower, d.pattern) {
			return d.name, d.order
		}
	}
	return UnknownDevice, UnknownDeviceOrder
}

// ParsePrice converts "$1,234.56 to $1,300.00" style text to its first
// number. Missing or unparsable prices yield UnparsedPrice.
func ParsePrice(text string) float64 {
	text = strings.ReplaceAll(text, "$", "")
	text = strings.ReplaceAll(text, ",", "")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return UnparsedPrice
	}
	price, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return UnparsedPrice
	}
	return price
}

// Storage returns the first capacity mention ("128GB", "1 TB") verbatim.
func Storage(title string) string {
	return storageRegexp.FindString(title)
}

// IsJailbroken reports whether the seller says the phone is already
// jailbroken.
func IsJailbroken(title string) bool {
	return strings.Contains(strings.ToLower(title), "jailbr")
}

// Enrich derives the presentation fields of a listing. The input is not
// modified.
func Enrich(l *models.Listing) *models.EnrichedListing {
	device, order := DeviceInfo(l.Title)
	return &models.EnrichedListing{
		Listing:      *l,
		Device:       device,
		DeviceOrder:  order,
		PriceNumeric: ParsePrice(priceText(l)),
		IsJailbroken: IsJailbroken(l.Title),
		Storage:      Storage(l.Title),
	}
}

// priceText falls back to a dollar amount in the title when the source
// supplied no structured price.
func priceText(l *models.Listing) string {
	if strings.TrimSpace(l.PriceText) != "" {
		return l.PriceText
	}
	return titlePriceRegexp.FindString(l.Title)
}
