package parser

import "strings"

// exclusionRule flags titles naming a device that cannot run minMajor or
// later. Substring matching on model names collides ("iphone 4" is inside
// "iphone 14"), so each rule carries the exceptions that clear it.
type exclusionRule struct {
	minMajor   int
	markers    []string
	suffixes   []string
	exceptions []string
}

func (r exclusionRule) fires(title string) bool {
	hit := false
	for _, m := range r.markers {
		if strings.Contains(title, m) {
			hit = true
			break
		}
	}
	if !hit {
		for _, s := range r.suffixes {
			if strings.HasSuffix(title, s) {
				hit = true
				break
			}
		}
	}
	if !hit {
		return false
	}
	for _, e := range r.exceptions {
		if strings.Contains(title, e) {
			return false
		}
	}
	return true
}

// Pre-A11 devices stop at iOS 15, pre-A12 devices stop at iOS 16.
// Evaluated top to bottom; the first rule that fires rejects the title.
var exclusionRules = []exclusionRule{
	{minMajor: 16, markers: []string{"iphone 4"}, exceptions: []string{"iphone 14"}},
	{minMajor: 16, markers: []string{"iphone 5"}, exceptions: []string{"iphone 15"}},
	{minMajor: 16, markers: []string{"iphone 6"}, exceptions: []string{"iphone 16", "6s"}},
	// "7 plus" only suppresses this marker; 7 Plus itself is not iOS 16 capable.
	{minMajor: 16, markers: []string{"iphone 7"}, exceptions: []string{"7 plus"}},
	{minMajor: 16, markers: []string{"iphone se "}, exceptions: []string{"2nd", "3rd", "2020", "2022"}},
	{minMajor: 17, markers: []string{"iphone 8"}, exceptions: []string{"iphone 18"}},
	{minMajor: 17, markers: []string{"iphone x "}, suffixes: []string{"iphone x"}, exceptions: []string{"xs", "xr"}},
}

// IsCompatible reports whether the device named in title can run iosMajor.
// Titles that name no known-incompatible device are compatible.
func IsCompatible(title string, iosMajor int) bool {
	lower := strings.ToLower(title)
	for _, rule := range exclusionRules {
		if iosMajor < rule.minMajor {
			continue
		}
		if rule.fires(lower) {
			return false
		}
	}
	return true
}
