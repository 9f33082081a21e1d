package parser

import "testing"

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		title string
		major int
		want  bool
	}{
		{title: "iPhone 14 Pro, iOS 16.5", major: 16, want: true},
		{title: "iPhone 7, iOS 16.2", major: 16, want: false},
		{title: "iPhone XS, iOS 17.0", major: 17, want: true},
		{title: "iPhone 8 Plus, iOS 17.0", major: 17, want: false},
		{title: "iPhone 8 Plus, iOS 16.1", major: 16, want: true},
		{title: "iPhone 4s iOS 16", major: 16, want: false},
		{title: "iPhone 5c iOS 16.2", major: 16, want: false},
		{title: "iPhone 15 Pro iOS 17.0", major: 17, want: true},
		{title: "iPhone 6 Plus iOS 16.0", major: 16, want: false},
		{title: "iPhone 6s iOS 16.0", major: 16, want: true},
		{title: "iPhone 7 Plus iOS 16.1", major: 16, want: true},
		{title: "iPhone SE 64GB iOS 16.3", major: 16, want: false},
		{title: "iPhone SE 2nd Gen iOS 16.3", major: 16, want: true},
		{title: "iPhone SE (2022) iOS 16.3", major: 16, want: true},
		{title: "Apple iPhone SE", major: 16, want: true},
		{title: "iPhone X 256GB iOS 17.0", major: 17, want: false},
		{title: "Unlocked Apple iPhone X", major: 17, want: false},
		{title: "iPhone X 256GB iOS 16.1", major: 16, want: true},
		{title: "iPhone XR iOS 17.0", major: 17, want: true},
		{title: "Pixel 7 iOS 17.0", major: 17, want: true},
		{title: "iPhone 7 iOS 15.4", major: 15, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := IsCompatible(tt.title, tt.major); got != tt.want {
				t.Fatalf("IsCompatible(%q, %d) = %v, want %v", tt.title, tt.major, got, tt.want)
			}
		})
	}
}

func TestExclusionRulesIndependent(t *testing.T) {
	for i, rule := range exclusionRules {
		if len(rule.markers) == 0 {
			t.Fatalf("rule %d has no markers", i)
		}
		title := rule.markers[0]
		if !rule.fires(title) {
			t.Errorf("rule %d does not fire on its own marker %q", i, title)
		}
		for _, e := range rule.exceptions {
			if rule.fires(title + " " + e) {
				t.Errorf("rule %d fires despite exception %q", i, e)
			}
		}
	}
}
