// Package parser classifies marketplace text: it extracts iOS version
// claims, rejects impossible device/version pairs and derives the display
// fields used by the report.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const versionPrefix = "iOS "

// jailbreakable lists, per major, the exact versions with a public
// jailbreak. 16.6.1 is the ceiling for 16; only 17.0 is covered for 17.
var jailbreakable = map[int][]string{
	16: {
		"16", "16.0", "16.0.1", "16.0.2", "16.0.3",
		"16.1", "16.1.1", "16.1.2",
		"16.2", "16.2.1",
		"16.3", "16.3.1",
		"16.4", "16.4.1",
		"16.5", "16.5.1",
		"16.6", "16.6.1",
	},
	17: {"17", "17.0"},
}

var (
	jailbreakableSet = buildVersionSet(jailbreakable)

	// bareMajors are accepted without a minor even though most phones
	// advertised that way run a later point release.
	bareMajors = map[string]struct{}{"16": {}, "17": {}}

	versionRegexp = regexp.MustCompile(`(?i)\bios\s*(\d+(?:\.\d+)?(?:\.\d+)?)\b`)
)

func buildVersionSet(table map[int][]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, versions := range table {
		for _, v := range versions {
			set[v] = struct{}{}
		}
	}
	return set
}

// ExtractVersion returns the first iOS version claim in text in canonical
// "iOS <version>" form.
func ExtractVersion(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	match := versionRegexp.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return versionPrefix + match[1], true
}

// MatchesTargetMajors reports whether text claims a version under one of
// majors. Text containing "?" is an unverified claim and never matches.
func MatchesTargetMajors(text string, majors []int) bool {
	if text == "" || strings.Contains(text, "?") {
		return false
	}
	for _, major := range majors {
		if majorRegexp(major).MatchString(text) {
			return true
		}
	}
	return false
}

// majorRegexps caches one compiled pattern per major.
var majorRegexps sync.Map // int -> *regexp.Regexp

func majorRegexp(major int) *regexp.Regexp {
	if re, ok := majorRegexps.Load(major); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(fmt.Sprintf(`(?i)\bios\s*%d(?:\.\d+)?(?:\.\d+)?\b`, major))
	actual, _ := majorRegexps.LoadOrStore(major, re)
	return actual.(*regexp.Regexp)
}

// IsJailbreakable reports whether a canonical version string is on the
// whitelist.
func IsJailbreakable(version string) bool {
	v := strings.TrimSpace(strings.TrimPrefix(version, versionPrefix))
	if v == "" {
		return false
	}
	if _, ok := jailbreakableSet[v]; ok {
		return true
	}
	_, ok := bareMajors[v]
	return ok
}

// Major returns the leading integer component of a canonical version.
func Major(version string) (int, bool) {
	v := strings.TrimSpace(strings.TrimPrefix(version, versionPrefix))
	head, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return major, true
}

// GenerateQueries builds marketplace search phrases covering every
// whitelisted version of the requested majors. Majors without a whitelist
// fall back to the bare major.
func GenerateQueries(majors []int) []string {
	var queries []string
	for _, major := range majors {
		bare := strconv.Itoa(major)
		versions, ok := jailbreakable[major]
		if !ok {
			queries = append(queries, quotedQuery(bare), plainQuery(bare))
			continue
		}
		for _, v := range versions {
			queries = append(queries, quotedQuery(v))
			if v == bare {
				queries = append(queries, plainQuery(v))
			}
		}
	}
	return queries
}

func quotedQuery(version string) string {
	return `iPhone "` + versionPrefix + version + `"`
}

func plainQuery(version string) string {
	return "iPhone " + versionPrefix + version
}
