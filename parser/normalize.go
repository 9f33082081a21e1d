package parser

import (
	"strings"

	"github.com/aluiziolira/jbscrape/models"
)

// MaxDescriptionTitle bounds titles built from seller descriptions.
const MaxDescriptionTitle = 100

// RejectReason names the stage at which a record was dropped.
type RejectReason string

const (
	Accepted            RejectReason = ""
	RejectEmptyText     RejectReason = "empty_text"
	RejectNoVersion     RejectReason = "no_version"
	RejectTargetMajor   RejectReason = "target_mismatch"
	RejectIncompatible  RejectReason = "incompatible"
	RejectNotJailbroken RejectReason = "not_jailbreakable"
)

// Classify runs a raw record through version extraction, target matching,
// device compatibility and the jailbreak whitelist, stopping at the first
// failing stage.
func Classify(rec *models.RawRecord, majors []int) (*models.Listing, RejectReason) {
	if rec == nil || strings.TrimSpace(rec.SourceText) == "" {
		return nil, RejectEmptyText
	}
	text := rec.SourceText

	version, ok := ExtractVersion(text)
	if !ok {
		return nil, RejectNoVersion
	}
	if !MatchesTargetMajors(text, majors) {
		return nil, RejectTargetMajor
	}
	major, ok := Major(version)
	if !ok || !IsCompatible(text, major) {
		return nil, RejectIncompatible
	}
	if !IsJailbreakable(version) {
		return nil, RejectNotJailbroken
	}

	return &models.Listing{
		Identifier: rec.Identifier,
		URL:        strings.TrimSpace(rec.URL),
		Title:      displayTitle(rec),
		Source:     rec.Source,
		IOSVersion: version,
		PriceText:  strings.TrimSpace(rec.PriceText),
		ScrapedAt:  rec.ScrapedAt,
	}, Accepted
}

// Normalize is Classify without the reject reason.
func Normalize(rec *models.RawRecord, majors []int) (*models.Listing, bool) {
	listing, reason := Classify(rec, majors)
	return listing, reason == Accepted
}

func displayTitle(rec *models.RawRecord) string {
	text := rec.SourceText
	if rec.Source == models.SourceSwappa {
		text = truncateRunes(text, MaxDescriptionTitle)
	}
	return strings.TrimSpace(text)
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
