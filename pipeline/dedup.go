package pipeline

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/jbscrape/models"
)

var itemIDRegexp = regexp.MustCompile(`/itm/(\d+)`)

type dedupKey struct {
	source models.Source
	id     string
}

// Deduplicator remembers identifiers per source for the duration of a run.
// It is bounded by an LRU so a runaway crawl cannot grow it without limit;
// the bound is sized well above any realistic run.
type Deduplicator struct {
	seen *lru.Cache[dedupKey, struct{}]
}

// NewDeduplicator creates a deduplicator holding up to maxSize identifiers.
func NewDeduplicator(maxSize int) (*Deduplicator, error) {
	cache, err := lru.New[dedupKey, struct{}](maxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Deduplicator{seen: cache}, nil
}

// FirstSeen records the record's identifier and reports whether it was new.
// Records without a derivable identifier are always reported as new.
func (d *Deduplicator) FirstSeen(rec *models.RawRecord) bool {
	id := RecordIdentifier(rec)
	if id == "" {
		return true
	}
	key := dedupKey{source: rec.Source, id: id}
	if d.seen.Contains(key) {
		return false
	}
	d.seen.Add(key, struct{}{})
	return true
}

// Len returns the number of remembered identifiers.
func (d *Deduplicator) Len() int {
	return d.seen.Len()
}

// RecordIdentifier returns the record's identifier, deriving one from its
// URL when the source supplied none.
func RecordIdentifier(rec *models.RawRecord) string {
	if id := strings.TrimSpace(rec.Identifier); id != "" {
		return id
	}
	return IdentifierFromURL(rec.URL)
}

// IdentifierFromURL extracts a listing id from an eBay item link or, failing
// that, the trailing path segment.
func IdentifierFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := itemIDRegexp.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(parsed.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
