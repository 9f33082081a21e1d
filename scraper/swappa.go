package scraper

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/jbscrape/config"
	"github.com/aluiziolira/jbscrape/models"
	"github.com/aluiziolira/jbscrape/pipeline"
)

// swappaModels are the model pages searched, newest first. Phones older
// than the 8 cannot run a jailbreakable target version.
var swappaModels = []string{
	"apple-iphone-15-pro-max", "apple-iphone-15-pro", "apple-iphone-15-plus", "apple-iphone-15",
	"apple-iphone-14-pro-max", "apple-iphone-14-pro", "apple-iphone-14-plus", "apple-iphone-14",
	"apple-iphone-13-pro-max", "apple-iphone-13-pro", "apple-iphone-13-mini", "apple-iphone-13",
	"apple-iphone-12-pro-max", "apple-iphone-12-pro", "apple-iphone-12-mini", "apple-iphone-12",
	"apple-iphone-11-pro-max", "apple-iphone-11-pro", "apple-iphone-11",
	"apple-iphone-xs-max", "apple-iphone-xs", "apple-iphone-xr", "apple-iphone-x",
	"apple-iphone-se-3rd-gen", "apple-iphone-se-2nd-gen",
	"apple-iphone-8-plus", "apple-iphone-8",
}

const (
	swappaModelPath   = "/listings/"
	swappaListingPath = "/listing/view/"
)

// Swappa walks Swappa's per-model listing pages and reads the seller's own
// description on each listing. Model pages are fetched first; listings are
// then claimed in model order, so the capped selection does not depend on
// which model page answered first.
type Swappa struct {
	*crawler
	baseURL string
	models  []string

	mu         sync.Mutex
	modelLinks map[int][]string
	claimed    map[string]orderKey
}

// NewSwappa builds the Swappa source.
func NewSwappa(cfg *config.Config, metrics *Metrics) (*Swappa, error) {
	c, err := newCrawler(cfg, models.SourceSwappa, cfg.SwappaBaseURL, metrics)
	if err != nil {
		return nil, err
	}
	return &Swappa{
		crawler:    c,
		baseURL:    strings.TrimRight(cfg.SwappaBaseURL, "/"),
		models:     swappaModels,
		modelLinks: make(map[int][]string),
		claimed:    make(map[string]orderKey),
	}, nil
}

// Name implements Source.
func (s *Swappa) Name() models.Source {
	return models.SourceSwappa
}

// Run visits every model page, then up to SwappaListingsPerModel unseen
// listings per model.
func (s *Swappa) Run(ctx context.Context, sink RecordSink) (*models.ScraperResult, error) {
	slog.Info("searching swappa",
		slog.Any("majors", s.cfg.TargetMajors),
		slog.Int("models", len(s.models)),
		slog.Int("listings_per_model", s.cfg.SwappaListingsPerModel),
	)

	modelIndex := make(map[string]int, len(s.models))
	seeds := make([]string, 0, len(s.models))
	for i, model := range s.models {
		modelIndex[swappaModelPath+model] = i
		seeds = append(seeds, s.baseURL+swappaModelPath+model)
	}

	listingsQueued := false
	return s.run(ctx, sink, seeds, func(el *colly.HTMLElement) {
		switch path := el.Request.URL.Path; {
		case strings.Contains(path, swappaListingPath):
			s.handleListing(el)
		case strings.HasPrefix(path, swappaModelPath):
			if mi, ok := modelIndex[strings.TrimRight(path, "/")]; ok {
				s.handleModel(mi, el)
			}
		}
	}, func() []string {
		if listingsQueued {
			return nil
		}
		listingsQueued = true
		return s.selectListings()
	})
}

func (s *Swappa) handleModel(mi int, el *colly.HTMLElement) {
	links := swappaListingLinks(el.DOM, el.Request.AbsoluteURL)
	s.mu.Lock()
	s.modelLinks[mi] = links
	s.mu.Unlock()
	slog.Debug("swappa model page",
		slog.String("url", el.Request.URL.String()),
		slog.Int("links", len(links)),
	)
}

// selectListings claims up to SwappaListingsPerModel new listings per model,
// walking models in list order. A listing linked from several models is
// fetched once, under the first model.
func (s *Swappa) selectListings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var urls []string
	for mi := range s.models {
		queued := 0
		for li, link := range s.modelLinks[mi] {
			if queued >= s.cfg.SwappaListingsPerModel {
				break
			}
			id := pipeline.IdentifierFromURL(link)
			if id == "" {
				continue
			}
			if _, ok := s.claimed[id]; ok {
				continue
			}
			s.claimed[id] = orderKey{mi, li}
			queued++
			urls = append(urls, link)
		}
	}
	return urls
}

func (s *Swappa) handleListing(el *colly.HTMLElement) {
	link := el.Request.URL.String()
	id := pipeline.IdentifierFromURL(link)

	s.mu.Lock()
	key, ok := s.claimed[id]
	s.mu.Unlock()
	if !ok {
		key = orderKey{len(s.models)}
	}

	s.emit(key, &models.RawRecord{
		SourceText: swappaSellerText(el.DOM),
		Identifier: id,
		URL:        link,
		PriceText:  swappaPrice(el.DOM),
	})
}
