package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/jbscrape/config"
	"github.com/aluiziolira/jbscrape/models"
	"github.com/aluiziolira/jbscrape/parser"
)

const (
	// ebayCellPhonesCategory restricts searches to Cell Phones & Smartphones.
	ebayCellPhonesCategory = "9355"
	ebayUsedCondition      = "3000"
)

// Ebay searches eBay's used cell phone listings for every whitelisted iOS
// version of the target majors.
type Ebay struct {
	*crawler
	baseURL string
	queries []string
	// queryIndex orders records by the query that found them.
	queryIndex map[string]int
}

// NewEbay builds the eBay source.
func NewEbay(cfg *config.Config, metrics *Metrics) (*Ebay, error) {
	c, err := newCrawler(cfg, models.SourceEbay, cfg.EbayBaseURL, metrics)
	if err != nil {
		return nil, err
	}
	queries := parser.GenerateQueries(cfg.TargetMajors)
	queryIndex := make(map[string]int, len(queries))
	for i, q := range queries {
		queryIndex[q] = i
	}
	return &Ebay{
		crawler:    c,
		baseURL:    strings.TrimRight(cfg.EbayBaseURL, "/"),
		queries:    queries,
		queryIndex: queryIndex,
	}, nil
}

// Name implements Source.
func (e *Ebay) Name() models.Source {
	return models.SourceEbay
}

// Run searches every query, following result pages until a page comes back
// empty or EbayPages is reached.
func (e *Ebay) Run(ctx context.Context, sink RecordSink) (*models.ScraperResult, error) {
	slog.Info("searching ebay",
		slog.Any("majors", e.cfg.TargetMajors),
		slog.Int("queries", len(e.queries)),
		slog.Int("pages_per_query", e.cfg.EbayPages),
	)

	seeds := make([]string, 0, len(e.queries))
	for _, q := range e.queries {
		seeds = append(seeds, e.searchURL(q, 1))
	}

	return e.run(ctx, sink, seeds, func(el *colly.HTMLElement) {
		e.handlePage(ctx, el)
	}, nil)
}

func (e *Ebay) handlePage(ctx context.Context, el *colly.HTMLElement) {
	items := parseEbayResults(el.DOM, el.Request.AbsoluteURL)
	if len(items) == 0 {
		return
	}

	query := el.Request.URL.Query()
	page, err := strconv.Atoi(query.Get("_pgn"))
	if err != nil {
		page = 1
	}
	qi, ok := e.queryIndex[query.Get("_nkw")]
	if !ok {
		qi = len(e.queries)
	}
	for i, item := range items {
		e.emit(orderKey{qi, page, i}, &models.RawRecord{
			SourceText: item.Title,
			Identifier: item.ID,
			URL:        item.URL,
			PriceText:  item.Price,
		})
	}

	if page >= e.cfg.EbayPages || ctx.Err() != nil {
		return
	}
	next := e.searchURL(query.Get("_nkw"), page+1)
	if err := e.collector.Visit(next); err != nil {
		slog.Debug("next page visit failed", slog.String("url", next), slog.Any("error", err))
	}
}

func (e *Ebay) searchURL(query string, page int) string {
	values := url.Values{}
	values.Set("_nkw", query)
	values.Set("_sacat", ebayCellPhonesCategory)
	values.Set("LH_ItemCondition", ebayUsedCondition)
	values.Set("_pgn", strconv.Itoa(page))
	return e.baseURL + "/sch/i.html?" + values.Encode()
}
