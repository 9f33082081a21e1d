// Package scraper collects raw listing records from marketplaces and hands
// them to a RecordSink.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/jbscrape/config"
	"github.com/aluiziolira/jbscrape/models"
	"github.com/aluiziolira/jbscrape/pipeline"
)

// RecordSink receives raw records as they are scraped.
type RecordSink interface {
	Process(records ...*models.RawRecord) error
}

// Source is a marketplace that can be crawled for listing records.
type Source interface {
	Name() models.Source
	Run(ctx context.Context, sink RecordSink) (*models.ScraperResult, error)
	// UseTransport replaces the HTTP transport used for every request.
	UseTransport(rt http.RoundTripper)
}

// NewSources builds the sources enabled in cfg, in configuration order.
func NewSources(cfg *config.Config, metrics *Metrics) ([]Source, error) {
	var sources []Source
	for _, name := range cfg.Sources {
		var (
			src Source
			err error
		)
		switch name {
		case models.SourceEbay:
			src, err = NewEbay(cfg, metrics)
		case models.SourceSwappa:
			src, err = NewSwappa(cfg, metrics)
		default:
			err = fmt.Errorf("unknown source %q", name)
		}
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// crawler wraps the colly collector, retry logic and bookkeeping shared by
// every marketplace.
type crawler struct {
	cfg       *config.Config
	source    models.Source
	collector *colly.Collector
	retry     *retryManager
	metrics   *Metrics
	now       func() time.Time

	requestCount int64
	pageCount    int64
	errorCount   int64
	recordCount  int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
	collected    []keyedRecord

	handlersOnce sync.Once
}

func newCrawler(cfg *config.Config, source models.Source, baseURL string, metrics *Metrics) (*crawler, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s base url: %w", source, err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%s base url must include a host", source)
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	c := &crawler{
		cfg:          cfg,
		source:       source,
		collector:    collector,
		metrics:      metrics,
		now:          time.Now,
		errorsByType: make(map[string]int),
	}
	c.retry = newRetryManager(cfg, source, metrics)
	return c, nil
}

// UseTransport replaces the collector's HTTP transport.
func (c *crawler) UseTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// run crawls in waves: it visits seeds, waits until every request and
// retry of the wave is done, then asks next for the following wave. next may
// be nil. Records collected during the crawl are handed to sink at the end,
// in ordering-key order, so the stream does not depend on fetch timing.
func (c *crawler) run(ctx context.Context, sink RecordSink, seeds []string, onPage func(*colly.HTMLElement), next func() []string) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.retry.SetContext(ctx)
	c.configureHandlers(ctx, onPage)

	start := c.now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			c.retry.Stop()
		case <-done:
		}
	}()

	for wave := seeds; len(wave) > 0 && ctx.Err() == nil; {
		c.crawl(ctx, wave)
		if next == nil {
			break
		}
		wave = next()
	}
	c.retry.Stop()
	c.flush(sink)

	return &models.ScraperResult{
		Source:       c.source,
		StartTime:    start,
		EndTime:      c.now(),
		ErrorCount:   int(atomic.LoadInt64(&c.errorCount)),
		FailedURLs:   c.snapshotFailedURLs(),
		ErrorsByType: c.snapshotErrors(),
		RetryCount:   c.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&c.requestCount)),
		PageCount:    int(atomic.LoadInt64(&c.pageCount)),
		RecordCount:  int(atomic.LoadInt64(&c.recordCount)),
	}, ctx.Err()
}

func (c *crawler) crawl(ctx context.Context, urls []string) {
	for _, link := range urls {
		if ctx.Err() != nil {
			break
		}
		if err := c.collector.Visit(link); err != nil {
			slog.Warn("visit failed",
				slog.String("source", string(c.source)),
				slog.String("url", link),
				slog.Any("error", err),
			)
		}
	}

	c.collector.Wait()
	for c.retry.Pending() > 0 && ctx.Err() == nil {
		time.Sleep(10 * time.Millisecond)
		c.collector.Wait()
	}
	c.collector.Wait()
}

func (c *crawler) configureHandlers(ctx context.Context, onPage func(*colly.HTMLElement)) {
	c.handlersOnce.Do(func() {
		c.collector.OnRequest(func(r *colly.Request) {
			if ctx.Err() != nil {
				r.Abort()
				return
			}
			r.Ctx.Put("start", time.Now())
			current := atomic.AddInt64(&c.requestCount, 1)
			c.metrics.incRequest(c.source)
			if current%25 == 0 {
				slog.Debug("request progress",
					slog.String("source", string(c.source)),
					slog.Int64("requests", current),
					slog.Int64("records", atomic.LoadInt64(&c.recordCount)),
				)
			}
		})

		c.collector.OnResponse(func(r *colly.Response) {
			atomic.AddInt64(&c.pageCount, 1)
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				c.metrics.observeDuration(c.source, time.Since(start))
			}
		})

		c.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&c.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			category := errorTypeLabel(classifyError(err, statusCode))

			c.mu.Lock()
			c.errorsByType[category]++
			c.mu.Unlock()

			var req *colly.Request
			link := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				req = r.Request
				link = req.URL.String()
			}
			slog.Error("request error",
				slog.String("source", string(c.source)),
				slog.String("url", link),
				slog.String("category", category),
				slog.Any("error", err),
			)
			c.metrics.incError(c.source, category)

			if req == nil || !c.retry.Schedule(req) {
				c.mu.Lock()
				c.failedURLs = append(c.failedURLs, link)
				c.mu.Unlock()
			}
		})

		c.collector.OnHTML("html", onPage)
	})
}

// orderKey positions a record in the source's output stream, e.g.
// (query, page, item). Keys compare element by element.
type orderKey []int

func (k orderKey) less(o orderKey) bool {
	for i := 0; i < len(k) && i < len(o); i++ {
		if k[i] != o[i] {
			return k[i] < o[i]
		}
	}
	return len(k) < len(o)
}

type keyedRecord struct {
	key orderKey
	rec *models.RawRecord
}

// emit stamps a record and holds it until the crawl is over.
func (c *crawler) emit(key orderKey, rec *models.RawRecord) {
	rec.Source = c.source
	if rec.ScrapedAt.IsZero() {
		rec.ScrapedAt = c.now()
	}
	atomic.AddInt64(&c.recordCount, 1)
	c.metrics.incRecords(c.source)

	c.mu.Lock()
	c.collected = append(c.collected, keyedRecord{key: key, rec: rec})
	c.mu.Unlock()
}

// flush forwards collected records to sink in key order.
func (c *crawler) flush(sink RecordSink) {
	c.mu.Lock()
	collected := c.collected
	c.collected = nil
	c.mu.Unlock()

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].key.less(collected[j].key)
	})
	for _, kr := range collected {
		if err := sink.Process(kr.rec); err != nil {
			if !errors.Is(err, pipeline.ErrPipelineClosed) {
				slog.Error("pipeline process error", slog.String("source", string(c.source)), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *crawler) snapshotFailedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.failedURLs))
	copy(out, c.failedURLs)
	return out
}

func (c *crawler) snapshotErrors() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		out[k] = v
	}
	return out
}
