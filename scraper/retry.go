package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/jbscrape/config"
	"github.com/aluiziolira/jbscrape/models"
)

// retryManager re-issues failed requests with capped exponential backoff.
type retryManager struct {
	cfg     *config.Config
	source  models.Source
	metrics *Metrics
	ctx     context.Context

	mu           sync.Mutex
	attempts     map[string]int
	timers       map[string]*time.Timer
	pending      int
	totalRetries int
	stopped      bool
}

func newRetryManager(cfg *config.Config, source models.Source, metrics *Metrics) *retryManager {
	return &retryManager{
		cfg:      cfg,
		source:   source,
		metrics:  metrics,
		attempts: make(map[string]int),
		timers:   make(map[string]*time.Timer),
		ctx:      context.Background(),
	}
}

// Schedule arranges a retry of req and reports whether one was scheduled.
func (rm *retryManager) Schedule(req *colly.Request) bool {
	if rm.cfg.MaxRetries == 0 || req == nil || req.URL == nil {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped || rm.ctx.Err() != nil {
		return false
	}

	key := req.URL.String()
	attempt := rm.attempts[key]
	if attempt >= rm.cfg.MaxRetries {
		return false
	}

	attempt++
	rm.attempts[key] = attempt
	rm.totalRetries++
	rm.metrics.incRetries(rm.source)

	rm.resetTimerLocked(key)
	rm.pending++
	rm.timers[key] = time.AfterFunc(rm.backoff(attempt), func() {
		rm.fireRetry(key, req)
	})
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) resetTimerLocked(key string) {
	if timer, ok := rm.timers[key]; ok {
		if timer.Stop() {
			rm.pending--
		}
		delete(rm.timers, key)
	}
}

func (rm *retryManager) fireRetry(key string, req *colly.Request) {
	rm.mu.Lock()
	stopped := rm.stopped
	ctx := rm.ctx
	delete(rm.timers, key)
	rm.mu.Unlock()

	// pending drops only after Retry has handed the request to the
	// collector, so the crawl loop never sees a gap.
	defer func() {
		rm.mu.Lock()
		rm.pending--
		rm.mu.Unlock()
	}()

	if stopped || ctx.Err() != nil {
		return
	}
	if err := req.Retry(); err != nil {
		slog.Debug("retry visit failed", slog.String("url", key), slog.Any("error", err))
	}
}

// Pending returns the number of scheduled retries not yet handed to the
// collector.
func (rm *retryManager) Pending() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.pending
}

func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for key := range rm.timers {
		rm.resetTimerLocked(key)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		rm.ctx = context.Background()
		return
	}
	rm.ctx = ctx
}
