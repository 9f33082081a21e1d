package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/jbscrape/config"
	"github.com/aluiziolira/jbscrape/models"
	"github.com/aluiziolira/jbscrape/parser"
)

const rejectDuplicate = "duplicate"

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when pending records could not be
	// drained in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")

	drainTimeout = 30 * time.Second
)

// ListingSink receives accepted listings in batches while the run is in
// progress.
type ListingSink interface {
	Store(ctx context.Context, listings []*models.Listing) error
}

// Pipeline deduplicates and classifies raw records coming from any number
// of sources. Records are consumed by a single goroutine, so accepted
// listings keep the order in which they were submitted.
type Pipeline struct {
	ctx       context.Context
	majors    []int
	sink      ListingSink
	recordCh  chan *models.RawRecord
	batchSize int
	dedup     *Deduplicator

	wg sync.WaitGroup

	listingsMu sync.Mutex
	listings   []*models.Listing

	metrics  metrics
	outcomes *prometheus.CounterVec

	mu      sync.Mutex // guards closed/err/started
	closed  bool
	started bool
	err     error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline for cfg.TargetMajors. sink may be nil. When
// reg is non-nil the per-outcome record counter is registered on it.
func NewPipeline(ctx context.Context, cfg *config.Config, sink ListingSink, reg prometheus.Registerer) (*Pipeline, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dedup, err := NewDeduplicator(cfg.DedupeMaxSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		ctx:       ctx,
		majors:    append([]int(nil), cfg.TargetMajors...),
		sink:      sink,
		recordCh:  make(chan *models.RawRecord, cfg.PipelineBufferSize),
		batchSize: cfg.BatchSize,
		dedup:     dedup,
		metrics:   newMetrics(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jbscrape_pipeline_records_total",
				Help: "Raw records handled by the pipeline, by outcome.",
			},
			[]string{"source", "outcome"},
		),
		shutdown: make(chan struct{}),
	}
	if p.batchSize <= 0 {
		p.batchSize = 1
	}
	if reg != nil {
		if err := reg.Register(p.outcomes); err != nil {
			return nil, fmt.Errorf("register pipeline metrics: %w", err)
		}
	}
	return p, nil
}

// Start launches the consumer goroutine. Calling it more than once has no
// effect.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.started {
		return
	}
	p.started = true
	p.wg.Add(1)
	go p.consume()
}

// Process enqueues records for classification.
func (p *Pipeline) Process(records ...*models.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	if p.isClosed() {
		return ErrPipelineClosed
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := p.enqueue(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting records and waits for pending ones to be handled.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	started := p.started
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	if started {
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		timer := time.NewTimer(drainTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			p.signalShutdown()
			return ErrPipelineCloseTimeout
		}
	}

	p.signalShutdown()
	return p.Err()
}

// Err returns the first sink error, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Listings returns the accepted listings in arrival order.
func (p *Pipeline) Listings() []*models.Listing {
	p.listingsMu.Lock()
	defer p.listingsMu.Unlock()
	out := make([]*models.Listing, len(p.listings))
	copy(out, p.listings)
	return out
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("received", m["received_records"].(int64)),
					slog.Int64("accepted", m["accepted_listings"].(int64)),
					slog.Any("rejections", m["rejections"]),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) consume() {
	defer p.wg.Done()

	batch := make([]*models.Listing, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 || p.sink == nil {
			batch = batch[:0]
			return nil
		}
		if err := p.sink.Store(p.ctx, batch); err != nil {
			return err
		}
		batch = make([]*models.Listing, 0, p.batchSize)
		return nil
	}

	failed := false
	for rec := range p.recordCh {
		listing := p.handle(rec)
		if listing == nil || failed {
			continue
		}
		batch = append(batch, listing)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("store batch: %w", err))
				failed = true
			}
		}
	}

	if failed {
		return
	}
	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("store batch: %w", err))
	}
}

func (p *Pipeline) handle(rec *models.RawRecord) *models.Listing {
	p.metrics.incrementReceived()

	if !p.dedup.FirstSeen(rec) {
		p.reject(rec, rejectDuplicate)
		return nil
	}

	listing, reason := parser.Classify(rec, p.majors)
	if reason != parser.Accepted {
		p.reject(rec, string(reason))
		return nil
	}
	if listing.Identifier == "" {
		listing.Identifier = RecordIdentifier(rec)
	}

	p.listingsMu.Lock()
	p.listings = append(p.listings, listing)
	p.listingsMu.Unlock()

	p.metrics.incrementAccepted()
	p.outcomes.WithLabelValues(string(rec.Source), "accepted").Inc()
	slog.Debug("listing accepted",
		slog.String("source", string(listing.Source)),
		slog.String("id", listing.Identifier),
		slog.String("ios_version", listing.IOSVersion),
	)
	return listing
}

func (p *Pipeline) reject(rec *models.RawRecord, reason string) {
	p.metrics.addRejection(reason)
	p.outcomes.WithLabelValues(string(rec.Source), reason).Inc()
}

func (p *Pipeline) enqueue(rec *models.RawRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.recordCh <- rec:
		return nil
	}
}

// setErr records the first sink failure. Only storage stops: Process keeps
// accepting records and Listings stays complete. Close returns the error.
func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	received   int64
	accepted   int64
	rejections map[string]int
}

func newMetrics() metrics {
	return metrics{
		rejections: make(map[string]int),
	}
}

func (m *metrics) incrementReceived() {
	m.mu.Lock()
	m.received++
	m.mu.Unlock()
}

func (m *metrics) incrementAccepted() {
	m.mu.Lock()
	m.accepted++
	m.mu.Unlock()
}

func (m *metrics) addRejection(kind string) {
	m.mu.Lock()
	m.rejections[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	rejections := make(map[string]int, len(m.rejections))
	for k, v := range m.rejections {
		rejections[k] = v
	}

	return map[string]interface{}{
		"received_records":  m.received,
		"accepted_listings": m.accepted,
		"rejections":        rejections,
	}
}
