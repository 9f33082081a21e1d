// Package browser renders JavaScript-heavy marketplace pages in headless
// Chrome and serves the result to the collectors as ordinary HTTP responses.
package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Config controls the headless browser.
type Config struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Timeout   time.Duration
	// Settle is how long to wait after navigation for client-side rendering.
	Settle time.Duration
}

// DefaultConfig returns settings suitable for marketplace search pages.
func DefaultConfig() Config {
	return Config{
		Headless: true,
		Timeout:  60 * time.Second,
		Settle:   2 * time.Second,
	}
}

// Renderer drives a single Chrome process; each Render call uses its own
// tab, so concurrent calls are safe.
type Renderer struct {
	cfg           Config
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewRenderer starts Chrome.
func NewRenderer(cfg Config) (*Renderer, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Renderer{
		cfg:           cfg,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// Render navigates to url and returns the document's outer HTML.
func (r *Renderer) Render(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	// chromedp contexts descend from the browser, not the request.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if r.cfg.Settle > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.Settle))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// Close shuts Chrome down.
func (r *Renderer) Close() {
	r.cancelBrowser()
	r.cancelAlloc()
}

// PageRenderer produces the rendered HTML of a page.
type PageRenderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Transport is an http.RoundTripper that answers GET requests with the
// rendered page. Other methods are refused. The marketplace status code is
// not visible after rendering, so successful renders are reported as 200.
type Transport struct {
	Renderer PageRenderer
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		defer req.Body.Close()
	}
	if req.Method != http.MethodGet {
		return nil, fmt.Errorf("browser transport: unsupported method %s", req.Method)
	}

	html, err := t.Renderer.Render(req.Context(), req.URL.String())
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Content-Length", strconv.Itoa(len(html)))
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(html)),
		ContentLength: int64(len(html)),
		Request:       req,
	}, nil
}
