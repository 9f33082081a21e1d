package browser

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type fakeRenderer struct {
	html string
	err  error
	urls []string
}

func (f *fakeRenderer) Render(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.html, f.err
}

func TestTransportServesRenderedHTML(t *testing.T) {
	fake := &fakeRenderer{html: "<html><body><li data-listingid=\"1\"></li></body></html>"}
	client := &http.Client{Transport: &Transport{Renderer: fake}}

	resp, err := client.Get("https://www.ebay.com/sch/i.html?_nkw=iphone")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(body) != fake.html {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if len(fake.urls) != 1 || fake.urls[0] != "https://www.ebay.com/sch/i.html?_nkw=iphone" {
		t.Fatalf("rendered urls = %v", fake.urls)
	}
}

func TestTransportPropagatesRenderErrors(t *testing.T) {
	renderErr := errors.New("tab crashed")
	client := &http.Client{Transport: &Transport{Renderer: &fakeRenderer{err: renderErr}}}

	_, err := client.Get("https://swappa.com/listings/apple-iphone-13")
	if !errors.Is(err, renderErr) {
		t.Fatalf("expected render error, got %v", err)
	}
}

func TestTransportRejectsNonGet(t *testing.T) {
	client := &http.Client{Transport: &Transport{Renderer: &fakeRenderer{}}}
	resp, err := client.Post("https://swappa.com/", "text/plain", strings.NewReader("x"))
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected error for POST")
	}
}
