package enrich

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/clipvault/clipd/internal/assetcache"
	"github.com/clipvault/clipd/internal/clipboard"
	"github.com/clipvault/clipd/internal/colorsample"
)

type recordingStore struct {
	mu       sync.Mutex
	titles   map[string]string
	favicons map[string]string
	colors   map[string]string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		titles:   make(map[string]string),
		favicons: make(map[string]string),
		colors:   make(map[string]string),
	}
}

func (s *recordingStore) SetLinkMetadata(ctx context.Context, itemID, title, favicon string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[itemID] = title
	s.favicons[itemID] = favicon
	return nil
}

func (s *recordingStore) SetThemeColor(ctx context.Context, itemID, hexColor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors[itemID] = hexColor
	return nil
}

func (s *recordingStore) title(itemID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titles[itemID]
}

func (s *recordingStore) favicon(itemID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favicons[itemID]
}

func (s *recordingStore) color(itemID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colors[itemID]
}

func newTestEnricher(t *testing.T, store Store, cache *assetcache.Cache) *Enricher {
	t.Helper()
	enricher, err := New(Config{
		Store:         store,
		Cache:         cache,
		ColorStrategy: colorsample.StrategyAverage,
		LinksEnabled:  true,
	})
	if err != nil {
		t.Fatalf("failed to create enricher: %v", err)
	}
	return enricher
}

func TestEnrichLinkAttachesTitleAndFavicon(t *testing.T) {
	page := `<html><head><title>Example Domain</title>` +
		`<link rel="icon" href="/static/icon.png"></head><body>hi</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	store := newRecordingStore()
	enricher := newTestEnricher(t, store, nil)

	enricher.EnrichLink("item-1", server.URL)
	enricher.Wait()

	if store.title("item-1") != "Example Domain" {
		t.Fatalf("title not attached: %q", store.title("item-1"))
	}
	if store.favicon("item-1") != server.URL+"/static/icon.png" {
		t.Fatalf("favicon not resolved: %q", store.favicon("item-1"))
	}
}

func TestEnrichLinkFallsBackToDefaultFavicon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Bare</title></head><body></body></html>`))
	}))
	defer server.Close()

	store := newRecordingStore()
	enricher := newTestEnricher(t, store, nil)

	enricher.EnrichLink("item-1", server.URL)
	enricher.Wait()

	if store.favicon("item-1") != server.URL+"/favicon.ico" {
		t.Fatalf("default favicon not used: %q", store.favicon("item-1"))
	}
}

func TestEnrichLinkFailureIsSilentlyDropped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newRecordingStore()
	enricher := newTestEnricher(t, store, nil)

	enricher.EnrichLink("item-1", server.URL)
	enricher.Wait()

	if store.title("item-1") != "" || store.favicon("item-1") != "" {
		t.Fatalf("failed fetch still updated the store")
	}
}

func TestEnrichLinkDisabledByConfig(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	store := newRecordingStore()
	enricher, err := New(Config{Store: store, LinksEnabled: false})
	if err != nil {
		t.Fatalf("failed to create enricher: %v", err)
	}

	enricher.EnrichLink("item-1", server.URL)
	enricher.Wait()

	if requests != 0 {
		t.Fatalf("disabled enrichment still fetched the page")
	}
}

func TestEnrichImageSamplesColorAndCachesAsset(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	pngBytes := buf.Bytes()

	cache, err := assetcache.New(assetcache.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	store := newRecordingStore()
	enricher := newTestEnricher(t, store, cache)

	enricher.EnrichImage("item-1", pngBytes)
	enricher.Wait()
	cache.Flush()

	themeColor := store.color("item-1")
	if len(themeColor) != 7 || themeColor[0] != '#' {
		t.Fatalf("theme color not sampled: %q", themeColor)
	}
	if _, ok := cache.Get(clipboard.ContentHash("", pngBytes)); !ok {
		t.Fatalf("canonical image bytes not cached under content hash")
	}
}

func TestEnrichImageCorruptBytesDropped(t *testing.T) {
	store := newRecordingStore()
	enricher := newTestEnricher(t, store, nil)

	enricher.EnrichImage("item-1", []byte("not a png"))
	enricher.Wait()

	if store.color("item-1") != "" {
		t.Fatalf("corrupt image still produced a theme color")
	}
}
