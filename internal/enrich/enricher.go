// Package enrich decorates already-persisted history items with derived
// metadata: page title and favicon for links, theme color and cached
// thumbnail for images. All work is best-effort and runs off the capture
// path; failures are dropped after a single attempt.
package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/clipvault/clipd/internal/assetcache"
	"github.com/clipvault/clipd/internal/clipboard"
	"github.com/clipvault/clipd/internal/colorsample"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxFetchBytes       = 1 << 20
)

var errMissingStore = errors.New("item store is required")

// Store is the slice of the persistence sink the enricher mutates. Updates
// on ids deleted in the meantime must be no-ops.
type Store interface {
	SetLinkMetadata(ctx context.Context, itemID, title, favicon string) error
	SetThemeColor(ctx context.Context, itemID, hexColor string) error
}

type Config struct {
	Store         Store
	Cache         *assetcache.Cache
	ColorStrategy colorsample.Strategy
	HTTPClient    *http.Client
	LinksEnabled  bool
	Logger        *zap.Logger
}

// Enricher implements clipboard.Enricher. Each job runs to completion even
// if its item disappears; the resulting update simply lands nowhere.
type Enricher struct {
	store         Store
	cache         *assetcache.Cache
	colorStrategy colorsample.Strategy
	client        *http.Client
	linksEnabled  bool
	logger        *zap.Logger
	jobs          sync.WaitGroup
}

func New(cfg Config) (*Enricher, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		store:         cfg.Store,
		cache:         cfg.Cache,
		colorStrategy: cfg.ColorStrategy,
		client:        client,
		linksEnabled:  cfg.LinksEnabled,
		logger:        logger,
	}, nil
}

// EnrichLink fetches the page once and attaches title and favicon to the
// item. Network failures and malformed pages are dropped silently.
func (e *Enricher) EnrichLink(itemID, linkURL string) {
	if !e.linksEnabled {
		return
	}
	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		title, favicon, err := e.fetchLinkMetadata(linkURL)
		if err != nil {
			e.logger.Debug("link enrichment dropped",
				zap.String("item_id", itemID), zap.Error(err))
			return
		}
		if title == "" && favicon == "" {
			return
		}
		if err := e.store.SetLinkMetadata(context.Background(), itemID, title, favicon); err != nil {
			e.logger.Debug("link metadata update dropped",
				zap.String("item_id", itemID), zap.Error(err))
		}
	}()
}

// EnrichImage samples a theme color from the canonical PNG and mirrors the
// bytes into the asset cache under the capture's content hash.
func (e *Enricher) EnrichImage(itemID string, pngBytes []byte) {
	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		if e.cache != nil {
			e.cache.Put(clipboard.ContentHash("", pngBytes), pngBytes)
		}
		decoded, err := png.Decode(bytes.NewReader(pngBytes))
		if err != nil {
			e.logger.Debug("theme color sampling dropped",
				zap.String("item_id", itemID), zap.Error(err))
			return
		}
		hexColor, ok := colorsample.SampleHex(decoded, e.colorStrategy)
		if !ok {
			return
		}
		if err := e.store.SetThemeColor(context.Background(), itemID, hexColor); err != nil {
			e.logger.Debug("theme color update dropped",
				zap.String("item_id", itemID), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight jobs finish. Used on shutdown and in tests.
func (e *Enricher) Wait() {
	e.jobs.Wait()
}

func (e *Enricher) fetchLinkMetadata(linkURL string) (title, favicon string, err error) {
	base, err := url.Parse(linkURL)
	if err != nil {
		return "", "", err
	}
	response, err := e.client.Get(linkURL)
	if err != nil {
		return "", "", err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status %d", response.StatusCode)
	}

	title, iconHref := parsePage(io.LimitReader(response.Body, maxFetchBytes))
	favicon = resolveFavicon(base, iconHref)
	return title, favicon, nil
}

// parsePage extracts the document title and the first icon link href.
func parsePage(body io.Reader) (title, iconHref string) {
	tokenizer := html.NewTokenizer(body)
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title), iconHref
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = title == ""
			case "link":
				if iconHref == "" && isIconLink(token) {
					iconHref = attrValue(token, "href")
				}
			case "body":
				// Head is over; nothing below contributes.
				return strings.TrimSpace(title), iconHref
			}
		case html.EndTagToken:
			if tokenizer.Token().Data == "title" {
				inTitle = false
			}
		case html.TextToken:
			if inTitle {
				title += tokenizer.Token().Data
			}
		}
	}
}

func isIconLink(token html.Token) bool {
	rel := strings.ToLower(attrValue(token, "rel"))
	for _, value := range strings.Fields(rel) {
		if value == "icon" {
			return true
		}
	}
	return rel == "shortcut icon" || rel == "apple-touch-icon"
}

func attrValue(token html.Token, name string) string {
	for _, attr := range token.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

// resolveFavicon turns the discovered href into an absolute URL, falling
// back to the conventional /favicon.ico location.
func resolveFavicon(base *url.URL, iconHref string) string {
	if iconHref != "" {
		if resolved, err := base.Parse(iconHref); err == nil {
			return resolved.String()
		}
	}
	if base.Scheme == "" || base.Host == "" {
		return ""
	}
	return base.Scheme + "://" + base.Host + "/favicon.ico"
}
