package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"

	"github.com/macitch/Bridgea/internal/link"
)

// requestIdleWindow is the stability window for the network-idle wait: the
// page is considered loaded once no request has been in flight for this long.
const requestIdleWindow = 300 * time.Millisecond

// Rendered extracts metadata by driving a headless browser, for pages that
// only populate their markup client-side. Each call launches an isolated
// browser instance and tears it down before returning.
type Rendered struct {
	userAgent     string
	navTimeout    time.Duration
	settleDelay   time.Duration
	siteSelectors map[string][]string
}

// NewRendered creates a Rendered extractor. navTimeout bounds the whole
// navigate-and-evaluate sequence; settleDelay is an additional fixed wait
// after network idle to let deferred client-side rendering finish.
func NewRendered(userAgent string, navTimeout, settleDelay time.Duration) *Rendered {
	return &Rendered{
		userAgent:   userAgent,
		navTimeout:  navTimeout,
		settleDelay: settleDelay,
		siteSelectors: map[string][]string{
			// Tag chips on Behance project pages are rendered client-side.
			"behance.net":  {".ProjectTools-projectTools-tag", "a[href*='/search?tags=']"},
			"dribbble.com": {".shot-tags a"},
		},
	}
}

// Extract renders the page and applies the same extraction rules as the
// static path, plus per-site selectors as a supplementary tag source. The
// browser is released on every path, including navigation failure.
func (r *Rendered) Extract(ctx context.Context, target string) (meta link.Metadata, err error) {
	path, found := launcher.LookPath()
	if !found {
		return link.Metadata{}, fmt.Errorf("no browser executable found for rendering")
	}

	launch := launcher.New().Bin(path).Headless(true)
	controlURL, err := launch.Launch()
	if err != nil {
		return link.Metadata{}, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		launch.Cleanup()
		return link.Metadata{}, fmt.Errorf("connecting to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			slog.Warn("closing browser", "url", target, "error", closeErr)
		}
		launch.Cleanup()
	}()

	ctx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return link.Metadata{}, fmt.Errorf("creating page: %w", err)
	}
	page = page.Context(ctx)

	// A realistic desktop UA avoids the bot-blocking many of these sites do.
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.userAgent}); err != nil {
		return link.Metadata{}, fmt.Errorf("setting user agent: %w", err)
	}

	if err := page.Navigate(target); err != nil {
		return link.Metadata{}, fmt.Errorf("navigating to %s: %w", target, err)
	}

	wait := page.WaitRequestIdle(requestIdleWindow, nil, nil, nil)
	wait()

	select {
	case <-time.After(r.settleDelay):
	case <-ctx.Done():
		return link.Metadata{}, fmt.Errorf("rendering %s: %w", target, ctx.Err())
	}

	rendered, err := page.HTML()
	if err != nil {
		return link.Metadata{}, fmt.Errorf("reading rendered DOM: %w", err)
	}

	root, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return link.Metadata{}, fmt.Errorf("parsing rendered DOM: %w", err)
	}
	meta = fromDocument(root, target)

	meta.Tags = link.Dedupe(append(meta.Tags, r.siteTags(page, target)...))

	return meta, nil
}

// siteTags evaluates per-hostname selectors against the live page. Selector
// misses are expected on layout changes and never fail the extraction.
func (r *Rendered) siteTags(page *rod.Page, target string) []string {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	selectors := r.siteSelectors[host]
	if len(selectors) == 0 {
		return nil
	}

	var tags []string
	for _, sel := range selectors {
		elements, err := page.Elements(sel)
		if err != nil {
			slog.Debug("site selector lookup failed", "url", target, "selector", sel, "error", err)
			continue
		}
		for _, el := range elements {
			text, err := el.Text()
			if err != nil {
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				tags = append(tags, text)
			}
		}
	}
	return tags
}
