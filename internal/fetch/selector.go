package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/macitch/Bridgea/internal/extract"
)

// Strategy names the two ways a page's content can be fetched.
type Strategy string

const (
	// StrategyLightweight means a plain HTTP GET yields usable metadata.
	StrategyLightweight Strategy = "lightweight"
	// StrategyRendered means the page needs a full browser to populate its
	// markup before extraction.
	StrategyRendered Strategy = "rendered"
)

const maxProbeSize = 1 << 20 // 1MB is plenty to reach the <head> metadata

// dynamicHosts is the default set of hostname keywords for sites known to
// render their metadata client-side.
var dynamicHosts = []string{
	"twitter.com",
	"x.com",
	"instagram.com",
	"threads.net",
	"facebook.com",
	"linkedin.com",
	"pinterest.com",
	"behance.net",
	"dribbble.com",
}

// Selector decides whether a URL can be served by the lightweight static
// extractor or needs the rendered path. It probes the URL with a bounded GET
// and escalates conservatively: any ambiguity means rendered.
type Selector struct {
	client       *http.Client
	userAgent    string
	dynamicHosts []string
}

// NewSelector creates a Selector whose probe request is bounded by
// probeTimeout.
func NewSelector(probeTimeout time.Duration, userAgent string) *Selector {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Selector{
		client:       &http.Client{Timeout: probeTimeout},
		userAgent:    userAgent,
		dynamicHosts: dynamicHosts,
	}
}

// Select returns the fetch strategy for the URL. It never fails: a probe
// error, an empty sniffed title, or a known-dynamic host all resolve to
// the expensive-but-safe rendered path.
func (s *Selector) Select(ctx context.Context, target string) Strategy {
	if s.isDynamicHost(target) {
		return StrategyRendered
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return StrategyRendered
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Debug("probe failed, escalating to rendered", "url", target, "error", err)
		return StrategyRendered
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StrategyRendered
	}

	title := extract.SniffTitle(io.LimitReader(resp.Body, maxProbeSize))
	if title == "" {
		return StrategyRendered
	}

	return StrategyLightweight
}

func (s *Selector) isDynamicHost(target string) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, keyword := range s.dynamicHosts {
		if host == keyword || strings.HasSuffix(host, "."+keyword) {
			return true
		}
	}
	return false
}
