package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/macitch/Bridgea/internal/link"
)

const maxFetchSize = 10 << 20 // 10MB

// Static extracts metadata with a single HTTP GET and a DOM parse, without
// executing any client-side scripts. It handles both HTML pages and PDF
// documents.
type Static struct {
	client    *http.Client
	userAgent string
}

// NewStatic creates a Static extractor using the given HTTP client and
// user-agent string.
func NewStatic(client *http.Client, userAgent string) *Static {
	if client == nil {
		client = http.DefaultClient
	}
	return &Static{client: client, userAgent: userAgent}
}

// Extract fetches the URL and applies the extraction rules. Fetch and parse
// errors are propagated; malformed structured-data blocks inside an otherwise
// valid page are skipped individually.
func (s *Static) Extract(ctx context.Context, target string) (link.Metadata, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return link.Metadata{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return link.Metadata{}, fmt.Errorf("URL must be http or https")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return link.Metadata{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return link.Metadata{}, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return link.Metadata{}, fmt.Errorf("fetching %s: status %d", target, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchSize)

	if isPDF(resp.Header.Get("Content-Type"), target) {
		raw, err := io.ReadAll(body)
		if err != nil {
			return link.Metadata{}, fmt.Errorf("reading PDF body: %w", err)
		}
		return fromPDF(raw, target)
	}

	root, err := html.Parse(body)
	if err != nil {
		return link.Metadata{}, fmt.Errorf("parsing HTML: %w", err)
	}
	return fromDocument(root, target), nil
}

func isPDF(contentType, target string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(target), ".pdf")
}
