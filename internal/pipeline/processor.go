package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/macitch/Bridgea/internal/fetch"
	"github.com/macitch/Bridgea/internal/guard"
	"github.com/macitch/Bridgea/internal/link"
)

// ErrInFlight is returned when an extraction for the same URL is already
// running. Callers surface it as a distinct retry-later condition.
var ErrInFlight = errors.New("url is already being processed")

// Extractor produces raw metadata for a URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (link.Metadata, error)
}

// StrategySelector decides between the static and rendered extraction paths.
type StrategySelector interface {
	Select(ctx context.Context, url string) fetch.Strategy
}

// Enricher assigns categories and the final ranked tag set.
type Enricher interface {
	Categories(ctx context.Context, meta link.Metadata) []string
	Tags(ctx context.Context, meta link.Metadata) []string
}

// Processor runs the full metadata pipeline for one URL: duplicate guard,
// strategy selection, extraction, enrichment.
type Processor struct {
	inflight *guard.InFlight
	selector StrategySelector
	static   Extractor
	rendered Extractor
	enricher Enricher
}

// NewProcessor wires the pipeline components together.
func NewProcessor(inflight *guard.InFlight, selector StrategySelector, static, rendered Extractor, enricher Enricher) *Processor {
	return &Processor{
		inflight: inflight,
		selector: selector,
		static:   static,
		rendered: rendered,
		enricher: enricher,
	}
}

// Process extracts and enriches metadata for the URL. A concurrent request
// for the same URL fails fast with ErrInFlight. Extraction errors propagate;
// enrichment errors degrade to empty categories/tags. The in-flight slot is
// released on every path so a failed extraction never blocks future requests.
func (p *Processor) Process(ctx context.Context, url string) (link.Metadata, error) {
	if !p.inflight.TryAcquire(url) {
		return link.Metadata{}, fmt.Errorf("%w: %s", ErrInFlight, url)
	}
	defer p.inflight.Release(url)

	start := time.Now()

	strategy := p.selector.Select(ctx, url)

	var meta link.Metadata
	var err error
	switch strategy {
	case fetch.StrategyRendered:
		meta, err = p.rendered.Extract(ctx, url)
	default:
		meta, err = p.static.Extract(ctx, url)
	}
	if err != nil {
		return link.Metadata{}, fmt.Errorf("extracting %s: %w", url, err)
	}
	meta.URL = url

	meta.Categories = p.enricher.Categories(ctx, meta)
	meta.Tags = p.enricher.Tags(ctx, meta)

	slog.Debug("metadata pipeline complete",
		"url", url,
		"strategy", strategy,
		"tags", len(meta.Tags),
		"categories", len(meta.Categories),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return meta, nil
}
