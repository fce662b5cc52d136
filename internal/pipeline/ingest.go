package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"MockMate/internal/domain"
	"MockMate/internal/ports"
	"MockMate/internal/source"
)

// CycleState names the phase an ingestion cycle is in, for logs and the API.
type CycleState string

const (
	StateIdle         CycleState = "idle"
	StateFetching     CycleState = "fetching"
	StateScoring      CycleState = "scoring"
	StateSynthesizing CycleState = "synthesizing"
)

// CycleConfig bounds one ingestion run.
type CycleConfig struct {
	MaxConcurrent  int
	SourceTimeout  time.Duration
	ItemsPerSource int
}

// Report summarizes one ingestion cycle. Source failures are collected here,
// never propagated: a cycle with failed sources is partial, not failed.
type Report struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Sources      int
	SourceErrors map[string]error
	NewItems     int
	Questions    int
	ItemsSkipped int
	ItemsFailed  int
}

// Partial reports whether some sources failed while others succeeded.
func (r Report) Partial() bool { return len(r.SourceErrors) > 0 }

// Cycle orchestrates one fetch -> dedup/score -> synthesize run over every
// registered source. Fetches fan out concurrently under a bound; all store
// writes happen sequentially on the cycle goroutine so a cycle is the single
// writer while it runs.
type Cycle struct {
	registry *source.Registry
	store    ports.QuestionStore
	scorer   *Scorer
	synth    *Synthesizer
	cfg      CycleConfig
	logger   *slog.Logger
	state    atomic.Value
}

// NewCycle wires the cycle dependencies.
func NewCycle(reg *source.Registry, store ports.QuestionStore, scorer *Scorer, synth *Synthesizer, cfg CycleConfig, log *slog.Logger) *Cycle {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 30 * time.Second
	}
	if cfg.ItemsPerSource <= 0 {
		cfg.ItemsPerSource = 10
	}

	c := &Cycle{
		registry: reg,
		store:    store,
		scorer:   scorer,
		synth:    synth,
		cfg:      cfg,
		logger:   log,
	}
	c.state.Store(StateIdle)
	return c
}

// State returns the current phase.
func (c *Cycle) State() CycleState {
	return c.state.Load().(CycleState)
}

type fetchResult struct {
	src   domain.Source
	items []domain.RawItem
	err   error
}

// Run executes one full ingestion cycle. Only a structural failure (the
// source catalog cannot be read) returns an error; per-source and per-item
// failures are recorded in the report and the cycle completes.
func (c *Cycle) Run(ctx context.Context) (Report, error) {
	report := Report{StartedAt: time.Now().UTC(), SourceErrors: map[string]error{}}
	defer func() {
		c.state.Store(StateIdle)
	}()

	sources, err := c.store.ListSources(ctx)
	if err != nil {
		return report, fmt.Errorf("list sources: %w", err)
	}
	report.Sources = len(sources)

	c.state.Store(StateFetching)
	results := c.fetchAll(ctx, sources)

	for _, res := range results {
		if res.err != nil {
			// Leave lastFetched untouched so the failure is visible.
			report.SourceErrors[res.src.Name] = res.err
			c.log("source fetch failed", "source", res.src.Name, "error", res.err)
			continue
		}

		if err := c.processSource(ctx, res, &report); err != nil {
			report.SourceErrors[res.src.Name] = err
			c.log("source processing failed", "source", res.src.Name, "error", err)
			continue
		}

		if err := c.store.TouchSourceFetched(ctx, res.src.ID); err != nil {
			c.log("update last fetched failed", "source", res.src.Name, "error", err)
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// fetchAll fans fetches out under the concurrency bound, one timeout per
// source, and collects per-source outcomes.
func (c *Cycle) fetchAll(ctx context.Context, sources []domain.Source) []fetchResult {
	results := make([]fetchResult, len(sources))
	sem := make(chan struct{}, c.cfg.MaxConcurrent)

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, src domain.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			fetcher, err := c.registry.Resolve(src.Kind)
			if err != nil {
				results[i] = fetchResult{src: src, err: err}
				return
			}

			fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.SourceTimeout)
			defer cancel()

			items, err := fetcher.Fetch(fetchCtx, src, c.cfg.ItemsPerSource)
			results[i] = fetchResult{src: src, items: items, err: err}
		}(i, src)
	}
	wg.Wait()

	return results
}

// processSource dedups, scores, persists, and synthesizes one source's batch.
// Runs on the cycle goroutine; store writes stay serialized.
func (c *Cycle) processSource(ctx context.Context, res fetchResult, report *Report) error {
	if len(res.items) == 0 {
		return nil
	}

	c.state.Store(StateScoring)

	urls := make([]string, 0, len(res.items))
	for _, item := range res.items {
		urls = append(urls, item.Fingerprint())
	}
	seen, err := c.store.SeenURLs(ctx, urls)
	if err != nil {
		return fmt.Errorf("filter seen urls: %w", err)
	}

	scored := c.scorer.ScoreBatch(res.items, seen)
	if len(scored) == 0 {
		return nil
	}

	// SaveItems may drop items whose URL raced in since the dedup check, so
	// the target position is looked up by URL, never by slice index.
	positions := make(map[string]domain.Position, len(scored))
	items := make([]domain.NewsItem, 0, len(scored))
	for _, sc := range scored {
		positions[sc.URL] = sc.Position
		items = append(items, domain.NewsItem{
			SourceID:    res.src.ID,
			Title:       sc.Title,
			Summary:     sc.Summary,
			Content:     sc.Content,
			URL:         sc.URL,
			Category:    res.src.Category,
			PublishedAt: sc.PublishedAt,
			Status:      domain.StatusScored,
			Relevance:   sc.Relevance,
		})
	}

	saved, err := c.store.SaveItems(ctx, items)
	if err != nil {
		return fmt.Errorf("save items: %w", err)
	}
	report.NewItems += len(saved)

	c.state.Store(StateSynthesizing)
	for _, item := range saved {
		c.synthesizeItem(ctx, item, positions[item.URL], report)
	}

	return nil
}

// synthesizeItem advances a single item to its terminal status. Failures are
// isolated: they are counted and logged, nothing more.
func (c *Cycle) synthesizeItem(ctx context.Context, item domain.NewsItem, position domain.Position, report *Report) {
	question, err := c.synth.Synthesize(ctx, item, position, domain.DifficultyMedium)
	switch {
	case errors.Is(err, ErrBelowThreshold):
		report.ItemsSkipped++
		c.advance(ctx, item.ID, domain.StatusSkipped)
	case err != nil:
		report.ItemsFailed++
		c.log("synthesis failed", "item", item.ID, "error", err)
		c.advance(ctx, item.ID, domain.StatusFailed)
	default:
		if err := c.store.SaveQuestion(ctx, question); err != nil {
			report.ItemsFailed++
			c.log("save question failed", "item", item.ID, "error", err)
			c.advance(ctx, item.ID, domain.StatusFailed)
			return
		}
		report.Questions++
		c.advance(ctx, item.ID, domain.StatusGenerated)
	}
}

func (c *Cycle) advance(ctx context.Context, itemID int64, status domain.ProcessingStatus) {
	if err := c.store.AdvanceItemStatus(ctx, itemID, status); err != nil {
		c.log("advance item status failed", "item", itemID, "status", status, "error", err)
	}
}

func (c *Cycle) log(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
