// Package reasoning computes the model-derived reasoning score: per product
// category, an optional vision observation call followed by a scoring call,
// with the five categories fanned out concurrently and joined before
// aggregation. Every external call is timeout-guarded and falls back locally;
// a vision failure costs visual nuance, never the category's score.
package reasoning

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aznory/listinglens/internal/clients"
	"github.com/aznory/listinglens/internal/models"
	"github.com/aznory/listinglens/internal/sentiment"
)

const (
	maxVisionImages    = 6
	maxNegativeReviews = 10

	// The vision step is the most failure-prone external call, so it gets
	// the shortest timeout and the fastest fallback.
	defaultVisionTimeout = 15 * time.Second
	defaultChatTimeout   = 60 * time.Second
)

type ChatCompleter interface {
	Complete(ctx context.Context, system, user string, opts clients.CompletionOptions) (string, error)
}

type VisionObserver interface {
	Observe(ctx context.Context, prompt string, images []clients.VisionImage) (string, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (clients.VisionImage, error)
}

type Engine struct {
	chat          ChatCompleter
	vision        VisionObserver
	fetcher       ImageFetcher
	visionTimeout time.Duration
	chatTimeout   time.Duration
}

// NewEngine wires the two model providers and the image fetcher. vision may
// be nil, in which case every category scores from structural metadata only.
func NewEngine(chat ChatCompleter, vision VisionObserver, fetcher ImageFetcher) *Engine {
	return &Engine{
		chat:          chat,
		vision:        vision,
		fetcher:       fetcher,
		visionTimeout: defaultVisionTimeout,
		chatTimeout:   defaultChatTimeout,
	}
}

type categoryOutcome struct {
	analysis     models.CategoryAnalysis
	observations []string
	skipped      bool
}

// ComputeReasoningScore runs all five category analyzers concurrently and
// aggregates their clamped totals. It fails only on caller cancellation;
// every provider failure degrades to a marked fallback instead.
func (e *Engine) ComputeReasoningScore(ctx context.Context, input models.AnalysisInput, ruleTotal int) (models.ReasoningScoreResult, error) {
	outcomes := make([]categoryOutcome, 5)
	defs := []CategoryDef{mainImageCategory, titleCategory, subImagesCategory, reviewsCategory, richBrandCategory}

	g, gctx := errgroup.WithContext(ctx)
	run := func(slot int, fn func(context.Context) categoryOutcome) {
		g.Go(func() error {
			outcomes[slot] = fn(gctx)
			// Cancellation aborts the whole request: a partially-scored
			// result must never look complete.
			return gctx.Err()
		})
	}

	run(0, func(c context.Context) categoryOutcome { return e.analyzeMainImage(c, input) })
	run(1, func(c context.Context) categoryOutcome { return e.analyzeTitle(c, input) })
	run(2, func(c context.Context) categoryOutcome { return e.analyzeSubImages(c, input) })
	run(3, func(c context.Context) categoryOutcome { return e.analyzeReviews(c, input) })
	run(4, func(c context.Context) categoryOutcome { return e.analyzeRichBrand(c, input) })

	if err := g.Wait(); err != nil {
		return models.ReasoningScoreResult{}, err
	}

	result := models.ReasoningScoreResult{
		Analyses:     make(map[string]models.CategoryAnalysis),
		Observations: make(map[string][]string),
	}
	for i, outcome := range outcomes {
		if outcome.skipped {
			continue
		}
		name := defs[i].Name
		result.Analyses[name] = outcome.analysis
		if len(outcome.observations) > 0 {
			result.Observations[name] = outcome.observations
		}

		total := outcome.analysis.Total()
		switch name {
		case models.CategoryMainImage:
			result.Breakdown.MainImage = total
		case models.CategoryTitle:
			result.Breakdown.Title = total
		case models.CategorySubImages:
			result.Breakdown.SubImages = total
		case models.CategoryReviews:
			result.Breakdown.Reviews = total
		case models.CategoryRichBrand:
			result.Breakdown.RichBrand = total
		}
	}
	result.Total = result.Breakdown.MainImage + result.Breakdown.Title +
		result.Breakdown.SubImages + result.Breakdown.Reviews + result.Breakdown.RichBrand

	result.Summary = e.generateSummary(ctx, result.Analyses)

	slog.Info("[Reasoning] Computed reasoning score",
		slog.String("asin", input.ASIN),
		slog.Int("rule_total", ruleTotal),
		slog.Int("reasoning_total", result.Total))
	return result, nil
}

func (e *Engine) analyzeMainImage(ctx context.Context, input models.AnalysisInput) categoryOutcome {
	main := input.Images.Main
	if main == nil || main.URL == "" {
		return categoryOutcome{skipped: true}
	}

	observations := e.observe(ctx, mainImageCategory, []string{main.URL})
	prompt := mainImageScoringPrompt(main, observations, len(observations) == 0)
	analysis := e.scoreCategory(ctx, mainImageCategory, scoringSystemPrompt, prompt)
	return categoryOutcome{analysis: analysis, observations: observations}
}

func (e *Engine) analyzeTitle(ctx context.Context, input models.AnalysisInput) categoryOutcome {
	if input.Title == "" {
		// A missing title is a judged zero, not a degraded analysis.
		return categoryOutcome{analysis: models.CategoryAnalysis{
			Subscores: map[string]int{"seoStructure": 0, "ctrDesign": 0, "readability": 0},
			Why:       "title was not available",
		}}
	}
	analysis := e.scoreCategory(ctx, titleCategory, scoringSystemPrompt, titleScoringPrompt(input.Title))
	return categoryOutcome{analysis: analysis}
}

func (e *Engine) analyzeSubImages(ctx context.Context, input models.AnalysisInput) categoryOutcome {
	subs := input.Images.Subs
	if len(subs) == 0 {
		return categoryOutcome{skipped: true}
	}

	urls := make([]string, 0, maxVisionImages)
	for _, sub := range subs {
		if sub.URL == "" {
			continue
		}
		urls = append(urls, sub.URL)
		if len(urls) == maxVisionImages {
			break
		}
	}

	observations := e.observe(ctx, subImagesCategory, urls)
	prompt := subImagesScoringPrompt(subs, observations, len(observations) == 0)
	analysis := e.scoreCategory(ctx, subImagesCategory, scoringSystemPrompt, prompt)
	return categoryOutcome{analysis: analysis, observations: observations}
}

func (e *Engine) analyzeReviews(ctx context.Context, input models.AnalysisInput) categoryOutcome {
	count := 0
	if input.Reviews.TotalCount != nil {
		count = *input.Reviews.TotalCount
	}
	if count == 0 {
		// Zero reviews means zero negative reviews: automatic full marks,
		// no model call.
		return categoryOutcome{analysis: models.CategoryAnalysis{
			Subscores: map[string]int{"negativeVisibility": 4, "negativeSeverity": 3, "reassurancePath": 3},
			Why:       "no reviews exist, so negative reviews cannot block conversion",
		}}
	}

	screens := sentiment.ScreenReviews(input.Reviews.NegativeTexts)
	prompt := reviewsScoringPrompt(count, input.Reviews.AverageRating, screens)
	analysis := e.scoreCategory(ctx, reviewsCategory, reviewsSystemPrompt, prompt)
	return categoryOutcome{analysis: analysis}
}

func (e *Engine) analyzeRichBrand(ctx context.Context, input models.AnalysisInput) categoryOutcome {
	var observations []string
	if len(input.RichContent.ImageURLs) > 0 {
		urls := input.RichContent.ImageURLs
		if len(urls) > maxVisionImages {
			urls = urls[:maxVisionImages]
		}
		observations = e.observe(ctx, richBrandCategory, urls)
	}

	prompt := richBrandScoringPrompt(input.RichContent, input.Brand, observations)
	analysis := e.scoreCategory(ctx, richBrandCategory, scoringSystemPrompt, prompt)
	return categoryOutcome{analysis: analysis, observations: observations}
}

// observe runs the category's vision step. Any failure (fetch, provider,
// parse) returns nil observations; the caller proceeds metadata-only.
func (e *Engine) observe(ctx context.Context, def CategoryDef, urls []string) []string {
	if e.vision == nil || e.fetcher == nil || def.VisionPrompt == "" || len(urls) == 0 {
		return nil
	}

	images := make([]clients.VisionImage, 0, len(urls))
	for _, url := range urls {
		img, err := e.fetcher.Fetch(ctx, url)
		if err != nil {
			slog.Warn("[Reasoning] Failed to fetch image for vision call",
				slog.String("category", def.Name),
				slog.String("url", url),
				slog.String("error", err.Error()))
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return nil
	}

	vctx, cancel := context.WithTimeout(ctx, e.visionTimeout)
	defer cancel()

	raw, err := e.vision.Observe(vctx, def.VisionPrompt, images)
	if err != nil {
		slog.Warn("[Reasoning] Vision call failed, continuing without observations",
			slog.String("category", def.Name),
			slog.String("error", err.Error()))
		return nil
	}

	parsed, ok := decodeLoose(raw)
	if !ok {
		slog.Warn("[Reasoning] Vision response was not parsable JSON",
			slog.String("category", def.Name))
		return nil
	}
	return stringListField(parsed, def.ObservationsKey)
}

// scoreCategory runs the scoring call and coerces the response. Any failure
// yields the category's marked fallback analysis.
func (e *Engine) scoreCategory(ctx context.Context, def CategoryDef, system, user string) models.CategoryAnalysis {
	cctx, cancel := context.WithTimeout(ctx, e.chatTimeout)
	defer cancel()

	raw, err := e.chat.Complete(cctx, system, user, clients.CompletionOptions{
		Temperature: 0.7,
		MaxTokens:   2000,
		JSONObject:  true,
	})
	if err != nil {
		slog.Warn("[Reasoning] Scoring call failed, applying fallback",
			slog.String("category", def.Name),
			slog.String("error", err.Error()))
		return def.fallbackAnalysis()
	}

	parsed, ok := decodeLoose(raw)
	if !ok {
		slog.Warn("[Reasoning] Scoring response was not parsable JSON, applying fallback",
			slog.String("category", def.Name))
		return def.fallbackAnalysis()
	}

	analysis, ok := def.coerce(parsed)
	if !ok {
		slog.Warn("[Reasoning] Scoring response carried no expected fields, applying fallback",
			slog.String("category", def.Name))
		return def.fallbackAnalysis()
	}
	return analysis
}

// generateSummary is best-effort: a failed summary never degrades the score.
func (e *Engine) generateSummary(ctx context.Context, analyses map[string]models.CategoryAnalysis) *models.ImprovementSummary {
	if len(analyses) == 0 {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, e.chatTimeout)
	defer cancel()

	raw, err := e.chat.Complete(cctx, scoringSystemPrompt, summaryPrompt(analyses), clients.CompletionOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		JSONObject:  true,
	})
	if err != nil {
		slog.Warn("[Reasoning] Improvement summary call failed", slog.String("error", err.Error()))
		return nil
	}

	parsed, ok := decodeLoose(raw)
	if !ok {
		return nil
	}

	summary := &models.ImprovementSummary{
		MostCriticalIssue: stringField(parsed, "most_critical_issue"),
		QuickWins:         capList(stringListField(parsed, "quick_wins"), 3),
		HighImpactActions: capList(stringListField(parsed, "high_impact_actions"), 3),
	}
	if summary.MostCriticalIssue == "" && len(summary.QuickWins) == 0 && len(summary.HighImpactActions) == 0 {
		return nil
	}
	return summary
}

func capList(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
