// Package pipeline orchestrates one analysis request end to end: entitlement
// check, normalization, rule score, reasoning score, plan synthesis, usage
// recording, and persistence. Each stage runs only if the caller's plan
// includes it.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aznory/listinglens/internal/assembler"
	"github.com/aznory/listinglens/internal/models"
	"github.com/aznory/listinglens/internal/normalizer"
	"github.com/aznory/listinglens/internal/plan"
	"github.com/aznory/listinglens/internal/reasoning"
	"github.com/aznory/listinglens/internal/rulescore"
	"github.com/aznory/listinglens/internal/usage"
)

// Stage is how deep one request runs the pipeline. Each stage includes the
// ones before it; the usage guard can still cut a run short of its stage.
type Stage int

const (
	StageScore Stage = iota
	StageReasoning
	StagePlan
)

// Request is one analysis invocation. DryRun computes the full result but
// bypasses the usage guard and skips recording and persistence. StrictStage
// turns a denial of the requested stage's feature into an error instead of
// degrading the result to the stages the plan allows; callers that asked for
// a specific stage set it, the convenience full-analysis route does not.
type Request struct {
	AccountID   string
	Payload     models.RawAnalysisPayload
	Stage       Stage
	StrictStage bool
	DryRun      bool
}

// RunStore persists completed runs.
type RunStore interface {
	StoreAnalysisRun(ctx context.Context, result assembler.CombinedResult) error
}

// RunCache holds the latest serialized run per ASIN.
type RunCache interface {
	CacheAnalysisRun(ctx context.Context, asin string, payload []byte) error
	CachedAnalysisRun(ctx context.Context, asin string) []byte
}

type Pipeline struct {
	guard       *usage.Guard
	reasoning   *reasoning.Engine
	synthesizer *plan.Synthesizer
	store       RunStore
	cache       RunCache
	now         func() time.Time
}

// New wires the pipeline. store and cache may be nil; runs are then computed
// but not persisted.
func New(guard *usage.Guard, engine *reasoning.Engine, synthesizer *plan.Synthesizer, store RunStore, cache RunCache) *Pipeline {
	return &Pipeline{
		guard:       guard,
		reasoning:   engine,
		synthesizer: synthesizer,
		store:       store,
		cache:       cache,
		now:         time.Now,
	}
}

// Analyze runs the full pipeline for one product. A denial of the score
// feature aborts the run with *usage.DeniedError; denial of reasoning or
// improve degrades the result to the stages the plan allows.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (assembler.CombinedResult, error) {
	scoreGate, err := p.checkFeature(ctx, req, models.FeatureScore)
	if err != nil {
		return assembler.CombinedResult{}, err
	}
	if !scoreGate.OK {
		return assembler.CombinedResult{}, &usage.DeniedError{Result: scoreGate}
	}

	input, err := normalizer.Normalize(req.Payload)
	if err != nil {
		return assembler.CombinedResult{}, err
	}

	ruleResult := rulescore.Compute(input)
	if err := p.recordFeature(ctx, req, models.FeatureScore); err != nil {
		return assembler.CombinedResult{}, err
	}

	var reasoningResult *models.ReasoningScoreResult
	if req.Stage < StageReasoning {
		result, err := assembler.Assemble(input.ASIN, ruleResult, nil, nil, req.DryRun, p.now())
		if err != nil {
			return assembler.CombinedResult{}, err
		}
		if !req.DryRun {
			p.persist(ctx, result)
		}
		return result, nil
	}

	reasoningGate, err := p.checkFeature(ctx, req, models.FeatureReasoning)
	if err != nil {
		return assembler.CombinedResult{}, err
	}
	if reasoningGate.OK && p.reasoning != nil {
		res, err := p.reasoning.ComputeReasoningScore(ctx, input, ruleResult.Total)
		if err != nil {
			return assembler.CombinedResult{}, err
		}
		reasoningResult = &res
		if err := p.recordFeature(ctx, req, models.FeatureReasoning); err != nil {
			return assembler.CombinedResult{}, err
		}
	} else if !reasoningGate.OK {
		if req.StrictStage {
			return assembler.CombinedResult{}, &usage.DeniedError{Result: reasoningGate}
		}
		slog.Info("[Pipeline] Reasoning stage skipped",
			slog.String("account_id", req.AccountID),
			slog.String("code", reasoningGate.Code))
	}

	var improvementPlan *models.ImprovementPlan
	if req.Stage >= StagePlan && reasoningResult != nil && p.synthesizer != nil {
		improveGate, err := p.checkFeature(ctx, req, models.FeatureImprove)
		if err != nil {
			return assembler.CombinedResult{}, err
		}
		if improveGate.OK {
			generated, err := p.synthesizer.Generate(ctx, ruleResult, *reasoningResult, plan.Context{
				ProductTitle:    input.Title,
				Observations:    reasoningResult.Observations,
				NegativeReviews: input.Reviews.NegativeTexts,
			})
			if err != nil {
				return assembler.CombinedResult{}, err
			}
			improvementPlan = &generated
			if err := p.recordFeature(ctx, req, models.FeatureImprove); err != nil {
				return assembler.CombinedResult{}, err
			}
		} else {
			if req.StrictStage {
				return assembler.CombinedResult{}, &usage.DeniedError{Result: improveGate}
			}
			slog.Info("[Pipeline] Improvement plan stage skipped",
				slog.String("account_id", req.AccountID),
				slog.String("code", improveGate.Code))
		}
	}

	result, err := assembler.Assemble(input.ASIN, ruleResult, reasoningResult, improvementPlan, req.DryRun, p.now())
	if err != nil {
		return assembler.CombinedResult{}, err
	}

	if !req.DryRun {
		p.persist(ctx, result)
	}
	return result, nil
}

// Improve synthesizes an improvement plan against the most recent cached run
// for the product when that run already carries a reasoning score, spending
// only the improve entitlement. Without such a run it falls back to a full
// analysis at the requested stage.
func (p *Pipeline) Improve(ctx context.Context, req Request) (assembler.CombinedResult, error) {
	input, err := normalizer.Normalize(req.Payload)
	if err != nil {
		return assembler.CombinedResult{}, err
	}

	prior, ok := p.LatestRun(ctx, input.ASIN)
	if !ok || prior.Reasoning == nil || p.synthesizer == nil {
		return p.Analyze(ctx, req)
	}

	improveGate, err := p.checkFeature(ctx, req, models.FeatureImprove)
	if err != nil {
		return assembler.CombinedResult{}, err
	}
	if !improveGate.OK {
		return assembler.CombinedResult{}, &usage.DeniedError{Result: improveGate}
	}

	generated, err := p.synthesizer.Generate(ctx, prior.Score, *prior.Reasoning, plan.Context{
		ProductTitle:    input.Title,
		Observations:    prior.Reasoning.Observations,
		NegativeReviews: input.Reviews.NegativeTexts,
	})
	if err != nil {
		return assembler.CombinedResult{}, err
	}
	if err := p.recordFeature(ctx, req, models.FeatureImprove); err != nil {
		return assembler.CombinedResult{}, err
	}

	result, err := assembler.Assemble(input.ASIN, prior.Score, prior.Reasoning, &generated, req.DryRun, p.now())
	if err != nil {
		return assembler.CombinedResult{}, err
	}
	if !req.DryRun {
		p.persist(ctx, result)
	}
	return result, nil
}

// checkFeature consults the guard. Dry runs bypass it entirely: they spend
// no quota, so they are never denied on one.
func (p *Pipeline) checkFeature(ctx context.Context, req Request, feature models.Feature) (models.GuardResult, error) {
	if req.DryRun {
		return models.GuardResult{OK: true}, nil
	}
	return p.guard.Check(ctx, req.AccountID, feature)
}

func (p *Pipeline) recordFeature(ctx context.Context, req Request, feature models.Feature) error {
	if req.DryRun {
		return nil
	}
	return p.guard.Record(ctx, req.AccountID, feature)
}

// persist stores the run and refreshes the cache. Persistence failures are
// logged, not returned; the computed result is still valid for the caller.
func (p *Pipeline) persist(ctx context.Context, result assembler.CombinedResult) {
	if p.store != nil {
		if err := p.store.StoreAnalysisRun(ctx, result); err != nil {
			slog.Error("[Pipeline] Failed to store analysis run",
				slog.String("run_id", result.RunID),
				slog.String("error", err.Error()))
		}
	}
	if p.cache != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			slog.Error("[Pipeline] Failed to serialize run for cache",
				slog.String("run_id", result.RunID),
				slog.String("error", err.Error()))
			return
		}
		if err := p.cache.CacheAnalysisRun(ctx, result.ASIN, payload); err != nil {
			slog.Warn("[Pipeline] Failed to cache analysis run",
				slog.String("asin", result.ASIN),
				slog.String("error", err.Error()))
		}
	}
}

// LatestRun returns the cached run for an ASIN if one exists.
func (p *Pipeline) LatestRun(ctx context.Context, asin string) (assembler.CombinedResult, bool) {
	if p.cache == nil {
		return assembler.CombinedResult{}, false
	}
	payload := p.cache.CachedAnalysisRun(ctx, asin)
	if payload == nil {
		return assembler.CombinedResult{}, false
	}
	var result assembler.CombinedResult
	if err := json.Unmarshal(payload, &result); err != nil {
		slog.Warn("[Pipeline] Cached run was not decodable",
			slog.String("asin", asin),
			slog.String("error", err.Error()))
		return assembler.CombinedResult{}, false
	}
	return result, true
}

// IsDenied reports whether err is a usage denial and returns its result.
func IsDenied(err error) (models.GuardResult, bool) {
	var denied *usage.DeniedError
	if errors.As(err, &denied) {
		return denied.Result, true
	}
	return models.GuardResult{}, false
}
