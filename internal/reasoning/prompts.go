package reasoning

import (
	"fmt"
	"strings"

	"github.com/aznory/listinglens/internal/models"
	"github.com/aznory/listinglens/internal/sentiment"
)

// The scoring calls share one consultant persona. The vision prompts use a
// separate observer persona that is explicitly forbidden from scoring, so
// that seeing and judging stay decoupled.

const scoringSystemPrompt = `You are a top consultant for product listing page optimization.
Evaluate whether the page structure raises conversion, judging strictly by
"would this actually sell". Every score must come with a concrete reason (why).
Abstract verdicts like "good" or "weak" alone are forbidden.`

const reviewsSystemPrompt = `You are a review analysis specialist for product listings.
Judge the risk that negative review elements block conversion.

Absolute scoring rule (deduction method): when no clear negative element can
be confirmed, award FULL MARKS automatically. Drop the bias of hunting for
flaws. A peaceful review section deserves the highest rating.`

const visionSystemHeader = `You are a visual UX and e-commerce conversion expert.

%s
Do NOT score. Do NOT summarize.
Only provide concrete visual observations.

Focus on:
%s

Output rules:
- No opinions like "good" or "bad" alone
- Describe what is visible and how it affects clarity or attention
- Bullet points only

Output format (JSON):
{
  "%s": string[]
}`

var mainImageVisionPrompt = fmt.Sprintf(visionSystemHeader,
	"Analyze the following product main image visually.",
	`- Visibility when shown small in a search-results grid
- Depth, lighting, contrast
- Instant clarity of what the product is`,
	"main_image_observations")

var subImagesVisionPrompt = fmt.Sprintf(visionSystemHeader,
	"Analyze the following product sub-images visually.",
	`- Whether images communicate benefits visually
- Consistency of color, style, and tone
- Text density and readability on mobile
- Whether the image sequence tells a story`,
	"sub_image_observations")

var richContentVisionPrompt = fmt.Sprintf(visionSystemHeader,
	"Analyze the following product rich-content module images visually.",
	`- Visual hierarchy
- Balance between text and imagery
- Consistency with main and sub images`,
	"rich_content_observations")

const scoringPreamble = `Evaluate whether this product page section is structured to raise CVR.

Important context:
- This is not a review or a summary; judge by whether the listing would actually sell
- Every score must come with a concrete reason (why)
- This evaluation is independent of the deterministic rule score

`

const scoringRules = `
Output rules (strict):
- Every score comes with a concrete reason
- No score may exceed its declared maximum
- No abstract verdicts ("good", "weak" alone are forbidden)
- Point out things a seller can actually change
`

func observationsBlock(observations []string) string {
	if len(observations) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Visual observations from the vision model:\n")
	for i, obs := range observations {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, obs)
	}
	sb.WriteString("\n")
	return sb.String()
}

func mainImageScoringPrompt(main *models.MainImageSignal, observations []string, visionDegraded bool) string {
	var sb strings.Builder
	sb.WriteString(scoringPreamble)
	sb.WriteString("Input:\n")
	fmt.Fprintf(&sb, "- main image URL: %s\n", main.URL)
	fmt.Fprintf(&sb, "- dimensions: %s x %s\n", intOrUnknown(main.Width), intOrUnknown(main.Height))
	fmt.Fprintf(&sb, "- white background: %s\n\n", boolOrUnknown(main.BgIsWhite))
	sb.WriteString(observationsBlock(observations))
	if visionDegraded {
		sb.WriteString("Note: visual analysis is unavailable; infer from the structural metadata above.\n\n")
	}
	sb.WriteString(`Evaluation target: main image (20 points), four axes:
1. Stands out in the results list (CTR): 0-8
2. Depth and visual impact: 0-5
3. Product understood at a glance: 0-4
4. Free of CVR-blocking elements: 0-3 (fewer blockers, higher score)
`)
	sb.WriteString(scoringRules)
	sb.WriteString(`
Output format (JSON, strict):
{
  "listVisibility": 0-8,
  "visualImpact": 0-5,
  "instantUnderstanding": 0-4,
  "cvrBlockers": 0-3,
  "why": "concrete per-axis reasoning, no abstractions"
}`)
	return sb.String()
}

func titleScoringPrompt(title string) string {
	var sb strings.Builder
	sb.WriteString(scoringPreamble)
	fmt.Fprintf(&sb, "Input:\n- title: %q\n\n", title)
	sb.WriteString(`Evaluation target: title (10 points), three axes:
1. SEO and CTR balance: 0-4 (do the primary keywords lead?)
2. CTR design: 0-4 (readable, gives a reason to click)
3. Readability: 0-2
`)
	sb.WriteString(scoringRules)
	sb.WriteString(`
Output format (JSON, strict):
{
  "seoStructure": 0-4,
  "ctrDesign": 0-4,
  "readability": 0-2,
  "why": "concrete per-axis reasoning, no abstractions"
}`)
	return sb.String()
}

func subImagesScoringPrompt(subs []models.SubImageSignal, observations []string, visionDegraded bool) string {
	var sb strings.Builder
	sb.WriteString(scoringPreamble)
	fmt.Fprintf(&sb, "Input:\n- sub-images: %d\n", len(subs))
	for i, sub := range subs {
		if i >= maxVisionImages {
			break
		}
		fmt.Fprintf(&sb, "  image %d: %s\n", i+1, sub.URL)
	}
	sb.WriteString("\n")
	sb.WriteString(observationsBlock(observations))
	if visionDegraded {
		sb.WriteString("Note: visual analysis is unavailable; infer from the structural metadata above.\n\n")
	}
	sb.WriteString(`Evaluation target: sub-images (30 points), five axes:
1. Benefit-led design: 0-10
2. Consistent visual world: 0-5
3. Information order and flow: 0-5
4. Text occupancy kept readable: 0-5
5. Free of CVR-blocking expressions: 0-5 (fewer blockers, higher score)

For every axis output score, reason, and improvement_suggestion. Reasons must
cite specifics ("the copy '...' in image 2", "the font weight is..."), and
suggestions must be actionable edits.
`)
	sb.WriteString(scoringRules)
	sb.WriteString(`
Output format (JSON, strict):
{
  "sections": {
    "benefit_design": {"score": 0-10, "reason": "...", "improvement_suggestion": "..."},
    "design_worldview": {"score": 0-5, "reason": "...", "improvement_suggestion": "..."},
    "information_design": {"score": 0-5, "reason": "...", "improvement_suggestion": "..."},
    "text_visibility": {"score": 0-5, "reason": "...", "improvement_suggestion": "..."},
    "cvr_blockers": {"score": 0-5, "reason": "...", "improvement_suggestion": "..."}
  }
}`)
	return sb.String()
}

func reviewsScoringPrompt(count int, rating *float64, screens []sentiment.ReviewScreen) string {
	var sb strings.Builder
	sb.WriteString(`Judge the risk that negative review elements block conversion.

Absolute scoring rule (deduction method): when no clear negative element can
be confirmed, award FULL MARKS automatically.

Axis definitions:

1. Negative visibility (score 1-4)
- 4 (full marks): no 1-2 star review in the first view, or only 4-5 star reviews
- 3: a neutral 3-star exists but with no aggressive title
- 2: 1-2 star reviews visible but short and unobtrusive
- 1 (critical): a clearly visible 1-2 star review with words like "broken" or "worst"

2. Content severity (score 0-3)
- 3 (full marks): no low-star review exists at all
- 2: low-star reviews exist but about delivery or taste, not product quality
- 1: complaints limited to a subset of users (fit, ease of use)
- 0 (critical): quality or safety defects ("broke immediately", "counterfeit")

3. Reassurance path (score 1-3)
- 3 (full marks): nothing negative to dispel, or a sincere seller reply is shown
- 2: negatives exist but are followed by contradicting positive reviews
- 1 (needs work): negatives sit unanswered with nothing to offset them

`)
	fmt.Fprintf(&sb, "Input:\n- review count: %d\n- average rating: %s\n", count, ratingOrUnknown(rating))
	if len(screens) > 0 {
		sb.WriteString("- negative candidate reviews (pre-screened sentiment label in brackets):\n")
		for i, s := range screens {
			if i >= maxNegativeReviews {
				break
			}
			fmt.Fprintf(&sb, "  review %d [%s]: %s\n", i+1, s.Label, s.Text)
		}
	} else {
		sb.WriteString("- note: review bodies were not available; judge from count and rating only\n")
	}
	sb.WriteString(`
Output rules (strict):
- For every axis output score, reason, and improvement_suggestion
- State "full marks" explicitly when no negative element exists

Output format (JSON, strict):
{
  "sections": {
    "negative_visibility": {"score": 1-4, "reason": "...", "improvement_suggestion": "..."},
    "fatal_content": {"score": 0-3, "reason": "...", "improvement_suggestion": "..."},
    "reassurance_path": {"score": 1-3, "reason": "...", "improvement_suggestion": "..."}
  }
}`)
	return sb.String()
}

func richBrandScoringPrompt(rich models.RichContentSignals, brand models.BrandSignals, observations []string) string {
	var sb strings.Builder
	sb.WriteString(scoringPreamble)
	sb.WriteString("Input:\n")
	fmt.Fprintf(&sb, "- rich content present: %s\n", boolOrUnknown(rich.Present))
	fmt.Fprintf(&sb, "- premium tier: %s\n", boolOrUnknown(rich.IsPremiumTier))
	fmt.Fprintf(&sb, "- module count: %s\n", intOrUnknown(rich.ModuleCount))
	fmt.Fprintf(&sb, "- brand story present: %s\n", boolOrUnknown(brand.HasStory))
	if len(rich.ImageURLs) > 0 {
		fmt.Fprintf(&sb, "- rich content images: %d\n", len(rich.ImageURLs))
	}
	sb.WriteString("\n")
	sb.WriteString(observationsBlock(observations))
	sb.WriteString(`Evaluation target: rich content + brand (30 points), five axes:
1. Structure that never loses the reader: 0-8
2. Clear benefit appeal: 0-8
3. Consistent visual world: 0-6
4. Visually easy to read: 0-5
5. Comparison and reassurance covered: 0-3
`)
	sb.WriteString(scoringRules)
	sb.WriteString(`
Output format (JSON, strict):
{
  "compositionDesign": 0-8,
  "benefitAppeal": 0-8,
  "worldView": 0-6,
  "visualDesign": 0-5,
  "comparisonReassurance": 0-3,
  "why": "concrete per-axis reasoning, no abstractions"
}`)
	return sb.String()
}

func summaryPrompt(analyses map[string]models.CategoryAnalysis) string {
	var sb strings.Builder
	sb.WriteString("Summarize improvement recommendations from the following per-category analysis results.\n\nAnalyses:\n")
	for name, analysis := range analyses {
		fmt.Fprintf(&sb, "- %s: subscores %v", name, analysis.Subscores)
		if analysis.Why != "" {
			fmt.Fprintf(&sb, " (%s)", analysis.Why)
		}
		if analysis.Fallback {
			sb.WriteString(" [degraded: default values]")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`
Output format (JSON, strict):
{
  "most_critical_issue": "the single most damaging problem (max 50 chars)",
  "quick_wins": ["immediately fixable items (max 3)"],
  "high_impact_actions": ["high impact improvement actions (max 3)"]
}

Rules:
- No abstractions
- Every item must be executable by a seller
- Keep each item short`)
	return sb.String()
}

func intOrUnknown(v *int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *v)
}

func boolOrUnknown(v *bool) string {
	if v == nil {
		return "unknown"
	}
	if *v {
		return "yes"
	}
	return "no"
}

func ratingOrUnknown(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.1f stars", *v)
}
