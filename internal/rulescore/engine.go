// Package rulescore computes the deterministic 0-100 listing score from
// explicit threshold rules. It is a pure function of its input: no clock, no
// randomness, no I/O, and it never fails on partial input. A field that is
// wholly absent scores zero and is reported by name in MissingSignals, the
// engine's "I could not judge this" channel, distinct from "judged and
// failed".
package rulescore

import (
	"strings"

	"github.com/aznory/listinglens/internal/models"
)

const (
	titleMax       = 10
	titleKeywordMin = 7
	mainImageMax   = 10
	subImagesMax   = 20
	descriptionMax = 5
	reviewsMax     = 25
	richBrandMax   = 20

	minMainImageSize  = 1500
	squareTolerance   = 0.05
	minSubImageCount  = 6
	minSubImageSize   = 1500
	minBulletLines    = 5
	minRichModules    = 5
)

// Compute scores the canonical input against the six rule categories.
func Compute(input models.AnalysisInput) models.RuleScoreResult {
	missing := []string{}
	breakdown := models.ScoreBreakdown{}
	total := 0

	add := func(category string, score, max int) {
		breakdown[category] = models.CategoryScore{Score: score, Max: max}
		total += score
	}

	add(models.CategoryTitle, scoreTitle(input.Title, &missing), titleMax)
	add(models.CategoryMainImage, scoreMainImage(input.Images.Main, &missing), mainImageMax)
	add(models.CategorySubImages, scoreSubImages(input.Images, &missing), subImagesMax)
	add(models.CategoryDescription, scoreDescription(input.Description, &missing), descriptionMax)
	add(models.CategoryReviews, scoreReviews(input.Reviews, &missing), reviewsMax)
	add(models.CategoryRichBrand, scoreRichBrand(input.RichContent, input.Brand, &missing), richBrandMax)

	return models.RuleScoreResult{
		Total:          total,
		Breakdown:      breakdown,
		MissingSignals: missing,
		Notes:          []string{"score calculated from threshold rules"},
	}
}

func scoreTitle(title string, missing *[]string) int {
	if title == "" {
		*missing = append(*missing, "title")
		return 0
	}
	if countTitleKeywords(title) >= titleKeywordMin {
		return titleMax
	}
	return 0
}

func scoreMainImage(main *models.MainImageSignal, missing *[]string) int {
	if main == nil {
		*missing = append(*missing, "mainImageDimensions", "mainImageBgWhite")
		return 0
	}

	score := 0
	if dim(main.Width) > 0 && dim(main.Height) > 0 {
		w, h := *main.Width, *main.Height
		minSize, maxSize := w, h
		if minSize > maxSize {
			minSize, maxSize = maxSize, minSize
		}
		isSquare := float64(maxSize-minSize)/float64(maxSize) < squareTolerance
		if minSize >= minMainImageSize && isSquare {
			score += 5
		}
	} else {
		*missing = append(*missing, "mainImageDimensions")
	}

	if main.BgIsWhite != nil {
		if *main.BgIsWhite {
			score += 5
		}
	} else {
		*missing = append(*missing, "mainImageBgWhite")
	}
	return score
}

func scoreSubImages(images models.ImageSignals, missing *[]string) int {
	if images.Subs == nil {
		*missing = append(*missing, "subImageCount", "subImageDimensions", "subImageHasVideo")
		return 0
	}

	score := 0
	if len(images.Subs) >= minSubImageCount {
		score += 10
	}

	hasValidDimensions := false
	hasAnyDimensions := false
	for _, sub := range images.Subs {
		if dim(sub.Width) > 0 && dim(sub.Height) > 0 {
			hasAnyDimensions = true
			if *sub.Width >= minSubImageSize && *sub.Height >= minSubImageSize {
				hasValidDimensions = true
				break
			}
		}
	}
	if hasValidDimensions {
		score += 5
	} else if !hasAnyDimensions {
		*missing = append(*missing, "subImageDimensions")
	}

	if images.HasVideo != nil {
		if *images.HasVideo {
			score += 5
		}
	} else {
		*missing = append(*missing, "subImageHasVideo")
	}
	return score
}

func scoreDescription(description string, missing *[]string) int {
	if description == "" {
		*missing = append(*missing, "bullets")
		return 0
	}
	lines := 0
	for _, line := range strings.Split(description, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	if lines >= minBulletLines {
		return descriptionMax
	}
	return 0
}

func scoreReviews(reviews models.ReviewSignals, missing *[]string) int {
	score := 0
	if reviews.AverageRating != nil {
		rating := *reviews.AverageRating
		if rating >= 4.0 {
			score += 5
		}
		if rating >= 4.3 {
			score += 5
		}
	} else {
		*missing = append(*missing, "reviewRating")
	}

	if reviews.TotalCount != nil {
		count := *reviews.TotalCount
		if count >= 30 {
			score += 5
		}
		if count >= 100 {
			score += 5
		}
		if count >= 1000 {
			score += 5
		}
	} else {
		*missing = append(*missing, "reviewCount")
	}
	return score
}

func scoreRichBrand(rich models.RichContentSignals, brand models.BrandSignals, missing *[]string) int {
	score := 0
	if rich.Present != nil {
		if *rich.Present {
			score += 5
		}
	} else {
		*missing = append(*missing, "richContentPresence")
	}

	if rich.IsPremiumTier != nil {
		if *rich.IsPremiumTier {
			score += 5
		}
	} else {
		*missing = append(*missing, "richContentPremium")
	}

	if rich.ModuleCount != nil {
		if *rich.ModuleCount >= minRichModules {
			score += 5
		}
	} else {
		*missing = append(*missing, "richContentModuleCount")
	}

	if brand.HasStory != nil {
		if *brand.HasStory {
			score += 5
		}
	} else {
		*missing = append(*missing, "brandStory")
	}
	return score
}

// dim treats nil and non-positive dimensions as unmeasured.
func dim(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
