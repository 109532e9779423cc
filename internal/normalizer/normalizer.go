// Package normalizer reshapes the heterogeneous extraction payloads into the
// one canonical AnalysisInput both score engines consume. The extraction
// layer historically shipped images as a flat ordered array; newer builds
// ship a structured {main, subs, hasVideo} object. Downstream code never
// branches on that difference again.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aznory/listinglens/internal/models"
)

var ErrMissingASIN = errors.New("payload has no asin")

// legacyImage is one element of the flat array shape. The first element is
// the main image, the rest are sub-images.
type legacyImage struct {
	URL       string   `json:"url"`
	Width     *int     `json:"width,omitempty"`
	Height    *int     `json:"height,omitempty"`
	BgIsWhite *bool    `json:"bgIsWhite,omitempty"`
	FillRatio *float64 `json:"fillRatio,omitempty"`
}

type structuredImages struct {
	Main     *models.MainImageSignal `json:"main"`
	Subs     []models.SubImageSignal `json:"subs"`
	HasVideo *bool                   `json:"hasVideo,omitempty"`
}

// Normalize resolves the payload union into a canonical AnalysisInput.
// Missing optional fields stay absent (nil), never defaulted to falsy, so
// the rule engine can tell "unknown" from "no". The only error is a missing
// ASIN; everything else degrades to absence.
func Normalize(raw models.RawAnalysisPayload) (models.AnalysisInput, error) {
	if raw.ASIN == "" {
		return models.AnalysisInput{}, ErrMissingASIN
	}

	input := models.AnalysisInput{
		ASIN:        raw.ASIN,
		URL:         raw.URL,
		Title:       raw.Title,
		Description: raw.Description,
	}

	input.Images = normalizeImages(raw.Images)
	// The flat shape carried the video flag beside the array, not inside it.
	if raw.SubImageHasVideo != nil {
		input.Images.HasVideo = raw.SubImageHasVideo
	}

	if raw.Reviews != nil {
		input.Reviews = models.ReviewSignals{
			AverageRating: raw.Reviews.AverageRating,
			TotalCount:    raw.Reviews.TotalCount,
			NegativeTexts: raw.Reviews.NegativeTexts,
		}
	}

	input.RichContent = models.RichContentSignals{
		Present:       raw.RichContent,
		IsPremiumTier: raw.RichIsPremium,
		ModuleCount:   raw.RichModuleCount,
		ImageURLs:     raw.RichImageURLs,
	}
	input.Brand = models.BrandSignals{HasStory: raw.BrandStory}

	return input, nil
}

func normalizeImages(raw json.RawMessage) models.ImageSignals {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		// No image information at all: Subs stays nil so the rule engine
		// reports the whole category as a missing signal.
		return models.ImageSignals{}
	}

	switch trimmed[0] {
	case '{':
		var s structuredImages
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return models.ImageSignals{}
		}
		subs := s.Subs
		if subs == nil {
			subs = []models.SubImageSignal{}
		}
		return models.ImageSignals{Main: s.Main, Subs: subs, HasVideo: s.HasVideo}
	case '[':
		var list []legacyImage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return models.ImageSignals{}
		}
		out := models.ImageSignals{Subs: []models.SubImageSignal{}}
		if len(list) > 0 {
			first := list[0]
			out.Main = &models.MainImageSignal{
				URL:       first.URL,
				Width:     first.Width,
				Height:    first.Height,
				BgIsWhite: first.BgIsWhite,
				FillRatio: first.FillRatio,
			}
			for _, img := range list[1:] {
				out.Subs = append(out.Subs, models.SubImageSignal{
					URL:    img.URL,
					Width:  img.Width,
					Height: img.Height,
				})
			}
		}
		return out
	default:
		return models.ImageSignals{}
	}
}

// Decode parses and normalizes a raw JSON request body in one step.
func Decode(body []byte) (models.AnalysisInput, error) {
	var raw models.RawAnalysisPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.AnalysisInput{}, fmt.Errorf("decode analysis payload: %w", err)
	}
	return Normalize(raw)
}
