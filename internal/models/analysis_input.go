package models

import "encoding/json"

// RawAnalysisPayload is the payload posted by the page-signal extraction
// layer. Images arrives in one of two shapes: a legacy flat ordered array of
// image objects, or the structured {main, subs, hasVideo} object. The
// normalizer resolves that union; nothing downstream sees it.
type RawAnalysisPayload struct {
	ASIN             string          `json:"asin"`
	URL              string          `json:"url,omitempty"`
	Title            string          `json:"title,omitempty"`
	Description      string          `json:"description,omitempty"`
	Images           json.RawMessage `json:"images,omitempty"`
	Reviews          *RawReviews     `json:"reviews,omitempty"`
	SubImageHasVideo *bool           `json:"subImageHasVideo,omitempty"`
	RichContent      *bool           `json:"richContent,omitempty"`
	RichIsPremium    *bool           `json:"richIsPremium,omitempty"`
	RichModuleCount  *int            `json:"richModuleCount,omitempty"`
	RichImageURLs    []string        `json:"richImageUrls,omitempty"`
	BrandStory       *bool           `json:"brandStory,omitempty"`
}

type RawReviews struct {
	AverageRating *float64 `json:"averageRating,omitempty"`
	TotalCount    *int     `json:"totalCount,omitempty"`
	NegativeTexts []string `json:"negativeTexts,omitempty"`
}

// MainImageSignal describes the hero image. Pointer fields distinguish
// "the extractor could not measure this" from a measured zero/false.
type MainImageSignal struct {
	URL       string   `json:"url"`
	Width     *int     `json:"width,omitempty"`
	Height    *int     `json:"height,omitempty"`
	BgIsWhite *bool    `json:"bgIsWhite,omitempty"`
	FillRatio *float64 `json:"fillRatio,omitempty"`
}

type SubImageSignal struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// ImageSignals is the canonical image shape. Subs == nil means the payload
// carried no image information at all; an empty non-nil slice means the page
// was inspected and had no sub-images.
type ImageSignals struct {
	Main     *MainImageSignal `json:"main,omitempty"`
	Subs     []SubImageSignal `json:"subs,omitempty"`
	HasVideo *bool            `json:"hasVideo,omitempty"`
}

type ReviewSignals struct {
	AverageRating *float64 `json:"averageRating,omitempty"`
	TotalCount    *int     `json:"totalCount,omitempty"`
	NegativeTexts []string `json:"negativeTexts,omitempty"`
}

type RichContentSignals struct {
	Present       *bool    `json:"present,omitempty"`
	IsPremiumTier *bool    `json:"isPremiumTier,omitempty"`
	ModuleCount   *int     `json:"moduleCount,omitempty"`
	ImageURLs     []string `json:"imageUrls,omitempty"`
}

type BrandSignals struct {
	HasStory *bool `json:"hasStory,omitempty"`
}

// AnalysisInput is the single canonical shape both score engines consume.
type AnalysisInput struct {
	ASIN        string             `json:"asin"`
	URL         string             `json:"url,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Images      ImageSignals       `json:"images"`
	Reviews     ReviewSignals      `json:"reviews"`
	RichContent RichContentSignals `json:"richContent"`
	Brand       BrandSignals       `json:"brand"`
}
