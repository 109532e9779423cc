package reasoning

import "github.com/aznory/listinglens/internal/models"

// Dimension is one scored axis of a category. Min is non-zero only for the
// review axes that can never bottom out ("innocent until proven negative").
// MissingDefault is used when the model omitted the field entirely; for the
// review axes that default is the maximum, everywhere else it is zero.
type Dimension struct {
	Key            string // canonical subscore key
	SectionKey     string // key in the sectioned response shape, if any
	Max            int
	Min            int
	MissingDefault int
}

// CategoryDef parameterizes the one generic category analyzer: dimension
// set, prompts, and fallback defaults. The five instances below are fixed
// constants of the scoring contract.
type CategoryDef struct {
	Name            string
	Max             int
	Dimensions      []Dimension
	Fallback        map[string]int
	FallbackWhy     string
	VisionPrompt    string
	ObservationsKey string
	Sectioned       bool // model answers sections.{key}.{score,reason,improvement_suggestion}
}

// fallbackAnalysis is the conservative default used when the scoring call
// failed or its response was unparsable. The marker lets callers detect a
// degraded category.
func (d CategoryDef) fallbackAnalysis() models.CategoryAnalysis {
	subscores := make(map[string]int, len(d.Fallback))
	for k, v := range d.Fallback {
		subscores[k] = v
	}
	return models.CategoryAnalysis{
		Subscores: subscores,
		Why:       d.FallbackWhy,
		Fallback:  true,
	}
}

// coerce clamps a loosely-decoded scoring response into the declared bounds.
// Returns false when the object carries none of the expected fields, in
// which case the caller falls back.
func (d CategoryDef) coerce(parsed map[string]any) (models.CategoryAnalysis, bool) {
	sections := objectField(parsed, "sections")

	subscores := make(map[string]int, len(d.Dimensions))
	var details map[string]models.DimensionDetail
	found := false

	for _, dim := range d.Dimensions {
		value := dim.MissingDefault

		if dim.SectionKey != "" && sections != nil {
			if section := objectField(sections, dim.SectionKey); section != nil {
				if v, ok := numberField(section, "score"); ok {
					value = v
					found = true
				}
				reason := stringField(section, "reason")
				improvement := stringField(section, "improvement_suggestion")
				if reason != "" || improvement != "" {
					if details == nil {
						details = make(map[string]models.DimensionDetail)
					}
					details[dim.Key] = models.DimensionDetail{Reason: reason, Improvement: improvement}
				}
				subscores[dim.Key] = clamp(value, dim.Min, dim.Max)
				continue
			}
		}

		if v, ok := numberField(parsed, dim.Key); ok {
			value = v
			found = true
		}
		subscores[dim.Key] = clamp(value, dim.Min, dim.Max)
	}

	if !found {
		return models.CategoryAnalysis{}, false
	}
	return models.CategoryAnalysis{
		Subscores: subscores,
		Why:       stringField(parsed, "why"),
		Details:   details,
	}, true
}

var mainImageCategory = CategoryDef{
	Name: models.CategoryMainImage,
	Max:  20,
	Dimensions: []Dimension{
		{Key: "listVisibility", Max: 8},
		{Key: "visualImpact", Max: 5},
		{Key: "instantUnderstanding", Max: 4},
		{Key: "cvrBlockers", Max: 3},
	},
	Fallback:        map[string]int{"listVisibility": 4, "visualImpact": 2, "instantUnderstanding": 2, "cvrBlockers": 1},
	FallbackWhy:     "image analysis failed, conservative defaults applied",
	VisionPrompt:    mainImageVisionPrompt,
	ObservationsKey: "main_image_observations",
}

var titleCategory = CategoryDef{
	Name: models.CategoryTitle,
	Max:  10,
	Dimensions: []Dimension{
		{Key: "seoStructure", Max: 4},
		{Key: "ctrDesign", Max: 4},
		{Key: "readability", Max: 2},
	},
	Fallback:    map[string]int{"seoStructure": 2, "ctrDesign": 2, "readability": 1},
	FallbackWhy: "title analysis failed, conservative defaults applied",
}

var subImagesCategory = CategoryDef{
	Name: models.CategorySubImages,
	Max:  30,
	Dimensions: []Dimension{
		{Key: "benefitDesign", SectionKey: "benefit_design", Max: 10},
		{Key: "worldView", SectionKey: "design_worldview", Max: 5},
		{Key: "informationDesign", SectionKey: "information_design", Max: 5},
		{Key: "textVisibility", SectionKey: "text_visibility", Max: 5},
		{Key: "cvrBlockers", SectionKey: "cvr_blockers", Max: 5},
	},
	Fallback: map[string]int{
		"benefitDesign": 5, "worldView": 2, "informationDesign": 2, "textVisibility": 2, "cvrBlockers": 2,
	},
	FallbackWhy:     "sub-image analysis failed, conservative defaults applied",
	VisionPrompt:    subImagesVisionPrompt,
	ObservationsKey: "sub_image_observations",
	Sectioned:       true,
}

var reviewsCategory = CategoryDef{
	Name: models.CategoryReviews,
	Max:  10,
	Dimensions: []Dimension{
		{Key: "negativeVisibility", SectionKey: "negative_visibility", Max: 4, Min: 1, MissingDefault: 4},
		{Key: "negativeSeverity", SectionKey: "fatal_content", Max: 3, Min: 0, MissingDefault: 3},
		{Key: "reassurancePath", SectionKey: "reassurance_path", Max: 3, Min: 1, MissingDefault: 3},
	},
	// Decrement-from-maximum policy: when the analysis fails we err on the
	// side of no negative impact, not on the side of suspicion.
	Fallback:    map[string]int{"negativeVisibility": 4, "negativeSeverity": 3, "reassurancePath": 3},
	FallbackWhy: "no clear negative signal could be confirmed, full marks applied",
	Sectioned:   true,
}

var richBrandCategory = CategoryDef{
	Name: models.CategoryRichBrand,
	Max:  30,
	Dimensions: []Dimension{
		{Key: "compositionDesign", Max: 8},
		{Key: "benefitAppeal", Max: 8},
		{Key: "worldView", Max: 6},
		{Key: "visualDesign", Max: 5},
		{Key: "comparisonReassurance", Max: 3},
	},
	Fallback: map[string]int{
		"compositionDesign": 4, "benefitAppeal": 4, "worldView": 3, "visualDesign": 2, "comparisonReassurance": 1,
	},
	FallbackWhy:     "rich content analysis failed, conservative defaults applied",
	VisionPrompt:    richContentVisionPrompt,
	ObservationsKey: "rich_content_observations",
}
