package reasoning

import (
	"reflect"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"prose wrapped", "Here is the result:\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`, true},
		{"no object", "no json here", "", false},
		{"closing before opening", "} nothing {", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractJSONObject(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("extractJSONObject(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestDecodeLoose(t *testing.T) {
	parsed, ok := decodeLoose("the model says: {\"score\": 3} thank you")
	if !ok {
		t.Fatal("expected parse success")
	}
	if v, _ := numberField(parsed, "score"); v != 3 {
		t.Fatalf("expected score 3, got %d", v)
	}

	if _, ok := decodeLoose("{broken json"); ok {
		t.Fatal("expected parse failure for truncated object")
	}
}

func TestNumberFieldShapes(t *testing.T) {
	m := map[string]any{
		"float":  7.0,
		"string": "4",
		"bad":    "not a number",
		"null":   nil,
	}
	if v, ok := numberField(m, "float"); !ok || v != 7 {
		t.Fatalf("float: got %d, %v", v, ok)
	}
	if v, ok := numberField(m, "string"); !ok || v != 4 {
		t.Fatalf("string: got %d, %v", v, ok)
	}
	if _, ok := numberField(m, "bad"); ok {
		t.Fatal("non-numeric string must not parse")
	}
	if _, ok := numberField(m, "null"); ok {
		t.Fatal("null must not parse")
	}
	if _, ok := numberField(m, "absent"); ok {
		t.Fatal("absent key must not parse")
	}
}

func TestCoerceClampsToDeclaredBounds(t *testing.T) {
	analysis, ok := mainImageCategory.coerce(map[string]any{
		"listVisibility":       float64(99),
		"visualImpact":         float64(-2),
		"instantUnderstanding": float64(3),
		"cvrBlockers":          float64(3),
		"why":                  "test",
	})
	if !ok {
		t.Fatal("expected coerce success")
	}
	want := map[string]int{"listVisibility": 8, "visualImpact": 0, "instantUnderstanding": 3, "cvrBlockers": 3}
	if !reflect.DeepEqual(analysis.Subscores, want) {
		t.Fatalf("subscores %v, want %v", analysis.Subscores, want)
	}
	if analysis.Fallback {
		t.Fatal("a coerced analysis is not a fallback")
	}
}

func TestCoerceSectionedResponse(t *testing.T) {
	analysis, ok := reviewsCategory.coerce(map[string]any{
		"sections": map[string]any{
			"negative_visibility": map[string]any{"score": float64(2), "reason": "a visible 1-star review", "improvement_suggestion": "reply to it"},
			"fatal_content":       map[string]any{"score": float64(0), "reason": "quality defect mentioned"},
			"reassurance_path":    map[string]any{"score": float64(0)},
		},
	})
	if !ok {
		t.Fatal("expected coerce success")
	}
	want := map[string]int{"negativeVisibility": 2, "negativeSeverity": 0, "reassurancePath": 1}
	if !reflect.DeepEqual(analysis.Subscores, want) {
		t.Fatalf("subscores %v, want %v", analysis.Subscores, want)
	}
	detail := analysis.Details["negativeVisibility"]
	if detail.Reason != "a visible 1-star review" || detail.Improvement != "reply to it" {
		t.Fatalf("detail lost: %+v", detail)
	}
}

func TestCoerceMissingReviewFieldsDefaultToMax(t *testing.T) {
	analysis, ok := reviewsCategory.coerce(map[string]any{
		"sections": map[string]any{
			"negative_visibility": map[string]any{"score": float64(3)},
		},
	})
	if !ok {
		t.Fatal("expected coerce success")
	}
	want := map[string]int{"negativeVisibility": 3, "negativeSeverity": 3, "reassurancePath": 3}
	if !reflect.DeepEqual(analysis.Subscores, want) {
		t.Fatalf("subscores %v, want %v", analysis.Subscores, want)
	}
}

func TestCoerceNoExpectedFields(t *testing.T) {
	if _, ok := titleCategory.coerce(map[string]any{"unrelated": "value"}); ok {
		t.Fatal("an object with no expected fields must not coerce")
	}
}

func TestFallbackAnalysisMarked(t *testing.T) {
	for _, def := range []CategoryDef{mainImageCategory, titleCategory, subImagesCategory, reviewsCategory, richBrandCategory} {
		analysis := def.fallbackAnalysis()
		if !analysis.Fallback {
			t.Fatalf("%s fallback analysis not marked", def.Name)
		}
		if analysis.Total() > def.Max {
			t.Fatalf("%s fallback total %d exceeds category max %d", def.Name, analysis.Total(), def.Max)
		}
		if len(analysis.Subscores) != len(def.Dimensions) {
			t.Fatalf("%s fallback covers %d of %d dimensions", def.Name, len(analysis.Subscores), len(def.Dimensions))
		}
	}
}
