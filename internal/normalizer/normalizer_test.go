package normalizer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aznory/listinglens/internal/models"
)

func TestNormalizeRequiresASIN(t *testing.T) {
	_, err := Normalize(models.RawAnalysisPayload{Title: "something"})
	if !errors.Is(err, ErrMissingASIN) {
		t.Fatalf("expected ErrMissingASIN, got %v", err)
	}
}

func TestNormalizeLegacyImageArray(t *testing.T) {
	truthy := true
	payload := models.RawAnalysisPayload{
		ASIN: "B000TEST01",
		Images: json.RawMessage(`[
			{"url": "https://img.example.com/main.jpg", "width": 2000, "height": 2000, "bgIsWhite": true},
			{"url": "https://img.example.com/sub1.jpg", "width": 1500, "height": 1500},
			{"url": "https://img.example.com/sub2.jpg"}
		]`),
		SubImageHasVideo: &truthy,
	}

	input, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if input.Images.Main == nil {
		t.Fatal("expected first array element as main image")
	}
	if input.Images.Main.URL != "https://img.example.com/main.jpg" {
		t.Fatalf("unexpected main url %s", input.Images.Main.URL)
	}
	if input.Images.Main.BgIsWhite == nil || !*input.Images.Main.BgIsWhite {
		t.Fatal("main bgIsWhite was lost")
	}
	if len(input.Images.Subs) != 2 {
		t.Fatalf("expected 2 sub-images, got %d", len(input.Images.Subs))
	}
	if input.Images.Subs[1].Width != nil {
		t.Fatal("unmeasured sub dimension must stay nil")
	}
	if input.Images.HasVideo == nil || !*input.Images.HasVideo {
		t.Fatal("top-level subImageHasVideo must flow into images")
	}
}

func TestNormalizeStructuredImages(t *testing.T) {
	payload := models.RawAnalysisPayload{
		ASIN: "B000TEST01",
		Images: json.RawMessage(`{
			"main": {"url": "https://img.example.com/main.jpg", "width": 1800, "height": 1800},
			"subs": [{"url": "https://img.example.com/sub1.jpg"}],
			"hasVideo": false
		}`),
	}

	input, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if input.Images.Main == nil || *input.Images.Main.Width != 1800 {
		t.Fatal("structured main image was not carried over")
	}
	if len(input.Images.Subs) != 1 {
		t.Fatalf("expected 1 sub-image, got %d", len(input.Images.Subs))
	}
	if input.Images.HasVideo == nil || *input.Images.HasVideo {
		t.Fatal("hasVideo false must stay a measured false")
	}
}

func TestNormalizeStructuredVideoOverride(t *testing.T) {
	truthy := true
	payload := models.RawAnalysisPayload{
		ASIN:             "B000TEST01",
		Images:           json.RawMessage(`{"main": null, "subs": [], "hasVideo": false}`),
		SubImageHasVideo: &truthy,
	}
	input, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if input.Images.HasVideo == nil || !*input.Images.HasVideo {
		t.Fatal("explicit top-level flag must win over the images object")
	}
}

func TestNormalizePreservesAbsence(t *testing.T) {
	input, err := Normalize(models.RawAnalysisPayload{ASIN: "B000TEST01"})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if input.Images.Subs != nil {
		t.Fatal("absent image info must keep Subs nil")
	}
	if input.Images.Main != nil || input.Images.HasVideo != nil {
		t.Fatal("absent image info must not be defaulted")
	}
	if input.Reviews.AverageRating != nil || input.Reviews.TotalCount != nil {
		t.Fatal("absent reviews must stay nil")
	}
	if input.RichContent.Present != nil || input.Brand.HasStory != nil {
		t.Fatal("absent rich content flags must stay nil")
	}
}

func TestNormalizeEmptyStructuredSubs(t *testing.T) {
	payload := models.RawAnalysisPayload{
		ASIN:   "B000TEST01",
		Images: json.RawMessage(`{"main": null}`),
	}
	input, err := Normalize(payload)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if input.Images.Subs == nil {
		t.Fatal("a structured payload means the page was inspected; Subs must be non-nil")
	}
	if len(input.Images.Subs) != 0 {
		t.Fatalf("expected empty subs, got %d", len(input.Images.Subs))
	}
}

func TestNormalizeMalformedImages(t *testing.T) {
	payload := models.RawAnalysisPayload{
		ASIN:   "B000TEST01",
		Images: json.RawMessage(`"not an image shape"`),
	}
	input, err := Normalize(payload)
	if err != nil {
		t.Fatalf("malformed images must degrade, not fail: %v", err)
	}
	if input.Images.Main != nil || input.Images.Subs != nil {
		t.Fatal("malformed images must normalize to absence")
	}
}

func TestDecode(t *testing.T) {
	input, err := Decode([]byte(`{"asin": "B000TEST01", "title": "t", "reviews": {"averageRating": 4.2, "totalCount": 55, "negativeTexts": ["壊れた"]}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if input.ASIN != "B000TEST01" || input.Title != "t" {
		t.Fatalf("unexpected input %+v", input)
	}
	if input.Reviews.TotalCount == nil || *input.Reviews.TotalCount != 55 {
		t.Fatal("review count was lost")
	}
	if len(input.Reviews.NegativeTexts) != 1 {
		t.Fatal("negative texts were lost")
	}

	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Fatal("expected decode error for malformed body")
	}
}
