// Package sentiment pre-screens scraped review text locally before any model
// call. Review bodies arrive as markdown-ish page text; they are scrubbed to
// plain text and run through VADER so the reasoning engine and the plan
// synthesizer know whether a genuine negative signal exists at all.
package sentiment

import (
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

var analyzer = govader.NewSentimentIntensityAnalyzer()

const negativeThreshold = -0.20

type ReviewScreen struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Label string  `json:"label"` // "positive" | "neutral" | "negative"
}

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?://[^\s)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1")
	return urlPattern.ReplaceAllString(input, "")
}

func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plainText := strings.Join(strings.Fields(string(output)), " ")
	return RemoveLinks(plainText)
}

// stripTags drops the HTML element tags blackfriday emits.
var tagPattern = regexp.MustCompile(`<[^>]+>`)

// ScreenReviews scrubs and scores each review body. Order is preserved.
func ScreenReviews(texts []string) []ReviewScreen {
	if len(texts) == 0 {
		return nil
	}
	screens := make([]ReviewScreen, 0, len(texts))
	for _, text := range texts {
		plain := tagPattern.ReplaceAllString(ConvertMarkdownToText(text), "")
		score := analyzer.PolarityScores(plain).Compound

		label := "neutral"
		if score >= 0.20 {
			label = "positive"
		} else if score <= negativeThreshold {
			label = "negative"
		}
		screens = append(screens, ReviewScreen{Text: plain, Score: score, Label: label})
	}
	return screens
}

// HasNegativeSignal reports whether any screened review reads negative.
func HasNegativeSignal(screens []ReviewScreen) bool {
	for _, s := range screens {
		if s.Label == "negative" {
			return true
		}
	}
	return false
}
