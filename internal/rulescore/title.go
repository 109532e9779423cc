package rulescore

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Bracketed segments are seller noise ("【新品】", "(2-pack)"), stripped
// before tokenizing. Fullwidth 【】 first, then the ASCII and fullwidth pairs.
var bracketPatterns = []*regexp.Regexp{
	regexp.MustCompile(`【[^】]*】`),
	regexp.MustCompile(`\[[^\]]*\]`),
	regexp.MustCompile(`\([^)]*\)`),
	regexp.MustCompile(`\{[^}]*\}`),
	regexp.MustCompile(`（[^）]*）`),
}

var (
	symbolOnly = regexp.MustCompile(`^[^\p{L}\p{N}]*$`)
	digitsOnly = regexp.MustCompile(`^\d+$`)
	whitespace = regexp.MustCompile(`[\s\x{3000}]+`)
)

// Japanese grammatical particles. A token containing one is glue text, not a
// search keyword.
var particles = []string{"の", "は", "に", "を", "と", "で", "も", "が", "へ", "や", "から", "まで", "より"}

// countTitleKeywords strips bracketed segments, splits on ASCII and
// fullwidth whitespace, and drops tokens that are pure symbols/digits,
// single characters, or contain a particle. The survivors approximate the
// title's SEO keywords.
func countTitleKeywords(title string) int {
	cleaned := title
	for _, pattern := range bracketPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, " ")
	}

	count := 0
	for _, token := range whitespace.Split(cleaned, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if symbolOnly.MatchString(token) || digitsOnly.MatchString(token) {
			continue
		}
		if utf8.RuneCountInString(token) == 1 {
			continue
		}
		if containsParticle(token) {
			continue
		}
		count++
	}
	return count
}

func containsParticle(token string) bool {
	for _, p := range particles {
		if strings.Contains(token, p) {
			return true
		}
	}
	return false
}
