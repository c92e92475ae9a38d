// Package scorer assigns deterministic confidence values to LinkedIn company page candidates.
package scorer

import (
	"math"
	"strings"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/linkedin"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

const (
	BaseScore      = 0.6
	NameMatchBonus = 0.25
	TopRankBonus   = 0.10
	SlugMatchBonus = 0.05
	MaxConfidence  = 0.95

	// GuessConfidence is the fixed confidence of an unverified URL guess.
	GuessConfidence = 0.3

	UnknownCompany = "Unknown Company"
)

// Score returns the confidence of c for the query term, in [0, MaxConfidence].
// Candidates whose URL is not a company page score 0.
func Score(c types.CandidateResult, term string, isTopRank bool) float64 {
	if !linkedin.Validate(c.URL) {
		return 0
	}

	score := BaseScore
	if nameMatches(c.CompanyName, term) {
		score += NameMatchBonus
	}
	if isTopRank {
		score += TopRankBonus
	}
	if slugMatches(c.VanityName, c.URL, term) {
		score += SlugMatchBonus
	}

	score = math.Round(score*100) / 100
	return math.Min(score, MaxConfidence)
}

// ExtractCompanyName derives a display name from a search hit.
// Title text before the first "|" wins, then the first three words of the description.
func ExtractCompanyName(title, description string) string {
	if title = strings.TrimSpace(title); title != "" {
		name, _, _ := strings.Cut(title, "|")
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}

	words := strings.Fields(description)
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) > 0 {
		return strings.Join(words, " ")
	}
	return UnknownCompany
}

func nameMatches(name, term string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	term = strings.ToLower(strings.TrimSpace(term))
	if name == "" || term == "" {
		return false
	}
	if strings.Contains(name, term) {
		return true
	}

	nameToken := firstToken(name)
	termToken := firstToken(term)
	return nameToken != "" && strings.Contains(termToken, nameToken)
}

func slugMatches(vanity, rawURL, term string) bool {
	if vanity == "" {
		vanity = linkedin.VanityName(rawURL)
	}
	slug := strings.ToLower(strings.ReplaceAll(vanity, " ", ""))
	needle := strings.ToLower(strings.ReplaceAll(term, " ", ""))
	return slug != "" && needle != "" && strings.Contains(slug, needle)
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
