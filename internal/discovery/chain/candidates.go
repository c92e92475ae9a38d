package chain

import (
	"sort"
	"strings"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/linkedin"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/scorer"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	wstypes "github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

const maxDescriptionRunes = 300

// buildCandidates keeps the top max valid company pages by provider rank,
// de-duplicated by vanity name, scores them and orders them by confidence.
func buildCandidates(term string, results []*wstypes.SearchResult, source string, max int) []types.CandidateResult {
	ranked := make([]*wstypes.SearchResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, r)
		}
	}
	// unknown rank (0) sorts after ranked hits, original order otherwise
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Rank, ranked[j].Rank
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})

	seen := make(map[string]bool, max)
	candidates := make([]types.CandidateResult, 0, max)
	for _, r := range ranked {
		if len(candidates) == max {
			break
		}
		canonical, err := linkedin.Canonicalize(r.URL)
		if err != nil {
			continue
		}
		vanity := linkedin.VanityName(canonical)
		if seen[vanity] {
			continue
		}
		seen[vanity] = true

		c := types.CandidateResult{
			URL:         canonical,
			VanityName:  vanity,
			CompanyName: scorer.ExtractCompanyName(r.Title, r.Content),
			Description: truncateRunes(strings.TrimSpace(r.Content), maxDescriptionRunes),
			Source:      source,
		}
		c.Confidence = scorer.Score(c, term, r.Rank == 1)
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

// guessCandidate builds the unverified URL-guess result, or false when the
// term has no usable slug.
func guessCandidate(term string) (types.CandidateResult, bool) {
	url := linkedin.GuessURL(term)
	if url == "" {
		return types.CandidateResult{}, false
	}
	return types.CandidateResult{
		URL:         url,
		VanityName:  linkedin.VanityName(url),
		CompanyName: term,
		Confidence:  scorer.GuessConfidence,
		Source:      SourceURLGuess,
	}, true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
