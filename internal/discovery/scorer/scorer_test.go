package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
)

func candidate(url, name string) types.CandidateResult {
	return types.CandidateResult{URL: url, CompanyName: name}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		candidate types.CandidateResult
		term      string
		top       bool
		want      float64
	}{
		{
			name:      "exact match at top rank is capped",
			candidate: candidate("https://www.linkedin.com/company/microsoft/", "Microsoft"),
			term:      "Microsoft",
			top:       true,
			want:      0.95,
		},
		{
			name:      "name and slug without rank",
			candidate: candidate("https://www.linkedin.com/company/microsoft/", "Microsoft"),
			term:      "microsoft",
			want:      0.9,
		},
		{
			name:      "reverse first token match",
			candidate: candidate("https://www.linkedin.com/company/acme-global/", "Acme Global Holdings"),
			term:      "Acme Corporation",
			want:      0.85,
		},
		{
			name:      "slug with spaces removed",
			candidate: candidate("https://www.linkedin.com/company/bigcorp/", "Unrelated"),
			term:      "Big Corp",
			want:      0.65,
		},
		{
			name:      "base only",
			candidate: candidate("https://www.linkedin.com/company/other/", "Other Inc"),
			term:      "Stripe",
			want:      0.6,
		},
		{
			name:      "top rank only",
			candidate: candidate("https://www.linkedin.com/company/other/", "Other Inc"),
			term:      "Stripe",
			top:       true,
			want:      0.7,
		},
		{
			name:      "invalid url",
			candidate: candidate("https://www.linkedin.com/in/someone/", "Stripe"),
			term:      "Stripe",
			top:       true,
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.candidate, tt.term, tt.top)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, MaxConfidence)
		})
	}
}

func TestScoreBounds(t *testing.T) {
	terms := []string{"a b", "Microsoft", "x", "Acme Widgets", "  ", "Ünïcode Co"}
	urls := []string{
		"https://www.linkedin.com/company/microsoft/",
		"https://www.linkedin.com/company/acme-widgets/",
		"not a url",
	}
	for _, term := range terms {
		for _, u := range urls {
			for _, top := range []bool{true, false} {
				s := Score(candidate(u, ExtractCompanyName(term+" | LinkedIn", "")), term, top)
				assert.GreaterOrEqual(t, s, 0.0)
				assert.LessOrEqual(t, s, MaxConfidence)
			}
		}
	}
}

func TestExtractCompanyName(t *testing.T) {
	assert.Equal(t, "Microsoft", ExtractCompanyName("Microsoft | LinkedIn", "ignored"))
	assert.Equal(t, "Acme Corp - Overview", ExtractCompanyName("  Acme Corp - Overview  ", ""))
	assert.Equal(t, "Leading cloud provider", ExtractCompanyName("", "Leading cloud provider for modern teams"))
	assert.Equal(t, "Two words", ExtractCompanyName("| LinkedIn", "Two words"))
	assert.Equal(t, UnknownCompany, ExtractCompanyName("", "   "))
}
