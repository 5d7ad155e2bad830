package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder confirms the candidates in yes and records every offer.
type recorder struct {
	yes     map[string]bool
	offered []string
}

func (r *recorder) Confirm(candidate string) bool {
	r.offered = append(r.offered, candidate)
	return r.yes[candidate]
}

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"dune", "Dune", 100},
		{"George Orwell", "orwell, george", 100},
		{"The Hobbit!", "the hobbit", 100},
		{"Dnue", "Dune", 75},
		{"", "Dune", 0},
		{"", "", 0},
		{"!!!", "???", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, TokenSortRatio(tt.a, tt.b), 0.01)
		})
	}
}

func TestResolveExactMatchNeedsNoConfirmation(t *testing.T) {
	r := &recorder{}
	got := Resolve("dune", []string{"Emma", "Dune"}, 3, 75, r)
	assert.Equal(t, "Dune", got)
	assert.Empty(t, r.offered)
}

func TestResolveConfirmsCloseMatch(t *testing.T) {
	r := &recorder{yes: map[string]bool{"Dune": true}}
	got := Resolve("Dnue", []string{"Emma", "Dune"}, 3, 75, r)
	assert.Equal(t, "Dune", got)
	assert.Equal(t, []string{"Dune"}, r.offered)
}

func TestResolveDeclinedReturnsQuery(t *testing.T) {
	r := &recorder{}
	got := Resolve("Dnue", []string{"Dune"}, 3, 75, r)
	assert.Equal(t, "Dnue", got)
	assert.Equal(t, []string{"Dune"}, r.offered)

	assert.Equal(t, "Dnue", Resolve("Dnue", []string{"Dune"}, 3, 75, nil))
}

func TestResolveNoCandidates(t *testing.T) {
	r := &recorder{}
	assert.Equal(t, "Dune", Resolve("Dune", nil, 3, 75, r))
	assert.Equal(t, "", Resolve("", []string{"Dune"}, 3, 75, r))
	assert.Empty(t, r.offered)
}

func TestResolveOffersInRankOrder(t *testing.T) {
	r := &recorder{}
	// "dunk" and "dune" tie against "dun"; ties keep candidate order.
	Resolve("dun", []string{"Dunk", "Emma", "Dune"}, 3, 75, r)
	assert.Equal(t, []string{"Dunk", "Dune"}, r.offered)
}

func TestRankLimitAndCutoff(t *testing.T) {
	candidates := []string{"Dune Messiah", "Dunes", "Dune"}

	matches := Rank("dune", candidates, 3, 75)
	require.Len(t, matches, 2)
	assert.Equal(t, "Dune", matches[0].Candidate)
	assert.Equal(t, "Dunes", matches[1].Candidate)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	assert.Len(t, Rank("dune", candidates, 1, 75), 1)
	assert.Len(t, Rank("dune", candidates, 3, 40), 3)
	assert.Empty(t, Rank("dune", candidates, 0, 75))
}

func TestRankZeroCutoffKeepsZeroScores(t *testing.T) {
	matches := Rank("dune", []string{"xyz", "Dune"}, 3, 0)
	require.Len(t, matches, 2)
	assert.Equal(t, "Dune", matches[0].Candidate)
	assert.Equal(t, "xyz", matches[1].Candidate)
	assert.Zero(t, matches[1].Score)
}

func TestCandidatesLike(t *testing.T) {
	got := CandidatesLike("dune", []string{"Dunes", "Emma", "Dune"}, 3, 75)
	assert.Equal(t, []string{"Dune", "Dunes"}, got)
}

func TestNewResolverDefaultsLimit(t *testing.T) {
	r := NewResolver(MatchOptions{Limit: 0, Cutoff: 50})
	assert.Equal(t, DefaultMatchOptions.Limit, r.Options().Limit)
	assert.Equal(t, 50.0, r.Options().Cutoff)
	assert.Equal(t, "Dune", r.Resolve("DUNE", []string{"Dune"}, DeclineAll))
}
