package library

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// ExactMatchScore is the score at or above which a match is accepted
// without asking for confirmation.
const ExactMatchScore = 97

// MatchOptions bounds fuzzy resolution.
type MatchOptions struct {
	Limit  int     // most candidates offered
	Cutoff float64 // minimum score, 0..100
}

// DefaultMatchOptions mirror the library's stock configuration.
var DefaultMatchOptions = MatchOptions{Limit: 3, Cutoff: 75}

// Match is one ranked candidate.
type Match struct {
	Candidate string
	Score     float64
}

// Confirmer is asked, candidate by candidate, whether the user meant it.
type Confirmer interface {
	Confirm(candidate string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(candidate string) bool

func (f ConfirmFunc) Confirm(candidate string) bool { return f(candidate) }

// DeclineAll confirms nothing.
var DeclineAll Confirmer = ConfirmFunc(func(string) bool { return false })

// Resolver resolves free-text references against canonical names.
// It never mutates anything; it only asks its Confirmer.
type Resolver struct {
	opts MatchOptions
}

// NewResolver returns a Resolver using opts; a non-positive limit falls
// back to DefaultMatchOptions.Limit.
func NewResolver(opts MatchOptions) *Resolver {
	if opts.Limit <= 0 {
		opts.Limit = DefaultMatchOptions.Limit
	}
	return &Resolver{opts: opts}
}

// Options returns the resolver's match bounds.
func (r *Resolver) Options() MatchOptions { return r.opts }

// Resolve is the package Resolve with the resolver's bounds.
func (r *Resolver) Resolve(query string, candidates []string, c Confirmer) string {
	return Resolve(query, candidates, r.opts.Limit, r.opts.Cutoff, c)
}

// CandidatesLike is the package CandidatesLike with the resolver's bounds.
func (r *Resolver) CandidatesLike(query string, candidates []string) []string {
	return CandidatesLike(query, candidates, r.opts.Limit, r.opts.Cutoff)
}

// Resolve maps query to a canonical candidate. A best score of at least
// ExactMatchScore is returned straight away; otherwise each ranked
// candidate is offered to c in turn and the first confirmed one wins.
// When nothing is confirmed, query itself is returned unchanged and the
// caller decides whether that means "not found".
func Resolve(query string, candidates []string, limit int, cutoff float64, c Confirmer) string {
	matches := Rank(query, candidates, limit, cutoff)
	if len(matches) == 0 {
		return query
	}
	if matches[0].Score >= ExactMatchScore {
		return matches[0].Candidate
	}
	if c == nil {
		return query
	}
	for _, m := range matches {
		if c.Confirm(m.Candidate) {
			return m.Candidate
		}
	}
	return query
}

// CandidatesLike returns the ranked candidate names without confirmation.
func CandidatesLike(query string, candidates []string, limit int, cutoff float64) []string {
	matches := Rank(query, candidates, limit, cutoff)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Candidate)
	}
	return out
}

// Rank scores every candidate against query and returns up to limit of
// those scoring at least cutoff, best first. Ties keep candidate order.
func Rank(query string, candidates []string, limit int, cutoff float64) []Match {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}
	q := sortTokens(query)
	if q == "" {
		return nil
	}
	var matches []Match
	for _, cand := range candidates {
		score := ratio(q, sortTokens(cand))
		if score >= cutoff {
			matches = append(matches, Match{Candidate: cand, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// TokenSortRatio scores a against b on a 0..100 scale, ignoring case,
// punctuation and word order.
func TokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

func normalize(s string) string {
	s = cases.Fold().String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
}

func sortTokens(s string) string {
	tokens := strings.Fields(normalize(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// ratio is the normalised InDel similarity of a and b over runes.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	return 200 * float64(lcs(ra, rb)) / float64(total)
}

// lcs returns the length of the longest common subsequence of a and b.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
