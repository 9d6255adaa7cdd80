package availability

import (
	"slices"
	"strings"

	"tablebook/internal/models"
)

// DefaultMaxAlternatives bounds a shortlist when no limit is configured.
const DefaultMaxAlternatives = 3

// Shortlist is the outcome of an alternative search. The zero value means no
// search has run yet.
type Shortlist struct {
	Candidates []Candidate
	searched   bool
}

// Searched reports whether a search produced this shortlist.
func (s Shortlist) Searched() bool { return s.searched }

// NoAlternatives reports a completed search that found nothing.
func (s Shortlist) NoAlternatives() bool { return s.searched && len(s.Candidates) == 0 }

// Times returns the candidate start times in shortlist order.
func (s Shortlist) Times() []models.TimeOfDay {
	out := make([]models.TimeOfDay, len(s.Candidates))
	for i, c := range s.Candidates {
		out[i] = c.Slot.Time
	}
	return out
}

// Rank orders candidates by closeness to preferred, keeping chronological order
// among ties, or chronologically when there is no preference, and keeps at most limit.
func Rank(candidates []Candidate, preferred *models.TimeOfDay, limit int) Shortlist {
	if limit <= 0 {
		limit = DefaultMaxAlternatives
	}

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		if preferred != nil {
			if d := a.Distance - b.Distance; d != 0 {
				return d
			}
		}
		return a.Slot.Time.Sub(b.Slot.Time)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return Shortlist{Candidates: ranked, searched: true}
}

// JoinSpoken joins items the way they are read aloud: "A", "A or B", "A, B, or C".
func JoinSpoken(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
}
