package matching

import (
	"sort"

	"github.com/hyperjump/otoshimono/internal/models"
)

// MatchCandidate is a scored candidate. It lives for one matching run.
type MatchCandidate struct {
	Item    *models.Item   `json:"item"`
	Score   int            `json:"score"`
	Factors models.Factors `json:"factors"`
}

// Ranker scores candidates, drops those under the threshold, and keeps the best topN.
type Ranker struct {
	scorer    *Scorer
	threshold int
	topN      int
}

// NewRanker creates a Ranker.
func NewRanker(scorer *Scorer, threshold, topN int) *Ranker {
	return &Ranker{scorer: scorer, threshold: threshold, topN: topN}
}

// Rank returns matches sorted by descending score. Equal scores keep candidate order.
func (r *Ranker) Rank(source *models.Item, candidates []*models.Item) []MatchCandidate {
	matches := make([]MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		score, factors := r.scorer.Score(source, c)
		if score < r.threshold {
			continue
		}
		matches = append(matches, MatchCandidate{Item: c, Score: score, Factors: factors})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if r.topN > 0 && len(matches) > r.topN {
		matches = matches[:r.topN]
	}
	return matches
}
