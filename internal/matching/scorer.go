// Package matching implements the smart matching engine: candidate retrieval,
// rule-based similarity scoring, ranking, and notification fan-out.
package matching

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hyperjump/otoshimono/internal/config"
	"github.com/hyperjump/otoshimono/internal/keyword"
	"github.com/hyperjump/otoshimono/internal/models"
)

// Factor names used as keys of models.Factors.
const (
	FactorCategory = "category"
	FactorKeywords = "keywords"
	FactorLocation = "location"
	FactorRecency  = "recency"
	FactorDistance = "distance"
)

// Partial credit for location text that is not an exact match.
const (
	locationSubstringShare = 0.75
	locationOverlapShare   = 0.5
)

// Scorer computes a 0-100 match score for a (source, candidate) pair as a
// weighted sum of independent factors. It holds no mutable state.
type Scorer struct {
	config    *config.MatchingConfig
	extractor *keyword.Extractor
}

// NewScorer creates a Scorer. A nil config uses the defaults.
func NewScorer(cfg *config.MatchingConfig) *Scorer {
	if cfg == nil {
		d := config.DefaultMatchingConfig()
		cfg = &d
	}
	return &Scorer{
		config:    cfg,
		extractor: keyword.NewExtractor(),
	}
}

// Score returns the rounded score in [0,100] and the per-factor breakdown.
// A missing field zeroes only the factor that reads it.
func (s *Scorer) Score(source, candidate *models.Item) (int, models.Factors) {
	factors := models.Factors{
		FactorCategory: s.categoryFactor(source, candidate),
		FactorKeywords: s.keywordFactor(source, candidate),
		FactorLocation: s.locationFactor(source, candidate),
		FactorRecency:  s.recencyFactor(source, candidate),
		FactorDistance: s.distanceFactor(source, candidate),
	}
	return clampScore(factors.Total()), factors
}

func clampScore(total float64) int {
	score := int(math.Round(total))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (s *Scorer) categoryFactor(a, b *models.Item) models.Factor {
	ca, cb := strings.TrimSpace(a.Category), strings.TrimSpace(b.Category)
	if ca == "" || cb == "" || !strings.EqualFold(ca, cb) {
		return models.Factor{}
	}
	return models.Factor{Score: s.config.Weights.Category, Detail: cb}
}

// keywordFactor averages the overlap coefficient (matched / smaller set) and
// Jaccard similarity (matched / union).
func (s *Scorer) keywordFactor(a, b *models.Item) models.Factor {
	ka := s.extractor.Extract(a.Text())
	kb := s.extractor.Extract(b.Text())
	if ka.Len() == 0 || kb.Len() == 0 {
		return models.Factor{}
	}
	matched, union := keyword.Overlap(ka, kb)
	if len(matched) == 0 {
		return models.Factor{}
	}
	containment := float64(len(matched)) / float64(min(ka.Len(), kb.Len()))
	jaccard := float64(len(matched)) / float64(union)
	return models.Factor{
		Score:  s.config.Weights.Keywords * (containment + jaccard) / 2,
		Detail: strings.Join(matched, ", "),
	}
}

func (s *Scorer) locationFactor(a, b *models.Item) models.Factor {
	la := strings.ToLower(strings.TrimSpace(a.Location))
	lb := strings.ToLower(strings.TrimSpace(b.Location))
	if la == "" || lb == "" {
		return models.Factor{}
	}
	weight := s.config.Weights.Location
	switch {
	case la == lb:
		return models.Factor{Score: weight, Detail: "same location"}
	case strings.Contains(la, lb) || strings.Contains(lb, la):
		return models.Factor{Score: weight * locationSubstringShare, Detail: "overlapping location"}
	}
	ka, kb := s.extractor.Extract(la), s.extractor.Extract(lb)
	if ka.Len() == 0 || kb.Len() == 0 {
		return models.Factor{}
	}
	matched, union := keyword.Overlap(ka, kb)
	if len(matched) == 0 {
		return models.Factor{}
	}
	share := float64(len(matched)) / float64(union)
	return models.Factor{
		Score:  weight * locationOverlapShare * share,
		Detail: "near " + strings.Join(matched, ", "),
	}
}

func (s *Scorer) recencyFactor(a, b *models.Item) models.Factor {
	if a.CreatedAt.IsZero() || b.CreatedAt.IsZero() {
		return models.Factor{}
	}
	window := s.config.RecencyWindowFor(a.CampusID)
	if window <= 0 {
		return models.Factor{}
	}
	gap := a.CreatedAt.Sub(b.CreatedAt)
	if gap < 0 {
		gap = -gap
	}
	if gap >= window {
		return models.Factor{}
	}
	share := 1 - float64(gap)/float64(window)
	return models.Factor{
		Score:  s.config.Weights.Recency * share,
		Detail: formatGap(gap),
	}
}

func (s *Scorer) distanceFactor(a, b *models.Item) models.Factor {
	if !a.Coordinates.Valid() || !b.Coordinates.Valid() || s.config.MaxDistanceKm <= 0 {
		return models.Factor{}
	}
	km := haversineDistance(a.Coordinates.Lat, a.Coordinates.Lng, b.Coordinates.Lat, b.Coordinates.Lng)
	if km >= s.config.MaxDistanceKm {
		return models.Factor{}
	}
	return models.Factor{
		Score:  s.config.Weights.Distance * (1 - km/s.config.MaxDistanceKm),
		Detail: fmt.Sprintf("%.0f m apart", km*1000),
	}
}

// haversineDistance returns the great-circle distance in kilometers.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func formatGap(d time.Duration) string {
	switch {
	case d < time.Hour:
		return "posted within the hour"
	case d < 48*time.Hour:
		return fmt.Sprintf("posted %d hours apart", int(d.Hours()))
	default:
		return fmt.Sprintf("posted %d days apart", int(d.Hours()/24))
	}
}
