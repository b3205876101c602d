// Package scoring turns survey responses into category sub-scores, an
// overall score, a grade and a maturity label.
//
// Two survey variants coexist, each with its own scaling, grade table and
// maturity ladder. They are modelled as Schemes and selected explicitly;
// there is no universal formula.
package scoring

import (
	"math"

	"github.com/pavelanni/aidiag/internal/model"
)

// Policy converts responses into category scores and an overall score.
type Policy interface {
	// Name identifies the policy in configuration and stored rows.
	Name() string
	// Score is pure and total: missing answers default, out-of-range answers clamp.
	Score(responses model.Responses, catalog *Catalog) ([]model.CategoryScore, int)
	// Range returns the inclusive bounds the overall score can take.
	Range() (min, max int)
}

// WeightedPolicy averages responses per category using question weights,
// then scales the mean of the category averages by 25.
//
// A perfect 5 average yields 125. The overall score is not clamped to 100.
type WeightedPolicy struct{}

// Name implements Policy.
func (WeightedPolicy) Name() string { return "weighted" }

// Range implements Policy.
func (WeightedPolicy) Range() (int, int) {
	return model.MinResponse * weightedScale, model.MaxResponse * weightedScale
}

const (
	weightedScale  = 25
	sectionedScale = 20
)

// Score implements Policy.
func (WeightedPolicy) Score(responses model.Responses, catalog *Catalog) ([]model.CategoryScore, int) {
	cats := catalog.Categories()
	scores := make([]model.CategoryScore, 0, len(cats))
	var sumAvg float64
	for _, cat := range cats {
		var sumW, sumRW float64
		cs := model.CategoryScore{Category: cat.Key, Name: cat.Name}
		for _, q := range catalog.QuestionsIn(cat.Key) {
			v, answered := responseValue(responses, q.ID)
			if answered {
				cs.Answered++
			} else {
				cs.Defaulted++
			}
			sumW += q.Weight
			sumRW += float64(v) * q.Weight
		}
		avg := float64(model.DefaultResponse)
		if sumW > 0 {
			avg = sumRW / sumW
		}
		cs.RawAverage = avg
		cs.NormalizedScore = avg * weightedScale
		sumAvg += avg
		scores = append(scores, cs)
	}
	if len(scores) == 0 {
		return scores, model.DefaultResponse * weightedScale
	}
	return scores, roundHalfUp(sumAvg / float64(len(scores)) * weightedScale)
}

// SectionedPolicy averages raw responses per section without weights,
// scales each section by 20 and reports the mean of the section scores.
type SectionedPolicy struct{}

// Name implements Policy.
func (SectionedPolicy) Name() string { return "sectioned" }

// Range implements Policy.
func (SectionedPolicy) Range() (int, int) {
	return model.MinResponse * sectionedScale, model.MaxResponse * sectionedScale
}

// Score implements Policy.
func (SectionedPolicy) Score(responses model.Responses, catalog *Catalog) ([]model.CategoryScore, int) {
	cats := catalog.Categories()
	scores := make([]model.CategoryScore, 0, len(cats))
	var sumScore float64
	for _, cat := range cats {
		cs := model.CategoryScore{Category: cat.Key, Name: cat.Name}
		qs := catalog.QuestionsIn(cat.Key)
		var sum float64
		for _, q := range qs {
			v, answered := responseValue(responses, q.ID)
			if answered {
				cs.Answered++
			} else {
				cs.Defaulted++
			}
			sum += float64(v)
		}
		avg := float64(model.DefaultResponse)
		if len(qs) > 0 {
			avg = sum / float64(len(qs))
		}
		cs.RawAverage = avg
		cs.NormalizedScore = avg * sectionedScale
		sumScore += cs.NormalizedScore
		scores = append(scores, cs)
	}
	if len(scores) == 0 {
		return scores, model.DefaultResponse * sectionedScale
	}
	return scores, roundHalfUp(sumScore / float64(len(scores)))
}

// responseValue returns the answer for id clamped to 1..5. Missing answers
// are reported as unanswered and take the default value.
func responseValue(responses model.Responses, id string) (int, bool) {
	v, ok := responses[id]
	if !ok {
		return model.DefaultResponse, false
	}
	return clamp(v, model.MinResponse, model.MaxResponse), true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
