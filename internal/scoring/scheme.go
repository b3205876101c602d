package scoring

import (
	"fmt"
	"sort"

	"github.com/pavelanni/aidiag/internal/model"
)

// Scheme binds a scaling policy to its grade table, maturity ladder and
// the catalog of the survey variant it was designed for.
type Scheme struct {
	Name        string
	CatalogName string
	Policy      Policy
	Grades      GradeTable
	Maturity    MaturityLadder
}

// Scores is the output of Compute.
type Scores struct {
	CategoryScores []model.CategoryScore `json:"category_scores"`
	OverallScore   int                   `json:"overall_score"`
	Grade          string                `json:"grade"`
	MaturityLevel  string                `json:"maturity_level"`
}

// Weighted is the 24-question survey: weighted category averages x25,
// coarse grades, six-tier maturity.
var Weighted = Scheme{
	Name:        "weighted",
	CatalogName: "weighted",
	Policy:      WeightedPolicy{},
	Grades:      CoarseGrades,
	Maturity:    SixTier,
}

// Sectioned is the 45-question survey: section averages x20, fine grades,
// four-tier maturity.
var Sectioned = Scheme{
	Name:        "sectioned",
	CatalogName: "sectioned",
	Policy:      SectionedPolicy{},
	Grades:      FineGrades,
	Maturity:    FourTier,
}

var schemes = map[string]Scheme{
	Weighted.Name:  Weighted,
	Sectioned.Name: Sectioned,
}

// SchemeByName returns a registered scheme.
func SchemeByName(name string) (Scheme, error) {
	s, ok := schemes[name]
	if !ok {
		return Scheme{}, fmt.Errorf("unknown scoring scheme %q (valid: %v)", name, SchemeNames())
	}
	return s, nil
}

// SchemeNames lists registered scheme names.
func SchemeNames() []string {
	names := make([]string, 0, len(schemes))
	for n := range schemes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Compute scores responses against catalog under scheme. It never fails.
func Compute(responses model.Responses, catalog *Catalog, scheme Scheme) Scores {
	cats, overall := scheme.Policy.Score(responses, catalog)
	return Scores{
		CategoryScores: cats,
		OverallScore:   overall,
		Grade:          scheme.Grades.Grade(overall),
		MaturityLevel:  scheme.Maturity.Level(overall),
	}
}

// Ranked returns the category scores ordered from strongest to weakest.
// Ties keep catalog order.
func Ranked(scores []model.CategoryScore) []model.CategoryScore {
	out := append([]model.CategoryScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NormalizedScore > out[j].NormalizedScore
	})
	return out
}
