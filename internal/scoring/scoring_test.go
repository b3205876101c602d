package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/aidiag/internal/model"
)

func mustCatalog(t *testing.T, name string) *Catalog {
	t.Helper()
	c, err := LoadCatalog(name)
	require.NoError(t, err)
	return c
}

func fill(c *Catalog, v int) model.Responses {
	r := make(model.Responses, c.Len())
	for _, q := range c.Questions() {
		r[q.ID] = v
	}
	return r
}

func TestEmbeddedCatalogs(t *testing.T) {
	w := mustCatalog(t, "weighted")
	assert.Equal(t, 24, w.Len())
	assert.Len(t, w.Categories(), 6)
	for _, cat := range w.Categories() {
		assert.Len(t, w.QuestionsIn(cat.Key), 4, "category %s", cat.Key)
	}
	q, ok := w.Question("leadership_1")
	require.True(t, ok)
	assert.Equal(t, 1.3, q.Weight)

	s := mustCatalog(t, "sectioned")
	assert.Equal(t, 45, s.Len())
	assert.Len(t, s.Categories(), 6)

	_, err := LoadCatalog("nope")
	assert.Error(t, err)
}

func TestParseCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no categories", `{"categories":[],"questions":[]}`},
		{"unknown category", `{"categories":[{"key":"a"}],"questions":[{"id":"x","category":"b","weight":1}]}`},
		{"zero weight", `{"categories":[{"key":"a"}],"questions":[{"id":"x","category":"a","weight":0}]}`},
		{"duplicate id", `{"categories":[{"key":"a"}],"questions":[{"id":"x","category":"a","weight":1},{"id":"x","category":"a","weight":1}]}`},
		{"empty category", `{"categories":[{"key":"a"},{"key":"b"}],"questions":[{"id":"x","category":"a","weight":1}]}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestWeightedEndToEnd(t *testing.T) {
	c := mustCatalog(t, "weighted")
	responses := model.Responses{
		"leadership_1": 4, "leadership_2": 3, "leadership_3": 4, "leadership_4": 3,
		"infra_1": 3, "infra_2": 3, "infra_3": 3, "infra_4": 3,
		"talent_1": 4, "talent_2": 4, "talent_3": 4, "talent_4": 4,
		"culture_1": 2, "culture_2": 3, "culture_3": 2, "culture_4": 3,
		"app_1": 5, "app_2": 4, "app_3": 3, "app_4": 2,
		"data_1": 3, "data_2": 4, "data_3": 3, "data_4": 4,
	}

	got := Compute(responses, c, Weighted)
	require.Len(t, got.CategoryScores, 6)

	lead := got.CategoryScores[0]
	assert.Equal(t, model.CategoryLeadership, lead.Category)
	assert.InDelta(t, (4*1.3+3*1.2+4*1.1+3*1.0)/(1.3+1.2+1.1+1.0), lead.RawAverage, 1e-9)
	assert.InDelta(t, 3.52, lead.RawAverage, 0.005)
	assert.InDelta(t, lead.RawAverage*25, lead.NormalizedScore, 1e-9)
	assert.Equal(t, 4, lead.Answered)
	assert.Zero(t, lead.Defaulted)

	// mean of category averages = 92.4 / 4.6 / 6 = 3.3478..., x25 = 83.7
	assert.Equal(t, 84, got.OverallScore)
	assert.Equal(t, "A", got.Grade)
	assert.Equal(t, "AI 활용기업", got.MaturityLevel)
}

func TestPolicyRanges(t *testing.T) {
	tests := []struct {
		name     string
		scheme   Scheme
		fillWith int
		want     int
		grade    string
		maturity string
	}{
		{"weighted all five exceeds 100", Weighted, 5, 125, "S", "AI 선도기업"},
		{"weighted all one", Weighted, 1, 25, "F", "AI 미도입기업"},
		{"sectioned all five", Sectioned, 5, 100, "A+", "AI Expert"},
		{"sectioned all one", Sectioned, 1, 20, "D", "AI Beginner"},
		{"sectioned all three", Sectioned, 3, 60, "C+", "AI User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustCatalog(t, tt.scheme.CatalogName)
			got := Compute(fill(c, tt.fillWith), c, tt.scheme)
			assert.Equal(t, tt.want, got.OverallScore)
			assert.Equal(t, tt.grade, got.Grade)
			assert.Equal(t, tt.maturity, got.MaturityLevel)
			lo, hi := tt.scheme.Policy.Range()
			assert.GreaterOrEqual(t, got.OverallScore, lo)
			assert.LessOrEqual(t, got.OverallScore, hi)
		})
	}
}

func TestMissingResponsesDefault(t *testing.T) {
	for _, scheme := range []Scheme{Weighted, Sectioned} {
		t.Run(scheme.Name, func(t *testing.T) {
			c := mustCatalog(t, scheme.CatalogName)

			empty := Compute(nil, c, scheme)
			require.Len(t, empty.CategoryScores, len(c.Categories()))
			for _, cs := range empty.CategoryScores {
				assert.InDelta(t, 2.0, cs.RawAverage, 1e-9)
				assert.Zero(t, cs.Answered)
			}
			assert.Equal(t, Compute(fill(c, 2), c, scheme), withoutCounts(empty))

			// partial: a single answered question still yields every category
			partial := Compute(model.Responses{c.Questions()[0].ID: 5}, c, scheme)
			require.Len(t, partial.CategoryScores, len(c.Categories()))
			assert.Equal(t, 1, partial.CategoryScores[0].Answered)
			lo, hi := scheme.Policy.Range()
			assert.GreaterOrEqual(t, partial.OverallScore, lo)
			assert.LessOrEqual(t, partial.OverallScore, hi)
		})
	}
}

// withoutCounts makes an all-defaulted result comparable with an all-twos one.
func withoutCounts(s Scores) Scores {
	out := s
	out.CategoryScores = nil
	for _, cs := range s.CategoryScores {
		cs.Answered, cs.Defaulted = cs.Answered+cs.Defaulted, 0
		out.CategoryScores = append(out.CategoryScores, cs)
	}
	return out
}

func TestOutOfRangeClamps(t *testing.T) {
	c := mustCatalog(t, "weighted")
	high := fill(c, 99)
	low := fill(c, -7)
	assert.Equal(t, Compute(fill(c, 5), c, Weighted), Compute(high, c, Weighted))
	assert.Equal(t, Compute(fill(c, 1), c, Weighted), Compute(low, c, Weighted))
	assert.Equal(t, Compute(fill(c, 1), c, Weighted), Compute(fill(c, 0), c, Weighted))
}

func TestDecodedAnswers(t *testing.T) {
	c := mustCatalog(t, "weighted")
	decode := func(in string) model.Responses {
		var r model.Responses
		require.NoError(t, json.Unmarshal([]byte(in), &r))
		return r
	}

	withNull := Compute(decode(`{"leadership_1": null, "leadership_2": 3}`), c, Weighted)
	absent := Compute(decode(`{"leadership_2": 3}`), c, Weighted)
	assert.Equal(t, absent, withNull, "null answers take the default")

	huge := Compute(decode(`{"leadership_1": 1e20, "leadership_2": "9.3e18"}`), c, Weighted)
	five := Compute(model.Responses{"leadership_1": 5, "leadership_2": 5}, c, Weighted)
	assert.Equal(t, five, huge)
	tiny := Compute(decode(`{"leadership_1": -1e20}`), c, Weighted)
	assert.Equal(t, Compute(model.Responses{"leadership_1": 1}, c, Weighted), tiny)
}

func TestUnknownQuestionIDsIgnored(t *testing.T) {
	c := mustCatalog(t, "sectioned")
	r := fill(c, 4)
	base := Compute(r, c, Sectioned)
	r["not_a_question"] = 1
	assert.Equal(t, base, Compute(r, c, Sectioned))
	assert.Equal(t, c.Len(), c.Known(r))
}

func TestDeterminism(t *testing.T) {
	for _, scheme := range []Scheme{Weighted, Sectioned} {
		c := mustCatalog(t, scheme.CatalogName)
		r := model.Responses{}
		for i, q := range c.Questions() {
			if i%3 != 0 {
				r[q.ID] = 1 + i%5
			}
		}
		first := Compute(r, c, scheme)
		for i := 0; i < 20; i++ {
			require.Equal(t, first, Compute(r, c, scheme))
		}
	}
}

func TestMonotonicity(t *testing.T) {
	for _, scheme := range []Scheme{Weighted, Sectioned} {
		t.Run(scheme.Name, func(t *testing.T) {
			c := mustCatalog(t, scheme.CatalogName)
			base := fill(c, 3)
			catIndex := map[model.CategoryKey]int{}
			for i, cat := range c.Categories() {
				catIndex[cat.Key] = i
			}
			for _, q := range c.Questions() {
				prev := -1.0
				prevOverall := -1
				for v := -1; v <= 6; v++ {
					r := make(model.Responses, len(base))
					for k, x := range base {
						r[k] = x
					}
					r[q.ID] = v
					got := Compute(r, c, scheme)
					score := got.CategoryScores[catIndex[q.Category]].NormalizedScore
					require.GreaterOrEqual(t, score, prev, "question %s value %d", q.ID, v)
					require.GreaterOrEqual(t, got.OverallScore, prevOverall, "question %s value %d", q.ID, v)
					prev, prevOverall = score, got.OverallScore
				}
			}
		})
	}
}

func TestRanked(t *testing.T) {
	in := []model.CategoryScore{
		{Category: "a", NormalizedScore: 50},
		{Category: "b", NormalizedScore: 90},
		{Category: "c", NormalizedScore: 50},
		{Category: "d", NormalizedScore: 70},
	}
	got := Ranked(in)
	var keys []model.CategoryKey
	for _, cs := range got {
		keys = append(keys, cs.Category)
	}
	assert.Equal(t, []model.CategoryKey{"b", "d", "a", "c"}, keys)
	assert.Equal(t, model.CategoryKey("a"), in[0].Category, "input must not be reordered")
}

func TestSchemeByName(t *testing.T) {
	s, err := SchemeByName("sectioned")
	require.NoError(t, err)
	assert.Equal(t, "fine", s.Grades.Name())
	assert.Equal(t, "four-tier", s.Maturity.Name())

	_, err = SchemeByName("universal")
	assert.Error(t, err)
	assert.Equal(t, []string{"sectioned", "weighted"}, SchemeNames())
}
