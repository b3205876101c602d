package scoring

// band is one threshold step: scores at or above Min map to Label.
type band struct {
	Min   int
	Label string
}

// GradeTable maps an overall score to a letter grade.
type GradeTable struct {
	name  string
	bands []band // descending by Min
	floor string
}

// Name returns the table name.
func (t GradeTable) Name() string { return t.name }

// Grade returns the grade for score.
func (t GradeTable) Grade(score int) string {
	for _, b := range t.bands {
		if score >= b.Min {
			return b.Label
		}
	}
	return t.floor
}

// Labels lists every grade the table can produce, best first.
func (t GradeTable) Labels() []string {
	out := make([]string, 0, len(t.bands)+1)
	for _, b := range t.bands {
		out = append(out, b.Label)
	}
	return append(out, t.floor)
}

// CoarseGrades is the S/A/B/C/D/F table.
var CoarseGrades = GradeTable{
	name: "coarse",
	bands: []band{
		{90, "S"},
		{80, "A"},
		{70, "B"},
		{60, "C"},
		{50, "D"},
	},
	floor: "F",
}

// FineGrades is the A+ ... D table.
var FineGrades = GradeTable{
	name: "fine",
	bands: []band{
		{90, "A+"},
		{85, "A"},
		{80, "A-"},
		{75, "B+"},
		{70, "B"},
		{65, "B-"},
		{60, "C+"},
		{55, "C"},
		{50, "C-"},
	},
	floor: "D",
}

// MaturityLadder maps an overall score to a maturity label.
type MaturityLadder struct {
	name  string
	steps []band // descending by Min
	floor string
}

// Name returns the ladder name.
func (l MaturityLadder) Name() string { return l.name }

// Level returns the maturity label for score.
func (l MaturityLadder) Level(score int) string {
	for _, s := range l.steps {
		if score >= s.Min {
			return s.Label
		}
	}
	return l.floor
}

// Next returns the label of the tier above score and the points still
// needed to reach it. ok is false at the top tier.
func (l MaturityLadder) Next(score int) (label string, points int, ok bool) {
	for i := len(l.steps) - 1; i >= 0; i-- {
		if score < l.steps[i].Min {
			return l.steps[i].Label, l.steps[i].Min - score, true
		}
	}
	return "", 0, false
}

// SixTier is the Korean six-step ladder.
var SixTier = MaturityLadder{
	name: "six-tier",
	steps: []band{
		{90, "AI 선도기업"},
		{80, "AI 활용기업"},
		{70, "AI 도입기업"},
		{60, "AI 관심기업"},
		{50, "AI 준비기업"},
	},
	floor: "AI 미도입기업",
}

// FourTier is the Beginner/Adopter/User/Expert ladder.
var FourTier = MaturityLadder{
	name: "four-tier",
	steps: []band{
		{80, "AI Expert"},
		{60, "AI User"},
		{40, "AI Adopter"},
	},
	floor: "AI Beginner",
}
