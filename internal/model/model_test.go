package model

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponsesUnmarshalLenient(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Responses
	}{
		{"numbers", `{"q1": 3, "q2": 5}`, Responses{"q1": 3, "q2": 5}},
		{"numeric strings", `{"q1": "4", "q2": " 2 "}`, Responses{"q1": 4, "q2": 2}},
		{"fractions round", `{"q1": 3.5, "q2": "2.4"}`, Responses{"q1": 4, "q2": 2}},
		{"garbage dropped", `{"q1": "abc", "q2": true, "q3": [1], "q4": 1}`, Responses{"q4": 1}},
		{"null value dropped", `{"q1": null}`, Responses{}},
		{"null among answers", `{"q1": null, "q2": 3}`, Responses{"q2": 3}},
		{"out of range clamps", `{"q1": 0, "q2": 9, "q3": "-2"}`, Responses{"q1": 1, "q2": 5, "q3": 1}},
		{"huge magnitudes clamp", `{"q1": 1e20, "q2": -1e20, "q3": "9.3e18"}`, Responses{"q1": 5, "q2": 1, "q3": 5}},
		{"empty object", `{}`, Responses{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Responses
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponsesUnmarshalNull(t *testing.T) {
	r := Responses{"q1": 1}
	require.NoError(t, json.Unmarshal([]byte(`null`), &r))
	assert.Nil(t, r)
}

func TestResponsesUnmarshalNotObject(t *testing.T) {
	var r Responses
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &r))
}

func TestResponsesInsideStruct(t *testing.T) {
	var payload struct {
		Responses Responses `json:"responses"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"responses": {"leadership_1": "5"}}`), &payload))
	assert.Equal(t, 5, payload.Responses["leadership_1"])
}

func TestSummary(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := DiagnosisResult{
		DiagnosisID:   "AIDIAG-1",
		Company:       Company{Name: "ACME", ContactEmail: "a@b.co"},
		OverallScore:  70,
		Grade:         "B",
		MaturityLevel: "AI User",
		CreatedAt:     created,
	}
	s := r.Summary()
	assert.Equal(t, "AIDIAG-1", s.DiagnosisID)
	assert.Equal(t, "ACME", s.CompanyName)
	assert.Equal(t, "a@b.co", s.ContactEmail)
	assert.Equal(t, 70, s.OverallScore)
	assert.Equal(t, created, s.SubmittedAt)
}

func TestBasePathContext(t *testing.T) {
	assert.Empty(t, BasePathFromContext(context.Background()))
	ctx := ContextWithBasePath(context.Background(), "/aidiag")
	assert.Equal(t, "/aidiag", BasePathFromContext(ctx))
}

func TestClone(t *testing.T) {
	r := DiagnosisResult{
		DiagnosisID:    "AIDIAG-1",
		CategoryScores: []CategoryScore{{Category: CategoryTalent, NormalizedScore: 60}},
		Responses:      Responses{"talent_1": 3},
	}
	cp := r.Clone()
	cp.CategoryScores[0].NormalizedScore = 100
	cp.Responses["talent_1"] = 5
	assert.InDelta(t, 60.0, r.CategoryScores[0].NormalizedScore, 1e-9)
	assert.Equal(t, 3, r.Responses["talent_1"])

	n := &Narrative{Summary: "s", Roadmap: []string{"q1"}}
	nc := n.Clone()
	nc.Roadmap[0] = "changed"
	assert.Equal(t, "q1", n.Roadmap[0])
	assert.Nil(t, (*Narrative)(nil).Clone())
}
