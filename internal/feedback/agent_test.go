package feedback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParse_WellFormed(t *testing.T) {
	content := `Here is the analysis:
{
  "strengths": ["clear", "concise"],
  "weaknesses": ["shallow"],
  "ideal_answer": "An ideal answer.",
  "technical_assessment": "Solid basics.",
  "improvement_suggestions": ["add examples"],
  "overall_score": 0.85,
  "summary": "Good."
}
Hope that helps.`
	rec, ok := Parse(content)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if len(rec.Strengths) != 2 || rec.OverallScore != 0.85 || rec.Summary != "Good." {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.IsFallback {
		t.Fatalf("well-formed parse must not be a fallback")
	}
}

func TestParse_MissingKeysBackfilled(t *testing.T) {
	rec, ok := Parse(`{"summary":"only summary"}`)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if rec.IdealAnswer != "Not provided" || rec.TechnicalAssessment != "Not provided" {
		t.Fatalf("string keys not back-filled: %+v", rec)
	}
	if len(rec.Strengths) != 1 || rec.Strengths[0] != "Not provided" {
		t.Fatalf("list keys not back-filled: %+v", rec.Strengths)
	}
	if rec.OverallScore != 0.5 {
		t.Fatalf("missing score should default to 0.5, got %v", rec.OverallScore)
	}
}

func TestParse_ScoreVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want float64
	}{
		{"number", `{"overall_score": 0.7}`, 0.7},
		{"numeric_string", `{"overall_score": "0.6"}`, 0.6},
		{"garbage_string", `{"overall_score": "great"}`, 0.5},
		{"nan_string", `{"overall_score": "NaN"}`, 0.5},
		{"inf_string", `{"overall_score": "-Inf"}`, 0.5},
		{"object", `{"overall_score": {"x":1}}`, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok := Parse(tc.body)
			if !ok {
				t.Fatalf("expected parse to succeed")
			}
			if rec.OverallScore != tc.want {
				t.Fatalf("got %v want %v", rec.OverallScore, tc.want)
			}
		})
	}
}

func TestParse_NoJSON(t *testing.T) {
	if _, ok := Parse("no json here at all"); ok {
		t.Fatalf("expected parse failure")
	}
}

func TestGenerate_SuccessAddsMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate-feedback" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":"{\"strengths\":[\"good\"],\"overall_score\":0.9}"}`))
	}))
	defer srv.Close()

	a := NewAgent(srv.URL)
	rec := a.Generate(context.Background(), "What is a goroutine?", "A lightweight thread.", 3)
	if rec.IsFallback {
		t.Fatalf("expected real feedback, got fallback")
	}
	if rec.QuestionNumber != 3 || rec.Question == "" || rec.Answer == "" {
		t.Fatalf("metadata missing: %+v", rec)
	}
	if rec.Timestamp.IsZero() || time.Since(rec.Timestamp) > time.Minute {
		t.Fatalf("timestamp not set: %v", rec.Timestamp)
	}
	if rec.ID == "" {
		t.Fatalf("record id not assigned")
	}
}

func TestGenerate_FailuresYieldFallback(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"relay_500", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }},
		{"bad_body", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not-json")) }},
		{"no_json_in_content", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"content":"sorry, no structured output"}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			a := NewAgent(srv.URL)
			rec := a.Generate(context.Background(), "q", "a", 1)
			if rec == nil {
				t.Fatalf("Generate must never return nil")
			}
			if !rec.IsFallback {
				t.Fatalf("expected fallback record")
			}
			if rec.OverallScore != 0.5 || len(rec.Strengths) == 0 || rec.Summary == "" {
				t.Fatalf("fallback record incomplete: %+v", rec)
			}
			if rec.Question != "q" || rec.Answer != "a" || rec.QuestionNumber != 1 {
				t.Fatalf("fallback metadata missing: %+v", rec)
			}
		})
	}
}

func TestFormat_IncludesScore(t *testing.T) {
	out := Format(Fallback("q", "a", 2))
	if !strings.Contains(out, "0.50/1.0") || !strings.Contains(out, "QUESTION 2") {
		t.Fatalf("unexpected format output:\n%s", out)
	}
}
