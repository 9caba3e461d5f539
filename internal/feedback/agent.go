package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const systemPrompt = `You are an expert technical interviewer and career coach with deep knowledge across multiple technical domains including software engineering, data science, AI/ML, cybersecurity, cloud computing, and system design.

Your role is to provide comprehensive, constructive feedback on interview Q&A pairs. For each question and answer, you must analyze:

1. **Technical Accuracy**: Is the answer technically correct?
2. **Completeness**: Does the answer address all parts of the question?
3. **Clarity**: Is the answer clear and well-structured?
4. **Depth**: Does the answer show appropriate depth of knowledge?
5. **Practical Experience**: Does the answer demonstrate real-world experience?
6. **Communication Skills**: How well is the answer communicated?

For each analysis, provide:
- **Strengths**: What the candidate did well
- **Weaknesses**: Areas that need improvement
- **Ideal Answer**: What a strong answer would look like
- **Technical Assessment**: Professional evaluation of technical knowledge
- **Improvement Suggestions**: Specific actionable advice

Be constructive, professional, and specific. Focus on helping the candidate improve while being honest about gaps in knowledge or communication.

Format your response as JSON with these exact keys:
{
    "strengths": ["strength1", "strength2", ...],
    "weaknesses": ["weakness1", "weakness2", ...],
    "ideal_answer": "Detailed ideal answer that addresses the question comprehensively",
    "technical_assessment": "Professional technical evaluation",
    "improvement_suggestions": ["suggestion1", "suggestion2", ...],
    "overall_score": 0.85,
    "summary": "Brief overall assessment"
}`

// Record is one piece of interview feedback. IsFallback marks records
// produced locally when the model call or parse failed.
type Record struct {
	ID                     string    `json:"id"`
	Strengths              []string  `json:"strengths"`
	Weaknesses             []string  `json:"weaknesses"`
	IdealAnswer            string    `json:"ideal_answer"`
	TechnicalAssessment    string    `json:"technical_assessment"`
	ImprovementSuggestions []string  `json:"improvement_suggestions"`
	OverallScore           float64   `json:"overall_score"`
	Summary                string    `json:"summary"`
	QuestionNumber         int       `json:"question_number"`
	Timestamp              time.Time `json:"timestamp"`
	Question               string    `json:"question"`
	Answer                 string    `json:"answer"`
	IsFallback             bool      `json:"is_fallback,omitempty"`
}

// Agent generates feedback by calling the relay's feedback endpoint.
type Agent struct {
	HTTPClient *http.Client
	BaseURL    string
	Model      string
}

func NewAgent(baseURL string) *Agent {
	return &Agent{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      "gpt-4o-mini",
	}
}

// Generate produces feedback for one Q&A pair. It never fails: any
// transport or parse problem yields the fallback record instead.
func (a *Agent) Generate(ctx context.Context, question, answer string, questionNumber int) *Record {
	content, err := a.callRelay(ctx, question, answer, questionNumber)
	if err != nil {
		log.Printf("feedback: question %d degraded to fallback: %v", questionNumber, err)
		return Fallback(question, answer, questionNumber)
	}

	rec, ok := Parse(content)
	if !ok {
		log.Printf("feedback: question %d response had no JSON, using fallback", questionNumber)
		rec = Fallback(question, answer, questionNumber)
	}
	rec.ID = uuid.NewString()
	rec.QuestionNumber = questionNumber
	rec.Timestamp = time.Now().UTC()
	rec.Question = question
	rec.Answer = answer
	return rec
}

func (a *Agent) callRelay(ctx context.Context, question, answer string, questionNumber int) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"system_prompt": systemPrompt,
		"user_message":  userMessage(question, answer, questionNumber),
		"model":         a.Model,
		"max_tokens":    1500,
		"temperature":   0.3,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/generate-feedback", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("feedback relay error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func userMessage(question, answer string, questionNumber int) string {
	return fmt.Sprintf(`Please analyze this interview Q&A pair and provide comprehensive feedback:

**Question %d:**
%s

**Answer:**
%s

Please provide detailed technical feedback including strengths, weaknesses, ideal answer, and improvement suggestions. Be specific and constructive in your analysis.`, questionNumber, question, answer)
}

// flexList tolerates a JSON array of strings or a bare string.
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = []string{s}
		return nil
	}
	*l = nil
	return nil
}

// Parse extracts the JSON object embedded in a model response. Model
// output often wraps the object in prose or code fences, so it scans
// from the first '{' to the last '}'. Missing keys are back-filled and
// a missing or non-numeric score defaults to 0.5. ok is false when no
// parseable object is present.
func Parse(content string) (rec *Record, ok bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, false
	}

	var raw struct {
		Strengths              flexList        `json:"strengths"`
		Weaknesses             flexList        `json:"weaknesses"`
		IdealAnswer            string          `json:"ideal_answer"`
		TechnicalAssessment    string          `json:"technical_assessment"`
		ImprovementSuggestions flexList        `json:"improvement_suggestions"`
		OverallScore           json.RawMessage `json:"overall_score"`
		Summary                string          `json:"summary"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, false
	}

	rec = &Record{
		Strengths:              backfillList(raw.Strengths),
		Weaknesses:             backfillList(raw.Weaknesses),
		IdealAnswer:            backfillString(raw.IdealAnswer),
		TechnicalAssessment:    backfillString(raw.TechnicalAssessment),
		ImprovementSuggestions: backfillList(raw.ImprovementSuggestions),
		OverallScore:           parseScore(raw.OverallScore),
		Summary:                raw.Summary,
	}
	return rec, true
}

func backfillString(s string) string {
	if s == "" {
		return "Not provided"
	}
	return s
}

func backfillList(l flexList) []string {
	if len(l) == 0 {
		return []string{"Not provided"}
	}
	return l
}

func parseScore(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0.5
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		// ParseFloat accepts "NaN" and "Inf", which are not scores
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return 0.5
}

// Fallback returns the canned record used when generation fails.
func Fallback(question, answer string, questionNumber int) *Record {
	return &Record{
		ID:         uuid.NewString(),
		Strengths:  []string{"Attempted to answer the question", "Showed engagement"},
		Weaknesses: []string{"Answer could be more detailed", "Consider providing specific examples"},
		IdealAnswer: "A comprehensive answer that directly addresses the question " +
			"with specific examples and technical details.",
		TechnicalAssessment: "Unable to assess due to technical issues. Please try again.",
		ImprovementSuggestions: []string{
			"Provide more specific examples",
			"Structure your answer clearly",
			"Include technical details when relevant",
		},
		OverallScore:   0.5,
		Summary:        "Feedback generation encountered technical issues. Please try again.",
		QuestionNumber: questionNumber,
		Timestamp:      time.Now().UTC(),
		Question:       question,
		Answer:         answer,
		IsFallback:     true,
	}
}

// Format renders a record for console display.
func Format(r *Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**FEEDBACK FOR QUESTION %d:**\n\n", r.QuestionNumber)
	b.WriteString("**Strengths:**\n")
	for _, s := range r.Strengths {
		fmt.Fprintf(&b, "• %s\n", s)
	}
	b.WriteString("\n**Weaknesses:**\n")
	for _, w := range r.Weaknesses {
		fmt.Fprintf(&b, "• %s\n", w)
	}
	fmt.Fprintf(&b, "\n**Ideal Answer:**\n%s\n", r.IdealAnswer)
	fmt.Fprintf(&b, "\n**Technical Assessment:**\n%s\n", r.TechnicalAssessment)
	b.WriteString("\n**Improvement Suggestions:**\n")
	for _, s := range r.ImprovementSuggestions {
		fmt.Fprintf(&b, "• %s\n", s)
	}
	fmt.Fprintf(&b, "\n**Overall Score:** %.2f/1.0\n", r.OverallScore)
	summary := r.Summary
	if summary == "" {
		summary = "No summary available"
	}
	fmt.Fprintf(&b, "**Summary:** %s", summary)
	return b.String()
}
