package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client talks to the interview-plan service: submit a resume and job
// description, then poll until the generated plan is ready.
type Client struct {
	HTTPClient   *http.Client
	BaseURL      string
	PollInterval time.Duration
	MaxAttempts  int
}

// Status is the plan service's processing state for one session.
type Status struct {
	OverallStatus string  `json:"overall_status"`
	Error         string  `json:"error,omitempty"`
	Result        *Result `json:"result,omitempty"`
}

type Result struct {
	InterviewPlan *InterviewPlan `json:"interview_plan"`
}

type InterviewPlan struct {
	InterviewSections []Section `json:"interview_sections"`
}

type Section struct {
	SectionName string     `json:"section_name,omitempty"`
	Questions   []Question `json:"questions"`
}

type Question struct {
	QuestionText string `json:"question_text"`
}

func NewClient(baseURL string) *Client {
	return &Client{
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		BaseURL:      strings.TrimRight(baseURL, "/"),
		PollInterval: 5 * time.Second,
		MaxAttempts:  60,
	}
}

// CreatePlan uploads the resume and job description as multipart files
// and returns the session id to poll.
func (c *Client) CreatePlan(ctx context.Context, resumeName string, resume io.Reader, jobName string, jobDescription io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("resume", resumeName)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, resume); err != nil {
		return "", fmt.Errorf("copy resume: %w", err)
	}
	part, err = mw.CreateFormFile("job_description", jobName)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, jobDescription); err != nil {
		return "", fmt.Errorf("copy job description: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/create-interview-plan", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("create plan error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("create plan: no session_id in response")
	}
	return out.SessionID, nil
}

// CheckStatus fetches the current processing state once.
func (c *Client) CheckStatus(ctx context.Context, sessionID string) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status/"+sessionID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Poll checks immediately and then on the poll interval until the plan
// completes, the service reports an error, or the attempt budget runs
// out. Network errors are retried with exponential backoff and count
// against the same budget.
func (c *Client) Poll(ctx context.Context, sessionID string) (*Status, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	wait := time.Duration(0)
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		st, err := c.CheckStatus(ctx, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			wait = bo.NextBackOff()
			log.Printf("plan: status check failed (attempt %d), retrying in %s: %v", attempt+1, wait, err)
			continue
		}
		bo.Reset()

		switch {
		case st.OverallStatus == "completed":
			return st, nil
		case st.OverallStatus == "error" || st.Error != "":
			return st, fmt.Errorf("plan processing failed: status=%s error=%s", st.OverallStatus, st.Error)
		}
		wait = c.PollInterval
	}
	return nil, fmt.Errorf("plan %s not ready after %d attempts", sessionID, c.MaxAttempts)
}

// ExtractQuestions flattens all section questions into a numbered list
// in plan order.
func ExtractQuestions(st *Status) []string {
	if st == nil || st.Result == nil || st.Result.InterviewPlan == nil {
		return nil
	}
	var questions []string
	n := 1
	for _, section := range st.Result.InterviewPlan.InterviewSections {
		for _, q := range section.Questions {
			if q.QuestionText == "" {
				continue
			}
			questions = append(questions, fmt.Sprintf("%d. %s", n, q.QuestionText))
			n++
		}
	}
	return questions
}

// BuildInstructions renders the interviewer instructions around the
// numbered question list.
func BuildInstructions(questions []string) string {
	return fmt.Sprintf(`You are conducting a natural interview conversation.
When the conversation starts, immediately greet the user by saying exactly: "Hello! Welcome to your interview. I'm excited to learn more about your background. Could you please introduce yourself and tell me a bit about your experience?"

After greeting, wait for the user to speak and when the user is finished, you need to ask these questions in this exact order, but make it sound like a normal conversation:

%s

CRITICAL INSTRUCTIONS:

- The agent will say the initial message and asks that the interviewee introduces himself.
- After the interviewee introduces himself, the agent will respond in one or 2 sentence and then asks the first question.
- Ask these questions in the exact order listed above
- Make it sound like a natural conversation - don't say question numbers or "first question", "second question", etc.
- After each answer, provide brief constructive feedback (1-2 sentences) when the answer could be improved or when clarification would be helpful
- If the answer is good and complete, simply acknowledge it briefly and move to the next question without excessive praise
- Be encouraging and supportive, but focus on helping the interviewee improve rather than just praising
- If an answer from the user is not relevant to the question asked at all, ask the same question one more time to guide them back on track
- If you think a follow-up question would be valuable, you can ask ONLY ONE follow-up question. After the follow-up response, you must proceed to the next question
- Do NOT skip questions or ask them out of order
- Do NOT create your own questions
- Keep the conversation flowing naturally
- Start with the first question from the questions list and if no question is available, ask this: 'Tell me about your experience and background.'
You are a friendly, professional interviewer conducting a comprehensive interview to assess the candidate's technical skills, experience, and cultural fit for the role.`, strings.Join(questions, "\n"))
}
