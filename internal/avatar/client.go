package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Client calls the avatar vendor's REST API. Account endpoints use the
// API key; streaming-session endpoints use a short-lived session token.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
}

// Avatar is one streamable avatar pose.
type Avatar struct {
	AvatarID   string `json:"avatar_id"`
	AvatarName string `json:"avatar_name,omitempty"`
	PoseName   string `json:"pose_name,omitempty"`
}

// Language is a supported spoken language, derived from the voice
// catalog since the vendor publishes no language endpoint.
type Language struct {
	Language     string `json:"language"`
	LanguageName string `json:"language_name"`
}

// SessionInfo identifies a live streaming session.
type SessionInfo struct {
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	AccessToken string `json:"access_token"`
}

// StartConfig mirrors the streaming.new request body.
type StartConfig struct {
	Quality       string       `json:"quality"`
	AvatarName    string       `json:"avatar_name"`
	Language      string       `json:"language,omitempty"`
	KnowledgeBase string       `json:"knowledge_base,omitempty"`
	Voice         *VoiceConfig `json:"voice,omitempty"`
	STTProvider   string       `json:"stt_provider,omitempty"`
}

type VoiceConfig struct {
	Rate    float64 `json:"rate,omitempty"`
	Emotion string  `json:"emotion,omitempty"`
}

func NewClient(apiKey string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    "https://api.heygen.com",
		APIKey:     apiKey,
	}
}

// CreateToken mints a session token for starting streaming sessions.
func (c *Client) CreateToken(ctx context.Context) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("avatar api key missing")
	}
	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/streaming.create_token", c.keyAuth, nil, &out); err != nil {
		return "", err
	}
	if out.Data.Token == "" {
		return "", fmt.Errorf("avatar token: empty token in response")
	}
	return out.Data.Token, nil
}

// ListAvatars returns the streamable avatar catalog.
func (c *Client) ListAvatars(ctx context.Context) ([]Avatar, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("avatar api key missing")
	}
	var out struct {
		Data []Avatar `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/streaming/avatar.list", c.keyAuth, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListLanguages derives the unique language list from the voice
// catalog, sorted by name.
func (c *Client) ListLanguages(ctx context.Context) ([]Language, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("avatar api key missing")
	}
	var out struct {
		Data struct {
			Voices []struct {
				Language string `json:"language"`
			} `json:"voices"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/voices", c.keyAuth, nil, &out); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var langs []Language
	for _, v := range out.Data.Voices {
		name := strings.TrimSpace(v.Language)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		langs = append(langs, Language{Language: name, LanguageName: name})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].LanguageName < langs[j].LanguageName })
	return langs, nil
}

// NewStreamingSession creates a streaming session for the avatar.
func (c *Client) NewStreamingSession(ctx context.Context, token string, cfg StartConfig) (*SessionInfo, error) {
	var out struct {
		Data SessionInfo `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/streaming.new", bearer(token), cfg, &out); err != nil {
		return nil, err
	}
	if out.Data.SessionID == "" {
		return nil, fmt.Errorf("streaming.new: empty session_id")
	}
	return &out.Data, nil
}

// StartStreamingSession activates a created session.
func (c *Client) StartStreamingSession(ctx context.Context, token, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return c.do(ctx, http.MethodPost, "/v1/streaming.start", bearer(token), body, nil)
}

// Speak submits a speak task. Repeat tasks make the avatar read the
// text verbatim instead of answering it.
func (c *Client) Speak(ctx context.Context, token, sessionID, text, taskType string) error {
	body := map[string]string{
		"session_id": sessionID,
		"text":       text,
		"task_type":  taskType,
	}
	return c.do(ctx, http.MethodPost, "/v1/streaming.task", bearer(token), body, nil)
}

// InterruptTask stops whatever the avatar is currently saying.
func (c *Client) InterruptTask(ctx context.Context, token, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return c.do(ctx, http.MethodPost, "/v1/streaming.interrupt", bearer(token), body, nil)
}

// StopStreamingSession tears the session down.
func (c *Client) StopStreamingSession(ctx context.Context, token, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return c.do(ctx, http.MethodPost, "/v1/streaming.stop", bearer(token), body, nil)
}

type authFunc func(*http.Request)

func (c *Client) keyAuth(req *http.Request) {
	req.Header.Set("X-Api-Key", c.APIKey)
}

func bearer(token string) authFunc {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) do(ctx context.Context, method, path string, auth authFunc, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	auth(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("avatar api error: %s status=%d body=%s", path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("avatar api decode %s: %w", path, err)
	}
	return nil
}
