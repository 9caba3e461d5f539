package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hadijafari/RolePlay-Project-Website/internal/avatar"
	"github.com/hadijafari/RolePlay-Project-Website/internal/config"
	"github.com/hadijafari/RolePlay-Project-Website/internal/llm"
)

type fakeCompleter struct {
	hasKey  bool
	content string
	err     error
	got     llm.CompletionParams
}

func (f *fakeCompleter) HasKey() bool { return f.hasKey }

func (f *fakeCompleter) Complete(_ context.Context, p llm.CompletionParams) (string, error) {
	f.got = p
	return f.content, f.err
}

type fakeAvatarAPI struct {
	token   string
	avatars []avatar.Avatar
	langs   []avatar.Language
	err     error
}

func (f *fakeAvatarAPI) CreateToken(context.Context) (string, error) { return f.token, f.err }

func (f *fakeAvatarAPI) ListAvatars(context.Context) ([]avatar.Avatar, error) {
	return f.avatars, f.err
}

func (f *fakeAvatarAPI) ListLanguages(context.Context) ([]avatar.Language, error) {
	return f.langs, f.err
}

func newTestServer(cfg config.Config, completer *fakeCompleter, avatarAPI *fakeAvatarAPI) *Server {
	if completer == nil {
		completer = &fakeCompleter{}
	}
	if avatarAPI == nil {
		avatarAPI = &fakeAvatarAPI{}
	}
	return New(cfg, completer, avatarAPI)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
		}
	}
	return w, out
}

func TestConfig_WithKey(t *testing.T) {
	srv := newTestServer(config.Config{OpenAIKey: "sk-test"}, nil, nil)
	w, out := doJSON(t, srv, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if out["apiKey"] != "sk-test" || out["status"] != "success" {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestConfig_MissingKey(t *testing.T) {
	srv := newTestServer(config.Config{}, nil, nil)
	w, out := doJSON(t, srv, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if out["error"] == "" || out["message"] == "" {
		t.Fatalf("expected error payload: %v", out)
	}
}

func TestSupabaseConfig(t *testing.T) {
	srv := newTestServer(config.Config{SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: "anon"}, nil, nil)
	w, out := doJSON(t, srv, http.MethodGet, "/api/supabase-config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if out["supabaseUrl"] != "https://x.supabase.co" || out["supabaseAnonKey"] != "anon" {
		t.Fatalf("unexpected body: %v", out)
	}

	srv = newTestServer(config.Config{SupabaseURL: "https://x.supabase.co"}, nil, nil)
	w, _ = doJSON(t, srv, http.MethodGet, "/api/supabase-config", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 with partial config, got %d", w.Code)
	}
}

func TestGenerateFeedback_Validation(t *testing.T) {
	srv := newTestServer(config.Config{OpenAIKey: "k"}, &fakeCompleter{hasKey: true}, nil)
	cases := []string{
		`{"user_message":"u"}`,
		`{"system_prompt":"s"}`,
		`{}`,
	}
	for _, body := range cases {
		w, _ := doJSON(t, srv, http.MethodPost, "/api/generate-feedback", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestGenerateFeedback_NoKey(t *testing.T) {
	srv := newTestServer(config.Config{}, &fakeCompleter{hasKey: false}, nil)
	w, _ := doJSON(t, srv, http.MethodPost, "/api/generate-feedback", `{"system_prompt":"s","user_message":"u"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestGenerateFeedback_Success(t *testing.T) {
	completer := &fakeCompleter{hasKey: true, content: "result text"}
	srv := newTestServer(config.Config{OpenAIKey: "k"}, completer, nil)
	body := `{"system_prompt":"s","user_message":"u","model":"gpt-4o-mini","max_tokens":1500,"temperature":0.3}`
	w, out := doJSON(t, srv, http.MethodPost, "/api/generate-feedback", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if out["content"] != "result text" {
		t.Fatalf("unexpected content: %v", out)
	}
	if completer.got.Model != "gpt-4o-mini" || completer.got.MaxTokens != 1500 {
		t.Fatalf("params not passed through: %+v", completer.got)
	}
}

func TestGenerateFeedback_UpstreamFailure(t *testing.T) {
	completer := &fakeCompleter{hasKey: true, err: errors.New("rate limited")}
	srv := newTestServer(config.Config{OpenAIKey: "k"}, completer, nil)
	w, out := doJSON(t, srv, http.MethodPost, "/api/generate-feedback", `{"system_prompt":"s","user_message":"u"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if out["error"] != "Failed to generate feedback" {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(config.Config{OpenAIKey: "k"}, nil, nil)
	w, out := doJSON(t, srv, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if out["status"] != "ok" || out["hasApiKey"] != true {
		t.Fatalf("unexpected body: %v", out)
	}

	srv = newTestServer(config.Config{}, nil, nil)
	_, out = doJSON(t, srv, http.MethodGet, "/api/health", "")
	if out["hasApiKey"] != false {
		t.Fatalf("expected hasApiKey false: %v", out)
	}
}

func TestAvatarToken_PlainText(t *testing.T) {
	srv := newTestServer(config.Config{}, nil, &fakeAvatarAPI{token: "tok-abc"})
	r := httptest.NewRequest(http.MethodPost, "/api/heygen/get-access-token", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "tok-abc" {
		t.Fatalf("expected raw token body, got %q", w.Body.String())
	}
}

func TestAvatarProxies_ErrorsBecome500(t *testing.T) {
	srv := newTestServer(config.Config{}, nil, &fakeAvatarAPI{err: errors.New("vendor down")})
	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodPost, "/api/heygen/get-access-token"},
		{http.MethodGet, "/api/heygen/list-avatars"},
		{http.MethodGet, "/api/heygen/list-languages"},
	} {
		w, _ := doJSON(t, srv, tc.method, tc.path, "")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", tc.path, w.Code)
		}
	}
}

func TestListAvatars_WrapsData(t *testing.T) {
	srv := newTestServer(config.Config{}, nil, &fakeAvatarAPI{avatars: []avatar.Avatar{{AvatarID: "a1", PoseName: "Standing"}}})
	w, out := doJSON(t, srv, http.MethodGet, "/api/heygen/list-avatars", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data, ok := out["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("unexpected data: %v", out)
	}
}

func TestListLanguages_WrapsData(t *testing.T) {
	srv := newTestServer(config.Config{}, nil, &fakeAvatarAPI{langs: []avatar.Language{{Language: "English", LanguageName: "English"}}})
	w, out := doJSON(t, srv, http.MethodGet, "/api/heygen/list-languages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data, ok := out["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("unexpected data: %v", out)
	}
	first := data[0].(map[string]any)
	if first["language_name"] != "English" {
		t.Fatalf("unexpected language entry: %v", first)
	}
}

func signToken(t *testing.T, secret string, claims SupabaseClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestMe_ValidToken(t *testing.T) {
	srv := newTestServer(config.Config{SupabaseJWTKey: "secret"}, nil, nil)
	token := signToken(t, "secret", SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-uuid-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "a@b.com",
		Role:  "authenticated",
	})
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["id"] != "user-uuid-1" || out["email"] != "a@b.com" {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestMe_AuthFailures(t *testing.T) {
	srv := newTestServer(config.Config{SupabaseJWTKey: "secret"}, nil, nil)

	expired := signToken(t, "secret", SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-uuid-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := signToken(t, "other-secret", SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-uuid-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noSubject := signToken(t, "secret", SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	cases := []struct {
		name   string
		header string
	}{
		{"no_header", ""},
		{"not_bearer", "Basic abc"},
		{"empty_bearer", "Bearer "},
		{"garbage", "Bearer not.a.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong_key", "Bearer " + wrongKey},
		{"no_subject", "Bearer " + noSubject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, r)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestMe_NoSecretConfigured(t *testing.T) {
	srv := newTestServer(config.Config{}, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer whatever")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
