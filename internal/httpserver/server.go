package httpserver

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hadijafari/RolePlay-Project-Website/internal/avatar"
	"github.com/hadijafari/RolePlay-Project-Website/internal/config"
	"github.com/hadijafari/RolePlay-Project-Website/internal/llm"
)

// Completer runs feedback chat completions.
type Completer interface {
	HasKey() bool
	Complete(ctx context.Context, p llm.CompletionParams) (string, error)
}

// AvatarAPI is the slice of the avatar vendor client the relay proxies.
type AvatarAPI interface {
	CreateToken(ctx context.Context) (string, error)
	ListAvatars(ctx context.Context) ([]avatar.Avatar, error)
	ListLanguages(ctx context.Context) ([]avatar.Language, error)
}

// Server is the relay: it hands browser-safe config to clients, proxies
// feedback completions and avatar vendor calls, and validates sessions.
type Server struct {
	echo   *echo.Echo
	cfg    config.Config
	llm    Completer
	avatar AvatarAPI
}

// New constructs the relay with routes registered.
func New(cfg config.Config, completer Completer, avatarAPI AvatarAPI) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, cfg: cfg, llm: completer, avatar: avatarAPI}

	e.GET("/api/config", s.handleConfig)
	e.GET("/api/supabase-config", s.handleSupabaseConfig)
	e.POST("/api/generate-feedback", s.handleGenerateFeedback)
	e.GET("/api/health", s.handleHealth)

	e.POST("/api/heygen/get-access-token", s.handleAvatarToken)
	e.GET("/api/heygen/list-avatars", s.handleListAvatars)
	e.GET("/api/heygen/list-languages", s.handleListLanguages)

	e.GET("/api/me", s.handleMe, SupabaseJWT(cfg.SupabaseJWTKey))

	return s
}

// Router exposes the handler for an http.Server.
func (s *Server) Router() http.Handler { return s.echo }

func (s *Server) handleConfig(c echo.Context) error {
	if s.cfg.OpenAIKey == "" {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "OPENAI_API_KEY not found in environment variables",
			"message": "Please make sure you have set OPENAI_API_KEY in your .env file",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"apiKey": s.cfg.OpenAIKey,
		"status": "success",
	})
}

func (s *Server) handleSupabaseConfig(c echo.Context) error {
	if s.cfg.SupabaseURL == "" || s.cfg.SupabaseAnonKey == "" {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "Supabase configuration not found",
			"message": "Please make sure SUPABASE_URL_ROLEPLAY_PROJECT and SUPABASE_ANON_KEY_ROLEPLAY_PROJECT are set in your .env file",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"supabaseUrl":     s.cfg.SupabaseURL,
		"supabaseAnonKey": s.cfg.SupabaseAnonKey,
		"status":          "success",
	})
}

type feedbackRequest struct {
	SystemPrompt string  `json:"system_prompt"`
	UserMessage  string  `json:"user_message"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float32 `json:"temperature"`
}

func (s *Server) handleGenerateFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.SystemPrompt == "" || req.UserMessage == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "system_prompt and user_message are required"})
	}
	if !s.llm.HasKey() {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "OpenAI API key not configured"})
	}

	content, err := s.llm.Complete(c.Request().Context(), llm.CompletionParams{
		SystemPrompt: req.SystemPrompt,
		UserMessage:  req.UserMessage,
		Model:        req.Model,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		log.Printf("generate feedback failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "Failed to generate feedback",
			"details": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"content": content})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "ok",
		"message":   "Server is running",
		"hasApiKey": s.cfg.OpenAIKey != "",
	})
}

// handleAvatarToken returns the session token as plain text, which is
// what the avatar page expects.
func (s *Server) handleAvatarToken(c echo.Context) error {
	token, err := s.avatar.CreateToken(c.Request().Context())
	if err != nil {
		log.Printf("avatar token failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get access token"})
	}
	return c.String(http.StatusOK, token)
}

func (s *Server) handleListAvatars(c echo.Context) error {
	avatars, err := s.avatar.ListAvatars(c.Request().Context())
	if err != nil {
		log.Printf("list avatars failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to list avatars"})
	}
	if avatars == nil {
		avatars = []avatar.Avatar{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": avatars})
}

func (s *Server) handleListLanguages(c echo.Context) error {
	langs, err := s.avatar.ListLanguages(c.Request().Context())
	if err != nil {
		log.Printf("list languages failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to list languages"})
	}
	if langs == nil {
		langs = []avatar.Language{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": langs})
}

func (s *Server) handleMe(c echo.Context) error {
	claims := CurrentClaims(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":    claims.Subject,
		"email": claims.Email,
		"role":  claims.Role,
	})
}
