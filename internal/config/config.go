package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	OpenAIKey       string
	FeedbackModelID string
	RealtimeModelID string

	SupabaseURL     string
	SupabaseAnonKey string
	SupabaseJWTKey  string

	HeyGenKey string

	PlanServiceURL string

	SettingsFile string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":3000"
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - realtime voice and feedback will not work")
	}

	feedbackModel := os.Getenv("OPENAI_FEEDBACK_MODEL")
	if feedbackModel == "" {
		feedbackModel = "gpt-4o-mini"
	}

	realtimeModel := os.Getenv("OPENAI_REALTIME_MODEL")
	if realtimeModel == "" {
		realtimeModel = "gpt-4o-realtime-preview-2024-10-01"
	}

	supabaseURL := os.Getenv("SUPABASE_URL_ROLEPLAY_PROJECT")
	supabaseAnonKey := os.Getenv("SUPABASE_ANON_KEY_ROLEPLAY_PROJECT")
	if supabaseURL == "" || supabaseAnonKey == "" {
		log.Println("Warning: Supabase configuration not set - login will not work")
	}

	heygenKey := os.Getenv("HEYGEN_API_KEY")
	if heygenKey == "" {
		log.Println("Warning: HEYGEN_API_KEY not set - avatar sessions will not work")
	}

	planURL := os.Getenv("PLAN_SERVICE_URL")
	if planURL == "" {
		planURL = "https://roleplay-project.onrender.com"
	}

	settingsFile := os.Getenv("SETTINGS_FILE")
	if settingsFile == "" {
		settingsFile = "settings.json"
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:     addr,
		OpenAIKey:       openAIKey,
		FeedbackModelID: feedbackModel,
		RealtimeModelID: realtimeModel,
		SupabaseURL:     supabaseURL,
		SupabaseAnonKey: supabaseAnonKey,
		SupabaseJWTKey:  os.Getenv("SUPABASE_JWT_SECRET"),
		HeyGenKey:       heygenKey,
		PlanServiceURL:  planURL,
		SettingsFile:    settingsFile,
	}
}
