package settings

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	DefaultVoice        = "alloy"
	DefaultInstructions = `Your name is "goozoo" and you should always start the conversation by introducing yourself.`
)

// Settings are the user-tunable session options, persisted as a small
// JSON file between runs.
type Settings struct {
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
	AutoGreet    bool   `json:"auto_greet"`
}

// Default returns the settings used when no file exists yet.
func Default() Settings {
	return Settings{
		Voice:        DefaultVoice,
		Instructions: DefaultInstructions,
		AutoGreet:    true,
	}
}

// Load reads settings from path. A missing file yields the defaults.
// Empty fields are back-filled so a partial file stays usable.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("parse settings: %w", err)
	}
	if s.Voice == "" {
		s.Voice = DefaultVoice
	}
	if s.Instructions == "" {
		s.Instructions = DefaultInstructions
	}
	return s, nil
}

// Save writes settings to path.
func Save(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
