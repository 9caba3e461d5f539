package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	openairt "github.com/WqyJh/go-openai-realtime"
	"github.com/gen2brain/malgo"

	"github.com/hadijafari/RolePlay-Project-Website/internal/audio"
	"github.com/hadijafari/RolePlay-Project-Website/internal/config"
	"github.com/hadijafari/RolePlay-Project-Website/internal/feedback"
	"github.com/hadijafari/RolePlay-Project-Website/internal/plan"
	"github.com/hadijafari/RolePlay-Project-Website/internal/realtime"
	"github.com/hadijafari/RolePlay-Project-Website/internal/settings"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	relayURL := flag.String("relay", "http://localhost:3000", "base URL of the relay server")
	resumePath := flag.String("resume", "", "resume file for a tailored interview plan")
	jobPath := flag.String("job", "", "job description file for a tailored interview plan")
	voiceFlag := flag.String("voice", "", "override the configured agent voice")
	noGreet := flag.Bool("no-greet", false, "do not ask the agent to open the conversation")
	flag.Parse()

	cfg := config.Load()

	prefs, err := settings.Load(cfg.SettingsFile)
	if err != nil {
		log.Printf("settings: %v, using defaults", err)
	}
	if *voiceFlag != "" {
		prefs.Voice = *voiceFlag
	}
	if *noGreet {
		prefs.AutoGreet = false
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instructions := prefs.Instructions
	if *resumePath != "" && *jobPath != "" {
		instructions, err = tailoredInstructions(ctx, cfg.PlanServiceURL, *resumePath, *jobPath)
		if err != nil {
			log.Fatalf("interview plan: %v", err)
		}
		log.Printf("interview plan ready, running tailored session")
	}

	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatalf("audio context: %v", err)
	}
	defer func() {
		_ = actx.Uninit()
		actx.Free()
	}()

	spk, err := newSpeaker(actx)
	if err != nil {
		log.Fatalf("speaker: %v", err)
	}
	defer spk.Close()

	queue := audio.NewQueue(spk)
	defer queue.Close()

	apiKey, err := fetchRelayKey(ctx, &http.Client{Timeout: 10 * time.Second}, *relayURL)
	if err != nil {
		if cfg.OpenAIKey == "" {
			log.Fatalf("config relay: %v, and OPENAI_API_KEY is not set", err)
		}
		log.Printf("config relay unavailable (%v), using local OPENAI_API_KEY", err)
		apiKey = cfg.OpenAIKey
	}

	conn, err := realtime.Dial(ctx, apiKey, cfg.RealtimeModelID)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sess := realtime.NewSession(conn, queue, feedback.NewAgent(*relayURL), realtime.Options{
		Voice:        prefs.Voice,
		Instructions: instructions,
		AutoGreet:    prefs.AutoGreet,
	})
	sess.OnMessage = func(role, text string) {
		fmt.Printf("[%s] %s\n", role, text)
	}
	sess.OnFeedback = func(rec *feedback.Record) {
		fmt.Println(feedback.Format(rec))
	}

	if err := sess.Start(); err != nil {
		log.Fatalf("session: %v", err)
	}

	connHandler := openairt.NewConnHandler(ctx, conn, sess.HandleServerEvent)
	connHandler.Start()

	if err := sess.Configure(ctx); err != nil {
		log.Fatalf("configure: %v", err)
	}

	mic, err := newMicrophone(actx, func(pcm []byte) {
		samples := audio.PCM16ToFloat(audio.BytesToPCM16(pcm))
		if err := sess.AppendAudio(ctx, samples); err != nil {
			log.Printf("append audio: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("microphone: %v", err)
	}
	defer mic.Close()

	log.Printf("voice session running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Printf("shutting down")
	sess.Close()
}

// fetchRelayKey asks the relay for the realtime API key so the agent
// can run on machines that never see the secret themselves.
func fetchRelayKey(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	url := strings.TrimRight(baseURL, "/") + "/api/config"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out struct {
		APIKey  string `json:"apiKey"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("config relay: status=%d body=%s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("config relay: %s", out.Error)
		}
		return "", fmt.Errorf("config relay: status=%d body=%s", resp.StatusCode, string(body))
	}
	if out.APIKey == "" {
		return "", fmt.Errorf("config relay returned no api key")
	}
	return out.APIKey, nil
}

// tailoredInstructions uploads the resume and job description, waits
// for the plan service to finish and renders the interviewer prompt.
func tailoredInstructions(ctx context.Context, serviceURL, resumePath, jobPath string) (string, error) {
	resume, err := os.Open(resumePath)
	if err != nil {
		return "", fmt.Errorf("open resume: %w", err)
	}
	defer resume.Close()

	job, err := os.Open(jobPath)
	if err != nil {
		return "", fmt.Errorf("open job description: %w", err)
	}
	defer job.Close()

	client := plan.NewClient(serviceURL)
	sessionID, err := client.CreatePlan(ctx, filepath.Base(resumePath), resume, filepath.Base(jobPath), job)
	if err != nil {
		return "", err
	}
	log.Printf("interview plan requested, session %s", sessionID)

	st, err := client.Poll(ctx, sessionID)
	if err != nil {
		return "", err
	}
	questions := plan.ExtractQuestions(st)
	if len(questions) == 0 {
		return "", fmt.Errorf("plan %s contains no questions", sessionID)
	}
	return plan.BuildInstructions(questions), nil
}
