package avatar

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// SessionState tracks the avatar session lifecycle.
type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionStarting SessionState = "starting"
	SessionActive   SessionState = "active"
	SessionStopped  SessionState = "stopped"
	SessionError    SessionState = "error"
)

const (
	defaultVoiceRate = 1.2
	minVoiceRate     = 0.5
	maxVoiceRate     = 1.5

	qualityLow     = "low"
	emotionExcited = "excited"
	sttDeepgram    = "deepgram"
	taskTypeRepeat = "repeat"
)

// StartOptions configure one avatar session.
type StartOptions struct {
	AvatarName    string
	Language      string
	VoiceRate     float64
	KnowledgeBase string
	Greeting      string
	VoiceChat     bool
}

// Controller drives one streaming avatar session: start it, optionally
// speak a greeting, mute and unmute the mic, interrupt speech, stop.
// Feed events drive the transcript.
type Controller struct {
	client *Client

	mu            sync.Mutex
	state         SessionState
	token         string
	session       *SessionInfo
	muted         bool
	voiceChat     bool
	avatarTalking bool

	transcript *Transcript
}

func NewController(client *Client) *Controller {
	return &Controller{
		client:     client,
		state:      SessionIdle,
		transcript: NewTranscript(),
	}
}

func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Transcript() *Transcript { return c.transcript }

// Muted reports whether the session mic is muted. Callers gate their
// capture forwarding on it.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// AvatarTalking reports whether the avatar is mid-speech.
func (c *Controller) AvatarTalking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avatarTalking
}

// clampRate bounds the voice rate, substituting the default when the
// value is unset or not a number the vendor accepts.
func clampRate(rate float64) float64 {
	if rate == 0 {
		rate = defaultVoiceRate
	}
	if rate < minVoiceRate {
		return minVoiceRate
	}
	if rate > maxVoiceRate {
		return maxVoiceRate
	}
	return rate
}

// Start brings the session up: token, streaming session, activation,
// then the optional greeting and voice chat. Any failure leaves the
// controller in the error state.
func (c *Controller) Start(ctx context.Context, opts StartOptions) (*SessionInfo, error) {
	c.mu.Lock()
	if c.state != SessionIdle && c.state != SessionStopped {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("cannot start session in state %s", state)
	}
	c.state = SessionStarting
	c.mu.Unlock()

	info, err := c.start(ctx, opts)
	if err != nil {
		c.mu.Lock()
		c.state = SessionError
		c.mu.Unlock()
		return nil, err
	}
	return info, nil
}

func (c *Controller) start(ctx context.Context, opts StartOptions) (*SessionInfo, error) {
	token, err := c.client.CreateToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	avatarName := opts.AvatarName
	if avatarName == "" {
		avatarName = "default"
	}
	cfg := StartConfig{
		Quality:       qualityLow,
		AvatarName:    avatarName,
		Language:      opts.Language,
		KnowledgeBase: opts.KnowledgeBase,
		STTProvider:   sttDeepgram,
		Voice: &VoiceConfig{
			Rate:    clampRate(opts.VoiceRate),
			Emotion: emotionExcited,
		},
	}

	info, err := c.client.NewStreamingSession(ctx, token, cfg)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if err := c.client.StartStreamingSession(ctx, token, info.SessionID); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.session = info
	c.state = SessionActive
	c.voiceChat = opts.VoiceChat
	c.muted = !opts.VoiceChat
	c.mu.Unlock()

	if opts.Greeting != "" {
		if err := c.Speak(ctx, opts.Greeting); err != nil {
			log.Printf("avatar: greeting failed: %v", err)
		}
	}
	return info, nil
}

// Speak makes the avatar read text verbatim.
func (c *Controller) Speak(ctx context.Context, text string) error {
	token, sessionID, err := c.active()
	if err != nil {
		return err
	}
	return c.client.Speak(ctx, token, sessionID, text, taskTypeRepeat)
}

// Interrupt cuts the avatar off mid-sentence.
func (c *Controller) Interrupt(ctx context.Context) error {
	token, sessionID, err := c.active()
	if err != nil {
		return err
	}
	return c.client.InterruptTask(ctx, token, sessionID)
}

// Mute stops forwarding mic input to the session.
func (c *Controller) Mute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = true
}

func (c *Controller) Unmute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = false
}

// Stop tears the session down and finalizes any open transcript turns.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != SessionActive && c.state != SessionStarting {
		c.mu.Unlock()
		return nil
	}
	token, session := c.token, c.session
	c.state = SessionStopped
	c.token = ""
	c.session = nil
	c.mu.Unlock()

	c.transcript.EndTurn(RoleUser)
	c.transcript.EndTurn(RoleAvatar)

	if session == nil {
		return nil
	}
	if err := c.client.StopStreamingSession(ctx, token, session.SessionID); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	return nil
}

// HandleEvent applies one feed event to the controller and transcript.
func (c *Controller) HandleEvent(ev Event) {
	switch ev.Type {
	case EventStreamReady:
		log.Printf("avatar: stream ready")

	case EventStreamDisconnected:
		c.mu.Lock()
		if c.state == SessionActive {
			c.state = SessionStopped
		}
		c.mu.Unlock()
		c.transcript.EndTurn(RoleUser)
		c.transcript.EndTurn(RoleAvatar)

	case EventUserStart:
		c.transcript.StartTurn(RoleUser)

	case EventUserTalkingMsg:
		c.transcript.AppendDelta(RoleUser, ev.Message)

	case EventUserEndMsg:
		c.transcript.EndTurn(RoleUser)

	case EventAvatarStartTalking:
		c.mu.Lock()
		c.avatarTalking = true
		c.mu.Unlock()
		c.transcript.StartTurn(RoleAvatar)

	case EventAvatarTalkingMsg:
		c.transcript.AppendDelta(RoleAvatar, ev.Message)

	case EventAvatarEndMsg:
		c.transcript.EndTurn(RoleAvatar)

	case EventAvatarStopTalking:
		c.mu.Lock()
		c.avatarTalking = false
		c.mu.Unlock()

	default:
		log.Printf("avatar: unknown event type %q", ev.Type)
	}
}

// Run consumes feed events until the channel closes or ctx ends.
func (c *Controller) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.HandleEvent(ev)
		}
	}
}

func (c *Controller) active() (token, sessionID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != SessionActive || c.session == nil {
		return "", "", fmt.Errorf("session not active (state %s)", c.state)
	}
	return c.token, c.session.SessionID, nil
}
