package realtime

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	openairt "github.com/WqyJh/go-openai-realtime"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hadijafari/RolePlay-Project-Website/internal/audio"
	"github.com/hadijafari/RolePlay-Project-Website/internal/feedback"
)

const greetingTrigger = "Hello! Please introduce yourself and start our conversation."

// EventSender is the client side of the realtime socket. *openairt.Conn
// satisfies it.
type EventSender interface {
	SendMessage(ctx context.Context, event openairt.ClientEvent) error
}

// FeedbackGenerator scores one finished Q&A pair.
type FeedbackGenerator interface {
	Generate(ctx context.Context, question, answer string, questionNumber int) *feedback.Record
}

// Options tune a voice session before Configure is sent.
type Options struct {
	Voice        string
	Instructions string
	AutoGreet    bool
}

// Session orchestrates one realtime voice conversation: it configures
// the upstream session, pumps mic audio out, dispatches server events,
// plays agent audio through the queue and interrupts it when the user
// starts talking.
type Session struct {
	conn  EventSender
	queue *audio.Queue
	fsm   *Machine
	opts  Options

	feedbackAgent FeedbackGenerator

	// OnMessage receives finalized transcripts, role "user" or
	// "assistant". OnPartial receives streamed fragments of the
	// agent's transcript as it speaks. OnFeedback receives scored
	// answers. All optional.
	OnMessage  func(role, text string)
	OnPartial  func(role, delta string)
	OnFeedback func(*feedback.Record)

	mu               sync.Mutex
	currentQuestion  string
	waitingForAnswer bool
	questionNumber   int
}

func NewSession(conn EventSender, queue *audio.Queue, fb FeedbackGenerator, opts Options) *Session {
	return &Session{
		conn:           conn,
		queue:          queue,
		fsm:            NewMachine(),
		opts:           opts,
		feedbackAgent:  fb,
		questionNumber: 1,
	}
}

// Dial opens the realtime socket for the given model.
func Dial(ctx context.Context, apiKey, model string) (*openairt.Conn, error) {
	client := openairt.NewClient(apiKey)
	conn, err := client.Connect(ctx, openairt.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("realtime connect: %w", err)
	}
	return conn, nil
}

// State exposes the current lifecycle state.
func (s *Session) State() State {
	return s.fsm.State()
}

// Start marks the session as connecting. Call before Dial.
func (s *Session) Start() error {
	return s.fsm.To(StateConnecting)
}

// Fail moves the session to the error state after a setup failure.
func (s *Session) Fail() {
	if err := s.fsm.To(StateError); err != nil {
		log.Printf("realtime: %v", err)
	}
}

// Configure sends the one-shot session.update: both modalities, PCM16
// in and out, whisper transcription and server-side VAD. When auto
// greet is on, the greeting trigger follows shortly after.
func (s *Session) Configure(ctx context.Context) error {
	if err := s.fsm.To(StateConnected); err != nil {
		return err
	}
	err := s.conn.SendMessage(ctx, openairt.SessionUpdateEvent{
		Session: openairt.ClientSession{
			Modalities:        []openairt.Modality{openairt.ModalityText, openairt.ModalityAudio},
			Instructions:      s.opts.Instructions,
			Voice:             openairt.Voice(s.opts.Voice),
			InputAudioFormat:  openairt.AudioFormatPcm16,
			OutputAudioFormat: openairt.AudioFormatPcm16,
			InputAudioTranscription: &openairt.InputAudioTranscription{
				Model: openai.Whisper1,
			},
			TurnDetection: &openairt.ClientTurnDetection{
				Type: openairt.ClientTurnDetectionTypeServerVad,
				TurnDetectionParams: openairt.TurnDetectionParams{
					Threshold:         0.5,
					PrefixPaddingMs:   300,
					SilenceDurationMs: 500,
				},
			},
		},
	})
	if err != nil {
		s.Fail()
		return fmt.Errorf("session update: %w", err)
	}
	if err := s.fsm.To(StateListening); err != nil {
		return err
	}

	if s.opts.AutoGreet {
		go func() {
			// give the server a moment to apply the session config
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			if err := s.Greet(ctx); err != nil {
				log.Printf("realtime: greeting failed: %v", err)
			}
		}()
	}
	return nil
}

// Greet asks the agent to open the conversation by injecting a user
// text item and requesting a response.
func (s *Session) Greet(ctx context.Context) error {
	err := s.conn.SendMessage(ctx, openairt.ConversationItemCreateEvent{
		Item: openairt.MessageItem{
			ID:     openairt.GenerateID("msg_", 10),
			Status: openairt.ItemStatusCompleted,
			Type:   openairt.MessageItemTypeMessage,
			Role:   openairt.MessageRoleUser,
			Content: []openairt.MessageContentPart{
				{
					Type: openairt.MessageContentTypeInputText,
					Text: greetingTrigger,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("greeting item: %w", err)
	}
	if err := s.conn.SendMessage(ctx, openairt.ResponseCreateEvent{}); err != nil {
		return fmt.Errorf("greeting response: %w", err)
	}
	return nil
}

// AppendAudio ships one captured float32 block upstream as base64
// PCM16. Blocks are dropped once the session leaves the conversation
// states.
func (s *Session) AppendAudio(ctx context.Context, samples []float32) error {
	if !s.fsm.Is(StateConnected, StateListening, StateUserSpeaking, StateAgentSpeaking, StateProcessing) {
		return nil
	}
	return s.conn.SendMessage(ctx, openairt.InputAudioBufferAppendEvent{
		Audio: audio.EncodeFrame(samples),
	})
}

// HandleServerEvent dispatches one upstream event. Register it with the
// socket's handler loop.
func (s *Session) HandleServerEvent(ctx context.Context, event openairt.ServerEvent) {
	switch event.ServerEventType() {
	case openairt.ServerEventTypeSessionCreated, openairt.ServerEventTypeSessionUpdated:
		log.Printf("realtime: session configured")

	case openairt.ServerEventTypeInputAudioBufferSpeechStarted:
		s.Interrupt(ctx)
		if err := s.fsm.To(StateUserSpeaking); err != nil {
			log.Printf("realtime: %v", err)
		}

	case openairt.ServerEventTypeInputAudioBufferSpeechStopped:
		if err := s.fsm.To(StateProcessing); err != nil {
			log.Printf("realtime: %v", err)
		}

	case openairt.ServerEventTypeConversationItemInputAudioTranscriptionCompleted:
		transcript := event.(openairt.ConversationItemInputAudioTranscriptionCompletedEvent).Transcript
		if transcript == "" {
			return
		}
		s.emit("user", transcript)
		s.scoreAnswer(ctx, transcript)

	case openairt.ServerEventTypeResponseAudioTranscriptDelta:
		delta := event.(openairt.ResponseAudioTranscriptDeltaEvent).Delta
		if delta != "" && s.OnPartial != nil {
			s.OnPartial("assistant", delta)
		}

	case openairt.ServerEventTypeResponseAudioTranscriptDone:
		transcript := event.(openairt.ResponseAudioTranscriptDoneEvent).Transcript
		if transcript != "" {
			s.emit("assistant", transcript)
			s.mu.Lock()
			s.currentQuestion = transcript
			s.waitingForAnswer = true
			s.mu.Unlock()
		}
		if err := s.fsm.To(StateListening); err != nil {
			log.Printf("realtime: %v", err)
		}

	case openairt.ServerEventTypeResponseAudioDelta:
		delta := event.(openairt.ResponseAudioDeltaEvent).Delta
		pcm, err := audio.DecodeBase64(delta)
		if err != nil {
			log.Printf("realtime: bad audio delta: %v", err)
			return
		}
		s.queue.Enqueue(pcm)
		if err := s.fsm.To(StateAgentSpeaking); err != nil {
			log.Printf("realtime: %v", err)
		}

	case openairt.ServerEventTypeResponseAudioDone:
		if err := s.fsm.To(StateListening); err != nil {
			log.Printf("realtime: %v", err)
		}

	case openairt.ServerEventTypeError:
		log.Printf("realtime: api error: %+v", event.(openairt.ErrorEvent).Error)
	}
}

// scoreAnswer runs feedback generation off the event loop when an
// agent question is waiting for this answer.
func (s *Session) scoreAnswer(ctx context.Context, answer string) {
	s.mu.Lock()
	if !s.waitingForAnswer || s.currentQuestion == "" || s.feedbackAgent == nil {
		s.mu.Unlock()
		return
	}
	question := s.currentQuestion
	number := s.questionNumber
	s.questionNumber++
	s.waitingForAnswer = false
	s.currentQuestion = ""
	s.mu.Unlock()

	go func() {
		rec := s.feedbackAgent.Generate(ctx, question, answer, number)
		if rec.IsFallback {
			log.Printf("realtime: feedback for question %d is degraded", number)
		}
		if s.OnFeedback != nil {
			s.OnFeedback(rec)
		}
	}()
}

// Interrupt stops agent speech: cancels the in-flight response and
// flushes queued audio. A no-op when the agent is silent.
func (s *Session) Interrupt(ctx context.Context) {
	if !s.fsm.Is(StateAgentSpeaking) && !s.queue.Active() {
		return
	}
	if err := s.conn.SendMessage(ctx, openairt.ResponseCancelEvent{}); err != nil {
		log.Printf("realtime: response cancel: %v", err)
	}
	s.queue.Flush()
}

// Close stops playback for good and leaves the session disconnected.
func (s *Session) Close() {
	s.queue.Close()
	if err := s.fsm.To(StateDisconnected); err != nil {
		log.Printf("realtime: %v", err)
	}
}

func (s *Session) emit(role, text string) {
	if s.OnMessage != nil {
		s.OnMessage(role, text)
	}
}
