package avatar

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Streaming event types delivered on the session's event feed.
const (
	EventStreamReady        = "stream_ready"
	EventStreamDisconnected = "stream_disconnected"
	EventAvatarStartTalking = "avatar_start_talking"
	EventAvatarStopTalking  = "avatar_stop_talking"
	EventAvatarTalkingMsg   = "avatar_talking_message"
	EventAvatarEndMsg       = "avatar_end_message"
	EventUserStart          = "user_start"
	EventUserTalkingMsg     = "user_talking_message"
	EventUserEndMsg         = "user_end_message"
)

// Event is one message from the session event feed.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

// Feed reads session events off the vendor websocket and delivers them
// on a buffered channel.
type Feed struct {
	url       string
	token     string
	conn      *websocket.Conn
	events    chan Event
	stopCh    chan struct{}
	mu        sync.RWMutex
	connected bool
	closed    bool
}

func NewFeed(url, token string) *Feed {
	return &Feed{
		url:    url,
		token:  token,
		events: make(chan Event, 100),
		stopCh: make(chan struct{}),
	}
}

// Events returns the delivery channel. It closes when the feed closes.
func (f *Feed) Events() <-chan Event { return f.events }

// Connect dials the event socket.
func (f *Feed) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		return nil
	}
	if f.closed {
		return fmt.Errorf("event feed is closed")
	}
	if f.url == "" {
		return fmt.Errorf("event feed url is empty")
	}

	headers := map[string][]string{
		"Authorization": {"Bearer " + f.token},
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(f.url, headers)
	if err != nil {
		if resp != nil {
			log.Printf("avatar feed connection failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect event feed: %w", err)
	}
	f.conn = conn
	f.connected = true
	go f.handleMessages()
	return nil
}

// Close shuts the socket down. The reader goroutine owns the event
// channel and closes it once the socket read loop exits, so an event
// mid-delivery can never hit a closed channel.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil
	}
	f.closed = true
	close(f.stopCh)
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.connected = false
	f.conn = nil
	return nil
}

func (f *Feed) handleMessages() {
	defer close(f.events)
	for {
		select {
		case <-f.stopCh:
			return
		default:
			f.mu.RLock()
			conn := f.conn
			f.mu.RUnlock()
			if conn == nil {
				return
			}
			_, message, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-f.stopCh:
				default:
					log.Printf("avatar feed read error: %v", err)
				}
				return
			}
			f.processMessage(message)
		}
	}
}

func (f *Feed) processMessage(message []byte) {
	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		log.Printf("avatar feed: bad event: %v", err)
		return
	}
	if ev.Type == "" {
		log.Printf("avatar feed: event missing type")
		return
	}
	select {
	case f.events <- ev:
	default:
		log.Printf("avatar feed: event buffer full, dropping %s", ev.Type)
	}
}
