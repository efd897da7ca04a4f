package transcript

import (
	"fmt"
	"sync"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// ReplyState tracks whether an assistant reply is outstanding.
type ReplyState int

const (
	ReplyIdle ReplyState = iota
	ReplyAwaiting
)

func (s ReplyState) String() string {
	switch s {
	case ReplyIdle:
		return "IDLE"
	case ReplyAwaiting:
		return "AWAITING_REPLY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Tracker applies classified server messages to a Store.
//
// State transitions:
//
//	IDLE --transcription--> AWAITING_REPLY --assistant_response--> IDLE
//
// A transcription while already awaiting keeps the state; an assistant
// response while idle appends the turn and leaves the flags cleared.
type Tracker struct {
	store  *Store
	events ports.EventSink

	mu    sync.Mutex
	state ReplyState
}

func NewTracker(store *Store, events ports.EventSink) *Tracker {
	return &Tracker{store: store, events: events}
}

// HandleMessage applies one message. It reports false for types it does not handle.
func (t *Tracker) HandleMessage(msg domain.ServerMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch msg.Type {
	case domain.MessageTypeTranscription:
		turn := t.store.Append(domain.SenderUser, msg.Content)
		t.events.TurnAppended(turn)
		flags := t.store.SetFlags(domain.FlagUpdate{IsLoading: boolPtr(true), IsTyping: boolPtr(true)})
		t.state = ReplyAwaiting
		t.events.FlagsChanged(flags)
		return true
	case domain.MessageTypeAssistantResponse:
		t.store.SetFlags(domain.FlagUpdate{IsTyping: boolPtr(false)})
		turn := t.store.Append(domain.SenderAssistant, msg.Content)
		t.events.TurnAppended(turn)
		flags := t.store.SetFlags(domain.FlagUpdate{IsLoading: boolPtr(false)})
		t.state = ReplyIdle
		t.events.FlagsChanged(flags)
		return true
	default:
		return false
	}
}

// SetListening updates the listening flag from local recording events.
func (t *Tracker) SetListening(listening bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	flags := t.store.SetFlags(domain.FlagUpdate{IsListening: boolPtr(listening)})
	t.events.FlagsChanged(flags)
}

// Reset clears the store and returns to IDLE.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Reset()
	t.state = ReplyIdle
	t.events.FlagsChanged(t.store.Flags())
}

func (t *Tracker) State() ReplyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
