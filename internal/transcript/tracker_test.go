package transcript

import (
	"math/rand"
	"sync"
	"testing"

	"interviewmic/internal/domain"
)

func TestTrackerInterviewRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore()
	events := &recordingSink{}
	tracker := NewTracker(store, events)

	tracker.HandleMessage(domain.ServerMessage{Type: domain.MessageTypeTranscription, Content: "Tell me about yourself"})

	turns := store.Turns()
	if len(turns) != 1 || turns[0].Sender != domain.SenderUser || turns[0].Content != "Tell me about yourself" {
		t.Fatalf("unexpected transcript after transcription: %+v", turns)
	}
	if flags := store.Flags(); !flags.IsLoading || !flags.IsTyping {
		t.Fatalf("expected loading and typing, got %+v", flags)
	}
	if tracker.State() != ReplyAwaiting {
		t.Fatalf("expected awaiting reply, got %s", tracker.State())
	}

	tracker.HandleMessage(domain.ServerMessage{Type: domain.MessageTypeAssistantResponse, Content: "Sure, go ahead."})

	turns = store.Turns()
	if len(turns) != 2 || turns[1].Sender != domain.SenderAssistant || turns[1].Content != "Sure, go ahead." {
		t.Fatalf("unexpected transcript after reply: %+v", turns)
	}
	if flags := store.Flags(); flags.IsLoading || flags.IsTyping {
		t.Fatalf("expected flags cleared, got %+v", flags)
	}
	if tracker.State() != ReplyIdle {
		t.Fatalf("expected idle, got %s", tracker.State())
	}

	if len(events.turns) != 2 {
		t.Fatalf("expected two turn events, got %d", len(events.turns))
	}
	if last := events.flags[len(events.flags)-1]; last.IsLoading {
		t.Fatalf("expected last flag event to clear loading: %+v", last)
	}
}

func TestTrackerIgnoresUnknownTypes(t *testing.T) {
	t.Parallel()

	store := NewStore()
	tracker := NewTracker(store, &recordingSink{})

	if tracker.HandleMessage(domain.ServerMessage{Type: "status", Content: "x"}) {
		t.Fatalf("expected unknown type to be rejected")
	}
	if store.Len() != 0 || store.Flags() != (domain.UIFlags{}) {
		t.Fatalf("unknown type changed state")
	}
}

func TestTrackerAppendOnlyAndFlagPairing(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	store := NewStore()
	tracker := NewTracker(store, &recordingSink{})

	types := []domain.MessageType{
		domain.MessageTypeTranscription,
		domain.MessageTypeAssistantResponse,
		"noise",
	}

	var snapshot []domain.ChatTurn
	handled := 0
	for i := 0; i < 200; i++ {
		msgType := types[rng.Intn(len(types))]
		tracker.HandleMessage(domain.ServerMessage{Type: msgType, Content: string(msgType)})

		switch msgType {
		case domain.MessageTypeTranscription:
			handled++
			if !store.Flags().IsLoading {
				t.Fatalf("step %d: loading must be true right after a transcription", i)
			}
		case domain.MessageTypeAssistantResponse:
			handled++
			if store.Flags().IsLoading || store.Flags().IsTyping {
				t.Fatalf("step %d: loading must be false right after a reply", i)
			}
		}

		turns := store.Turns()
		if len(turns) != handled {
			t.Fatalf("step %d: expected %d turns, got %d", i, handled, len(turns))
		}
		for j := range snapshot {
			if turns[j] != snapshot[j] {
				t.Fatalf("step %d: turn %d was altered", i, j)
			}
		}
		snapshot = turns
	}
}

func TestTrackerSetListeningIsIndependentOfReplyState(t *testing.T) {
	t.Parallel()

	store := NewStore()
	tracker := NewTracker(store, &recordingSink{})

	tracker.SetListening(true)
	tracker.HandleMessage(domain.ServerMessage{Type: domain.MessageTypeTranscription, Content: "q"})
	tracker.HandleMessage(domain.ServerMessage{Type: domain.MessageTypeAssistantResponse, Content: "a"})

	if !store.Flags().IsListening {
		t.Fatalf("listening flag must survive a round trip")
	}

	tracker.Reset()
	if store.Len() != 0 || store.Flags().IsListening || tracker.State() != ReplyIdle {
		t.Fatalf("reset did not clear tracker state")
	}
}

type recordingSink struct {
	mu    sync.Mutex
	turns []domain.ChatTurn
	flags []domain.UIFlags
}

func (r *recordingSink) ConnectionChanged(_ domain.ConnectionStatus) {}

func (r *recordingSink) TurnAppended(turn domain.ChatTurn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
}

func (r *recordingSink) FlagsChanged(flags domain.UIFlags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags = append(r.flags, flags)
}

func (r *recordingSink) SessionError(_ domain.ErrorCode, _ string) {}
