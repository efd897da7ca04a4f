// Package console renders interview events for a terminal session.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"interviewmic/internal/domain"
)

var (
	connectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	interviewerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	contentStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// Sink writes interview events as styled lines. It is safe for concurrent use.
type Sink struct {
	mu    sync.Mutex
	out   io.Writer
	flags domain.UIFlags
}

func NewSink(out io.Writer) *Sink {
	return &Sink{out: out}
}

func (s *Sink) ConnectionChanged(status domain.ConnectionStatus) {
	line := fmt.Sprintf("[connection] %s", status.State)
	switch status.Notice {
	case domain.NoticeConnectionLost:
		line = fmt.Sprintf("[connection] lost, reconnecting (%d/%d)", status.ReconnectAttempts, status.MaxReconnectAttempts)
	case domain.NoticeReconnectExhausted:
		line = "[connection] unable to reconnect, type 'retry' to try again"
	}
	s.println(connectionStyle.Render(line))
}

func (s *Sink) TurnAppended(turn domain.ChatTurn) {
	label := interviewerStyle.Render("Interviewer")
	if turn.Sender == domain.SenderAssistant {
		label = assistantStyle.Render("Assistant")
	}
	s.println(label + "\n" + contentStyle.Render(turn.Content))
}

// FlagsChanged only prints transitions so repeated updates stay quiet.
func (s *Sink) FlagsChanged(flags domain.UIFlags) {
	s.mu.Lock()
	prev := s.flags
	s.flags = flags
	s.mu.Unlock()

	if flags.IsListening != prev.IsListening {
		if flags.IsListening {
			s.println(statusStyle.Render("listening..."))
		} else {
			s.println(statusStyle.Render("stopped listening"))
		}
	}
	if flags.IsTyping && !prev.IsTyping {
		s.println(statusStyle.Render("assistant is typing..."))
	}
}

func (s *Sink) SessionError(code domain.ErrorCode, detail string) {
	line := fmt.Sprintf("error [%s]", code)
	if detail != "" {
		line += ": " + detail
	}
	s.println(errorStyle.Render(line))
}

func (s *Sink) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.out, line)
}
