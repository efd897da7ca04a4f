package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"interviewmic/internal/domain"
)

type controller interface {
	CompleteSetup(jobDescription, background string) error
	SelectSource(source domain.AudioSource) error
	StartRecording(ctx context.Context) error
	StopRecording() error
	RetryConnection() error
	Reset() error
	Status() domain.Status
}

// runREPL executes line commands until quit, EOF or ctx cancellation.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, c controller) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.StopRecording()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return c.StopRecording()
			}
			quit, err := execute(ctx, line, out, c)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return c.StopRecording()
			}
		}
	}
}

func execute(ctx context.Context, line string, out io.Writer, c controller) (bool, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "":
		return false, nil
	case "q", "quit", "exit":
		return true, nil
	case "r", "record":
		return false, c.StartRecording(ctx)
	case "s", "stop":
		return false, c.StopRecording()
	case "source":
		if arg == "" {
			return false, fmt.Errorf("usage: source <mic|screen>")
		}
		source, err := domain.ParseAudioSource(arg)
		if err != nil {
			return false, err
		}
		return false, c.SelectSource(source)
	case "setup":
		job, background, _ := strings.Cut(arg, "|")
		return false, c.CompleteSetup(job, background)
	case "retry":
		return false, c.RetryConnection()
	case "reset":
		if err := c.Reset(); err != nil {
			return false, err
		}
		fmt.Fprintln(out, "conversation cleared; use 'setup' to start again")
		return false, nil
	case "status":
		fmt.Fprintln(out, formatStatus(c.Status()))
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", name)
	}
}

func formatStatus(s domain.Status) string {
	return fmt.Sprintf("connection=%s attempts=%d/%d source=%s recording=%t setup=%t turns=%d",
		s.Connection.State,
		s.Connection.ReconnectAttempts,
		s.Connection.MaxReconnectAttempts,
		s.Source,
		s.Recording,
		s.SetupComplete,
		s.Turns,
	)
}
