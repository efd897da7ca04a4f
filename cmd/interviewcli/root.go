package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"interviewmic/internal/bootstrap"
	"interviewmic/internal/config"
	"interviewmic/internal/console"
	"interviewmic/internal/domain"
)

type runOptions struct {
	job        string
	background string
	source     string
	serverURL  string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "interviewcli",
		Short: "Terminal client for the interview assistant",
		Long: `interviewcli streams microphone or screen audio to the interview server
and prints the transcript and assistant replies as they arrive.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the server and start an interactive session",
		Long: `Connect to the interview server and read commands from stdin:

  r, record            start recording from the selected source
  s, stop              stop recording
  source <mic|screen>  select the audio source
  setup <job> | <bg>   submit a job description and background
  retry                reconnect after automatic retries gave up
  reset                clear the conversation
  status               print the current status
  q, quit              exit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.job, "job", "", "Job description sent as session setup")
	cmd.Flags().StringVar(&opts.background, "background", "", "Candidate background sent as session setup")
	cmd.Flags().StringVar(&opts.source, "source", string(domain.AudioSourceMicrophone), "Audio source (microphone or screen_audio)")
	cmd.Flags().StringVar(&opts.serverURL, "server", "", "Interview server URL (overrides config)")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			if cfg.Source != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", cfg.Source)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func runSession(cmd *cobra.Command, opts runOptions) error {
	source, err := domain.ParseAudioSource(opts.source)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if url := strings.TrimSpace(opts.serverURL); url != "" {
		cfg.Server.URL = url
	}

	sink := console.NewSink(cmd.OutOrStdout())
	services, err := bootstrap.BuildWithConfig(cfg, sink)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = services.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interview := services.Interview
	if err := interview.SelectSource(source); err != nil {
		return err
	}
	if strings.TrimSpace(opts.job) != "" || strings.TrimSpace(opts.background) != "" {
		if err := interview.CompleteSetup(opts.job, opts.background); err != nil {
			return err
		}
	}
	if err := interview.Connect(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "interview %s connecting to %s (source: %s)\n", interview.ID(), cfg.Server.URL, source)
	err = runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), interview)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
