package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/koscakluka/memoir-voice/core/config"
)

const defaultTurns = 20

type rootOptions struct {
	cfgFile     string
	historyFile string
	turns       int
	testMode    bool
	textMode    bool
	verbose     bool

	lookupEnv func(string) (string, bool)
}

// NewRootCommand builds the memoir-voice command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(os.LookupEnv)
}

func newRootCommand(lookupEnv func(string) (string, bool)) *cobra.Command {
	opts := &rootOptions{lookupEnv: lookupEnv}

	cmd := &cobra.Command{
		Use:   "memoir-voice",
		Short: "Voice interview companion for memoir writing",
		Long: `memoir-voice talks with the interviewee turn by turn over a realtime
voice provider and keeps a transcript of the conversation.

The provider is chosen with VOICE_PROVIDER (openai, gemini, dashscope,
deepgram or mock). Unknown providers and missing audio hardware fall back
to an offline mode that prints instead of speaking.

Examples:
  # Spoken interview with the provider from the environment
  OPENAI_API_KEY=... VOICE_PROVIDER=openai memoir-voice

  # Typed conversation, transcript saved after every turn
  memoir-voice --text --history session.json

  # Check that the provider can synthesize speech
  memoir-voice --test`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), opts.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return describeError(err)
			}
			if opts.testMode {
				return runSmokeTest(cmd.Context(), cmd.OutOrStdout(), cfg)
			}
			return runConversation(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().BoolVar(&opts.testMode, "test", false, "connect, synthesize a greeting and disconnect")
	cmd.Flags().BoolVar(&opts.textMode, "text", false, "type instead of speaking (no audio device)")
	cmd.Flags().IntVar(&opts.turns, "turns", defaultTurns, "maximum number of turns")
	cmd.Flags().StringVar(&opts.historyFile, "history", "", "JSON file the transcript is saved to after every turn")

	cmd.AddCommand(newSchemaCommand())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *rootOptions) loadConfig() (config.SessionConfig, error) {
	cfg, err := config.Load(o.cfgFile, o.lookupEnv)
	if err != nil {
		return config.SessionConfig{}, err
	}
	if o.textMode {
		cfg.AudioBackend = config.AudioBackendStub
	}
	return cfg, nil
}

func setupLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
