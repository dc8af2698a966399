package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/astralume/astra/internal/api"
	"github.com/astralume/astra/internal/chat"
	"github.com/astralume/astra/internal/config"
	"github.com/astralume/astra/internal/engine"
	"github.com/astralume/astra/internal/session"
)

var (
	debug        bool
	baseURL      string
	resumeID     string
	quiet        bool
	showThinking bool
	logFile      *os.File // For cleanup
)

var (
	logger  *log.Logger
	client  *api.Client
	roster  *session.ListCache
	chatEng *engine.Engine
)

// setupLogging sends structured logs to a file so they never interleave
// with streamed chat output. Debug mode keeps them on stderr instead.
func setupLogging(debug bool) error {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
		log.SetDefault(logger)
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	logDir := filepath.Join(home, ".astra")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "astra.log")
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logger.SetOutput(logFile)
	log.SetDefault(logger)
	return nil
}

// cleanupLogging closes the log file if it was opened
func cleanupLogging() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

var rootCmd = &cobra.Command{
	Use:   "astra [prompt]",
	Short: "Streaming chat client for the Astra API",
	Long: `Astra is a terminal chat client for the Astra conversation API.

Usage:
  astra                     # Start interactive chat
  astra "your question"     # Get direct answer
  echo "question" | astra   # Pipe input

Replies stream in as they are generated. Sessions are stored server-side
and can be listed, resumed, and deleted with slash commands.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     false,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(debug); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		cfg, err := config.Load(debug)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}

		client = api.NewClient(api.ClientOptions{
			BaseURL: cfg.BaseURL,
			Tokens:  api.EnvTokenSource(cfg.TokenEnv),
			Logger:  logger,
		})
		roster = session.NewListCache(client, session.CacheOptions{
			PageSize: cfg.SessionPageSize,
			Logger:   logger,
		})

		renderer := chat.NewTerminalRenderer(os.Stdout, showThinking, quiet)
		chatEng = engine.NewEngine(client, engine.Options{
			Renderer: renderer,
			Logger:   logger,
		})

		return waitForOnboarding(cmd.Context(), cfg)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if resumeID != "" {
			if err := chatEng.LoadSession(ctx, resumeID); err != nil {
				return fmt.Errorf("failed to resume session %s: %w", resumeID, err)
			}
		}

		if len(args) > 0 {
			// Direct prompt mode: astra "question"
			return handleDirectPrompt(ctx, strings.Join(args, " "))
		}
		if hasStdinInput() {
			return handlePipedInput(ctx)
		}
		return startInteractiveMode(ctx)
	},
}

// waitForOnboarding blocks until the account can chat, within the
// configured attempt budget. Skipped entirely when no token is set, so an
// unauthenticated run fails on the first send with a classified error
// instead of burning the whole poll budget first.
func waitForOnboarding(ctx context.Context, cfg *config.Config) error {
	if os.Getenv(cfg.TokenEnv) == "" {
		logger.Debug("no token set, skipping profile check", "env", cfg.TokenEnv)
		return nil
	}

	interval := time.Duration(cfg.ProfilePoll.IntervalSeconds) * time.Second
	profile, err := client.WaitForProfile(ctx, cfg.ProfilePoll.Attempts, interval)
	if err != nil {
		return err
	}
	logger.Debug("profile ready", "user", profile.ID)
	return nil
}

// handleDirectPrompt runs a single turn and exits
func handleDirectPrompt(ctx context.Context, prompt string) error {
	s := chat.NewSession(chatEng, roster, chat.SessionOptions{Logger: logger})
	return s.ProcessMessage(ctx, prompt)
}

// hasStdinInput reports whether stdin is piped or redirected
func hasStdinInput() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// handlePipedInput reads all of stdin as one prompt
func handlePipedInput(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	prompt := strings.TrimSpace(strings.Join(lines, "\n"))
	if prompt == "" {
		return fmt.Errorf("no input received from stdin")
	}
	return handleDirectPrompt(ctx, prompt)
}

// startInteractiveMode runs the chat loop until exit
func startInteractiveMode(ctx context.Context) error {
	s := chat.NewSession(chatEng, roster, chat.SessionOptions{Logger: logger})
	return s.Run(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Override the API base URL")
	rootCmd.Flags().StringVarP(&resumeID, "session", "s", "", "Resume an existing session by id")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - output only the answer")
	rootCmd.Flags().BoolVar(&showThinking, "thinking", false, "Show model reasoning as it streams")
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer cleanupLogging()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		cleanupLogging()
		os.Exit(1)
	}
}
