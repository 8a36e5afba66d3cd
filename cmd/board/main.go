// Package main is the terminal client for the project board.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"projectboard/internal/appstate"
	"projectboard/internal/client"
	"projectboard/internal/config"
	"projectboard/internal/logging"
	"projectboard/internal/realtime"
	"projectboard/internal/tui"
)

var (
	serverURL string
	email     string
	password  string
	token     string
	live      bool
	theme     string
	cacheTTL  time.Duration
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Kanban board in the terminal",
	Long: `board signs in to a projectboard server and shows its tasks as a
kanban board. Cards move optimistically and roll back if the server refuses.

Examples:
  # Sign in with a password read from PM_PASSWORD
  PM_PASSWORD=secret board --email ana@example.com

  # Reuse a token
  board --token "$PM_TOKEN" --server https://board.example.com`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runBoard,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&serverURL, "server", "http://localhost:8008", "projectboard server URL")
	f.StringVar(&email, "email", "", "account email")
	f.StringVar(&password, "password", "", "account password (defaults to $PM_PASSWORD)")
	f.StringVar(&token, "token", os.Getenv("PM_TOKEN"), "session token instead of email and password")
	f.BoolVar(&live, "live", true, "follow realtime updates")
	f.StringVar(&theme, "theme", string(appstate.ThemeDark), "color theme: dark or light")
	f.DurationVar(&cacheTTL, "cache-ttl", 30*time.Second, "how long query results stay cached")
}

func runBoard(cmd *cobra.Command, args []string) error {
	logger, err := clientLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	api := client.New(serverURL, client.WithLogger(logger))
	if err := signIn(ctx, api); err != nil {
		return err
	}

	store := appstate.NewStore(appstate.Reduce(appstate.Initial(), appstate.SetTheme(appstate.Theme(theme))))
	queries := client.NewQueries(api, cacheTTL)

	var events chan realtime.Event
	if live {
		events = make(chan realtime.Event, 64)
		go follow(ctx, api, events, logger)
	}

	p := tea.NewProgram(tui.New(ctx, queries, store, events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run board: %w", err)
	}
	return nil
}

func signIn(ctx context.Context, api *client.Client) error {
	if token != "" {
		api.SetToken(token)
		if _, err := api.Session(ctx); err != nil {
			return errors.New(client.FailureMessage("restore session", err))
		}
		return nil
	}
	if password == "" {
		password = os.Getenv("PM_PASSWORD")
	}
	if email == "" || password == "" {
		return errors.New("either --token or --email with a password is required")
	}
	if _, err := api.Login(ctx, email, password); err != nil {
		return errors.New(client.FailureMessage("sign in", err))
	}
	return nil
}

// follow keeps a realtime subscription open, reconnecting until ctx ends.
// Events are dropped when the UI falls behind; the next reload catches up.
func follow(ctx context.Context, api *client.Client, out chan<- realtime.Event, logger *zap.Logger) {
	backoff := time.Second
	for {
		err := api.Subscribe(ctx, func(evt realtime.Event) {
			backoff = time.Second
			select {
			case out <- evt:
			default:
				logger.Debug("realtime event dropped", zap.String("entity", evt.Entity))
			}
		})
		if ctx.Err() != nil {
			return
		}
		logger.Warn("realtime disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// clientLogger writes to a rotating file so the terminal stays free for the UI.
func clientLogger() (*zap.Logger, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	cfg := config.Default().Logging
	cfg.Output = "file"
	cfg.Format = "json"
	cfg.File = filepath.Join(dir, "projectboard", "board.log")
	return logging.New(cfg)
}
