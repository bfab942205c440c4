package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sitecrew/attendance-bot/internal/attendance"
	"github.com/sitecrew/attendance-bot/internal/auth"
	"github.com/sitecrew/attendance-bot/internal/config"
	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/sheetsapi"
	"github.com/sitecrew/attendance-bot/internal/storage"
	"github.com/sitecrew/attendance-bot/internal/workflow"
)

var (
	configPath string
	envFile    string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "attendance-bot",
	Short: "Telegram bot that records daily site attendance in an Excel workbook",
	Long: `attendance-bot asks for a date, lists the workers who have a row for
that date in the month sheet, and marks the ones picked as present.
Running it without a subcommand is the same as "serve".`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Args:          cobra.NoArgs,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Add a worker to every month sheet from the start date and to the wage registry",
	Args:  cobra.NoArgs,
	RunE:  runEnroll,
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize <user-id>",
	Short: "Authorize a Telegram user id without the password",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthorize,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Env file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug logging and Telegram API tracing")

	enrollCmd.Flags().String("name", "", "Worker name")
	enrollCmd.Flags().Float64("wage", 0, "Daily wage")
	enrollCmd.Flags().String("start", "", "Start date (default today)")
	enrollCmd.MarkFlagRequired("name")
	enrollCmd.MarkFlagRequired("wage")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(authorizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
		cfg.Telegram.Debug = true
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gate, closeGate, err := openGate(cfg)
	if err != nil {
		return err
	}
	defer closeGate()

	svc, err := openService(ctx, cfg, log)
	if err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	log.Info("bot started", "account", api.Self.UserName, "storage", cfg.Storage.Backend, "reader", cfg.Reader.Backend)

	sessions := workflow.NewSessions()
	engine := workflow.NewEngine(gate, svc, sessions, workflow.Config{
		EndOnPasswordMismatch: cfg.Auth.EndOnMismatch,
	}, log)
	bot := NewBot(api, engine, gate, svc, log)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Telegram.PollTimeout
	updates := api.GetUpdatesChan(u)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(ctx, updates)
	})
	g.Go(func() error {
		<-ctx.Done()
		api.StopReceivingUpdates()
		return nil
	})
	if cfg.Health.Enabled {
		g.Go(func() error {
			return StartKeepAlive(ctx, cfg.Health.Port, sessions.Len, log)
		})
	}
	if cfg.Reminder.Enabled {
		r := newReminder(api, gate, cfg.Reminder, log)
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	err = g.Wait()
	log.Info("bot stopped", "error", err)
	return err
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	name, _ := cmd.Flags().GetString("name")
	wage, _ := cmd.Flags().GetFloat64("wage")
	start, _ := cmd.Flags().GetString("start")

	day := dates.FromTime(time.Now())
	if start != "" {
		if day, err = dates.Parse(start); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	svc, err := openService(ctx, cfg, log)
	if err != nil {
		return err
	}
	res, err := svc.Enroll(ctx, attendance.Enrollment{Name: name, Wage: wage, Start: day})
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", name, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Added %s from %s to %d sheets\n", name, day, len(res.Sheets))
	if res.Registered {
		fmt.Fprintln(out, "Registered in the wage registry")
	}
	if len(res.Missing) > 0 {
		fmt.Fprintf(out, "Missing sheets skipped: %v\n", res.Missing)
	}
	return nil
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateAuth(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	gate, closeGate, err := openGate(cfg)
	if err != nil {
		return err
	}
	defer closeGate()

	if err := gate.Grant(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Authorized %d\n", id)
	return nil
}

// openGate builds the password gate over the configured id store. The
// returned func releases the store.
func openGate(cfg *config.Config) (*auth.Gate, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Auth.Store {
	case "memory":
		return auth.NewGate(cfg.Auth.Password, auth.NewMemoryStore()), noop, nil
	case "sqlite":
		s, err := auth.NewSQLiteStore(cfg.Auth.Path)
		if err != nil {
			return nil, nil, err
		}
		return auth.NewGate(cfg.Auth.Password, s), s.Close, nil
	default:
		return auth.NewGate(cfg.Auth.Password, auth.NewFileStore(cfg.Auth.Path)), noop, nil
	}
}

func openService(ctx context.Context, cfg *config.Config, log *slog.Logger) (*attendance.Service, error) {
	months, err := cfg.Months()
	if err != nil {
		return nil, err
	}
	layout := cfg.Layout()
	opts := attendance.Options{
		Layout:      layout,
		Months:      months,
		Timeout:     cfg.StorageTimeout(),
		MaxAttempts: cfg.Storage.MaxAttempts,
		Logger:      log,
	}

	var store storage.Store
	switch cfg.Storage.Backend {
	case "file":
		store = storage.NewFile(cfg.Storage.Path)
	default:
		creds, err := cfg.Credentials()
		if err != nil {
			return nil, err
		}
		if store, err = storage.NewDrive(ctx, creds, cfg.Storage.FileID); err != nil {
			return nil, err
		}
	}

	if cfg.Reader.Backend == "sheets" {
		creds, err := cfg.Credentials()
		if err != nil {
			return nil, err
		}
		r, err := sheetsapi.New(ctx, creds, cfg.Reader.SpreadsheetID, layout)
		if err != nil {
			return nil, err
		}
		opts.Reader = r
	}
	return attendance.New(store, opts), nil
}
