// Package config loads bot settings from an optional TOML or YAML file, a
// .env file and the process environment, in that order of precedence from
// lowest to highest.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/sitecrew/attendance-bot/internal/dates"
	"github.com/sitecrew/attendance-bot/internal/workbook"
)

var ErrNoCredentials = errors.New("no google credentials provided")

// Config is the top-level bot configuration.
type Config struct {
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
	Auth     AuthConfig     `toml:"auth" yaml:"auth"`
	Storage  StorageConfig  `toml:"storage" yaml:"storage"`
	Reader   ReaderConfig   `toml:"reader" yaml:"reader"`
	Workbook WorkbookConfig `toml:"workbook" yaml:"workbook"`
	Health   HealthConfig   `toml:"health" yaml:"health"`
	Reminder ReminderConfig `toml:"reminder" yaml:"reminder"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

type TelegramConfig struct {
	Token       string `toml:"token" yaml:"token"`
	Debug       bool   `toml:"debug" yaml:"debug"`
	PollTimeout int    `toml:"poll_timeout" yaml:"poll_timeout"` // seconds
}

// AuthConfig selects the password and where authorized ids are kept.
type AuthConfig struct {
	Password      string `toml:"password" yaml:"password"`
	Store         string `toml:"store" yaml:"store"` // "memory" | "file" | "sqlite"
	Path          string `toml:"path" yaml:"path"`
	EndOnMismatch bool   `toml:"end_on_mismatch" yaml:"end_on_mismatch"`
}

// StorageConfig locates the attendance workbook.
type StorageConfig struct {
	Backend         string `toml:"backend" yaml:"backend"` // "drive" | "file"
	FileID          string `toml:"file_id" yaml:"file_id"`
	Path            string `toml:"path" yaml:"path"`
	Credentials     string `toml:"credentials" yaml:"credentials"`
	CredentialsFile string `toml:"credentials_file" yaml:"credentials_file"`
	Timeout         int    `toml:"timeout" yaml:"timeout"` // seconds
	MaxAttempts     int    `toml:"max_attempts" yaml:"max_attempts"`

	credentialsBase64 string
}

type ReaderConfig struct {
	Backend       string `toml:"backend" yaml:"backend"` // "workbook" | "sheets"
	SpreadsheetID string `toml:"spreadsheet_id" yaml:"spreadsheet_id"`
}

// WorkbookConfig overrides the sheet layout. Zero values keep the defaults.
type WorkbookConfig struct {
	MonthSheets    []string `toml:"month_sheets" yaml:"month_sheets"`
	HeaderRows     int      `toml:"header_rows" yaml:"header_rows"`
	DateColumn     int      `toml:"date_column" yaml:"date_column"`
	NameColumn     int      `toml:"name_column" yaml:"name_column"`
	AttendedColumn int      `toml:"attended_column" yaml:"attended_column"`
	WageColumn     int      `toml:"wage_column" yaml:"wage_column"`
	WageHeader     string   `toml:"wage_header" yaml:"wage_header"`
	RegistrySheet  string   `toml:"registry_sheet" yaml:"registry_sheet"`
}

type HealthConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	Port    int  `toml:"port" yaml:"port"`
}

type ReminderConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Hour    int    `toml:"hour" yaml:"hour"`
	Minute  int    `toml:"minute" yaml:"minute"`
	Text    string `toml:"text" yaml:"text"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`   // "debug" | "info" | "warn" | "error"
	Format string `toml:"format" yaml:"format"` // "text" | "json"
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	layout := workbook.DefaultLayout()
	return &Config{
		Telegram: TelegramConfig{PollTimeout: 60},
		Auth: AuthConfig{
			Store: "file",
			Path:  "authorized_users.csv",
		},
		Storage: StorageConfig{
			Backend:     "drive",
			Timeout:     60,
			MaxAttempts: 3,
		},
		Reader: ReaderConfig{Backend: "workbook"},
		Workbook: WorkbookConfig{
			MonthSheets:    append([]string(nil), dates.HebrewMonths[:]...),
			HeaderRows:     layout.HeaderRows,
			DateColumn:     layout.DateColumn,
			NameColumn:     layout.NameColumn,
			AttendedColumn: layout.AttendedColumn,
			WageColumn:     layout.WageColumn,
			WageHeader:     layout.WageHeader,
			RegistrySheet:  layout.RegistrySheet,
		},
		Health: HealthConfig{Enabled: true, Port: 10000},
		Reminder: ReminderConfig{
			Hour:   18,
			Minute: 0,
			Text:   "⏰ Time to record today's attendance. Send /start.",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path and envFile may be empty; a missing
// env file is ignored, a missing config file is not.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	}
	return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Telegram.Token, "TELEGRAM_TOKEN", "BOT_TOKEN")
	set(&c.Auth.Password, "BOT_PASSWORD")
	set(&c.Auth.Path, "AUTHORIZED_USERS_FILE")
	set(&c.Storage.FileID, "EXCEL_FILE_ID")
	set(&c.Storage.Credentials, "GOOGLE_APPLICATION_CREDENTIALS_JSON")
	set(&c.Storage.credentialsBase64, "GOOGLE_CREDENTIALS_BASE64")
	set(&c.Storage.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	set(&c.Reader.SpreadsheetID, "SPREADSHEET_ID")

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Health.Port = port
	}
	return nil
}

// Validate checks everything the bot needs to serve.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required (TELEGRAM_TOKEN)")
	}
	if c.Auth.Password == "" {
		return errors.New("password is required (BOT_PASSWORD)")
	}
	if err := c.ValidateAuth(); err != nil {
		return err
	}
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.Health.Enabled && (c.Health.Port <= 0 || c.Health.Port > 65535) {
		return fmt.Errorf("invalid health port %d", c.Health.Port)
	}
	if c.Reminder.Enabled {
		if c.Reminder.Hour < 0 || c.Reminder.Hour > 23 || c.Reminder.Minute < 0 || c.Reminder.Minute > 59 {
			return fmt.Errorf("invalid reminder time %02d:%02d", c.Reminder.Hour, c.Reminder.Minute)
		}
	}
	return nil
}

// ValidateAuth checks the authorization store settings.
func (c *Config) ValidateAuth() error {
	switch c.Auth.Store {
	case "memory":
	case "file", "sqlite":
		if c.Auth.Path == "" {
			return fmt.Errorf("auth store %q needs a path", c.Auth.Store)
		}
	default:
		return fmt.Errorf("unknown auth store %q", c.Auth.Store)
	}
	return nil
}

// ValidateStorage checks the workbook location, reader and layout.
func (c *Config) ValidateStorage() error {
	switch c.Storage.Backend {
	case "drive":
		if c.Storage.FileID == "" {
			return errors.New("drive storage needs a file id (EXCEL_FILE_ID)")
		}
	case "file":
		if c.Storage.Path == "" {
			return errors.New("file storage needs a path")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Reader.Backend {
	case "workbook":
	case "sheets":
		if c.Reader.SpreadsheetID == "" {
			return errors.New("sheets reader needs a spreadsheet id (SPREADSHEET_ID)")
		}
	default:
		return fmt.Errorf("unknown reader backend %q", c.Reader.Backend)
	}
	if _, err := c.Months(); err != nil {
		return err
	}
	return nil
}

// Credentials returns the service-account JSON from, in order: inline
// JSON, base64 JSON, the credentials file, or ./credentials.json.
func (c *Config) Credentials() ([]byte, error) {
	if c.Storage.Credentials != "" {
		return []byte(c.Storage.Credentials), nil
	}
	if c.Storage.credentialsBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.Storage.credentialsBase64))
		if err != nil {
			return nil, fmt.Errorf("decoding base64 credentials: %w", err)
		}
		return data, nil
	}
	if c.Storage.CredentialsFile != "" {
		data, err := os.ReadFile(c.Storage.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials: %w", err)
		}
		return data, nil
	}
	if data, err := os.ReadFile("credentials.json"); err == nil {
		return data, nil
	}
	return nil, ErrNoCredentials
}

// Layout merges the workbook overrides into the default layout.
func (c *Config) Layout() workbook.Layout {
	l := workbook.DefaultLayout()
	w := c.Workbook
	if w.HeaderRows > 0 {
		l.HeaderRows = w.HeaderRows
	}
	if w.DateColumn > 0 {
		l.DateColumn = w.DateColumn
	}
	if w.NameColumn > 0 {
		l.NameColumn = w.NameColumn
	}
	if w.AttendedColumn > 0 {
		l.AttendedColumn = w.AttendedColumn
	}
	if w.WageColumn > 0 {
		l.WageColumn = w.WageColumn
	}
	if w.WageHeader != "" {
		l.WageHeader = w.WageHeader
	}
	if w.RegistrySheet != "" {
		l.RegistrySheet = w.RegistrySheet
	}
	return l
}

func (c *Config) Months() (dates.MonthTable, error) {
	if len(c.Workbook.MonthSheets) == 0 {
		return dates.HebrewMonths, nil
	}
	t, err := dates.NewMonthTable(c.Workbook.MonthSheets)
	if err != nil {
		return t, fmt.Errorf("workbook.month_sheets: %w", err)
	}
	return t, nil
}

func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.Storage.Timeout) * time.Second
}

// LogLevel maps Log.Level to a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
