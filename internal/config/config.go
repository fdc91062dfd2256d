// Package config resolves runtime settings from an optional .env file and
// CDLPREP_* environment variables. Command-line flags are applied on top by
// the cmd package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/cdlprep/cdlprep/internal/llm"
	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/trial"
)

// GuestUser is the user id used when none is configured.
const GuestUser = "guest"

// Config is the resolved runtime configuration.
type Config struct {
	DBPath    string // empty means store.DefaultDBPath
	UserID    string
	LogLevel  string
	LogFormat string
	LogFile   string // TUI log destination; empty means <data dir>/cdlprep.log

	FreeLimit int
	// Pro forces the entitlement check to pass, for local installs that
	// have no billing collaborator.
	Pro bool

	Quiz     quiz.Config
	BankPath string // optional bank file loaded instead of the stored bank
	APIAddr  string

	LLM llm.Config
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		UserID:    GuestUser,
		LogLevel:  "info",
		LogFormat: "text",
		FreeLimit: trial.DefaultFreeLimit,
		Quiz:      quiz.DefaultConfig(),
		APIAddr:   ":8080",
		LLM:       llm.DefaultConfig(),
	}
}

// Load reads the given env files (".env" when none are named), then the
// environment. Missing env files are ignored. Variables already set in the
// environment win over the files.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("CDLPREP_DB", &cfg.DBPath)
	str("CDLPREP_USER", &cfg.UserID)
	str("CDLPREP_LOG_LEVEL", &cfg.LogLevel)
	str("CDLPREP_LOG_FORMAT", &cfg.LogFormat)
	str("CDLPREP_LOG_FILE", &cfg.LogFile)
	str("CDLPREP_BANK", &cfg.BankPath)
	str("CDLPREP_API_ADDR", &cfg.APIAddr)

	if v := os.Getenv("CDLPREP_FREE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("CDLPREP_FREE_LIMIT: invalid value %q", v)
		}
		cfg.FreeLimit = n
	}
	if v := os.Getenv("CDLPREP_EXAM_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("CDLPREP_EXAM_DURATION: invalid duration %q", v)
		}
		cfg.Quiz.ExamDuration = d
	}
	if v := os.Getenv("CDLPREP_PRO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("CDLPREP_PRO: %w", err)
		}
		cfg.Pro = b
	}

	cfg.LLM = llm.ConfigFromEnv()
	if err := cfg.LLM.Validate(); err != nil {
		return Config{}, fmt.Errorf("llm config: %w", err)
	}
	return cfg, nil
}
