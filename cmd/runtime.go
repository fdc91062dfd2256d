package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cdlprep/cdlprep/internal/config"
	"github.com/cdlprep/cdlprep/internal/explain"
	"github.com/cdlprep/cdlprep/internal/llm"
	"github.com/cdlprep/cdlprep/internal/logging"
	"github.com/cdlprep/cdlprep/internal/question"
	"github.com/cdlprep/cdlprep/internal/quiz"
	"github.com/cdlprep/cdlprep/internal/screen"
	"github.com/cdlprep/cdlprep/internal/stats"
	"github.com/cdlprep/cdlprep/internal/store"
	"github.com/cdlprep/cdlprep/internal/trial"
)

// runtime holds the services a command works with.
type runtime struct {
	cfg     config.Config
	log     *logrus.Logger
	store   *store.Store
	source  question.Source
	stats   *stats.Service
	gate    *trial.Gate
	explain *explain.Service
	engine  *quiz.Engine

	closers []io.Closer
}

// openRuntime loads configuration, applies the persistent flags and opens
// the store. With toFile set, logs go to the log file instead of stderr so
// the TUI owns the terminal.
func openRuntime(cmd *cobra.Command, toFile bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, &cfg)

	rt := &runtime{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	var out io.Writer = cmd.ErrOrStderr()
	if toFile {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, f)
		out = f
	}
	rt.log, err = logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: out})
	if err != nil {
		return nil, err
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
	} else if err := store.EnsureDir(dbPath); err != nil {
		return nil, fmt.Errorf("create DB dir: %w", err)
	}
	rt.store, err = store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, rt.store)

	if rt.source, err = buildSource(cfg, rt.store, rt.log); err != nil {
		return nil, err
	}

	rt.stats = stats.NewService(rt.store.StatsRepo(), rt.store.ResultRepo(), rt.log)

	var ent trial.EntitlementProvider = trial.StoreEntitlements{Repo: rt.store.EntitlementRepo()}
	if cfg.Pro {
		ent = trial.Static(true)
	}
	rt.gate = trial.NewGate(rt.store.StatsRepo(), ent, cfg.FreeLimit, rt.log)

	var provider llm.Provider
	if cfg.LLM.Enabled() {
		p, err := llm.NewProvider(cmd.Context(), cfg.LLM, rt.store.EventRepo(), rt.log)
		if err != nil {
			rt.log.WithError(err).Warn("LLM provider unavailable; generated explanations disabled")
		} else {
			provider = p
		}
	}
	rt.explain = explain.NewService(provider, rt.store.ExplanationRepo(), rt.log)

	rt.engine, err = quiz.NewEngine(quiz.Options{
		Source:   rt.source,
		Stats:    rt.stats,
		Sessions: rt.store.PracticeSessionRepo(),
		Gate:     rt.gate,
		Config:   cfg.Quiz,
		Log:      rt.log,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return rt, nil
}

// buildSource serves a bank file when one is configured, otherwise the
// imported bank with the embedded default behind it.
func buildSource(cfg config.Config, st *store.Store, log logrus.FieldLogger) (question.Source, error) {
	if cfg.BankPath != "" {
		bank, err := question.LoadBankFile(cfg.BankPath)
		if err != nil {
			return nil, err
		}
		return question.NewBankSource(bank), nil
	}
	bank, err := question.DefaultBank()
	if err != nil {
		return nil, fmt.Errorf("load default bank: %w", err)
	}
	return &question.FallbackSource{
		Primary:  question.NewStoreSource(st.QuestionRepo()),
		Fallback: question.NewBankSource(bank),
		Log:      log,
	}, nil
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		dir, err := store.DataDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "cdlprep.log")
	}
	if err := store.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// applyFlags lets explicitly set persistent flags override the config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("user") {
		cfg.UserID, _ = flags.GetString("user")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
}

func (rt *runtime) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithContext(ctx, rt.log.WithField("user_id", rt.cfg.UserID))
}

func (rt *runtime) screenDeps() screen.Deps {
	return screen.Deps{
		Engine:  rt.engine,
		Stats:   rt.stats,
		Source:  rt.source,
		Gate:    rt.gate,
		Explain: rt.explain,
		UserID:  rt.cfg.UserID,
		Log:     rt.log,
	}
}

// Close releases everything openRuntime acquired, newest first.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i].Close()
	}
	rt.closers = nil
}
