package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/config"
	"github.com/nvandessel/layerbench/internal/engine"
	"github.com/nvandessel/layerbench/internal/logging"
	"github.com/nvandessel/layerbench/internal/normalize"
	"github.com/nvandessel/layerbench/internal/store"
)

// appEnv is the per-invocation wiring shared by commands.
type appEnv struct {
	cfg       *config.Config
	root      string
	jsonOut   bool
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// loadEnv resolves configuration from --config or the default locations,
// applies --log-level, and builds the loggers.
func loadEnv(cmd *cobra.Command) (*appEnv, error) {
	root, _ := cmd.Flags().GetString("root")
	jsonOut, _ := cmd.Flags().GetBool("json")
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &appEnv{
		cfg:       cfg,
		root:      root,
		jsonOut:   jsonOut,
		logger:    logging.NewLoggerWithFormat(cfg.Logging.Level, logging.Format(cfg.Logging.Format), cmd.ErrOrStderr()),
		decisions: logging.NewDecisionLogger(store.LocalPath(root), cfg.Logging.Level),
	}, nil
}

// normalizer builds the built-in vocabularies plus configured extras.
func (a *appEnv) normalizer() (*normalize.Normalizer, error) {
	extra := make([]normalize.Vocabulary, 0, len(a.cfg.Vocabularies))
	for _, p := range a.cfg.Vocabularies {
		v, err := normalize.LoadVocabularyFile(p)
		if err != nil {
			return nil, err
		}
		extra = append(extra, v)
	}
	n, err := normalize.NewBuiltin(extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabularies: %w", err)
	}
	return n, nil
}

func (a *appEnv) engine() (*engine.Engine, error) {
	n, err := a.normalizer()
	if err != nil {
		return nil, err
	}
	c := compare.New(a.cfg.ComparatorConfig(),
		compare.WithDefinitions(n.Definitions()),
		compare.WithLogger(a.logger),
		compare.WithDecisionLogger(a.decisions))
	return engine.New(n, c,
		engine.WithLogger(a.logger),
		engine.WithDecisionLogger(a.decisions)), nil
}

func (a *appEnv) storeDir() string {
	if a.cfg.Store.Dir != "" {
		return a.cfg.Store.Dir
	}
	return store.LocalPath(a.root)
}

func (a *appEnv) openStore() (*store.SQLiteResultStore, error) {
	s, err := store.NewSQLiteResultStore(a.storeDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}
	return s, nil
}

func (a *appEnv) Close() {
	a.decisions.Close()
}
