package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/datamesa/assistant/pkg/availdata"
	"github.com/datamesa/assistant/pkg/config"
	"github.com/datamesa/assistant/pkg/dbexec"
	"github.com/datamesa/assistant/pkg/fastpath"
	"github.com/datamesa/assistant/pkg/llm"
	"github.com/datamesa/assistant/pkg/orchestrator"
	"github.com/datamesa/assistant/pkg/policy"
	"github.com/datamesa/assistant/pkg/sandbox"
	"github.com/datamesa/assistant/pkg/search"
)

// app bundles everything a command needs after wiring.
type app struct {
	cfg   config.Settings
	orc   *orchestrator.Orchestrator
	store *availdata.Store
	close func() error
}

// buildApp wires the orchestrator from process configuration.
func buildApp(ctx context.Context, log *slog.Logger) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var executor dbexec.Executor
	var err error
	switch cfg.DBBackend {
	case "sqlserver":
		executor, err = dbexec.NewSQLServerExecutor(cfg.SQLServerConnStr)
	default:
		executor, err = dbexec.NewDuckDBExecutor(cfg.DuckDBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var searcher search.Searcher
	if cfg.SearchEndpoint != "" {
		indexes := map[string]string{
			"field":        cfg.SearchIndexField,
			"table":        cfg.SearchIndexTable,
			"relationship": cfg.SearchIndexRelation,
		}
		searcher = search.NewCachedSearcher(
			search.NewHTTPSearcher(cfg.SearchEndpoint, cfg.SearchAPIKey, indexes, log),
			time.Duration(cfg.SearchCacheTTLSeconds)*time.Second,
		)
	}

	tables, err := policy.NewTableAccessPolicy(ctx, policy.DefaultTableAccessPolicy)
	if err != nil {
		return nil, err
	}

	store := availdata.NewStore(cfg.DataDir)
	intents, err := availdata.LoadIntentRegistry(filepath.Join(cfg.DataDir, "intent_registry.json"))
	if err != nil {
		log.Warn("intent registry not loaded", "error", err)
		intents = availdata.NewIntentRegistry(nil)
	}
	builtIns, err := availdata.LoadBuiltInQuestions(filepath.Join(cfg.DataDir, "built_in_questions.json"))
	if err != nil {
		log.Warn("built-in questions not loaded", "error", err)
	}

	completer := llm.NewAnthropicCompleter(anthropic.Model(cfg.AnthropicModel), cfg.MaxTokens, log)

	orc := orchestrator.New(orchestrator.Deps{
		Tools:             llm.NewToolset(completer),
		Searcher:          searcher,
		Executor:          executor,
		Tables:            tables,
		Sandbox:           sandbox.NewRunner(time.Duration(cfg.SandboxTimeoutSec)*time.Second, log),
		Store:             store,
		Intents:           intents,
		BuiltIns:          builtIns,
		Templates:         fastpath.DefaultRegistry(),
		MaxRetryAttempts:  cfg.MaxRetryAttempts,
		TemplateThreshold: cfg.TemplateThreshold,
		Logger:            log,
	})

	return &app{cfg: cfg, orc: orc, store: store, close: executor.Close}, nil
}
