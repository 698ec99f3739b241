// Package cli implements the wip CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rcliao/wip-ledger/internal/category"
	"github.com/rcliao/wip-ledger/internal/config"
	"github.com/rcliao/wip-ledger/internal/logging"
	"github.com/rcliao/wip-ledger/internal/merge"
	"github.com/rcliao/wip-ledger/internal/oracle"
	"github.com/rcliao/wip-ledger/internal/settings"
	"github.com/rcliao/wip-ledger/internal/store"
	"github.com/rcliao/wip-ledger/internal/tracker"
)

var (
	dbPath     string
	configPath string
	llmFlag    string
	modelFlag  string
	formatFlag string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "wip",
	Short: "Work-in-progress time ledger",
	Long:  "Aggregates activity observations into a billable WIP ledger. SQLite-backed, single binary.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()
		logging.SetDebug(verbose || logging.DebugEnabled())
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $WIP_DB or ~/.wip/ledger.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.wip/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&llmFlag, "llm", "", "Classifier provider: ollama or openai (default: disabled)")
	RootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Classifier model")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func resolveConfig() config.ResolvedConfig {
	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: configPath,
		CLIDBPath:  dbPath,
		CLILLM:     llmFlag,
		CLIModel:   modelFlag,
	})
	if err != nil {
		exitErr("config", err)
	}
	return cfg
}

func openStore(cfg config.ResolvedConfig) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath.Value)
}

// buildEngine wires the classifier (if any) into the merge engine and the
// category classifier. Without a classifier every cross-label question
// fails closed, so only identical labels and Unknown clients merge.
func buildEngine(cfg config.ResolvedConfig) (*merge.Engine, *category.Classifier) {
	cc := cfg.Classifier()
	cls, err := oracle.NewClassifier(cc)
	if err != nil {
		exitErr("classifier", err)
	}

	cache := oracle.NewCache(cfg.CacheEntries())
	var checker oracle.Checker
	var categories *category.Classifier
	if cls != nil {
		logging.Debug("cli", "classifier %s", cls.Name())
		checker = oracle.NewLLM(cls, cc.Timeout)
		categories = category.New(category.NewLLMLabeler(cls, cc.Timeout), category.WithCache(cache))
	}
	return merge.New(oracle.New(checker, cache), cfg.Engine()), categories
}

// settingsSource prefers values stored with `wip settings set` over the
// config file.
func settingsSource(cfg config.ResolvedConfig, st *store.SQLiteStore) settings.Source {
	rate, hasRate := cfg.Rate()
	return settings.Chain{st, settings.Static{Rate: rate, HasRate: hasRate, Partner: cfg.Partner.Value}}
}

func newTracker(cfg config.ResolvedConfig, st *store.SQLiteStore) *tracker.Service {
	engine, categories := buildEngine(cfg)
	var opts []tracker.Option
	if categories != nil {
		opts = append(opts, tracker.WithCategories(categories))
	}
	return tracker.New(st, settingsSource(cfg, st), engine, opts...)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
