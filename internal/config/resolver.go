// Package config resolves wip settings from the config file, the
// environment and command-line flags, remembering where each value came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/wip-ledger/internal/merge"
	"github.com/rcliao/wip-ledger/internal/oracle"
)

// ValueSource names the layer a resolved value came from.
type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting together with the layer that supplied it.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// IsSet reports whether any layer supplied the value.
func (v ResolvedValue) IsSet() bool { return strings.TrimSpace(v.Value) != "" }

// ResolveOptions carries the command-line overrides, which win over env
// and file values.
type ResolveOptions struct {
	ConfigPath string
	CLIDBPath  string
	CLILLM     string
	CLIModel   string
}

// ResolvedConfig is the merged configuration. Values are kept as strings;
// use the typed accessors to read them.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath ResolvedValue `json:"db_path"`

	LLMProvider ResolvedValue `json:"llm_provider"`
	LLMModel    ResolvedValue `json:"llm_model"`
	LLMURL      ResolvedValue `json:"llm_url"`
	LLMAPIKey   ResolvedValue `json:"-"`
	LLMTimeout  ResolvedValue `json:"llm_timeout"`

	CacheSize         ResolvedValue `json:"cache_size"`
	Concurrency       ResolvedValue `json:"concurrency"`
	Exhaustive        ResolvedValue `json:"exhaustive"`
	MinNameSimilarity ResolvedValue `json:"min_name_similarity"`

	DefaultRate ResolvedValue `json:"default_rate"`
	Partner     ResolvedValue `json:"partner"`

	KafkaBrokers ResolvedValue `json:"kafka_brokers"`
	KafkaTopic   ResolvedValue `json:"kafka_topic"`
	KafkaGroup   ResolvedValue `json:"kafka_group"`
	MetricsAddr  ResolvedValue `json:"metrics_addr"`
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	LLM    struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		URL      string `yaml:"url"`
		APIKey   string `yaml:"api_key"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"llm"`
	Engine struct {
		CacheSize         int     `yaml:"cache_size"`
		Concurrency       int     `yaml:"concurrency"`
		Exhaustive        bool    `yaml:"exhaustive"`
		MinNameSimilarity float64 `yaml:"min_name_similarity"`
	} `yaml:"engine"`
	Billing struct {
		DefaultRate string `yaml:"default_rate"`
		Partner     string `yaml:"partner"`
	} `yaml:"billing"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		Group   string   `yaml:"group"`
	} `yaml:"kafka"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfigPath returns ~/.wip/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wip", "config.yaml")
}

// DefaultDBPath returns ~/.wip/ledger.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wip", "ledger.db")
}

// ResolveConfig layers defaults, the config file, the environment and CLI
// flags, in that order. A missing config file is not an error.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}
	path = expandUserPath(path)

	out := ResolvedConfig{ConfigPath: path}

	def := func(dst *ResolvedValue, v string) {
		*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
	}
	def(&out.DBPath, DefaultDBPath())
	def(&out.LLMTimeout, "60s")
	def(&out.CacheSize, strconv.Itoa(oracle.DefaultCacheSize))
	def(&out.Concurrency, strconv.Itoa(merge.DefaultConcurrency))
	def(&out.Exhaustive, "false")
	def(&out.KafkaTopic, "wip.observations")
	def(&out.KafkaGroup, "wip-ledger")

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LLMProvider, cfg.LLM.Provider, SourceConfig, path)
		apply(&out.LLMModel, cfg.LLM.Model, SourceConfig, path)
		apply(&out.LLMURL, cfg.LLM.URL, SourceConfig, path)
		apply(&out.LLMAPIKey, cfg.LLM.APIKey, SourceConfig, path)
		apply(&out.LLMTimeout, cfg.LLM.Timeout, SourceConfig, path)
		if cfg.Engine.CacheSize > 0 {
			apply(&out.CacheSize, strconv.Itoa(cfg.Engine.CacheSize), SourceConfig, path)
		}
		if cfg.Engine.Concurrency > 0 {
			apply(&out.Concurrency, strconv.Itoa(cfg.Engine.Concurrency), SourceConfig, path)
		}
		if cfg.Engine.Exhaustive {
			apply(&out.Exhaustive, "true", SourceConfig, path)
		}
		if cfg.Engine.MinNameSimilarity > 0 {
			apply(&out.MinNameSimilarity, strconv.FormatFloat(cfg.Engine.MinNameSimilarity, 'f', -1, 64), SourceConfig, path)
		}
		apply(&out.DefaultRate, cfg.Billing.DefaultRate, SourceConfig, path)
		apply(&out.Partner, cfg.Billing.Partner, SourceConfig, path)
		apply(&out.KafkaBrokers, strings.Join(cfg.Kafka.Brokers, ","), SourceConfig, path)
		apply(&out.KafkaTopic, cfg.Kafka.Topic, SourceConfig, path)
		apply(&out.KafkaGroup, cfg.Kafka.Group, SourceConfig, path)
		apply(&out.MetricsAddr, cfg.MetricsAddr, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "WIP_DB")
	applyEnv(&out.LLMProvider, "WIP_LLM_PROVIDER")
	applyEnv(&out.LLMModel, "WIP_LLM_MODEL")
	applyEnv(&out.LLMURL, "WIP_LLM_URL")
	applyEnv(&out.LLMAPIKey, "OPENAI_API_KEY")
	applyEnv(&out.LLMAPIKey, "WIP_LLM_API_KEY")
	applyEnv(&out.LLMTimeout, "WIP_LLM_TIMEOUT")
	applyEnv(&out.CacheSize, "WIP_CACHE_SIZE")
	applyEnv(&out.Concurrency, "WIP_CONCURRENCY")
	applyEnv(&out.Exhaustive, "WIP_EXHAUSTIVE")
	applyEnv(&out.MinNameSimilarity, "WIP_MIN_NAME_SIMILARITY")
	applyEnv(&out.DefaultRate, "WIP_DEFAULT_RATE")
	applyEnv(&out.Partner, "WIP_PARTNER")
	applyEnv(&out.KafkaBrokers, "WIP_KAFKA_BROKERS")
	applyEnv(&out.KafkaTopic, "WIP_KAFKA_TOPIC")
	applyEnv(&out.KafkaGroup, "WIP_KAFKA_GROUP")
	applyEnv(&out.MetricsAddr, "WIP_METRICS_ADDR")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.LLMProvider, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.LLMModel, opts.CLIModel, SourceCLI, "--model")

	out.DBPath.Value = expandUserPath(out.DBPath.Value)

	if err := out.validate(); err != nil {
		return out, err
	}
	return out, nil
}

func (r ResolvedConfig) validate() error {
	for name, v := range map[string]ResolvedValue{"cache_size": r.CacheSize, "concurrency": r.Concurrency} {
		if _, err := strconv.Atoi(v.Value); err != nil {
			return fmt.Errorf("%s %q (from %s): not an integer", name, v.Value, v.From)
		}
	}
	if _, err := strconv.ParseBool(r.Exhaustive.Value); err != nil {
		return fmt.Errorf("exhaustive %q (from %s): not a boolean", r.Exhaustive.Value, r.Exhaustive.From)
	}
	if r.MinNameSimilarity.IsSet() {
		if _, err := strconv.ParseFloat(r.MinNameSimilarity.Value, 64); err != nil {
			return fmt.Errorf("min_name_similarity %q (from %s): not a number", r.MinNameSimilarity.Value, r.MinNameSimilarity.From)
		}
	}
	if _, err := time.ParseDuration(r.LLMTimeout.Value); err != nil {
		return fmt.Errorf("llm timeout %q (from %s): %w", r.LLMTimeout.Value, r.LLMTimeout.From, err)
	}
	if r.DefaultRate.IsSet() {
		if _, err := decimal.NewFromString(r.DefaultRate.Value); err != nil {
			return fmt.Errorf("default_rate %q (from %s): %w", r.DefaultRate.Value, r.DefaultRate.From, err)
		}
	}
	return nil
}

// Classifier returns the classifier settings.
func (r ResolvedConfig) Classifier() oracle.ClassifierConfig {
	timeout, _ := time.ParseDuration(r.LLMTimeout.Value)
	return oracle.ClassifierConfig{
		Provider: r.LLMProvider.Value,
		Model:    r.LLMModel.Value,
		BaseURL:  r.LLMURL.Value,
		APIKey:   r.LLMAPIKey.Value,
		Timeout:  timeout,
	}
}

// Engine returns merge engine options.
func (r ResolvedConfig) Engine() merge.Options {
	concurrency, _ := strconv.Atoi(r.Concurrency.Value)
	exhaustive, _ := strconv.ParseBool(r.Exhaustive.Value)
	minSim, _ := strconv.ParseFloat(r.MinNameSimilarity.Value, 64)
	return merge.Options{
		Exhaustive:        exhaustive,
		Concurrency:       concurrency,
		MinNameSimilarity: minSim,
	}
}

// CacheEntries returns the oracle cache bound.
func (r ResolvedConfig) CacheEntries() int {
	n, _ := strconv.Atoi(r.CacheSize.Value)
	return n
}

// Rate returns the configured default rate, if any.
func (r ResolvedConfig) Rate() (decimal.Decimal, bool) {
	if !r.DefaultRate.IsSet() {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(r.DefaultRate.Value)
	return d, err == nil
}

// Brokers splits the comma-separated broker list.
func (r ResolvedConfig) Brokers() []string {
	return splitAndTrim(r.KafkaBrokers.Value)
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
