// Package config loads the synth configuration: where the datasets live,
// which models each stage calls, how the pipeline paces itself and how the
// model client and Temporal worker connect.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-synth/internal/domain"
	"github.com/ahrav/go-synth/internal/llm/configuration"
	"github.com/ahrav/go-synth/internal/pipeline"
	"github.com/ahrav/go-synth/internal/rag"
)

// Defaults.
const (
	DefaultDataDir   = "datasets"
	DefaultHostPort  = "localhost:7233"
	DefaultNamespace = "default"
	DefaultTaskQueue = "synth-pipeline"
)

// Errors returned by Load and Validate.
var (
	ErrInvalidDataDir = errors.New("data_dir must not be empty")
	ErrInvalidDelay   = errors.New("pipeline delays must not be negative")
	ErrInvalidModels  = errors.New("invalid model list")
	ErrInvalidWorker  = errors.New("invalid temporal configuration")
)

// Config is the top-level configuration file.
type Config struct {
	DataDir string `yaml:"data_dir"`

	// Stages overrides the candidate models of a generation stage, keyed by
	// stage name. Stages not listed use their built-in candidates.
	Stages map[string][]string `yaml:"stages"`

	RAG      RAGConfig             `yaml:"rag"`
	Pipeline PipelineConfig        `yaml:"pipeline"`
	Temporal TemporalConfig        `yaml:"temporal"`
	LLM      *configuration.Config `yaml:"llm"`
}

// RAGConfig configures the question and answer tasks.
type RAGConfig struct {
	Models      []string `yaml:"models"`
	Concurrency int      `yaml:"concurrency"`
}

// PipelineConfig paces the pipeline driver.
type PipelineConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
	Pause       time.Duration `yaml:"pause"`
}

// TemporalConfig locates the Temporal frontend used by the worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Stages:  map[string][]string{},
		RAG: RAGConfig{
			Models:      modelStrings(rag.DefaultModels),
			Concurrency: rag.DefaultConcurrency,
		},
		Pipeline: PipelineConfig{
			SettleDelay: pipeline.DefaultSettleDelay,
			Pause:       pipeline.DefaultPause,
		},
		Temporal: TemporalConfig{
			HostPort:  DefaultHostPort,
			Namespace: DefaultNamespace,
			TaskQueue: DefaultTaskQueue,
		},
		LLM: configuration.DefaultConfig(),
	}
}

// Load reads the YAML file at path over Default. An empty path returns the
// defaults. Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, which should already hold defaults.
func Parse(data []byte, cfg *Config) error {
	defaults := configuration.DefaultConfig().Providers
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if cfg.LLM == nil {
		cfg.LLM = configuration.DefaultConfig()
	}
	// A provider entry in the file replaces the default wholesale; restore
	// the parts it left out.
	for name, p := range cfg.LLM.Providers {
		d, ok := defaults[name]
		if !ok {
			continue
		}
		if p.Endpoint == "" {
			p.Endpoint = d.Endpoint
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = d.APIKeyEnv
		}
		cfg.LLM.Providers[name] = p
	}
	return nil
}

// Validate checks values the commands cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrInvalidDataDir
	}
	if c.Pipeline.SettleDelay < 0 || c.Pipeline.Pause < 0 {
		return ErrInvalidDelay
	}
	if c.Temporal.TaskQueue == "" || c.Temporal.HostPort == "" {
		return fmt.Errorf("%w: host_port and task_queue are required", ErrInvalidWorker)
	}
	if _, err := c.StageModels(); err != nil {
		return err
	}
	if _, err := c.RAGModels(); err != nil {
		return err
	}
	return c.LLM.Validate()
}

// StageModels parses the per-stage model overrides.
func (c *Config) StageModels() (map[string][]domain.ModelID, error) {
	out := make(map[string][]domain.ModelID, len(c.Stages))
	for stage, ids := range c.Stages {
		models, err := parseModels(ids)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage, err)
		}
		out[stage] = models
	}
	return out, nil
}

// RAGModels parses the RAG task models, falling back to rag.DefaultModels.
func (c *Config) RAGModels() ([]domain.ModelID, error) {
	if len(c.RAG.Models) == 0 {
		return rag.DefaultModels, nil
	}
	models, err := parseModels(c.RAG.Models)
	if err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}
	return models, nil
}

// PipelineOptions returns the driver options for the configured delays.
func (c *Config) PipelineOptions() []pipeline.Option {
	return []pipeline.Option{pipeline.WithDelays(c.Pipeline.SettleDelay, c.Pipeline.Pause)}
}

// Logger builds the process logger from the observability settings.
// Unknown levels fall back to info and unknown formats to text.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	obs := c.LLM.Observability
	var level slog.Level
	if err := level.UnmarshalText([]byte(obs.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(obs.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseModels(ids []string) ([]domain.ModelID, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidModels)
	}
	out := make([]domain.ModelID, 0, len(ids))
	for _, s := range ids {
		id, err := domain.ParseModelID(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidModels, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func modelStrings(ids []domain.ModelID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
