package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	LLM         LLMConfig       `toml:"llm"`
	PDF         PDFConfig       `toml:"pdf"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Detectors   DetectorsConfig `toml:"detectors"`
	Mapping     MappingConfig   `toml:"mapping"`
	Export      ExportConfig    `toml:"export"`
	Sources     SourcesConfig   `toml:"sources"`
	Sweep       SweepConfig     `toml:"sweep"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`                                       // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                  // Time format for logs (default: "15:04:05.000")
}

// LLMConfig holds provider selection and per-provider settings
type LLMConfig struct {
	DefaultProvider string       `toml:"default_provider" validate:"oneof=openai gemini claude"`
	RequestsPerMin  int          `toml:"requests_per_min"` // Rate limit across all providers (0 = unlimited)
	OpenAI          OpenAIConfig `toml:"openai"`
	Gemini          GeminiConfig `toml:"gemini"`
	Claude          ClaudeConfig `toml:"claude"`
}

// OpenAIConfig configures the OpenAI-compatible chat-completions provider.
// BaseURL may point at any compatible endpoint (OpenRouter, vLLM, etc).
type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"` // e.g. "90s"
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// PDFConfig controls page rendering and coordinate conversion
type PDFConfig struct {
	RenderScale  float64           `toml:"render_scale"`   // Multiple of native 72 DPI (default 5 = 360 DPI)
	JPEGQuality  int               `toml:"jpeg_quality"`   // Encode quality for page images (default 90)
	CropPadding  int               `toml:"crop_padding"`   // White padding around region crops in px (default 25)
	MaxImageSide int               `toml:"max_image_side"` // Downscale rendered pages larger than this before encoding (default 2048, 0 = off)
	Coordinates  CoordinatesConfig `toml:"coordinates"`
}

// CoordinatesConfig tunes LLM-space to pixel-space bbox conversion.
// Defaults are identity; vendor-specific layouts override in config.
type CoordinatesConfig struct {
	ScaleXExtra float64 `toml:"scale_x_extra"`
	ScaleYExtra float64 `toml:"scale_y_extra"`
	OffsetX     float64 `toml:"offset_x"`
	OffsetY     float64 `toml:"offset_y"`
}

// PipelineConfig controls the per-page extraction pipeline
type PipelineConfig struct {
	MaxWorkers              int     `toml:"max_workers"`               // Bound on in-flight LLM calls
	PDFWorkers              int     `toml:"pdf_workers"`               // Pool for decode/render/text
	EncodeWorkers           int     `toml:"encode_workers"`            // Pool for image encoding
	ParseWorkers            int     `toml:"parse_workers"`             // Pool for parse/merge
	PagesPerWorker          int     `toml:"pages_per_worker"`          // Pages batched onto one LLM slot
	PreferText              bool    `toml:"prefer_text"`               // Try text extraction before rendering
	TextConfidenceThreshold float64 `toml:"text_confidence_threshold"` // Text path cutoff (default 0.6)
	MaxRetriesPerStage      int     `toml:"max_retries_per_stage"`     // Retries for LLM/parse/merge stages
	Deadline                string  `toml:"deadline"`                  // Whole-pipeline deadline (default "10m")
	DocumentConcurrency     int     `toml:"document_concurrency"`      // Parallel documents per job
}

// DetectorsConfig configures the optional signature/face detectors.
// A detector is enabled iff its endpoint is non-empty.
type DetectorsConfig struct {
	SignatureEndpoint   string  `toml:"signature_endpoint"`
	FaceEndpoint        string  `toml:"face_endpoint"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"` // Minimum detection confidence (default 0.5)
	Timeout             string  `toml:"timeout"`              // Inference call timeout (default "30s")
}

type MappingConfig struct {
	AIBatchSize    int     `toml:"ai_batch_size"`    // Columns per AI suggestion batch (default 20)
	AIMaxParallel  int     `toml:"ai_max_parallel"`  // AI batches in flight (default 3)
	FuzzyThreshold float64 `toml:"fuzzy_threshold"`  // Accept score for AI correction (default 0.7)
	MatchThreshold float64 `toml:"match_threshold"`  // Accept score for fallback fuzzy (default 0.4)
	ReviewCutoff   float64 `toml:"review_threshold"` // Confidence below which fields need review (default 0.7)
}

type ExportConfig struct {
	SheetName string `toml:"sheet_name"` // XLSX worksheet name (default "export")
}

// SourcesConfig configures document source adapters
type SourcesConfig struct {
	Folder FolderSourceConfig `toml:"folder"`
	Drive  DriveSourceConfig  `toml:"drive"`
}

type FolderSourceConfig struct {
	Path       string   `toml:"path"`       // Root directory to scan
	Extensions []string `toml:"extensions"` // File extensions to ingest (default: .pdf, .png, .jpg)
}

// DriveSourceConfig configures the Google Drive adapter (oauth2 refresh token flow)
type DriveSourceConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	FolderID     string `toml:"folder_id"`
}

// SweepConfig schedules the stale-document recovery pass
type SweepConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format (default "*/10 * * * *")
	MaxAge   string `toml:"max_age"`  // Processing documents older than this are parked (default "30m")
}

// NewDefaultConfig returns a Config populated with defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/scriba",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			RequestsPerMin:  0,
			OpenAI: OpenAIConfig{
				Model:       "gpt-4o-mini",
				Timeout:     "90s",
				MaxTokens:   8192,
				Temperature: 0.1,
			},
			Gemini: GeminiConfig{
				Model:       "gemini-2.5-flash",
				Timeout:     "90s",
				MaxTokens:   8192,
				Temperature: 0.1,
			},
			Claude: ClaudeConfig{
				Model:       "claude-sonnet-4-20250514",
				Timeout:     "90s",
				MaxTokens:   8192,
				Temperature: 0.1,
			},
		},
		PDF: PDFConfig{
			RenderScale:  5.0,
			JPEGQuality:  90,
			CropPadding:  25,
			MaxImageSide: 2048,
		},
		Pipeline: PipelineConfig{
			MaxWorkers:              8,
			PDFWorkers:              4,
			EncodeWorkers:           4,
			ParseWorkers:            4,
			PagesPerWorker:          1,
			PreferText:              true,
			TextConfidenceThreshold: 0.6,
			MaxRetriesPerStage:      1,
			Deadline:                "10m",
			DocumentConcurrency:     2,
		},
		Detectors: DetectorsConfig{
			ConfidenceThreshold: 0.5,
			Timeout:             "30s",
		},
		Mapping: MappingConfig{
			AIBatchSize:    20,
			AIMaxParallel:  3,
			FuzzyThreshold: 0.7,
			MatchThreshold: 0.4,
			ReviewCutoff:   0.7,
		},
		Export: ExportConfig{
			SheetName: "export",
		},
		Sources: SourcesConfig{
			Folder: FolderSourceConfig{
				Extensions: []string{".pdf", ".png", ".jpg", ".jpeg"},
			},
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Schedule: "*/10 * * * *",
			MaxAge:   "30m",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against struct tags and cross-field rules
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, v := range map[string]string{
		"llm.openai.timeout": c.LLM.OpenAI.Timeout,
		"llm.gemini.timeout": c.LLM.Gemini.Timeout,
		"llm.claude.timeout": c.LLM.Claude.Timeout,
		"pipeline.deadline":  c.Pipeline.Deadline,
		"detectors.timeout":  c.Detectors.Timeout,
		"sweep.max_age":      c.Sweep.MaxAge,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if c.Pipeline.TextConfidenceThreshold < 0 || c.Pipeline.TextConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.text_confidence_threshold must be in [0,1], got %f", c.Pipeline.TextConfidenceThreshold)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SCRIBA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if badgerPath := os.Getenv("SCRIBA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("SCRIBA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SCRIBA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if provider := os.Getenv("SCRIBA_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && config.LLM.OpenAI.APIKey == "" {
		config.LLM.OpenAI.APIKey = key
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" && config.LLM.OpenAI.BaseURL == "" {
		config.LLM.OpenAI.BaseURL = base
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && config.LLM.Gemini.APIKey == "" {
		config.LLM.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.LLM.Claude.APIKey == "" {
		config.LLM.Claude.APIKey = key
	}

	if workers := os.Getenv("SCRIBA_PIPELINE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			config.Pipeline.MaxWorkers = w
		}
	}

	if path := os.Getenv("SCRIBA_SOURCE_FOLDER"); path != "" {
		config.Sources.Folder.Path = path
	}
}

// ParsedDeadline returns the parsed pipeline deadline with fallback
func (c *PipelineConfig) ParsedDeadline() time.Duration {
	d, err := time.ParseDuration(c.Deadline)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
