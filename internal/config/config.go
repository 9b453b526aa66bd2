package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name looked up in the working directory.
const FileName = "parsebank.yaml"

// Config represents the top-level parsebank.yaml configuration.
type Config struct {
	Extract   ExtractConfig   `yaml:"extract"`
	Normalize NormalizeConfig `yaml:"normalize"`
	OCR       OCRConfig       `yaml:"ocr"`
	Server    ServerConfig    `yaml:"server"`
}

// ExtractConfig controls how raw rows are pulled out of documents.
type ExtractConfig struct {
	Delimiter    string `yaml:"delimiter,omitempty"` // empty = detect
	MinTableRows int    `yaml:"min_table_rows"`      // PDF lines with 2+ cells before a page counts as tabular
	Workers      int    `yaml:"workers"`             // concurrent PDF pages
	MaxBytes     int64  `yaml:"max_bytes"`
}

// NormalizeConfig controls column mapping and value parsing.
type NormalizeConfig struct {
	DayFirst     bool     `yaml:"day_first"`
	HeaderWindow int      `yaml:"header_window"`
	Currencies   []string `yaml:"currencies"` // ISO 4217 codes whose symbols are stripped
}

// OCRConfig selects and configures the OCR engine.
type OCRConfig struct {
	Engine         string       `yaml:"engine"` // tesseract, vertex, none
	TesseractPath  string       `yaml:"tesseract_path"`
	Languages      string       `yaml:"languages"`
	PSM            int          `yaml:"psm"`
	TimeoutSeconds int          `yaml:"timeout_seconds"`
	Vertex         VertexConfig `yaml:"vertex"`
}

// VertexConfig points the vertex engine at a Gemini model.
type VertexConfig struct {
	Project string `yaml:"project,omitempty"`
	Region  string `yaml:"region"`
	Model   string `yaml:"model"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// Load reads a parsebank.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault reads path when it exists and falls back to Default otherwise.
// Environment overrides are applied in both cases.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Extract: ExtractConfig{
			MinTableRows: 2,
			Workers:      4,
			MaxBytes:     32 << 20,
		},
		Normalize: NormalizeConfig{
			DayFirst:     false,
			HeaderWindow: 20,
			Currencies:   []string{"USD", "EUR", "GBP", "INR", "JPY", "BRL", "CHF", "AUD", "CAD"},
		},
		OCR: OCRConfig{
			Engine:         "tesseract",
			TesseractPath:  "tesseract",
			Languages:      "eng",
			PSM:            6,
			TimeoutSeconds: 60,
			Vertex: VertexConfig{
				Region: "us-central1",
				Model:  "gemini-1.5-pro",
			},
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 32,
		},
	}
}

// ApplyEnv loads .env when present and overlays PARSEBANK_* variables.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	if v := os.Getenv("PARSEBANK_OCR_ENGINE"); v != "" {
		c.OCR.Engine = v
	}
	if v := os.Getenv("PARSEBANK_VERTEX_PROJECT"); v != "" {
		c.OCR.Vertex.Project = v
	}
	if v := os.Getenv("PARSEBANK_VERTEX_REGION"); v != "" {
		c.OCR.Vertex.Region = v
	}
	if v := os.Getenv("PARSEBANK_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PARSEBANK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing PARSEBANK_WORKERS %q: %w", v, err)
		}
		c.Extract.Workers = n
	}
	return nil
}

// DelimiterRune returns the configured CSV delimiter, or 0 to auto-detect.
func (c ExtractConfig) DelimiterRune() rune {
	switch c.Delimiter {
	case "":
		return 0
	case `\t`, "tab":
		return '\t'
	}
	return []rune(c.Delimiter)[0]
}
