package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider      string  `yaml:"provider"`
		BaseURL       string  `yaml:"base_url"`
		APIKey        string  `yaml:"api_key"`
		Model         string  `yaml:"model"`
		FallbackURL   string  `yaml:"fallback_url"`
		FallbackModel string  `yaml:"fallback_model"`
		MaxTokens     int     `yaml:"max_tokens"`
		Temperature   float64 `yaml:"temperature"`
		MaxAttempts   int     `yaml:"max_attempts"`
		RateLimit     float64 `yaml:"rate_limit"`
	} `yaml:"llm"`

	Embedder struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"embedder"`

	Database struct {
		URL        string `yaml:"url"`
		Collection string `yaml:"collection"`
	} `yaml:"database"`

	Parser struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"parser"`

	Chunker struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"chunker"`

	Pipeline struct {
		PDFDirectory  string            `yaml:"pdf_directory"`
		MaxWorkers    int               `yaml:"max_workers"`
		DocumentTypes map[string]string `yaml:"document_types"`
	} `yaml:"pipeline"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/sitedocs/config.yaml"),
			"/etc/sitedocs/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "llama-3.3-70b-versatile"
	}
	if config.LLM.FallbackURL == "" {
		config.LLM.FallbackURL = "http://localhost:11434"
	}
	if config.LLM.FallbackModel == "" {
		config.LLM.FallbackModel = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 8000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.3
	}
	if config.LLM.MaxAttempts == 0 {
		config.LLM.MaxAttempts = 3
	}
	if config.LLM.RateLimit == 0 {
		config.LLM.RateLimit = 2.0
	}

	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "all-minilm:latest"
	}
	if config.Embedder.VectorDim == 0 {
		config.Embedder.VectorDim = 384
	}

	if config.Database.Collection == "" {
		config.Database.Collection = "document_chunks"
	}

	if config.Parser.BaseURL == "" {
		config.Parser.BaseURL = "http://localhost:8000"
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 1000
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 200
	}

	if config.Pipeline.PDFDirectory == "" {
		config.Pipeline.PDFDirectory = "./Data"
	}
	if config.Pipeline.MaxWorkers == 0 {
		config.Pipeline.MaxWorkers = 4
	}
	if config.Pipeline.DocumentTypes == nil {
		config.Pipeline.DocumentTypes = map[string]string{
			"Project schedule document.pdf":             "schedule",
			"Construction planning and costing.pdf":     "cost",
			"URA-Circular on GFA area definition.pdf":   "regulation",
			"construction approvals -long process chart.pdf": "regulation",
		}
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && config.LLM.APIKey == "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedder.BaseURL = baseURL
		config.LLM.FallbackURL = baseURL
	}
	if baseURL := os.Getenv("PARSER_BASE_URL"); baseURL != "" {
		config.Parser.BaseURL = baseURL
	}
	if dir := os.Getenv("PDF_DIRECTORY"); dir != "" {
		config.Pipeline.PDFDirectory = dir
	}
	if workers := os.Getenv("MAX_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			config.Pipeline.MaxWorkers = n
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
