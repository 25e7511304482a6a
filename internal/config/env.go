package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML file. Every field maps onto the
// environment variable of the same meaning.
type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	LLM struct {
		Provider       string   `yaml:"provider"`
		Model          string   `yaml:"model"`
		BaseURL        string   `yaml:"base_url"`
		Region         string   `yaml:"region"`
		Temperature    *float64 `yaml:"temperature"`
		TopP           *float64 `yaml:"top_p"`
		MaxTokens      *int     `yaml:"max_tokens"`
		OllamaBaseURL  string   `yaml:"ollama_base_url"`
		OllamaModel    string   `yaml:"ollama_model"`
		RateLimit      *float64 `yaml:"rate_limit"`
		RateBurst      *int     `yaml:"rate_burst"`
		TimeoutSeconds *int     `yaml:"timeout_seconds"`
	} `yaml:"llm"`

	Sources struct {
		Dir          string `yaml:"dir"`
		Watch        *bool  `yaml:"watch"`
		BatchPolicy  string `yaml:"batch_policy"`
		MaxFileBytes *int   `yaml:"max_file_bytes"`
	} `yaml:"sources"`
}

// values flattens the file into environment variable names.
func (f *fileConfig) values() map[string]string {
	out := make(map[string]string)
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			out[key] = value
		}
	}
	setFloat := func(key string, value *float64) {
		if value != nil {
			out[key] = strconv.FormatFloat(*value, 'f', -1, 64)
		}
	}
	setInt := func(key string, value *int) {
		if value != nil {
			out[key] = strconv.Itoa(*value)
		}
	}

	set("PORT", f.Server.Port)
	set("LLM_PROVIDER", f.LLM.Provider)
	set("Model", f.LLM.Model)
	set("ARK_BASE_URL", f.LLM.BaseURL)
	set("ARK_REGION", f.LLM.Region)
	setFloat("ARK_TEMPERATURE", f.LLM.Temperature)
	setFloat("ARK_TOP_P", f.LLM.TopP)
	setInt("ARK_MAX_TOKENS", f.LLM.MaxTokens)
	set("OLLAMA_BASE_URL", f.LLM.OllamaBaseURL)
	set("OLLAMA_MODEL", f.LLM.OllamaModel)
	setFloat("AI_RATE_LIMIT", f.LLM.RateLimit)
	setInt("AI_RATE_BURST", f.LLM.RateBurst)
	setInt("AI_TIMEOUT_SECONDS", f.LLM.TimeoutSeconds)
	set("SOURCE_DIR", f.Sources.Dir)
	if f.Sources.Watch != nil {
		out["SOURCE_WATCH"] = strconv.FormatBool(*f.Sources.Watch)
	}
	set("SOURCE_BATCH_POLICY", f.Sources.BatchPolicy)
	setInt("SOURCE_MAX_FILE_BYTES", f.Sources.MaxFileBytes)
	return out
}

// environment resolves a key from the process environment first and the
// config file second. Credentials are only ever read from the environment.
type environment struct {
	lookupEnv func(string) (string, bool)
	file      map[string]string
}

func newEnvironment() (*environment, error) {
	env := &environment{lookupEnv: os.LookupEnv}

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		return env, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	file, err := parseFile(data)
	if err != nil {
		return nil, err
	}
	env.file = file
	return env, nil
}

func parseFile(data []byte) (map[string]string, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg.values(), nil
}

func (e *environment) lookup(key string) (string, bool) {
	if raw, ok := e.lookupEnv(key); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw), true
	}
	if value, ok := e.file[key]; ok {
		return value, true
	}
	return "", false
}

func (e *environment) get(key string) string {
	value, _ := e.lookup(key)
	return value
}

func (e *environment) getOrDefault(key, defaultValue string) string {
	if value := e.get(key); value != "" {
		return value
	}
	return defaultValue
}

func (e *environment) parseBool(key string, defaultValue bool) (bool, error) {
	raw := e.get(key)
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func (e *environment) parseOptionalFloat(key string) (*float64, error) {
	value := e.get(key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func (e *environment) parseOptionalInt(key string) (*int, error) {
	value := e.get(key)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
